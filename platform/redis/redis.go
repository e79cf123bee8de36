package redis

import (
	"time"

	"github.com/gomodule/redigo/redis"
)

// Commands.
const (
	CommandAuth  = "AUTH"
	CommandCount = "COUNT"
	CommandDecr  = "DECR"
	CommandDel   = "DEL"
	CommandGet   = "GET"
	CommandMatch = "MATCH"
	CommandPTTL  = "PTTL"
	CommandPX    = "PX"
	CommandPing  = "PING"
	CommandScan  = "SCAN"
	CommandSet   = "SET"
)

// Defaults.
const (
	defaultConnectTimeout = 5 * time.Second
	defaultIdleTimeout    = 240 * time.Second
	defaultMaxIdle        = 10
	defaultNetwork        = "tcp"
	defaultReadTimeout    = 2 * time.Second
	defaultWriteTimeout   = 2 * time.Second
)

// KeySeparator is used to build complete keys out of parts.
const KeySeparator = ":"

type borrowFunc func(redis.Conn, time.Time) error
type dialFunc func() (redis.Conn, error)

// Pool returns a connection pool dialing addr, authenticating with password
// if one is given.
func Pool(addr, password string) *redis.Pool {
	return &redis.Pool{
		Dial:         dial(addr, password),
		IdleTimeout:  defaultIdleTimeout,
		MaxIdle:      defaultMaxIdle,
		TestOnBorrow: borrow,
	}
}

// Ping checks if a connection from the pool can reach the server.
func Ping(pool *redis.Pool) error {
	con := pool.Get()
	defer con.Close()

	_, err := con.Do(CommandPing)
	return err
}

// PrefixKey joins the non-empty parts into a single key.
func PrefixKey(parts ...string) string {
	key := ""

	for _, p := range parts {
		if p == "" {
			continue
		}

		if key != "" {
			key += KeySeparator
		}

		key += p
	}

	return key
}

func borrow(c redis.Conn, t time.Time) error {
	if time.Since(t) < time.Minute {
		return nil
	}

	_, err := c.Do(CommandPing)
	return err
}

func dial(addr, password string) dialFunc {
	return func() (redis.Conn, error) {
		c, err := redis.Dial(
			defaultNetwork,
			addr,
			redis.DialConnectTimeout(defaultConnectTimeout),
			redis.DialReadTimeout(defaultReadTimeout),
			redis.DialWriteTimeout(defaultWriteTimeout),
		)
		if err != nil {
			return nil, err
		}

		if password != "" {
			if _, err := c.Do(CommandAuth, password); err != nil {
				c.Close()

				return nil, err
			}
		}

		return c, err
	}
}
