package limiter

import (
	"time"

	"github.com/gomodule/redigo/redis"

	predis "github.com/tapglue/visits/platform/redis"
)

type redisLimiter struct {
	prefix string
	pool   *redis.Pool
}

// Redis returns a Redis Limiter implementation.
func Redis(pool *redis.Pool, prefix string) Limiter {
	return &redisLimiter{
		prefix: prefix,
		pool:   pool,
	}
}

func (l *redisLimiter) Request(limitee *Limitee) (int64, time.Time, error) {
	var (
		conn    = l.pool.Get()
		expires = time.Now().Add(limitee.WindowSize)
		key     = predis.PrefixKey(l.prefix, limitee.Hash)
	)
	defer conn.Close()

	quota, err := getQuota(conn, key)
	if err != nil {
		return 0, time.Now(), err
	}

	ttl, err := getTTL(conn, key)
	if err != nil {
		return 0, time.Now(), err
	}

	if ttl < 0 {
		quota = limitee.Limit - 1

		_, err := conn.Do(
			predis.CommandSet,
			key,
			quota,
			predis.CommandPX,
			expireMillis(limitee.WindowSize),
		)
		if err != nil {
			return 0, time.Now(), err
		}

		return quota, expires, nil
	}

	return quota, time.Now().Add(ttl), nil
}

func getQuota(conn redis.Conn, key string) (int64, error) {
	// DECR on non-existent keys will set them to `-1` we can make use of that to
	// determine if we have to reset the quota.
	return redis.Int64(conn.Do(predis.CommandDecr, key))
}

func getTTL(conn redis.Conn, key string) (time.Duration, error) {
	// PTTL returns -2 for a key that doesn't exist and -1 if none is set.
	ttl, err := redis.Int64(conn.Do(predis.CommandPTTL, key))
	if err != nil {
		return 0, err
	}

	return time.Duration(ttl) * time.Millisecond, nil
}

// expireMillis rounds d up to the smallest expiry Redis accepts.
func expireMillis(d time.Duration) int64 {
	if ms := d.Milliseconds(); ms > 0 {
		return ms
	}

	return 1
}
