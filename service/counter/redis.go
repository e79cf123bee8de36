package counter

import (
	"fmt"

	"github.com/gomodule/redigo/redis"

	predis "github.com/tapglue/visits/platform/redis"
)

const scanCount = 100

// incrScript only increments counters holding a non-negative integer, leaving
// any other value untouched.
var incrScript = redis.NewScript(1, `
local v = redis.call('GET', KEYS[1])
if v and (tonumber(v) == nil or tonumber(v) < 0) then
	return redis.error_reply('ERR value is not a non-negative integer')
end
return redis.call('INCR', KEYS[1])
`)

type redisService struct {
	pool   *redis.Pool
	prefix string
}

// RedisService returns a Redis based Service implementation. Counters are
// stored under their name, prefixed with prefix if it is not empty.
func RedisService(pool *redis.Pool, prefix string) Service {
	return &redisService{
		pool:   pool,
		prefix: prefix,
	}
}

func (s *redisService) Get(name string) (uint64, error) {
	con := s.pool.Get()
	defer con.Close()

	res, err := con.Do(predis.CommandGet, s.key(name))
	if err != nil {
		return 0, fmt.Errorf("counter get failed: %s", err)
	}

	if res == nil {
		return 0, wrapError(ErrNotFound, "%s", name)
	}

	value, err := redis.Uint64(res, nil)
	if err != nil {
		return 0, wrapError(ErrInvalidValue, "%s: %s", name, err)
	}

	return value, nil
}

func (s *redisService) Incr(name string) (uint64, error) {
	con := s.pool.Get()
	defer con.Close()

	value, err := redis.Uint64(incrScript.Do(con, s.key(name)))
	if err != nil {
		if _, ok := err.(redis.Error); ok {
			return 0, wrapError(ErrInvalidValue, "%s: %s", name, err)
		}

		return 0, fmt.Errorf("counter incr failed: %s", err)
	}

	return value, nil
}

func (s *redisService) Set(name string, value uint64) error {
	con := s.pool.Get()
	defer con.Close()

	_, err := con.Do(predis.CommandSet, s.key(name), value)
	if err != nil {
		return fmt.Errorf("counter set failed: %s", err)
	}

	return nil
}

func (s *redisService) Setup() error {
	if err := predis.Ping(s.pool); err != nil {
		return fmt.Errorf("setup: %s", err)
	}

	return nil
}

// Teardown removes all keys under the prefix. Without a prefix the service
// doesn't own a keyspace and leaves it untouched.
func (s *redisService) Teardown() error {
	if s.prefix == "" {
		return nil
	}

	con := s.pool.Get()
	defer con.Close()

	var (
		cursor  = "0"
		pattern = predis.PrefixKey(s.prefix, "*")
	)

	for {
		res, err := redis.Values(con.Do(
			predis.CommandScan,
			cursor,
			predis.CommandMatch,
			pattern,
			predis.CommandCount,
			scanCount,
		))
		if err != nil {
			return fmt.Errorf("teardown scan: %s", err)
		}

		var keys []string

		if _, err := redis.Scan(res, &cursor, &keys); err != nil {
			return fmt.Errorf("teardown scan: %s", err)
		}

		if len(keys) > 0 {
			_, err := con.Do(predis.CommandDel, redis.Args{}.AddFlat(keys)...)
			if err != nil {
				return fmt.Errorf("teardown del: %s", err)
			}
		}

		if cursor == "0" {
			return nil
		}
	}
}

func (s *redisService) key(name string) string {
	return predis.PrefixKey(s.prefix, name)
}
