package cache

import (
	"fmt"
	"strings"
	"time"

	"github.com/gomodule/redigo/redis"

	predis "github.com/tapglue/visits/platform/redis"
)

type redisCountService struct {
	pool *redis.Pool
	ttl  time.Duration
}

// RedisCountService returns a Redis backed CountService expiring entries after
// ttl.
func RedisCountService(pool *redis.Pool, ttl time.Duration) CountService {
	return &redisCountService{
		pool: pool,
		ttl:  ttl,
	}
}

func (s *redisCountService) Del(ns, key string) error {
	con := s.pool.Get()
	defer con.Close()

	_, err := con.Do(predis.CommandDel, prefixKey(ns, key))
	if err != nil {
		return fmt.Errorf("cache del failed: %s", err)
	}

	return nil
}

func (s *redisCountService) Get(ns, key string) (uint64, error) {
	con := s.pool.Get()
	defer con.Close()

	res, err := con.Do(predis.CommandGet, prefixKey(ns, key))
	if err != nil {
		return 0, fmt.Errorf("cache get failed: %s", err)
	}

	if res == nil {
		return 0, wrapError(ErrKeyNotFound, "%s.%s", ns, key)
	}

	count, err := redis.Uint64(res, nil)
	if err != nil {
		return 0, fmt.Errorf("cache scan failed: %s", err)
	}

	return count, nil
}

func (s *redisCountService) Set(ns, key string, count uint64) error {
	con := s.pool.Get()
	defer con.Close()

	args := redis.Args{}.Add(prefixKey(ns, key), count)

	if ttl := s.ttl.Milliseconds(); ttl > 0 {
		args = args.Add(predis.CommandPX, ttl)
	}

	_, err := con.Do(predis.CommandSet, args...)
	if err != nil {
		return fmt.Errorf("cache set failed: %s", err)
	}

	return nil
}

func prefixKey(ns, key string) string {
	ps := []string{
		countPrefix,
		ns,
		key,
	}

	return strings.Join(ps, KeySeparator)
}
