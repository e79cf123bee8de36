package cache

// KeySeparator is used to build complete keys out of parts.
const KeySeparator = "."

const countPrefix = "cache.count"

// CountService caches counts separated by namespace.
type CountService interface {
	Del(namespace, key string) error
	Get(namespace, key string) (uint64, error)
	Set(namespace, key string, count uint64) error
}

// CountServiceMiddleware is a chainable behaviour modifier for CountService.
type CountServiceMiddleware func(CountService) CountService
