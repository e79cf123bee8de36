package limiter

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type memLimiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

// Mem returns a Limiter backed by in-process token buckets. Each hash gets a
// bucket holding Limit tokens which refills completely over WindowSize.
func Mem() Limiter {
	return &memLimiter{
		buckets: map[string]*rate.Limiter{},
	}
}

func (l *memLimiter) Request(limitee *Limitee) (int64, time.Time, error) {
	now := time.Now()

	if limitee.Limit <= 0 {
		return -1, now.Add(limitee.WindowSize), nil
	}

	every := limitee.WindowSize / time.Duration(limitee.Limit)

	l.mu.Lock()
	b, ok := l.buckets[limitee.Hash]
	if !ok {
		b = rate.NewLimiter(rate.Every(every), int(limitee.Limit))
		l.buckets[limitee.Hash] = b
	}
	l.mu.Unlock()

	if !b.AllowN(now, 1) {
		return -1, now.Add(every), nil
	}

	remaining := int64(b.TokensAt(now))
	missing := limitee.Limit - remaining

	return remaining, now.Add(time.Duration(missing) * every), nil
}
