package counter

import (
	"github.com/tapglue/visits/platform/service"
)

// Service for counter interactions.
type Service interface {
	service.Lifecycle

	// Get returns the current value of the named counter, or ErrNotFound if it
	// was never set.
	Get(name string) (uint64, error)
	// Incr atomically increments the named counter and returns the new value,
	// missing counters start from 0.
	Incr(name string) (uint64, error)
	// Set overwrites the named counter with value.
	Set(name string, value uint64) error
}

// ServiceMiddleware is a chainable behaviour modifier for Service.
type ServiceMiddleware func(Service) Service
