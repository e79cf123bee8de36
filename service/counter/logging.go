package counter

import (
	"time"

	"github.com/go-kit/kit/log"
)

type logService struct {
	logger log.Logger
	next   Service
}

// LogServiceMiddleware given a Logger wraps the next Service with logging
// capabilities.
func LogServiceMiddleware(logger log.Logger, store string) ServiceMiddleware {
	return func(next Service) Service {
		logger = log.With(
			logger,
			"service", "counter",
			"store", store,
		)

		return &logService{logger: logger, next: next}
	}
}

func (s *logService) Get(name string) (value uint64, err error) {
	defer func(begin time.Time) {
		ps := []interface{}{
			"counter_name", name,
			"counter_value", value,
			"duration_ns", time.Since(begin).Nanoseconds(),
			"method", "Get",
		}

		if err != nil {
			ps = append(ps, "err", err)
		}

		_ = s.logger.Log(ps...)
	}(time.Now())

	return s.next.Get(name)
}

func (s *logService) Incr(name string) (value uint64, err error) {
	defer func(begin time.Time) {
		ps := []interface{}{
			"counter_name", name,
			"counter_value", value,
			"duration_ns", time.Since(begin).Nanoseconds(),
			"method", "Incr",
		}

		if err != nil {
			ps = append(ps, "err", err)
		}

		_ = s.logger.Log(ps...)
	}(time.Now())

	return s.next.Incr(name)
}

func (s *logService) Set(name string, value uint64) (err error) {
	defer func(begin time.Time) {
		ps := []interface{}{
			"counter_name", name,
			"counter_value", value,
			"duration_ns", time.Since(begin).Nanoseconds(),
			"method", "Set",
		}

		if err != nil {
			ps = append(ps, "err", err)
		}

		_ = s.logger.Log(ps...)
	}(time.Now())

	return s.next.Set(name, value)
}

func (s *logService) Setup() (err error) {
	defer func(begin time.Time) {
		ps := []interface{}{
			"duration_ns", time.Since(begin).Nanoseconds(),
			"method", "Setup",
		}

		if err != nil {
			ps = append(ps, "err", err)
		}

		_ = s.logger.Log(ps...)
	}(time.Now())

	return s.next.Setup()
}

func (s *logService) Teardown() (err error) {
	defer func(begin time.Time) {
		ps := []interface{}{
			"duration_ns", time.Since(begin).Nanoseconds(),
			"method", "Teardown",
		}

		if err != nil {
			ps = append(ps, "err", err)
		}

		_ = s.logger.Log(ps...)
	}(time.Now())

	return s.next.Teardown()
}
