package counter

import (
	"time"

	kitmetrics "github.com/go-kit/kit/metrics"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tapglue/visits/platform/metrics"
)

const serviceName = "counter"

type instrumentService struct {
	component string
	errCount  kitmetrics.Counter
	next      Service
	opCount   kitmetrics.Counter
	opLatency *prometheus.HistogramVec
	store     string
}

// InstrumentServiceMiddleware observes key aspects of Service operations and
// exposes Prometheus metrics.
func InstrumentServiceMiddleware(
	component, store string,
	errCount kitmetrics.Counter,
	opCount kitmetrics.Counter,
	opLatency *prometheus.HistogramVec,
) ServiceMiddleware {
	return func(next Service) Service {
		return &instrumentService{
			component: component,
			errCount:  errCount,
			next:      next,
			opCount:   opCount,
			opLatency: opLatency,
			store:     store,
		}
	}
}

func (s *instrumentService) Get(name string) (value uint64, err error) {
	defer func(begin time.Time) {
		// A missing counter is an expected outcome, not a failed operation.
		if IsNotFound(err) {
			s.track("Get", begin, nil)
			return
		}

		s.track("Get", begin, err)
	}(time.Now())

	return s.next.Get(name)
}

func (s *instrumentService) Incr(name string) (value uint64, err error) {
	defer func(begin time.Time) {
		s.track("Incr", begin, err)
	}(time.Now())

	return s.next.Incr(name)
}

func (s *instrumentService) Set(name string, value uint64) (err error) {
	defer func(begin time.Time) {
		s.track("Set", begin, err)
	}(time.Now())

	return s.next.Set(name, value)
}

func (s *instrumentService) Setup() (err error) {
	defer func(begin time.Time) {
		s.track("Setup", begin, err)
	}(time.Now())

	return s.next.Setup()
}

func (s *instrumentService) Teardown() (err error) {
	defer func(begin time.Time) {
		s.track("Teardown", begin, err)
	}(time.Now())

	return s.next.Teardown()
}

func (s *instrumentService) track(method string, begin time.Time, err error) {
	if err != nil {
		s.errCount.With(
			metrics.FieldComponent, s.component,
			metrics.FieldMethod, method,
			metrics.FieldService, serviceName,
			metrics.FieldStore, s.store,
		).Add(1)

		return
	}

	s.opCount.With(
		metrics.FieldComponent, s.component,
		metrics.FieldMethod, method,
		metrics.FieldService, serviceName,
		metrics.FieldStore, s.store,
	).Add(1)

	s.opLatency.With(prometheus.Labels{
		metrics.FieldComponent: s.component,
		metrics.FieldMethod:    method,
		metrics.FieldService:   serviceName,
		metrics.FieldStore:     s.store,
	}).Observe(time.Since(begin).Seconds())
}
