package core

import (
	"github.com/tapglue/visits/service/counter"
)

// CounterVisits is the name of the counter tracking visits.
const CounterVisits = "visits"

// VisitCountFunc returns the current number of visits.
type VisitCountFunc func() (uint64, error)

// VisitCount returns the current number of visits without recording a new one.
// A counter which was never set reports 0.
func VisitCount(counters counter.Service, name string) VisitCountFunc {
	return func() (uint64, error) {
		return currentCount(counters, name)
	}
}

// VisitRecordFunc returns the number of visits seen before the current one and
// records the current one.
type VisitRecordFunc func() (uint64, error)

// VisitRecord returns the number of visits seen before the current one and
// records the current one.
//
// Without atomic the counter is read and its successor written back in two
// round-trips, concurrent visits can observe the same count and one of the
// increments is lost. With atomic the store increments in a single operation.
func VisitRecord(
	counters counter.Service,
	name string,
	atomic bool,
) VisitRecordFunc {
	if atomic {
		return func() (uint64, error) {
			v, err := counters.Incr(name)
			if err != nil {
				return 0, wrapStoreError(err, name)
			}

			return v - 1, nil
		}
	}

	return func() (uint64, error) {
		v, err := currentCount(counters, name)
		if err != nil {
			return 0, err
		}

		if err := counters.Set(name, v+1); err != nil {
			return 0, err
		}

		return v, nil
	}
}

// VisitResetFunc sets the visit counter back to 0.
type VisitResetFunc func() error

// VisitReset sets the visit counter back to 0.
func VisitReset(counters counter.Service, name string) VisitResetFunc {
	return func() error {
		return counters.Set(name, 0)
	}
}

func currentCount(counters counter.Service, name string) (uint64, error) {
	v, err := counters.Get(name)
	if err != nil {
		if counter.IsNotFound(err) {
			return 0, nil
		}

		return 0, wrapStoreError(err, name)
	}

	return v, nil
}

func wrapStoreError(err error, name string) error {
	if counter.IsInvalidValue(err) {
		return wrapError(ErrInvalidEntity, "counter %s: %s", name, err)
	}

	return err
}
