package flake

import (
	"errors"
	"sync"
	"time"

	"github.com/sony/sonyflake"
)

// ErrUnavailable is returned when no generator could be set up for a
// namespace, usually because no private IP address was found.
var ErrUnavailable = errors.New("flake unavailable")

var (
	epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mu     sync.Mutex
	flakes = map[string]*sonyflake.Sonyflake{}
)

// NextID returns the next safe to use ID for the given namespace.
func NextID(namespace string) (uint64, error) {
	mu.Lock()
	f, ok := flakes[namespace]
	if !ok {
		f = sonyflake.NewSonyflake(sonyflake.Settings{
			MachineID: machineID,
			StartTime: epoch,
		})
		flakes[namespace] = f
	}
	mu.Unlock()

	if f == nil {
		return 0, ErrUnavailable
	}

	return f.NextID()
}

// Fixed machine id, ids are only unique within a single process.
func machineID() (uint16, error) {
	return 1, nil
}
