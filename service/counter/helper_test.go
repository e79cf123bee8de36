package counter

import (
	"math/rand"
	"sync"
	"testing"
)

type prepareFunc func(t *testing.T) Service

func testServiceGet(t *testing.T, p prepareFunc) {
	var (
		service = p(t)
		name    = "visits"
		value   = uint64(rand.Int31())
	)

	_, err := service.Get(name)
	if !IsNotFound(err) {
		t.Fatalf("have %v, want %v", err, ErrNotFound)
	}

	if err := service.Set(name, value); err != nil {
		t.Fatal(err)
	}

	have, err := service.Get(name)
	if err != nil {
		t.Fatal(err)
	}

	if want := value; have != want {
		t.Errorf("have %v, want %v", have, want)
	}
}

func testServiceIncr(t *testing.T, p prepareFunc) {
	var (
		service = p(t)
		name    = "visits"
	)

	value, err := service.Incr(name)
	if err != nil {
		t.Fatal(err)
	}

	if have, want := value, uint64(1); have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	if err := service.Set(name, 41); err != nil {
		t.Fatal(err)
	}

	value, err = service.Incr(name)
	if err != nil {
		t.Fatal(err)
	}

	if have, want := value, uint64(42); have != want {
		t.Errorf("have %v, want %v", have, want)
	}
}

func testServiceIncrConcurrent(t *testing.T, p prepareFunc) {
	var (
		service = p(t)
		name    = "visits"
		n       = 32
		wg      sync.WaitGroup
	)

	if err := service.Set(name, 0); err != nil {
		t.Fatal(err)
	}

	errs := make(chan error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := service.Incr(name)
			errs <- err
		}()
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatal(err)
		}
	}

	have, err := service.Get(name)
	if err != nil {
		t.Fatal(err)
	}

	if want := uint64(n); have != want {
		t.Errorf("have %v, want %v", have, want)
	}
}

func testServiceSet(t *testing.T, p prepareFunc) {
	var (
		service = p(t)
		name    = "visits"
	)

	for _, value := range []uint64{0, 1, 1 << 40, 7} {
		if err := service.Set(name, value); err != nil {
			t.Fatal(err)
		}

		have, err := service.Get(name)
		if err != nil {
			t.Fatal(err)
		}

		if want := value; have != want {
			t.Errorf("have %v, want %v", have, want)
		}
	}
}

func testServiceTeardown(t *testing.T, p prepareFunc) {
	var (
		service = p(t)
		name    = "visits"
	)

	if err := service.Set(name, 3); err != nil {
		t.Fatal(err)
	}

	if err := service.Teardown(); err != nil {
		t.Fatal(err)
	}

	if err := service.Setup(); err != nil {
		t.Fatal(err)
	}

	_, err := service.Get(name)
	if !IsNotFound(err) {
		t.Errorf("have %v, want %v", err, ErrNotFound)
	}
}
