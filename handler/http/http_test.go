package http

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/gorilla/mux"

	"github.com/tapglue/visits/core"
	"github.com/tapglue/visits/platform/limiter"
	"github.com/tapglue/visits/service/counter"
)

const testVersion = "0.1"

func TestVisitRecordFresh(t *testing.T) {
	var (
		counters = counter.MemService()
		router   = testRouter(counters, Chain(CtxPrepare(testVersion)))
	)

	if err := core.VisitReset(counters, core.CounterVisits)(); err != nil {
		t.Fatal(err)
	}

	res := serve(router, httptest.NewRequest("GET", "/", nil))

	if have, want := res.Code, http.StatusOK; have != want {
		t.Fatalf("have %v, want %v", have, want)
	}

	if have, want := res.Body.String(), "Number of visits is 0"; have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	if have, want := res.Header().Get("Content-Type"), "text/plain; charset=utf-8"; have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	stored, err := counters.Get(core.CounterVisits)
	if err != nil {
		t.Fatal(err)
	}

	if have, want := stored, uint64(1); have != want {
		t.Errorf("have %v, want %v", have, want)
	}
}

func TestVisitRecordSequential(t *testing.T) {
	var (
		counters = counter.MemService()
		router   = testRouter(counters, Chain(CtxPrepare(testVersion)))
		n        = 10
	)

	if err := core.VisitReset(counters, core.CounterVisits)(); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < n; i++ {
		res := serve(router, httptest.NewRequest("GET", "/", nil))

		if have, want := res.Body.String(), "Number of visits is "+strconv.Itoa(i); have != want {
			t.Fatalf("have %v, want %v", have, want)
		}
	}

	stored, err := counters.Get(core.CounterVisits)
	if err != nil {
		t.Fatal(err)
	}

	if have, want := stored, uint64(n); have != want {
		t.Errorf("have %v, want %v", have, want)
	}
}

func TestVisitRecordStoreFailure(t *testing.T) {
	var (
		counters = &failingService{err: errors.New("dial tcp: connection refused")}
		router   = testRouter(counters, Chain(CtxPrepare(testVersion)))
	)

	res := serve(router, httptest.NewRequest("GET", "/", nil))

	if have, want := res.Code, http.StatusInternalServerError; have != want {
		t.Fatalf("have %v, want %v", have, want)
	}

	p := decodeErrors(t, res.Body)

	if have, want := p.Errors[0].Message, "dial tcp: connection refused"; have != want {
		t.Errorf("have %v, want %v", have, want)
	}
}

func TestVisitRecordInvalid(t *testing.T) {
	var (
		counters = &failingService{err: counter.ErrInvalidValue}
		router   = testRouter(counters, Chain(CtxPrepare(testVersion)))
	)

	res := serve(router, httptest.NewRequest("GET", "/", nil))

	if have, want := res.Code, http.StatusInternalServerError; have != want {
		t.Fatalf("have %v, want %v", have, want)
	}

	p := decodeErrors(t, res.Body)

	if !strings.HasPrefix(p.Errors[0].Message, core.ErrInvalidEntity.Error()) {
		t.Errorf("unexpected message: %s", p.Errors[0].Message)
	}
}

func TestVisitCount(t *testing.T) {
	var (
		counters = counter.MemService()
		router   = testRouter(counters, Chain(CtxPrepare(testVersion)))
	)

	if err := counters.Set(core.CounterVisits, 7); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		res := serve(router, httptest.NewRequest("GET", "/visits", nil))

		if have, want := res.Code, http.StatusOK; have != want {
			t.Fatalf("have %v, want %v", have, want)
		}

		p := payloadCounter{}

		if err := json.NewDecoder(res.Body).Decode(&p); err != nil {
			t.Fatal(err)
		}

		if have, want := p.Value, uint64(7); have != want {
			t.Errorf("have %v, want %v", have, want)
		}
	}
}

func TestHealth(t *testing.T) {
	var (
		failing = errors.New("unreachable")
		checks  = map[string]HealthCheck{
			"redis": func() error { return nil },
		}
		handler = Wrap(CtxPrepare(testVersion), Health(checks))
	)

	res := httptest.NewRecorder()
	handler(res, httptest.NewRequest("GET", "/health", nil))

	if have, want := res.Code, http.StatusOK; have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	checks["postgres"] = func() error { return failing }

	res = httptest.NewRecorder()
	handler(res, httptest.NewRequest("GET", "/health", nil))

	if have, want := res.Code, http.StatusInternalServerError; have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	p := struct {
		Healthy  bool            `json:"healthy"`
		Services map[string]bool `json:"services"`
	}{}

	if err := json.NewDecoder(res.Body).Decode(&p); err != nil {
		t.Fatal(err)
	}

	if p.Healthy {
		t.Errorf("expected unhealthy")
	}

	if !p.Services["redis"] || p.Services["postgres"] {
		t.Errorf("unexpected services: %v", p.Services)
	}
}

func TestNotFound(t *testing.T) {
	router := testRouter(counter.MemService(), Chain(CtxPrepare(testVersion)))

	res := serve(router, httptest.NewRequest("GET", "/favicon.ico", nil))

	if have, want := res.Code, http.StatusNotFound; have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	p := decodeErrors(t, res.Body)

	if have, want := p.Errors[0].Code, http.StatusNotFound; have != want {
		t.Errorf("have %v, want %v", have, want)
	}
}

func TestMiddlewareChain(t *testing.T) {
	var (
		buf      = &bytes.Buffer{}
		counters = counter.MemService()
		router   = testRouter(counters, Chain(
			CtxPrepare(testVersion),
			Log(log.NewJSONLogger(buf)),
			Instrument("test"),
			SecureHeaders(),
			DebugHeaders("abc1234", "test-host"),
			Gzip(),
		))
	)

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")

	res := serve(router, req)

	if have, want := res.Code, http.StatusOK; have != want {
		t.Fatalf("have %v, want %v", have, want)
	}

	for header, want := range map[string]string{
		"Content-Encoding":       "gzip",
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		headerHost:               "test-host",
		headerRevision:           "abc1234",
	} {
		if have := res.Header().Get(header); have != want {
			t.Errorf("%s: have %v, want %v", header, have, want)
		}
	}

	if res.Header().Get(headerRequestID) == "" {
		t.Errorf("request id header missing")
	}

	gz, err := gzip.NewReader(res.Body)
	if err != nil {
		t.Fatal(err)
	}

	body, err := io.ReadAll(gz)
	if err != nil {
		t.Fatal(err)
	}

	if have, want := string(body), "Number of visits is 0"; have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	entry := map[string]interface{}{}

	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatal(err)
	}

	if have, want := entry["route"], routeVisitRecord; have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	if have, want := entry["version"], testVersion; have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	if have, want := entry["request_id"], res.Header().Get(headerRequestID); have != want {
		t.Errorf("have %v, want %v", have, want)
	}
}

func TestRateLimit(t *testing.T) {
	var (
		counters = counter.MemService()
		router   = testRouter(counters, Chain(
			CtxPrepare(testVersion),
			RateLimit(limiter.Mem(), 2, time.Minute),
		))
	)

	for i := 0; i < 2; i++ {
		res := serve(router, httptest.NewRequest("GET", "/", nil))

		if have, want := res.Code, http.StatusOK; have != want {
			t.Fatalf("have %v, want %v", have, want)
		}

		if have, want := res.Header().Get("X-Ratelimit-Quota"), "2"; have != want {
			t.Errorf("have %v, want %v", have, want)
		}
	}

	res := serve(router, httptest.NewRequest("GET", "/", nil))

	if have, want := res.Code, http.StatusTooManyRequests; have != want {
		t.Fatalf("have %v, want %v", have, want)
	}

	if have, want := res.Header().Get("X-Ratelimit-Remaining"), "-1"; have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	// Other clients keep their own quota.
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.2:4711"

	res = serve(router, req)

	if have, want := res.Code, http.StatusOK; have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	// Only admitted requests are counted.
	stored, err := counters.Get(core.CounterVisits)
	if err != nil {
		t.Fatal(err)
	}

	if have, want := stored, uint64(3); have != want {
		t.Errorf("have %v, want %v", have, want)
	}
}

const (
	routeVisitCount  = "visitCount"
	routeVisitRecord = "visitRecord"
)

type errorsPayload struct {
	Errors []apiError `json:"errors"`
}

func decodeErrors(t *testing.T, r io.Reader) errorsPayload {
	p := errorsPayload{}

	if err := json.NewDecoder(r).Decode(&p); err != nil {
		t.Fatal(err)
	}

	if len(p.Errors) != 1 {
		t.Fatalf("have %v errors, want 1", len(p.Errors))
	}

	return p
}

func serve(h http.Handler, r *http.Request) *httptest.ResponseRecorder {
	res := httptest.NewRecorder()
	h.ServeHTTP(res, r)

	return res
}

func testRouter(counters counter.Service, m Middleware) *mux.Router {
	router := mux.NewRouter()

	router.Methods("GET").Path("/").Name(routeVisitRecord).HandlerFunc(
		Wrap(m, VisitRecord(core.VisitRecord(counters, core.CounterVisits, false))),
	)

	router.Methods("GET").Path("/visits").Name(routeVisitCount).HandlerFunc(
		Wrap(m, VisitCount(core.VisitCount(counters, core.CounterVisits))),
	)

	router.NotFoundHandler = Wrap(m, NotFound())

	return router
}

type failingService struct {
	err error
}

func (s *failingService) Get(name string) (uint64, error) {
	return 0, s.err
}

func (s *failingService) Incr(name string) (uint64, error) {
	return 0, s.err
}

func (s *failingService) Set(name string, value uint64) error {
	return s.err
}

func (s *failingService) Setup() error {
	return nil
}

func (s *failingService) Teardown() error {
	return nil
}
