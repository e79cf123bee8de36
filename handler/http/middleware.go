package http

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-kit/kit/log"
	kitprometheus "github.com/go-kit/kit/metrics/prometheus"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tapglue/visits/platform/flake"
	"github.com/tapglue/visits/platform/limiter"
	"github.com/tapglue/visits/platform/metrics"
)

const (
	headerHost      = "X-Visits-Host"
	headerRequestID = "X-Visits-Request-Id"
	headerRevision  = "X-Visits-Revision"

	namespaceRequestID = "request"
	routeUnknown       = "unknown"
)

// CtxPrepare adds a baseline of information to the Context currently:
// * api version
// * request id
// * route name
func CtxPrepare(version string) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, w http.ResponseWriter, r *http.Request) {
			route := routeUnknown

			if current := mux.CurrentRoute(r); current != nil {
				route = current.GetName()
			}

			if id, err := flake.NextID(namespaceRequestID); err == nil {
				ctx = requestIDInContext(ctx, strconv.FormatUint(id, 10))
			}

			ctx = routeInContext(ctx, route)
			ctx = versionInContext(ctx, version)

			next(ctx, w, r)
		}
	}
}

// DebugHeaders adds extra information encoded in a custom header namespace for
// potential tracing and debugging post-mortem.
func DebugHeaders(rev, host string) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, w http.ResponseWriter, r *http.Request) {
			w.Header().Set(headerHost, host)
			w.Header().Set(headerRevision, rev)

			if id := requestIDFromContext(ctx); id != "" {
				w.Header().Set(headerRequestID, id)
			}

			next(ctx, w, r)
		}
	}
}

// Gzip ensures proper encoding of the response if the client accepts it.
func Gzip() Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, w http.ResponseWriter, r *http.Request) {
			if strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
				w.Header().Set("Content-Encoding", "gzip")
				w.Header().Add("Vary", "Accept-Encoding")

				gz := gzip.NewWriter(w)
				defer gz.Close()

				w = gzipResponseWriter{w, gz}
			}

			next(ctx, w, r)
		}
	}
}

// Instrument observes key aspects of a request/response and exposes Prometheus
// metrics.
func Instrument(
	component string,
) Middleware {
	var (
		namespace         = "handler"
		subsystemRequest  = "request"
		subsystemResponse = "response"
		fieldKeys         = []string{
			metrics.FieldComponent,
			metrics.FieldVersion,
			metrics.FieldRoute,
			metrics.FieldStatus,
		}
		requestCount = kitprometheus.NewCounterFrom(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemRequest,
			Name:      "count",
			Help:      "Number of requests received",
		}, fieldKeys)
		requestLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystemRequest,
				Name:      "latency_seconds",
				Help:      "Total duration of requests in seconds",
			},
			fieldKeys,
		)
		responseBytes = kitprometheus.NewCounterFrom(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemResponse,
			Name:      "bytes",
			Help:      "Bytes returned as response bodies",
		}, fieldKeys)
	)

	prometheus.MustRegister(requestLatency)

	return func(next Handler) Handler {
		return func(ctx context.Context, w http.ResponseWriter, r *http.Request) {
			var (
				begin     = time.Now()
				resr      = newResponseRecorder(w)
				routeName = routeFromContext(ctx)
				version   = versionFromContext(ctx)
			)

			next(ctx, resr, r)

			var (
				status = strconv.Itoa(resr.statusCode)
			)

			requestCount.With(
				metrics.FieldComponent, component,
				metrics.FieldRoute, routeName,
				metrics.FieldStatus, status,
				metrics.FieldVersion, version,
			).Add(1)
			responseBytes.With(
				metrics.FieldComponent, component,
				metrics.FieldRoute, routeName,
				metrics.FieldStatus, status,
				metrics.FieldVersion, version,
			).Add(float64(resr.contentLength))
			requestLatency.With(prometheus.Labels{
				metrics.FieldComponent: component,
				metrics.FieldRoute:     routeName,
				metrics.FieldStatus:    status,
				metrics.FieldVersion:   version,
			}).Observe(time.Since(begin).Seconds())
		}
	}
}

// Log logs information per single request-response.
func Log(logger log.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, w http.ResponseWriter, r *http.Request) {
			var (
				begin   = time.Now()
				reqr    = newRequestRecorder(r)
				resr    = newResponseRecorder(w)
				route   = routeFromContext(ctx)
				version = versionFromContext(ctx)
			)

			next(ctx, resr, r)

			_ = logger.Log(
				"duration_ns", time.Since(begin).Nanoseconds(),
				"query", r.URL.Query(),
				"request", reqr,
				"request_id", requestIDFromContext(ctx),
				"response", resr,
				"route", route,
				"version", version,
			)
		}
	}
}

// RateLimit enforces request limits per client address.
func RateLimit(
	limits limiter.Limiter,
	limit int64,
	window time.Duration,
) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, w http.ResponseWriter, r *http.Request) {
			l := &limiter.Limitee{
				Hash:       clientAddr(r),
				Limit:      limit,
				WindowSize: window,
			}

			quota, expires, err := limits.Request(l)
			if err != nil {
				respondError(w, 0, err)
				return
			}

			w.Header().Set("X-Ratelimit-Quota", strconv.FormatInt(limit, 10))
			w.Header().Set("X-Ratelimit-Remaining", strconv.FormatInt(quota, 10))
			w.Header().Set("X-Ratelimit-Reset", strconv.FormatInt(expires.Unix(), 10))

			if quota < 0 {
				respondError(w, 0, wrapError(ErrLimitExceeded, "request quota exceeded"))
				return
			}

			next(ctx, w, r)
		}
	}
}

// SecureHeaders adds a list of commonly recgonised best-pratice security
// headers.
// Source: https://www.owasp.org/index.php/List_of_useful_HTTP_headers
func SecureHeaders() Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Strict-Transport-Security", "max-age=63072000")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")

			next(ctx, w, r)
		}
	}
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}

type gzipResponseWriter struct {
	http.ResponseWriter
	io.Writer
}

func (w gzipResponseWriter) Write(b []byte) (int, error) {
	return w.Writer.Write(b)
}

type requestRecorder struct {
	Header           map[string][]string `json:"header"`
	Host             string              `json:"host"`
	Method           string              `json:"method"`
	Proto            string              `json:"proto"`
	RemoteAddr       string              `json:"remoteAddr"`
	RequestURI       string              `json:"requestURI"`
	TransferEncoding []string            `json:"transferEncoding"`
	URL              string              `json:"url"`
}

func newRequestRecorder(r *http.Request) *requestRecorder {
	return &requestRecorder{
		Header:           r.Header,
		Host:             r.Host,
		Method:           strings.ToLower(r.Method),
		Proto:            r.Proto,
		RemoteAddr:       r.RemoteAddr,
		RequestURI:       r.RequestURI,
		TransferEncoding: r.TransferEncoding,
		URL:              r.URL.String(),
	}
}

type responseRecorder struct {
	http.ResponseWriter `json:"-"`

	contentLength int
	statusCode    int
}

func newResponseRecorder(w http.ResponseWriter) *responseRecorder {
	return &responseRecorder{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

func (rc *responseRecorder) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ContentLength int                 `json:"contentLength"`
		Headers       map[string][]string `json:"header"`
		StatusCode    int                 `json:"statusCode"`
	}{
		ContentLength: rc.contentLength,
		Headers:       rc.ResponseWriter.Header(),
		StatusCode:    rc.statusCode,
	})
}

func (rc *responseRecorder) Write(b []byte) (int, error) {
	n, err := rc.ResponseWriter.Write(b)

	rc.contentLength += n

	return n, err
}

func (rc *responseRecorder) WriteHeader(code int) {
	rc.statusCode = code
	rc.ResponseWriter.WriteHeader(code)
}
