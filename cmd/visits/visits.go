package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-kit/kit/log"
	kitprometheus "github.com/go-kit/kit/metrics/prometheus"
	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tapglue/visits/core"
	handler "github.com/tapglue/visits/handler/http"
	"github.com/tapglue/visits/platform/cache"
	"github.com/tapglue/visits/platform/limiter"
	"github.com/tapglue/visits/platform/metrics"
	"github.com/tapglue/visits/platform/pg"
	"github.com/tapglue/visits/platform/redis"
	"github.com/tapglue/visits/service/counter"
)

// Logging and telemetry identifiers.
const (
	component        = "visits"
	namespaceCache   = "cache"
	namespaceService = "service"
	serviceCounters  = "counters"
	subsystemHit     = "hit"
)

// Supported store types.
const (
	storeMem      = "mem"
	storePostgres = "postgres"
	storeRedis    = "redis"
)

// Versions.
const (
	versionCurrent = "0.1"
)

// Prefixes.
const (
	prefixEnv         = "VISITS"
	prefixRateLimiter = "ratelimiter:client"
)

// Routes.
const (
	routeHealth      = "healthcheck"
	routeVisitCount  = "visitCount"
	routeVisitRecord = "visitRecord"
)

// Timeouts
const (
	defaultReadTimeout  = 2 * time.Second
	defaultWriteTimeout = 3 * time.Second
)

// Buildtime vars.
var (
	revision = "0000000-dev"
)

func main() {
	var (
		begin = time.Now()

		cacheTTL       = flag.Duration("cache.ttl", 0, "TTL of counters cached in Redis in front of Postgres, 0 disables caching")
		counterName    = flag.String("counter.name", core.CounterVisits, "Name of the counter tracking visits")
		counterPrefix  = flag.String("counter.prefix", "", "Prefix for counter keys in Redis")
		limiterLimit   = flag.Int64("limiter.limit", 0, "Requests allowed per client and window, 0 disables rate limiting")
		limiterWindow  = flag.Duration("limiter.window", time.Minute, "Window the request limit applies to")
		listenAddr     = flag.String("listen.addr", ":8081", "HTTP bind address for the visits endpoint")
		postgresSchema = flag.String("postgres.schema", pg.DefaultSchema, "Postgres schema counters are stored in")
		postgresURL    = flag.String("postgres.url", "", "Postgres URL to connect to")
		redisAddr      = flag.String("redis.addr", "redis-server:6379", "Redis address to connect to")
		redisPassword  = flag.String("redis.password", "", "Redis password, empty if none is required")
		store          = flag.String("store", storeRedis, "Store type used for counters (redis, postgres, mem)")
		telemetryAddr  = flag.String("telemetry.addr", ":9000", "HTTP bind address where prometheus telemetry is exposed")
		visitsAtomic   = flag.Bool("visits.atomic", false, "Increment the counter atomically instead of read then write")
	)

	// Setup logging.
	logger := log.With(
		log.NewJSONLogger(log.NewSyncWriter(os.Stdout)),
		"caller", log.Caller(3),
		"component", component,
		"revision", revision,
	)

	if err := loadEnv(flag.CommandLine, prefixEnv); err != nil {
		logger.Log("err", err, "lifecycle", "abort")
		os.Exit(1)
	}
	flag.Parse()

	hostname, err := os.Hostname()
	if err != nil {
		logger.Log("err", err, "lifecycle", "abort")
	}

	logger = log.With(logger, "host", hostname)

	// Setup instrumentation.
	go func(addr string) {
		logger.Log(
			"duration", time.Since(begin).Nanoseconds(),
			"lifecycle", "start",
			"listen", addr,
			"sub", "telemetry",
		)

		http.Handle("/metrics", promhttp.Handler())

		err := http.ListenAndServe(addr, nil)
		if err != nil {
			logger.Log("err", err, "lifecycle", "abort", "sub", "telemetry")
			os.Exit(1)
		}
	}(*telemetryAddr)

	cacheFieldKeys := []string{
		metrics.FieldComponent,
		metrics.FieldMethod,
		metrics.FieldService,
		metrics.FieldStore,
	}

	cacheErrCount, cacheOpCount, cacheOpLatency := metrics.KeyMetrics(
		namespaceCache,
		cacheFieldKeys...,
	)

	cacheHitCount := kitprometheus.NewCounterFrom(prometheus.CounterOpts{
		Namespace: namespaceCache,
		Subsystem: subsystemHit,
		Name:      "count",
		Help:      "Number of cache hits",
	}, cacheFieldKeys)

	serviceErrCount, serviceOpCount, serviceOpLatency := metrics.KeyMetrics(
		namespaceService,
		metrics.FieldComponent,
		metrics.FieldMethod,
		metrics.FieldService,
		metrics.FieldStore,
	)

	// Setup stores.
	var (
		checks   = map[string]handler.HealthCheck{}
		counters counter.Service
		limits   limiter.Limiter
	)

	switch *store {
	case storeMem:
		counters = counter.MemService()
		limits = limiter.Mem()
	case storePostgres:
		pgClient, err := sqlx.Connect(storePostgres, *postgresURL)
		if err != nil {
			logger.Log("err", err, "lifecycle", "abort")
			os.Exit(1)
		}

		checks[storePostgres] = pgClient.Ping
		counters = counter.PostgresService(pgClient, *postgresSchema)
		limits = limiter.Mem()

		if *cacheTTL > 0 {
			redisPool := redis.Pool(*redisAddr, *redisPassword)

			var countsCache cache.CountService
			countsCache = cache.RedisCountService(redisPool, *cacheTTL)
			countsCache = cache.InstrumentCountServiceMiddleware(
				component,
				serviceCounters,
				storeRedis,
				cacheErrCount,
				cacheHitCount,
				cacheOpCount,
				cacheOpLatency,
			)(countsCache)

			checks[storeRedis] = func() error {
				return redis.Ping(redisPool)
			}
			counters = counter.CacheServiceMiddleware(countsCache)(counters)
		}
	case storeRedis:
		redisPool := redis.Pool(*redisAddr, *redisPassword)

		checks[storeRedis] = func() error {
			return redis.Ping(redisPool)
		}
		counters = counter.RedisService(redisPool, *counterPrefix)
		limits = limiter.Redis(redisPool, prefixRateLimiter)
	default:
		logger.Log(
			"err", fmt.Sprintf("Store type '%s' not supported", *store),
			"lifecycle", "abort",
		)
		os.Exit(1)
	}

	counters = counter.InstrumentServiceMiddleware(
		component,
		*store,
		serviceErrCount,
		serviceOpCount,
		serviceOpLatency,
	)(counters)
	counters = counter.LogServiceMiddleware(logger, *store)(counters)

	if err := counters.Setup(); err != nil {
		logger.Log("err", err, "lifecycle", "abort", "sub", "store")
		os.Exit(1)
	}

	if err := core.VisitReset(counters, *counterName)(); err != nil {
		logger.Log("err", err, "lifecycle", "abort", "sub", "store")
		os.Exit(1)
	}

	router := newRouter(routerConfig{
		atomic:     *visitsAtomic,
		checks:     checks,
		counters:   counters,
		hostname:   hostname,
		instrument: handler.Instrument(component),
		limit:      *limiterLimit,
		limits:     limits,
		logger:     logger,
		name:       *counterName,
		window:     *limiterWindow,
	})

	// Setup server.
	server := &http.Server{
		Addr:         *listenAddr,
		Handler:      router,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
	}

	logger.Log(
		"duration", time.Since(begin).Nanoseconds(),
		"lifecycle", "start",
		"listen", *listenAddr,
		"store", *store,
		"sub", "api",
	)

	err = server.ListenAndServe()
	if err != nil {
		logger.Log("err", err, "lifecycle", "abort", "sub", "api")
		os.Exit(1)
	}
}

// routerConfig carries the dependencies of the API routes. instrument is
// passed in as its metrics register once per process.
type routerConfig struct {
	atomic     bool
	checks     map[string]handler.HealthCheck
	counters   counter.Service
	hostname   string
	instrument handler.Middleware
	limit      int64
	limits     limiter.Limiter
	logger     log.Logger
	name       string
	window     time.Duration
}

func newRouter(c routerConfig) *mux.Router {
	ms := []handler.Middleware{
		handler.CtxPrepare(versionCurrent),
		handler.Log(c.logger),
		c.instrument,
		handler.SecureHeaders(),
		handler.DebugHeaders(revision, c.hostname),
		handler.Gzip(),
	}

	if c.limit > 0 {
		ms = append(ms, handler.RateLimit(c.limits, c.limit, c.window))
	}

	withVisit := handler.Chain(ms...)

	router := mux.NewRouter().StrictSlash(true)

	router.Methods("GET").Path(`/health`).Name(routeHealth).HandlerFunc(
		handler.Wrap(
			handler.CtxPrepare(versionCurrent),
			handler.Health(c.checks),
		),
	)

	router.Methods("GET").Path(`/`).Name(routeVisitRecord).HandlerFunc(
		handler.Wrap(
			withVisit,
			handler.VisitRecord(
				core.VisitRecord(c.counters, c.name, c.atomic),
			),
		),
	)

	router.Methods("GET").Path(`/visits`).Name(routeVisitCount).HandlerFunc(
		handler.Wrap(
			withVisit,
			handler.VisitCount(
				core.VisitCount(c.counters, c.name),
			),
		),
	)

	router.NotFoundHandler = handler.Wrap(withVisit, handler.NotFound())

	return router
}

// loadEnv reads a .env file in the working directory if present and uses
// environment variables named after the flags, e.g. VISITS_REDIS_ADDR for
// redis.addr, as their defaults.
func loadEnv(flags *flag.FlagSet, prefix string) error {
	if err := godotenv.Load(); err != nil && !isNotExist(err) {
		return fmt.Errorf("load .env: %s", err)
	}

	var err error

	flags.VisitAll(func(f *flag.Flag) {
		if err != nil {
			return
		}

		v, ok := os.LookupEnv(envName(prefix, f.Name))
		if !ok {
			return
		}

		if serr := flags.Set(f.Name, v); serr != nil {
			err = fmt.Errorf("env %s: %s", envName(prefix, f.Name), serr)
		}
	})

	return err
}

func envName(prefix, flagName string) string {
	return prefix + "_" + strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(flagName))
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
