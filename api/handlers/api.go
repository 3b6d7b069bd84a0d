package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/linesmerrill/civil-defense-api/api"
	"github.com/linesmerrill/civil-defense-api/api/scheduler"
	"github.com/linesmerrill/civil-defense-api/config"
	"github.com/linesmerrill/civil-defense-api/databases"
	"github.com/linesmerrill/civil-defense-api/mailer"
	"github.com/linesmerrill/civil-defense-api/occurrences"
)

// Database drivers accepted by DB_DRIVER
const (
	DriverMongo  = "mongo"
	DriverMemory = "memory"
)

// App stores the router and db connection, so it can be reused
type App struct {
	Router    *mux.Router
	Config    config.Config
	Registry  *prometheus.Registry
	Mailer    mailer.Mailer
	Hub       *Hub
	Service   *occurrences.Service
	Scheduler *scheduler.Scheduler

	client   databases.ClientHelper
	dbHelper databases.DatabaseHelper
	redis    *redis.Client
	stop     context.CancelFunc
}

// New creates a new mux router and all the routes. The store, service and
// hub must already be set, see Initialize.
func (a *App) New() *mux.Router {
	httpMetrics := api.NewMetrics(a.Registry)
	userDB := databases.NewUserDatabase(a.dbHelper)
	authn := api.NewAuth(userDB, a.Config.JWTSecret, a.Config.TokenTTL, httpMetrics)
	limiter := api.NewRateLimiter(a.Config.LoginRateLimit, 10*time.Minute, httpMetrics)

	ctx, cancel := context.WithCancel(context.Background())
	a.stop = cancel
	go limiter.Cleanup(ctx, time.Minute)

	u := User{DB: userDB}
	o := Occurrence{
		Service:         a.Service,
		Hub:             a.Hub,
		Mailer:          a.Mailer,
		AlertRecipients: a.Config.AlertRecipients,
		BaseURL:         a.Config.BaseURL,
	}

	// healthchex
	r := api.New()
	r.Use(api.MetricsMiddleware(httpMetrics))
	r.Handle("/metrics", promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{})).Methods("GET")
	r.Handle("/ws/occurrences", tokenFromQuery(authn.Middleware(http.HandlerFunc(a.Hub.OccurrencesWebSocketHandler)))).Methods("GET")

	apiV1 := r.PathPrefix("/api/v1").Subrouter()
	apiV1.Use(api.TimeoutMiddleware(a.Config.RequestTimeout))

	apiV1.Handle("/auth/login", limiter.Limit(http.HandlerFunc(authn.Login))).Methods("POST")
	apiV1.Handle("/auth/logout", authn.Middleware(http.HandlerFunc(authn.Logout))).Methods("DELETE")

	apiV1.Handle("/occurrences", authn.Middleware(http.HandlerFunc(o.CreateOccurrenceHandler))).Methods("POST")
	apiV1.Handle("/occurrences", authn.Middleware(http.HandlerFunc(o.OccurrencesHandler))).Methods("GET")
	apiV1.Handle("/occurrences/ra/{ra_number}", authn.Middleware(http.HandlerFunc(o.OccurrenceByRANumberHandler))).Methods("GET")
	apiV1.Handle("/occurrences/{occurrence_id}", authn.Middleware(http.HandlerFunc(o.OccurrenceHandler))).Methods("GET")
	apiV1.Handle("/occurrences/{occurrence_id}", authn.Middleware(http.HandlerFunc(o.UpdateOccurrenceHandler))).Methods("PATCH")
	apiV1.Handle("/occurrences/{occurrence_id}", authn.Middleware(http.HandlerFunc(o.DeleteOccurrenceHandler))).Methods("DELETE")

	apiV1.Handle("/users", authn.Middleware(http.HandlerFunc(u.CreateUserHandler))).Methods("POST")
	apiV1.Handle("/users", authn.Middleware(http.HandlerFunc(u.UsersFindAllHandler))).Methods("GET")
	apiV1.Handle("/users/{user_id}", authn.Middleware(http.HandlerFunc(u.UserHandler))).Methods("GET")
	apiV1.Handle("/users/{user_id}", authn.Middleware(http.HandlerFunc(u.UpdateUserHandler))).Methods("PATCH")
	apiV1.Handle("/users/{user_id}", authn.Middleware(http.HandlerFunc(u.DeleteUserHandler))).Methods("DELETE")

	return r
}

// Initialize is invoked by main to connect with the database, build the
// occurrence service and create a router
func (a *App) Initialize() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := a.connect(ctx); err != nil {
		return err
	}

	occDB := databases.NewOccurrenceDatabase(a.dbHelper)
	userDB := databases.NewUserDatabase(a.dbHelper)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return occDB.EnsureIndexes(gctx) })
	g.Go(func() error { return userDB.EnsureIndexes(gctx) })
	if err := g.Wait(); err != nil {
		zap.S().Errorw("failed to create indexes", "error", err)
		return err
	}

	if a.Registry == nil {
		a.Registry = prometheus.NewRegistry()
		a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	domainMetrics := occurrences.NewMetrics(a.Registry)

	allocator, err := a.newAllocator(ctx, occDB)
	if err != nil {
		return err
	}
	a.Service = occurrences.NewService(occDB,
		domainMetrics.InstrumentAllocator(a.Config.RAAllocator, allocator),
		occurrences.WithMetrics(domainMetrics))

	if a.Mailer == nil {
		a.Mailer = mailer.New(&a.Config)
	}
	a.Hub = NewHub()
	a.Scheduler = scheduler.NewScheduler(a.Service, a.Mailer, a.Config.AlertRecipients)

	api.QueryTimeout = a.Config.RequestTimeout
	a.initializeRoutes()
	return nil
}

func (a *App) connect(ctx context.Context) error {
	switch a.Config.DatabaseDriver {
	case DriverMemory:
		a.client = databases.NewMemoryClient()
	case DriverMongo, "":
		client, err := databases.NewClient(&a.Config)
		if err != nil {
			// if we fail to create a new database client, then kill the pod
			zap.S().Errorw("failed to create new client", "error", err)
			return err
		}
		a.client = client
	default:
		return fmt.Errorf("unknown database driver %q", a.Config.DatabaseDriver)
	}

	if err := a.client.Connect(ctx); err != nil {
		// if we fail to connect to the database, then kill the pod
		zap.S().Errorw("failed to connect to database", "error", err)
		return err
	}
	a.dbHelper = databases.NewDatabase(&a.Config, a.client)
	zap.S().Infow("civil-defense-api has connected to the database", "driver", a.Config.DatabaseDriver)
	return nil
}

func (a *App) newAllocator(ctx context.Context, occDB databases.OccurrenceDatabase) (occurrences.Allocator, error) {
	switch a.Config.RAAllocator {
	case occurrences.StrategyScan, "":
		a.Config.RAAllocator = occurrences.StrategyScan
		return occurrences.NewScanAllocator(occDB, time.Now), nil
	case occurrences.StrategyCounter:
		return occurrences.NewCounterAllocator(occDB, databases.NewCounterDatabase(a.dbHelper), time.Now), nil
	case occurrences.StrategyRedis:
		if a.Config.RedisURL == "" {
			return nil, fmt.Errorf("RA_ALLOCATOR=redis needs REDIS_URL")
		}
		client, err := databases.NewRedisClient(ctx, a.Config.RedisURL)
		if err != nil {
			zap.S().Errorw("failed to connect to redis", "error", err)
			return nil, err
		}
		a.redis = client
		return occurrences.NewRedisAllocator(occDB, client, time.Now), nil
	default:
		return nil, fmt.Errorf("unknown RA allocator %q", a.Config.RAAllocator)
	}
}

// Users returns the user store backing the app, used by the seed command
func (a *App) Users() databases.UserDatabase {
	return databases.NewUserDatabase(a.dbHelper)
}

func (a *App) initializeRoutes() {
	a.Router = a.New()
}

// Close stops the background work and releases the connections
func (a *App) Close(ctx context.Context) error {
	if a.stop != nil {
		a.stop()
	}
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if a.Hub != nil {
		a.Hub.Close()
	}
	if a.redis != nil {
		a.redis.Close()
	}
	if a.client != nil {
		return a.client.Disconnect(ctx)
	}
	return nil
}
