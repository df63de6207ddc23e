package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/benvon/hostel-market/internal/config"
	"github.com/benvon/hostel-market/internal/database"
	"github.com/benvon/hostel-market/internal/handlers"
	"github.com/benvon/hostel-market/internal/logger"
	"github.com/benvon/hostel-market/internal/middleware"
	"github.com/benvon/hostel-market/internal/queue"
	"github.com/benvon/hostel-market/internal/recommendation"
	"github.com/benvon/hostel-market/internal/services/oidc"
	"github.com/benvon/hostel-market/internal/telemetry"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const serviceName = "hostel-market-api"

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.RequireAuth(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	debugMode := cfg.ServerDebugMode || *debugFlag
	zapLogger, err := logger.New(debugMode, cfg.LogConsole)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync(zapLogger) }()
	zap.ReplaceGlobals(zapLogger)

	zapLogger.Info("starting_server",
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("frontend_url", cfg.FrontendURL),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
		zap.Bool("queue_enabled", cfg.RabbitMQURL != ""),
		zap.Bool("redis_enabled", cfg.RedisURL != ""),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var tracerProvider *sdktrace.TracerProvider
	if cfg.OTELEnabled {
		tp, err := telemetry.InitTracer(ctx, telemetry.TracerConfig{
			ServiceName: serviceName,
			Endpoint:    cfg.OTELEndpoint,
			Insecure:    true,
		})
		if err != nil {
			zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
		} else {
			tracerProvider = tp
			zapLogger.Info("otel_tracer_initialized", zap.String("endpoint", cfg.OTELEndpoint))
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := telemetry.Shutdown(shutdownCtx, tracerProvider); err != nil {
					zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
				}
			}()
		}
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_database")

	productRepo := database.NewProductRepository(db)
	productRepo.SetLogger(zapLogger)
	interactionRepo := database.NewInteractionRepository(db)
	interactionRepo.SetLogger(zapLogger)
	settingsRepo := database.NewSettingsRepository(db)

	store := recommendation.NewStore(productRepo, interactionRepo, zapLogger,
		recommendation.WithQueryTimeout(cfg.StoreQueryTimeout),
	)

	healthChecker := handlers.NewHealthChecker().AddCheck("database", db.PingContext)

	// Interactions go through the queue when one is configured, otherwise straight to the store
	var sink recommendation.InteractionSink = store
	var jobQueue *queue.RabbitMQQueue
	if cfg.RabbitMQURL != "" {
		jobQueue = connectQueue(ctx, cfg.RabbitMQURL, zapLogger)
		defer func() {
			if err := jobQueue.Close(); err != nil {
				zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
			}
		}()
		sink = queue.NewInteractionPublisher(jobQueue)
		healthChecker.AddCheck("rabbitmq", jobQueue.HealthCheck)
	}

	engine := recommendation.NewService(store, sink, zapLogger,
		recommendation.WithHistoryLimit(cfg.RecoHistoryLimit),
		recommendation.WithCandidatePool(cfg.RecoCandidatePool),
		recommendation.WithDefaultLimit(cfg.RecoDefaultLimit),
		recommendation.WithTracer(otel.Tracer(serviceName)),
	)

	jwksManager, err := oidc.NewJWKSManager(ctx, cfg.AuthJWKSURL, 15*time.Minute)
	if err != nil {
		zapLogger.Fatal("failed_to_initialize_jwks", zap.Error(err))
	}
	verifier := oidc.NewVerifier(jwksManager, cfg.AuthIssuer)

	var limiterStore limiter.Store
	if cfg.RedisURL != "" {
		redisClient, err := middleware.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			zapLogger.Fatal("failed_to_connect_to_redis", zap.Error(err))
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
			}
		}()
		limiterStore, err = middleware.NewRedisLimiterStore(redisClient)
		if err != nil {
			zapLogger.Fatal("failed_to_create_rate_limit_store", zap.Error(err))
		}
		healthChecker.AddCheck("redis", redisPing(redisClient))
		zapLogger.Info("connected_to_redis")
	} else {
		limiterStore = memory.NewStore()
		zapLogger.Info("using_in_memory_rate_limit_store")
	}

	corsReloader := middleware.NewCORSReloader(settingsRepo, cfg.FrontendURL, zapLogger, cfg.SettingsReloadInterval)
	rateLimitReloader := middleware.NewRateLimitReloader(limiterStore, settingsRepo, cfg.RateLimitDefault, zapLogger, cfg.SettingsReloadInterval)

	recoHandler := handlers.NewRecommendationHandler(engine, zapLogger)

	// gorilla/mux runs middleware in registration order; the first registered is outermost
	r := mux.NewRouter()
	if tracerProvider != nil {
		r.Use(otelmux.Middleware(serviceName, otelmux.WithTracerProvider(tracerProvider)))
	}
	r.Use(middleware.SecurityHeaders(cfg.EnableHSTS))
	r.Use(corsReloader.Middleware())
	r.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize))
	r.Use(middleware.ContentType)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Recover(zapLogger))
	r.Use(middleware.Audit(zapLogger))
	r.Use(middleware.Logging(zapLogger))

	r.HandleFunc("/healthz", healthChecker.HealthCheck).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	openAPIHandler, err := handlers.NewOpenAPIHandler(cfg.OpenAPIPath)
	if err != nil {
		zapLogger.Warn("openapi_document_unavailable", zap.String("path", cfg.OpenAPIPath), zap.Error(err))
	} else {
		openAPIHandler.RegisterRoutes(r)
	}

	apiRouter := r.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(rateLimitReloader.Middleware())
	recoHandler.RegisterRoutes(apiRouter,
		middleware.Auth(verifier, zapLogger),
		middleware.OptionalAuth(verifier, zapLogger),
	)

	// Preflight requests are answered by the CORS middleware before reaching this
	r.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	srv := &http.Server{
		Addr:           ":" + cfg.ServerPort,
		Handler:        r,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		corsReloader.Start(gctx)
		return nil
	})
	g.Go(func() error {
		rateLimitReloader.Start(gctx)
		return nil
	})
	if jobQueue != nil {
		dlqGC := queue.NewGarbageCollector(jobQueue, cfg.DLQGCInterval, cfg.DLQRetention, zapLogger)
		g.Go(func() error {
			if err := dlqGC.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
		zapLogger.Info("started_dlq_garbage_collector",
			zap.Duration("interval", cfg.DLQGCInterval),
			zap.Duration("retention", cfg.DLQRetention),
		)
	}
	g.Go(func() error {
		zapLogger.Info("server_starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		zapLogger.Info("server_shutting_down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		zapLogger.Error("server_stopped_with_error", zap.Error(err))
		return
	}
	zapLogger.Info("server_exited")
}

// connectQueue retries with exponential backoff to ride out broker startup
func connectQueue(ctx context.Context, url string, zapLogger *zap.Logger) *queue.RabbitMQQueue {
	const maxRetries = 10
	const initialDelay = 2 * time.Second

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		q, err := queue.NewRabbitMQQueue(url, zapLogger)
		if err == nil {
			zapLogger.Info("connected_to_rabbitmq")
			return q
		}
		lastErr = err

		delay := min(initialDelay*time.Duration(1<<uint(attempt)), 30*time.Second)
		zapLogger.Warn("failed_to_connect_to_rabbitmq_retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", maxRetries),
			zap.Duration("retry_delay", delay),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			zapLogger.Fatal("interrupted_while_connecting_to_rabbitmq")
		case <-time.After(delay):
		}
	}
	zapLogger.Fatal("failed_to_connect_to_rabbitmq_after_retries",
		zap.Int("max_retries", maxRetries),
		zap.Error(lastErr),
	)
	return nil
}

func redisPing(client *redis.Client) handlers.CheckFunc {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}
