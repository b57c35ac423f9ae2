package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/backend-booking/internal/appointment"
	"github.com/noah-isme/backend-booking/internal/audit"
	"github.com/noah-isme/backend-booking/internal/auth"
	"github.com/noah-isme/backend-booking/internal/booking"
	"github.com/noah-isme/backend-booking/internal/catalog"
	"github.com/noah-isme/backend-booking/internal/common"
	"github.com/noah-isme/backend-booking/internal/config"
	"github.com/noah-isme/backend-booking/internal/customer"
	"github.com/noah-isme/backend-booking/internal/db"
	"github.com/noah-isme/backend-booking/internal/form"
	"github.com/noah-isme/backend-booking/internal/health"
	"github.com/noah-isme/backend-booking/internal/lock"
	"github.com/noah-isme/backend-booking/internal/obs"
	"github.com/noah-isme/backend-booking/internal/payment"
	"github.com/noah-isme/backend-booking/internal/pending"
	"github.com/noah-isme/backend-booking/internal/queue"
	"github.com/noah-isme/backend-booking/internal/ratelimit"
	"github.com/noah-isme/backend-booking/internal/resilience"
	"github.com/noah-isme/backend-booking/internal/secrets"
	"github.com/noah-isme/backend-booking/internal/settings"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.Obs.LogFormat, cfg.Obs.LogLevel, "booking-api").With().Str("env", cfg.AppEnv).Logger()
	obs.MustRegisterDomainMetrics(cfg.Obs.MetricsNamespace, nil)

	tracingEnabled := cfg.Obs.TracingEnabled
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "booking-api",
			Endpoint:      cfg.Obs.OTLPEndpoint,
			Exporter:      cfg.Obs.TracingExporter,
			SamplingRatio: cfg.Obs.SamplingRatio,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool := mustInitDatabase(ctx, cfg, logger)
	defer pool.Close()

	redisClient := mustInitRedis(ctx, cfg, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	cipher, err := secrets.NewCipher(cfg.SettingsEncryptionKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise settings cipher")
	}
	settingsRepo := &settings.Repository{Store: settings.PGOptionStore{DB: pool}, Cipher: cipher}

	redisOpt, err := queue.RedisOpt(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse queue redis url")
	}
	taskClient := asynq.NewClient(redisOpt)
	defer taskClient.Close()
	inspector := asynq.NewInspector(redisOpt)
	defer inspector.Close()

	catalogService := catalog.NewService(catalog.ServiceConfig{
		Store:  catalog.PGStore{DB: pool},
		Cache:  catalog.NewCache(redisClient, cfg.CatalogCacheTTL),
		Logger: logger,
	})

	materializer := &booking.Materializer{
		Store:  booking.PGStore{DB: pool},
		Logger: logger,
		Source: "stripe",
	}
	directBookings := &booking.Materializer{
		Store:  booking.PGStore{DB: pool},
		Logger: logger,
		Source: "direct",
	}
	recoveries := &booking.Recoveries{
		Store:   booking.PGRecoveryStore{DB: pool},
		Creator: materializer,
		Alerts:  booking.AsynqAlerts{Client: taskClient, Queue: queue.QueueCritical},
		Locker:  lock.Locker{R: redisClient, MaxWait: 5 * time.Second},
		LockTTL: 30 * time.Second,
		Logger:  logger,
	}

	pendingStore := pending.Store{R: redisClient, TTL: cfg.PendingBookingTTL}
	breaker := resilience.NewBreaker(cfg.StripeBreakerMinReq, 0.5, cfg.StripeBreakerOpenFor).
		WithTarget("stripe").
		WithLogger(logger)
	stripeHTTP := &http.Client{
		Timeout: cfg.StripeTimeout,
		Transport: resilience.Transport{
			Base:    otelhttp.NewTransport(http.DefaultTransport),
			Breaker: breaker,
		},
	}
	checkout := &payment.Checkout{
		Settings: settingsRepo,
		Provider: payment.StripeProvider{Backend: payment.NewStripeBackend(stripeHTTP, cfg.StripeAPIBase)},
		Pending:  pendingStore,
		Services: catalogService,
		Logger:   logger,
		NewToken: pending.NewToken,
	}
	dispatcher := &payment.Dispatcher{
		Settings:     settingsRepo,
		Pending:      pendingStore,
		Materializer: materializer,
		Recoveries:   recoveries,
		Logger:       logger,
	}

	tokens, err := auth.NewTokenService(auth.Config{
		Secret: cfg.JWTSecret,
		Issuer: cfg.JWTIssuer,
		TTL:    cfg.AdminTokenTTL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise token service")
	}

	checkoutLimiter, err := ratelimit.NewRedisLimiter(redisClient, cfg.CheckoutRateLimit, "rl:checkout")
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise checkout rate limit")
	}

	var httpMetrics *obs.HTTPMetrics
	if cfg.Obs.MetricsEnabled {
		httpMetrics = obs.NewHTTPMetrics(cfg.Obs.MetricsNamespace, cfg.Obs.MetricsBuckets, nil)
	}

	h := handlers{
		catalog: catalog.NewHandler(catalog.HandlerConfig{
			Service:      catalogService,
			DefaultLimit: cfg.ListDefaultLimit,
			MaxLimit:     cfg.ListMaxLimit,
		}),
		customers:    &customer.Handler{Store: customer.PGStore{DB: pool}, DefaultLimit: cfg.ListDefaultLimit, MaxLimit: cfg.ListMaxLimit},
		forms:        &form.Handler{Store: form.PGStore{DB: pool}, DefaultLimit: cfg.ListDefaultLimit, MaxLimit: cfg.ListMaxLimit},
		appointments: &appointment.Handler{Store: appointment.PGStore{DB: pool}, Logger: logger, DefaultLimit: cfg.ListDefaultLimit, MaxLimit: cfg.ListMaxLimit},
		payments: &payment.Handler{
			Checkout:     checkout,
			Payments:     payment.PGStore{DB: pool},
			MaxBodyBytes: cfg.APIMaxBodyBytes,
			DefaultLimit: cfg.ListDefaultLimit,
			MaxLimit:     cfg.ListMaxLimit,
		},
		webhook: payment.WebhookHandler{Dispatcher: dispatcher, MaxBodyBytes: cfg.WebhookMaxBodyBytes},
		bookings: &booking.Handler{
			Creator:      directBookings,
			Recoveries:   recoveries,
			MaxBodyBytes: cfg.APIMaxBodyBytes,
			DefaultLimit: cfg.ListDefaultLimit,
			MaxLimit:     cfg.ListMaxLimit,
		},
		settings: settings.NewHandler(settingsRepo),
		queues:   &queue.AdminHandler{Inspector: inspector, Logger: logger},
		health: health.Handler{Probes: map[string]health.Probe{
			"postgres": health.Postgres(pool),
			"redis":    health.Redis(redisClient),
		}},
		audit: audit.Handler{Store: audit.PGStore{DB: pool}, DefaultLimit: cfg.ListDefaultLimit, MaxLimit: cfg.ListMaxLimit},
		auditLog: audit.HTTPRecorder{
			Service: &audit.Service{Store: audit.PGStore{DB: pool}, Enabled: cfg.AuditEnabled, SamplingRate: cfg.AuditSamplingRate},
			OnError: func(err error) { logger.Error().Err(err).Msg("record audit entry") },
		},
		auth: auth.Middleware{Tokens: tokens},
		idem: common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL},
		limiter: ratelimit.Handler{Limiter: checkoutLimiter, Key: ratelimit.ByClientIP, OnError: func(err error) {
			logger.Warn().Err(err).Msg("checkout rate limit store unavailable")
		}},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           newRouter(cfg, logger, httpMetrics, tracingEnabled, h),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	case <-ctx.Done():
		health.SetReady(false)
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown")
		}
	}
}

func mustInitDatabase(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "booking-api"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}
	if cfg.MigrateOnStart {
		if err := db.Migrate(pool); err != nil {
			logger.Fatal().Err(err).Msg("apply migrations")
		}
		logger.Info().Msg("migrations applied")
	}
	return pool
}

func mustInitRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *redis.Client {
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	client := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if cfg.Obs.MetricsEnabled {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return client
}
