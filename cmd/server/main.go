package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aryan0dhankhar/rentledger/internal/domain"
	"github.com/aryan0dhankhar/rentledger/internal/featureflags"
	"github.com/aryan0dhankhar/rentledger/internal/handler"
	"github.com/aryan0dhankhar/rentledger/internal/infrastructure/logger"
	"github.com/aryan0dhankhar/rentledger/internal/infrastructure/redis"
	"github.com/aryan0dhankhar/rentledger/internal/observability/tracing"
	"github.com/aryan0dhankhar/rentledger/internal/repository"
	"github.com/aryan0dhankhar/rentledger/internal/repository/memory"
	"github.com/aryan0dhankhar/rentledger/internal/security"
	"github.com/aryan0dhankhar/rentledger/internal/security/audit"
	"github.com/aryan0dhankhar/rentledger/internal/security/auth"
	"github.com/aryan0dhankhar/rentledger/internal/security/ratelimit"
	"github.com/aryan0dhankhar/rentledger/internal/service"
	"github.com/aryan0dhankhar/rentledger/internal/worker"
	"github.com/aryan0dhankhar/rentledger/pkg/config"
	"github.com/aryan0dhankhar/rentledger/pkg/database"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "rentledger: %v\n", err)
		os.Exit(1)
	}
}

// run wires the server and blocks until a shutdown signal
func run() error {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Initialize structured logger
	log := logger.NewLogger(cfg.LogLevel)
	log.Info("starting rentledger server",
		slog.String("environment", cfg.Environment),
		slog.String("storage", cfg.StorageDriver),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Tracing
	shutdownTracing, err := tracing.Init(ctx, log, cfg.OTLPEndpoint, "rentledger", cfg.Environment)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer flushCancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Error("tracing shutdown error", slog.String("error", err.Error()))
		}
	}()

	// 4. Storage
	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer closeStore()

	checks := map[string]handler.Pinger{"store": store}

	// 5. Rate limiting, Redis-backed when configured
	var limiter ratelimit.Limiter
	if cfg.RedisURL != "" {
		redisClient, err := redis.NewClient(cfg.RedisURL, log)
		if err != nil {
			log.Warn("redis unavailable, using in-memory rate limiter", slog.String("error", err.Error()))
		} else {
			defer redisClient.Close()
			checks["redis"] = redisClient
			rl := ratelimit.NewRedis(redisClient, cfg.RateLimit.Requests, cfg.RateLimit.Window, log)
			defer rl.Stop()
			limiter = rl
		}
	}
	if limiter == nil {
		rl := ratelimit.NewMemory(cfg.RateLimit.Requests, cfg.RateLimit.Window)
		defer rl.Stop()
		limiter = rl
	}

	// 6. Audit trail: structured log, plus Kafka when brokers are set
	sinks := []audit.Sink{audit.NewLogger(log)}
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaSink, err := audit.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return fmt.Errorf("create kafka audit sink: %w", err)
		}
		defer kafkaSink.Close()
		sinks = append(sinks, kafkaSink)
	}
	dispatcher := audit.NewDispatcher(log, cfg.AuditBufferSize, sinks...)
	auditCtx, stopAudit := context.WithCancel(context.Background())
	go dispatcher.Start(auditCtx)
	// Audit records accepted before shutdown are flushed before the sinks close
	defer func() {
		stopAudit()
		<-dispatcher.Done()
	}()

	// 7. Services
	tokens := auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.TTL)
	resolver := security.NewChainResolver(store.Repos())
	go resolver.RunJanitor(ctx, time.Minute)
	deps := service.Deps{
		Store:  store,
		Authz:  security.NewAuthorizer(resolver, log),
		Audit:  dispatcher,
		Logger: log,
	}
	authService := service.NewAuthService(deps, tokens)
	properties := service.NewPropertyService(deps)
	contracts := service.NewContractService(deps)
	payments := service.NewPaymentService(deps)
	tickets := service.NewTicketService(deps)
	tenants := service.NewTenantService(deps)

	// 8. HTTP surface
	router := handler.NewRouter(handler.Handlers{
		Auth:       handler.NewAuthHandler(authService, log),
		Properties: handler.NewPropertyHandler(properties, log),
		Contracts:  handler.NewContractHandler(contracts, log),
		Payments:   handler.NewPaymentHandler(payments, log),
		Tickets:    handler.NewTicketHandler(tickets, log),
		Tenants:    handler.NewTenantHandler(tenants, log),
		Health:     handler.NewHealthHandler(checks, log),
	}, handler.RouterConfig{
		Tokens:      tokens,
		Limiter:     limiter,
		CORSOrigins: cfg.CORSAllowedOrigins,
		Logger:      log,
	})

	// 9. Late payment sweep
	lateWorker := worker.NewLatePaymentWorker(payments, log, cfg.LatePayments.Interval, cfg.LatePayments.Grace())
	go lateWorker.Start(ctx)

	// 10. Start HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info("server starting",
		slog.Int("port", cfg.ServerPort),
		slog.Int("rate_limit", cfg.RateLimit.Requests),
		slog.Duration("rate_limit_window", cfg.RateLimit.Window),
		slog.Bool("late_payment_sweep", featureflags.Enabled(worker.SweepFlag)),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	serveErr := make(chan error, 1)

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	var runErr error
	select {
	case <-sigChan:
		log.Info("shutdown signal received")
	case err := <-serveErr:
		runErr = fmt.Errorf("serve: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", slog.String("error", err.Error()))
	}

	cancel() // stop the sweep and the cache janitor
	log.Info("server stopped")
	return runErr
}

// openStore returns the configured store and a function releasing it
func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (domain.Store, func(), error) {
	if cfg.StorageDriver == config.DriverMemory {
		log.Warn("using in-memory store; data is lost on restart")
		return memory.NewStore(), func() {}, nil
	}

	if featureflags.Enabled("AUTO_MIGRATE") {
		if err := database.Migrate(ctx, cfg.Database.DSN()); err != nil {
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		log.Info("database migrations applied")
	}

	pool, err := database.NewConnectionPool(ctx, &cfg.Database, log)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := pool.Close(); err != nil {
			log.Error("failed to close database", slog.String("error", err.Error()))
		}
	}
	return repository.NewPostgresStore(pool.GetDB(), log), closeFn, nil
}
