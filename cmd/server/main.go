package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ally-360/pos-terminal/internal/config"
	"github.com/ally-360/pos-terminal/internal/handler"
	"github.com/ally-360/pos-terminal/internal/infra"
	"github.com/ally-360/pos-terminal/internal/middleware"
	"github.com/ally-360/pos-terminal/internal/observability"
	"github.com/ally-360/pos-terminal/internal/pricing"
	"github.com/ally-360/pos-terminal/internal/repository"
	"github.com/ally-360/pos-terminal/internal/router"
	"github.com/ally-360/pos-terminal/internal/service"
	"github.com/ally-360/pos-terminal/internal/worker"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogger(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, checks, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("failed to open local store")
	}
	defer closeStore()

	// ── Infrastructure ───────────────────────────────────────────────────────
	hub := infra.NewHub()
	go hub.Run()
	defer hub.Stop()

	metrics := observability.NewMetrics(hub.Clients)

	cbCfg := infra.DefaultCBConfig()
	cbCfg.OnStateChange = func(from, to infra.CBState) {
		metrics.SetBreakerState(int(to))
		log.Warn().Str("from", from.String()).Str("to", to.String()).Msg("backend circuit breaker changed state")
	}
	breaker := infra.NewCircuitBreaker(cbCfg)
	backend := infra.NewBackendClient(cfg.BackendURL, cfg.BackendToken,
		time.Duration(cfg.BackendTimeoutSeconds)*time.Second, breaker)

	// ── Engine ───────────────────────────────────────────────────────────────
	engine := pricing.NewEngine(int32(cfg.CurrencyDecimals))
	state := service.NewStateManager(repository.NewSnapshotRepository(store, cfg.PDVID), cfg.HistoryLimit)
	unsubscribe := state.Subscribe(func(ev service.Event) { hub.Publish(ev) })
	defer unsubscribe()

	sales := service.NewSaleService(state, backend, engine, metrics)
	registers := service.NewRegisterService(cfg.PDVID, state, backend,
		service.NewReconciliationEngine(backend), engine, metrics)

	if err := state.Restore(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to restore local state")
	}
	// The backend is authoritative for the register; a failure here is not
	// fatal, the poller and the next cashier action retry.
	if _, err := registers.Sync(ctx); err != nil {
		log.Warn().Err(err).Int("pdv_id", cfg.PDVID).Msg("initial register sync failed")
	}

	var pollerDone <-chan struct{}
	if cfg.ShiftPollSeconds > 0 {
		pollerDone = worker.StartShiftPoller(ctx, worker.ShiftPollerConfig{
			Registers: registers,
			CB:        breaker,
			Interval:  time.Duration(cfg.ShiftPollSeconds) * time.Second,
		})
	}

	limiter := middleware.NewRateLimiter(1000, time.Minute) // 1000 req/min per IP
	limiter.StartPurge(ctx)

	r := router.New(cfg, router.Deps{
		Sales:     sales,
		Registers: registers,
		State:     state,
		Hub:       hub,
		Metrics:   metrics,
		Breaker:   breaker,
		Limiter:   limiter,
		Checks:    checks,
		Receipt: infra.ReceiptOptions{
			BusinessName: cfg.ReceiptBusinessName,
			Locale:       cfg.ReceiptLocale,
			Decimals:     int32(cfg.CurrencyDecimals),
		},
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Int("pdv_id", cfg.PDVID).Str("store", cfg.StoreDriver).Msgf("POS terminal listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	cancel()
	if pollerDone != nil {
		<-pollerDone
	}
	log.Info().Msg("server exited")
}

// setupLogger: dev gets the pretty console writer, production JSON.
func setupLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Env != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

// openStore builds the key-value adapter selected by STORE_DRIVER, the health
// checks that go with it and its closer.
func openStore(ctx context.Context, cfg *config.Config) (repository.KeyValueStore, map[string]handler.HealthCheck, func(), error) {
	switch cfg.StoreDriver {
	case "memory":
		log.Warn().Msg("memory store selected: state does not survive a restart")
		return repository.NewMemoryStore(), map[string]handler.HealthCheck{}, func() {}, nil

	case "redis":
		rdb, err := infra.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, nil, err
		}
		checks := map[string]handler.HealthCheck{
			"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		}
		return repository.NewRedisStore(rdb), checks, func() { _ = rdb.Close() }, nil

	default: // sqlite | postgres
		db, err := infra.NewDatabase(cfg.StoreDriver, cfg.StoreDSN)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := infra.RunMigrations(db); err != nil {
			return nil, nil, nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, nil, err
		}
		checks := map[string]handler.HealthCheck{
			"db": func(ctx context.Context) error { return sqlDB.PingContext(ctx) },
		}
		return repository.NewGormStore(db), checks, func() { _ = sqlDB.Close() }, nil
	}
}
