// Package main is the entry point of the study-time API server.
//
// The server owns the live sessions (manual, focus timer, presence), so it
// must run as a single instance. Sessions are process-local and are
// discarded on shutdown without crediting.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/safe1124/studyhub/config"
	"github.com/safe1124/studyhub/internal/application/command"
	"github.com/safe1124/studyhub/internal/application/eventhandler"
	"github.com/safe1124/studyhub/internal/application/query"
	"github.com/safe1124/studyhub/internal/application/session"
	"github.com/safe1124/studyhub/internal/bootstrap"
	"github.com/safe1124/studyhub/internal/domain/study"
	"github.com/safe1124/studyhub/internal/infrastructure/messaging"
	"github.com/safe1124/studyhub/internal/infrastructure/persistence/memory"
	"github.com/safe1124/studyhub/internal/infrastructure/persistence/redis"
	httpserver "github.com/safe1124/studyhub/internal/interface/http"
	"github.com/safe1124/studyhub/internal/interface/http/handlers"
	"github.com/safe1124/studyhub/pkg/timeutil"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. Configuration
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logs := bootstrap.NewLoggers(cfg.App)
	log := logs.Slog
	bootstrap.ApplyStudyConfig(cfg.Study)

	log.Info("starting study hub server",
		"version", cfg.App.Version,
		"timezone", cfg.Study.TimezoneName,
		"memory_store", cfg.Database.UseMemoryStore,
		"redis", cfg.Redis.Enabled,
	)

	clock := timeutil.NewSystemClock()

	// ─────────────────────────────────────────────────────────────────────────
	// 2. Infrastructure
	// ─────────────────────────────────────────────────────────────────────────
	stores, err := bootstrap.OpenStores(ctx, cfg.Database, clock, log)
	if err != nil {
		return err
	}
	defer stores.Close()

	cache, err := bootstrap.OpenRedis(ctx, cfg.Redis, log)
	if err != nil {
		return err
	}
	if cache != nil {
		defer cache.Close()
	}

	var (
		studyingNow study.StudyingNowTracker
		notifier    eventhandler.FocusNotifier
	)
	if cache != nil {
		tracker := redis.NewStudyingNow(cache, clock)
		// Sessions do not survive a restart, so neither does the view of them.
		if err := tracker.Reset(ctx); err != nil {
			return fmt.Errorf("failed to reset studying-now view: %w", err)
		}
		studyingNow = tracker
		notifier = redis.NewNotifier(cache, nil)
	} else {
		studyingNow = memory.NewStudyingNow()
		notifier = eventhandler.LogNotifier{Logger: log}
	}

	// Synchronous delivery keeps each user's events in publish order.
	busCfg := messaging.DefaultInMemoryEventBusConfig()
	busCfg.AsyncMode = false
	busCfg.Logger = log
	bus := messaging.NewInMemoryEventBus(busCfg)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. Application layer
	// ─────────────────────────────────────────────────────────────────────────
	completer := session.NewCompleter(
		stores.Records, stores.Progress, stores.Wallets, bus, logs.Lib,
		session.CompleterConfig{CurrencyPerMinute: cfg.Study.CurrencyPerMinute},
	)
	manual := session.NewManualTracker(completer, bus, clock, logs.Lib)
	focus := session.NewFocusTimers(cfg.Study.FocusDuration, completer, bus, clock, logs.Lib)
	presence := session.NewPresenceTracker(
		study.NewAreaClassifier(cfg.Study.AreaKeyword), completer, bus, clock, logs.Lib,
	)

	focusHandler := eventhandler.NewOnFocusCompletedHandler(notifier, log)
	if err := focusHandler.Register(bus); err != nil {
		return fmt.Errorf("failed to register focus handler: %w", err)
	}
	if err := eventhandler.NewStudyingNowMirror(studyingNow, log).Register(bus); err != nil {
		return fmt.Errorf("failed to register studying-now mirror: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. HTTP
	// ─────────────────────────────────────────────────────────────────────────
	health := handlers.NewCompositeHealthChecker(cfg.App.Version)
	if stores.DB != nil {
		health.AddCheck("postgres", handlers.NewPingCheck(stores.DB))
	}
	if cache != nil {
		health.AddCheck("redis", handlers.NewPingCheck(cache))
	}

	srvCfg := httpserver.DefaultConfig()
	srvCfg.Host = cfg.HTTP.Host
	srvCfg.Port = cfg.HTTP.Port
	srvCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	srvCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	srvCfg.IdleTimeout = cfg.HTTP.IdleTimeout

	server := httpserver.NewServer(srvCfg, httpserver.Dependencies{
		Manual:   manual,
		Focus:    focus,
		Presence: presence,

		PurchaseItem: command.NewPurchaseItemHandler(stores.Wallets, stores.Inventory, bus, clock, logs.Lib),
		EquipItem:    command.NewEquipItemHandler(stores.Inventory, bus, clock, logs.Lib),

		GetStats:            query.NewGetStatsHandler(stores.Records, stores.Progress, stores.Wallets, stores.Inventory, clock),
		GetPeriodRanking:    query.NewGetPeriodRankingHandler(stores.Records, clock),
		GetLevelLeaderboard: query.NewGetLevelLeaderboardHandler(stores.Progress),
		GetWallet:           query.NewGetWalletHandler(stores.Wallets),
		GetInventory:        query.NewGetInventoryHandler(stores.Inventory),
		ListShop:            query.NewListShopHandler(stores.Inventory),
		GetStudyingNow:      query.NewGetStudyingNowHandler(studyingNow),

		Tokens:   handlers.NewTokenManager(cfg.HTTP.JWTSecret, cfg.HTTP.JWTIssuer),
		Features: cfg.Features,
		Health:   health,
		Logger:   logs.Lib,
	})

	errCh := server.StartAsync()
	log.Info("server started", "address", srvCfg.Address())

	// ─────────────────────────────────────────────────────────────────────────
	// 5. Wait for shutdown
	// ─────────────────────────────────────────────────────────────────────────
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error("HTTP server failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	var shutdownErr error
	if err := server.Shutdown(shutdownCtx); err != nil {
		shutdownErr = errors.Join(shutdownErr, fmt.Errorf("http shutdown: %w", err))
	}

	log.Info("discarding live sessions",
		"manual", manual.Discard(),
		"focus", focus.Discard(),
		"presence", presence.Discard(),
	)

	focusHandler.Wait()
	if err := bus.Close(); err != nil {
		shutdownErr = errors.Join(shutdownErr, fmt.Errorf("event bus close: %w", err))
	}

	if shutdownErr != nil {
		return shutdownErr
	}
	log.Info("server stopped gracefully")
	return nil
}
