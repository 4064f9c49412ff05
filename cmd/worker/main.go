// Package main is the entry point of the background worker.
//
// The worker runs periodic maintenance against the shared stores:
//   - recomputing stored levels from total study minutes
//   - pruning studying-now entries left behind by a crashed server
//
// It holds no sessions and may run next to the server.
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
	"github.com/safe1124/studyhub/internal/bootstrap"
	"github.com/safe1124/studyhub/internal/infrastructure/persistence/redis"
	"github.com/safe1124/studyhub/internal/infrastructure/scheduler"
	"github.com/safe1124/studyhub/internal/infrastructure/scheduler/jobs"
	"github.com/safe1124/studyhub/pkg/timeutil"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("worker failed", "error", err)
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
	if cfg.Database.UseMemoryStore {
		return errors.New("worker needs a shared database, set DATABASE_URL")
	}

	logs := bootstrap.NewLoggers(cfg.App)
	log := logs.Slog.With("process", "worker")
	bootstrap.ApplyStudyConfig(cfg.Study)

	if !cfg.Scheduler.Enabled {
		log.Info("scheduler disabled, nothing to do")
		return nil
	}

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

	// ─────────────────────────────────────────────────────────────────────────
	// 3. Jobs
	// ─────────────────────────────────────────────────────────────────────────
	sched := scheduler.New(scheduler.Config{
		Logger:       log,
		TickInterval: cfg.Scheduler.TickInterval,
		Now:          clock.Now,
	})

	recalc := jobs.NewRecalculateLevelsJob(
		command.NewRecalculateLevelsHandler(stores.Progress, clock, logs.Lib),
		log,
	)
	recalcSchedule, err := levelSchedule(cfg.Scheduler)
	if err != nil {
		return err
	}
	if err := sched.Register(recalc, recalcSchedule); err != nil {
		return fmt.Errorf("failed to register %s: %w", recalc.Name(), err)
	}

	if cache != nil {
		prune := jobs.NewPruneStudyingNowJob(
			redis.NewStudyingNow(cache, clock),
			cfg.Scheduler.StudyingNowMaxAge,
			clock,
			log,
		)
		if err := sched.Register(prune, scheduler.Every(cfg.Scheduler.StudyingNowSweepInterval)); err != nil {
			return fmt.Errorf("failed to register %s: %w", prune.Name(), err)
		}
	} else {
		log.Info("redis disabled, studying-now pruning skipped")
	}

	for _, j := range sched.ListJobs() {
		log.Info("job registered", "job", j.Name, "schedule", j.Schedule, "next_run", j.NextRun)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. Run until signalled
	// ─────────────────────────────────────────────────────────────────────────
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	log.Info("worker started")

	<-ctx.Done()
	log.Info("shutdown signal received")

	if err := sched.Stop(); err != nil {
		return fmt.Errorf("scheduler stop: %w", err)
	}

	snap := sched.Metrics().Snapshot()
	log.Info("worker stopped gracefully", "metrics", snap)
	return nil
}

// levelSchedule prefers the cron expression, read in the reference zone.
func levelSchedule(cfg config.SchedulerConfig) (scheduler.Schedule, error) {
	if cfg.LevelRecomputeCron == "" {
		return scheduler.Every(cfg.LevelRecomputeInterval), nil
	}
	cron, err := scheduler.ParseCron(cfg.LevelRecomputeCron, timeutil.ReferenceTZ)
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_LEVEL_RECOMPUTE_CRON: %w", err)
	}
	return cron, nil
}
