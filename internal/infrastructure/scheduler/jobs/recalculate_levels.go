// Package jobs contains the scheduled jobs run by the worker.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/safe1124/studyhub/internal/application/command"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECALCULATE LEVELS JOB
// ══════════════════════════════════════════════════════════════════════════════

// RecalculateLevelsJob rewrites stored levels that disagree with the current
// curve. Credits keep levels fresh, so a run normally changes nothing.
type RecalculateLevelsJob struct {
	handler *command.RecalculateLevelsHandler
	logger  *slog.Logger
	timeout time.Duration
}

// NewRecalculateLevelsJob creates the job.
func NewRecalculateLevelsJob(handler *command.RecalculateLevelsHandler, logger *slog.Logger) *RecalculateLevelsJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecalculateLevelsJob{
		handler: handler,
		logger:  logger.With("job", "recalculate_levels"),
		timeout: 10 * time.Minute,
	}
}

func (j *RecalculateLevelsJob) Name() string { return "recalculate_levels" }

func (j *RecalculateLevelsJob) Description() string {
	return "Recomputes every user's level from cumulative minutes"
}

// Run executes one pass.
func (j *RecalculateLevelsJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	res, err := j.handler.Handle(ctx, command.RecalculateLevelsCommand{})
	if err != nil {
		return err
	}
	for _, c := range res.Changed {
		j.logger.Info("level corrected",
			"user_id", c.UserID,
			"old_level", c.OldLevel,
			"new_level", c.NewLevel,
		)
	}
	return nil
}
