package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/safe1124/studyhub/pkg/timeutil"
)

// StalePruner removes studying-now entries first seen before cutoff.
type StalePruner interface {
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// PruneStudyingNowJob clears entries left behind by a server that stopped
// without resetting the view.
type PruneStudyingNowJob struct {
	pruner StalePruner
	maxAge time.Duration
	clock  timeutil.Clock
	logger *slog.Logger
}

// NewPruneStudyingNowJob creates the job. maxAge defaults to 12h.
func NewPruneStudyingNowJob(pruner StalePruner, maxAge time.Duration, clock timeutil.Clock, logger *slog.Logger) *PruneStudyingNowJob {
	if maxAge <= 0 {
		maxAge = 12 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PruneStudyingNowJob{
		pruner: pruner,
		maxAge: maxAge,
		clock:  clock,
		logger: logger.With("job", "prune_studying_now"),
	}
}

func (j *PruneStudyingNowJob) Name() string { return "prune_studying_now" }

func (j *PruneStudyingNowJob) Description() string {
	return "Removes studying-now entries older than " + j.maxAge.String()
}

func (j *PruneStudyingNowJob) Run(ctx context.Context) error {
	n, err := j.pruner.PruneOlderThan(ctx, j.clock.Now().Add(-j.maxAge))
	if err != nil {
		return err
	}
	if n > 0 {
		j.logger.Warn("pruned stale studying-now entries", "count", n)
	}
	return nil
}
