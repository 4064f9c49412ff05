package command

import (
	"context"
	"time"

	"github.com/safe1124/studyhub/internal/domain/progression"
	"github.com/safe1124/studyhub/internal/domain/shared"
	"github.com/safe1124/studyhub/pkg/logger"
	"github.com/safe1124/studyhub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECALCULATE LEVELS COMMAND
// Re-derives every stored level from cumulative minutes with the current
// curve. Needed after the curve changes; a no-op otherwise.
// ══════════════════════════════════════════════════════════════════════════════

// RecalculateLevelsCommand has no parameters. DryRun reports without writing.
type RecalculateLevelsCommand struct {
	DryRun bool
}

// LevelChange is one user whose stored level was stale.
type LevelChange struct {
	UserID   shared.UserID
	OldLevel int
	NewLevel int
}

// RecalculateLevelsResult summarises a run.
type RecalculateLevelsResult struct {
	Scanned  int
	Changed  []LevelChange
	Duration time.Duration
}

// RecalculateLevelsHandler handles RecalculateLevelsCommand.
type RecalculateLevelsHandler struct {
	progress progression.Repository
	clock    timeutil.Clock
	logger   *logger.Logger
}

// NewRecalculateLevelsHandler creates a RecalculateLevelsHandler.
func NewRecalculateLevelsHandler(progress progression.Repository, clock timeutil.Clock, log *logger.Logger) *RecalculateLevelsHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &RecalculateLevelsHandler{
		progress: progress,
		clock:    clock,
		logger:   log.With(logger.Component("recalculate_levels")),
	}
}

// Handle scans all progressions and rewrites stale levels.
func (h *RecalculateLevelsHandler) Handle(ctx context.Context, cmd RecalculateLevelsCommand) (*RecalculateLevelsResult, error) {
	start := time.Now()
	now := h.clock.Now()
	result := &RecalculateLevelsResult{}

	// Collect first; writing from inside ForEach would hold the scan open.
	err := h.progress.ForEach(ctx, func(p *progression.UserProgression) error {
		result.Scanned++
		old := p.Level
		if p.Recalculate(now) {
			result.Changed = append(result.Changed, LevelChange{UserID: p.UserID, OldLevel: old, NewLevel: p.Level})
		}
		return nil
	})
	if err != nil {
		return nil, shared.Storage("progression", "RecalculateLevels", err)
	}

	if !cmd.DryRun {
		for _, c := range result.Changed {
			if err := h.progress.SetLevel(ctx, c.UserID, c.NewLevel); err != nil {
				return nil, shared.Storage("progression", "RecalculateLevels", err)
			}
		}
	}

	result.Duration = time.Since(start)
	h.logger.Info("levels recalculated",
		logger.Int("scanned", result.Scanned),
		logger.Int("changed", len(result.Changed)),
		logger.Bool("dry_run", cmd.DryRun),
		logger.Duration("duration", result.Duration),
	)
	return result, nil
}
