package query

import (
	"context"

	"github.com/safe1124/studyhub/internal/domain/progression"
	"github.com/safe1124/studyhub/internal/domain/shared"
	"github.com/safe1124/studyhub/internal/domain/study"
	"github.com/safe1124/studyhub/pkg/timeutil"
)

const (
	defaultRankingLimit = 5
	maxRankingLimit     = 50
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PERIOD RANKING QUERY
// Top users by minutes for the current day, week or month.
// ══════════════════════════════════════════════════════════════════════════════

// GetPeriodRankingQuery selects the period and size.
type GetPeriodRankingQuery struct {
	Period string

	// Limit defaults to 5 and is capped at 50.
	Limit int
}

// Validate normalizes the limit and checks the period.
func (q *GetPeriodRankingQuery) Validate() error {
	if _, err := shared.ParsePeriod(q.Period); err != nil {
		return shared.WrapError("study", "GetPeriodRanking", shared.ErrValidation, "period must be day, week or month", err)
	}
	if q.Limit < 0 {
		return shared.NewDomainError("study", "GetPeriodRanking", shared.ErrValidation, "limit cannot be negative")
	}
	if q.Limit == 0 {
		q.Limit = defaultRankingLimit
	}
	if q.Limit > maxRankingLimit {
		q.Limit = maxRankingLimit
	}
	return nil
}

// RankingEntryDTO is one ranking row.
type RankingEntryDTO struct {
	Rank    int    `json:"rank"`
	Medal   string `json:"medal,omitempty"`
	UserID  string `json:"user_id"`
	Minutes int    `json:"minutes"`

	// WeeklyTier is filled for the monthly ranking only.
	WeeklyTier string `json:"weekly_tier,omitempty"`
}

// PeriodRankingDTO is the ranking view.
type PeriodRankingDTO struct {
	Period  string            `json:"period"`
	Key     string            `json:"key"`
	Entries []RankingEntryDTO `json:"entries"`
}

// GetPeriodRankingHandler handles GetPeriodRankingQuery.
type GetPeriodRankingHandler struct {
	records study.RecordRepository
	clock   timeutil.Clock
}

// NewGetPeriodRankingHandler creates a GetPeriodRankingHandler.
func NewGetPeriodRankingHandler(records study.RecordRepository, clock timeutil.Clock) *GetPeriodRankingHandler {
	return &GetPeriodRankingHandler{records: records, clock: clock}
}

// Handle executes the query.
func (h *GetPeriodRankingHandler) Handle(ctx context.Context, q GetPeriodRankingQuery) (*PeriodRankingDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	period, _ := shared.ParsePeriod(q.Period)
	now := h.clock.Now()
	key := study.CurrentKey(period, now)

	top, err := h.records.TopForPeriod(ctx, key, q.Limit)
	if err != nil {
		return nil, shared.Storage("study", "GetPeriodRanking", err)
	}

	dto := &PeriodRankingDTO{
		Period:  string(period),
		Key:     key.Key,
		Entries: make([]RankingEntryDTO, 0, len(top)),
	}
	weekKey := study.CurrentKey(shared.PeriodWeek, now)
	for i, row := range top {
		rank := shared.Rank(i + 1)
		entry := RankingEntryDTO{
			Rank:    int(rank),
			Medal:   rank.Medal(),
			UserID:  row.UserID.String(),
			Minutes: row.Minutes,
		}
		if period == shared.PeriodMonth {
			week, err := h.records.TotalForPeriod(ctx, row.UserID, weekKey)
			if err != nil {
				return nil, shared.Storage("study", "GetPeriodRanking", err)
			}
			entry.WeeklyTier = progression.TierByWeeklyMinutes(week).String()
		}
		dto.Entries = append(dto.Entries, entry)
	}
	return dto, nil
}
