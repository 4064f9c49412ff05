package query

import (
	"context"

	"github.com/safe1124/studyhub/internal/domain/progression"
	"github.com/safe1124/studyhub/internal/domain/shared"
)

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEVEL LEADERBOARD QUERY
// All-time standings by level, then cumulative minutes. Users sharing a level
// share a rank.
// ══════════════════════════════════════════════════════════════════════════════

// GetLevelLeaderboardQuery selects the size and an optional user to locate.
type GetLevelLeaderboardQuery struct {
	Limit  int
	UserID string
}

// Validate normalizes the limit.
func (q *GetLevelLeaderboardQuery) Validate() error {
	if q.Limit < 0 {
		return shared.NewDomainError("progression", "GetLevelLeaderboard", shared.ErrValidation, "limit cannot be negative")
	}
	if q.Limit == 0 {
		q.Limit = defaultLeaderboardLimit
	}
	if q.Limit > maxLeaderboardLimit {
		q.Limit = maxLeaderboardLimit
	}
	return nil
}

// LevelEntryDTO is one leaderboard row.
type LevelEntryDTO struct {
	Rank              int    `json:"rank"`
	Medal             string `json:"medal,omitempty"`
	UserID            string `json:"user_id"`
	Level             int    `json:"level"`
	Tier              string `json:"tier"`
	CumulativeMinutes int    `json:"cumulative_minutes"`
}

// LevelLeaderboardDTO is the leaderboard view.
type LevelLeaderboardDTO struct {
	Entries []LevelEntryDTO `json:"entries"`

	// Me is the requested user's position, nil when not requested or unknown.
	Me *LevelEntryDTO `json:"me,omitempty"`
}

// GetLevelLeaderboardHandler handles GetLevelLeaderboardQuery.
type GetLevelLeaderboardHandler struct {
	progress progression.Repository
}

// NewGetLevelLeaderboardHandler creates a GetLevelLeaderboardHandler.
func NewGetLevelLeaderboardHandler(progress progression.Repository) *GetLevelLeaderboardHandler {
	return &GetLevelLeaderboardHandler{progress: progress}
}

// Handle executes the query.
func (h *GetLevelLeaderboardHandler) Handle(ctx context.Context, q GetLevelLeaderboardQuery) (*LevelLeaderboardDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	rows, err := h.progress.TopByLevel(ctx, q.Limit)
	if err != nil {
		return nil, shared.Storage("progression", "GetLevelLeaderboard", err)
	}

	dto := &LevelLeaderboardDTO{Entries: make([]LevelEntryDTO, 0, len(rows))}
	rank := 0
	for i, row := range rows {
		if i == 0 || row.Level != rows[i-1].Level {
			rank = i + 1
		}
		dto.Entries = append(dto.Entries, levelEntry(rank, row))
	}

	if q.UserID != "" {
		me, err := h.position(ctx, shared.UserID(q.UserID))
		if err != nil {
			return nil, err
		}
		dto.Me = me
	}
	return dto, nil
}

// position ranks one user as the count of users with a strictly higher level, plus one.
func (h *GetLevelLeaderboardHandler) position(ctx context.Context, userID shared.UserID) (*LevelEntryDTO, error) {
	row, err := h.progress.Get(ctx, userID)
	if shared.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, shared.Storage("progression", "GetLevelLeaderboard", err)
	}

	above, err := h.progress.CountAboveLevel(ctx, row.Level)
	if err != nil {
		return nil, shared.Storage("progression", "GetLevelLeaderboard", err)
	}
	entry := levelEntry(above+1, row)
	return &entry, nil
}

func levelEntry(rank int, row *progression.UserProgression) LevelEntryDTO {
	return LevelEntryDTO{
		Rank:              rank,
		Medal:             shared.Rank(rank).Medal(),
		UserID:            row.UserID.String(),
		Level:             row.Level,
		Tier:              progression.TierByLevel(row.Level).String(),
		CumulativeMinutes: row.CumulativeMinutes,
	}
}
