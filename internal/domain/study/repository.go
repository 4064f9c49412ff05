package study

import (
	"context"

	"github.com/safe1124/studyhub/internal/domain/shared"
)

// DefaultTopLimit is the ranking size used when TopForPeriod gets a
// non-positive limit.
const DefaultTopLimit = 5

// RecordRepository is the append-only StudyRecord ledger.
//
// Period totals are always recomputed from rows; implementations must not
// keep a running per-period counter.
type RecordRepository interface {
	// Append inserts one record. Records are never updated or deleted.
	Append(ctx context.Context, record *StudyRecord) error

	// TotalForPeriod sums minutes of a user's records matching the period key.
	TotalForPeriod(ctx context.Context, userID shared.UserID, key shared.PeriodKey) (int, error)

	// TotalAllTime sums minutes of all of a user's records.
	TotalAllTime(ctx context.Context, userID shared.UserID) (int, error)

	// TopForPeriod ranks users by summed minutes for the period key, descending.
	// Ties are broken by user ID so that ordering is stable. A non-positive
	// limit means DefaultTopLimit.
	TopForPeriod(ctx context.Context, key shared.PeriodKey, limit int) ([]UserTotal, error)

	// ListByUser returns a user's records, newest first.
	ListByUser(ctx context.Context, userID shared.UserID, limit int) ([]*StudyRecord, error)
}

// StudyingNowTracker mirrors who currently has any session open. It is a
// read model for "studying now" views; the session engines stay authoritative.
type StudyingNowTracker interface {
	MarkStudying(ctx context.Context, userID shared.UserID, source Source) error
	MarkStopped(ctx context.Context, userID shared.UserID, source Source) error
	ListStudying(ctx context.Context) ([]StudyingEntry, error)
}

// StudyingEntry is one user in the studying-now view.
type StudyingEntry struct {
	UserID  shared.UserID
	Sources []Source
}
