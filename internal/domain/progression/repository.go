package progression

import (
	"context"

	"github.com/safe1124/studyhub/internal/domain/shared"
)

// Repository persists UserProgression rows.
// Implementations live in infrastructure/persistence.
type Repository interface {
	// Get returns the progression of a user, or an error matching
	// shared.ErrNotFound if the user has never been credited.
	Get(ctx context.Context, userID shared.UserID) (*UserProgression, error)

	// Credit adds minutes to a user's cumulative total, creating the row on
	// first use, and stores the recomputed level. It returns the row after the
	// update and the level before it.
	Credit(ctx context.Context, userID shared.UserID, minutes int) (*UserProgression, int, error)

	// TopByLevel lists users ordered by level, then cumulative minutes, descending.
	TopByLevel(ctx context.Context, limit int) ([]*UserProgression, error)

	// CountAboveLevel counts users whose level is strictly greater than level.
	CountAboveLevel(ctx context.Context, level int) (int, error)

	// ForEach streams every progression row. Used by batch recomputation.
	ForEach(ctx context.Context, fn func(*UserProgression) error) error

	// SetLevel overwrites the stored level of a user.
	SetLevel(ctx context.Context, userID shared.UserID, level int) error
}
