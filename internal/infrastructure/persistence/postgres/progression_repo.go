package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/safe1124/studyhub/internal/domain/progression"
	"github.com/safe1124/studyhub/internal/domain/shared"
	"github.com/safe1124/studyhub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESSION REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// ProgressionRepository implements progression.Repository for PostgreSQL.
type ProgressionRepository struct {
	conn  *Connection
	clock timeutil.Clock
}

// NewProgressionRepository creates a new ProgressionRepository.
func NewProgressionRepository(conn *Connection, clock timeutil.Clock) *ProgressionRepository {
	return &ProgressionRepository{conn: conn, clock: clock}
}

const progressionColumns = `user_id, cumulative_minutes, level, total_sessions, created_at, updated_at`

// Get returns a user's progression.
func (r *ProgressionRepository) Get(ctx context.Context, userID shared.UserID) (*progression.UserProgression, error) {
	row := r.conn.QueryRow(ctx,
		`SELECT `+progressionColumns+` FROM user_progressions WHERE user_id = $1`,
		userID.String(),
	)
	p, err := scanProgression(row)
	if err != nil {
		return nil, storageErr("progression", "Get", err)
	}
	return p, nil
}

// Credit adds minutes under a row lock so the level is computed from the
// committed cumulative total.
func (r *ProgressionRepository) Credit(ctx context.Context, userID shared.UserID, minutes int) (*progression.UserProgression, int, error) {
	var (
		row      *progression.UserProgression
		oldLevel int
	)

	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		now := r.clock.Now()

		if _, err := tx.Exec(ctx, `
			INSERT INTO user_progressions (user_id, created_at, updated_at)
			VALUES ($1, $2, $2)
			ON CONFLICT (user_id) DO NOTHING
		`, userID.String(), now); err != nil {
			return err
		}

		current, err := scanProgression(tx.QueryRow(ctx,
			`SELECT `+progressionColumns+` FROM user_progressions WHERE user_id = $1 FOR UPDATE`,
			userID.String(),
		))
		if err != nil {
			return err
		}

		old, err := current.Credit(minutes, now)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `
			UPDATE user_progressions
			SET cumulative_minutes = $2, level = $3, total_sessions = $4, updated_at = $5
			WHERE user_id = $1
		`, userID.String(), current.CumulativeMinutes, current.Level, current.TotalSessions, current.UpdatedAt); err != nil {
			return err
		}

		row, oldLevel = current, old
		return nil
	})
	if err != nil {
		return nil, 0, shared.Storage("progression", "Credit", err)
	}
	return row, oldLevel, nil
}

// TopByLevel lists users by level, then cumulative minutes.
func (r *ProgressionRepository) TopByLevel(ctx context.Context, limit int) ([]*progression.UserProgression, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := r.conn.Query(ctx, `
		SELECT `+progressionColumns+`
		FROM user_progressions
		ORDER BY level DESC, cumulative_minutes DESC, user_id ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, shared.Storage("progression", "TopByLevel", err)
	}
	defer rows.Close()

	var out []*progression.UserProgression
	for rows.Next() {
		p, err := scanProgression(rows)
		if err != nil {
			return nil, shared.Storage("progression", "TopByLevel", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Storage("progression", "TopByLevel", err)
	}
	return out, nil
}

// CountAboveLevel counts users strictly above level.
func (r *ProgressionRepository) CountAboveLevel(ctx context.Context, level int) (int, error) {
	var n int
	if err := r.conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM user_progressions WHERE level > $1`, level,
	).Scan(&n); err != nil {
		return 0, shared.Storage("progression", "CountAboveLevel", err)
	}
	return n, nil
}

// ForEach streams every row in user ID order. The callback runs after the
// result set is read so it may issue its own queries.
func (r *ProgressionRepository) ForEach(ctx context.Context, fn func(*progression.UserProgression) error) error {
	rows, err := r.conn.Query(ctx, `SELECT `+progressionColumns+` FROM user_progressions ORDER BY user_id`)
	if err != nil {
		return shared.Storage("progression", "ForEach", err)
	}

	var all []*progression.UserProgression
	for rows.Next() {
		p, err := scanProgression(rows)
		if err != nil {
			rows.Close()
			return shared.Storage("progression", "ForEach", err)
		}
		all = append(all, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return shared.Storage("progression", "ForEach", err)
	}

	for _, p := range all {
		if err := fn(p); err != nil {
			return err
		}
	}
	return nil
}

// SetLevel overwrites a stored level.
func (r *ProgressionRepository) SetLevel(ctx context.Context, userID shared.UserID, level int) error {
	tag, err := r.conn.Exec(ctx,
		`UPDATE user_progressions SET level = $2, updated_at = $3 WHERE user_id = $1`,
		userID.String(), level, r.clock.Now(),
	)
	if err != nil {
		return shared.Storage("progression", "SetLevel", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NewDomainError("progression", "SetLevel", shared.ErrNotFound, "progression not found")
	}
	return nil
}

func scanProgression(row pgx.Row) (*progression.UserProgression, error) {
	var (
		p  progression.UserProgression
		id string
	)
	if err := row.Scan(&id, &p.CumulativeMinutes, &p.Level, &p.TotalSessions, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.UserID = shared.UserID(id)
	p.CreatedAt = timeutil.ToReference(p.CreatedAt)
	p.UpdatedAt = timeutil.ToReference(p.UpdatedAt)
	return &p, nil
}
