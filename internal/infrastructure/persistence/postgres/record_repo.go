package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/safe1124/studyhub/internal/domain/shared"
	"github.com/safe1124/studyhub/internal/domain/study"
	"github.com/safe1124/studyhub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDY RECORD REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// RecordRepository implements study.RecordRepository for PostgreSQL.
type RecordRepository struct {
	conn *Connection
}

// NewRecordRepository creates a new RecordRepository.
func NewRecordRepository(conn *Connection) *RecordRepository {
	return &RecordRepository{conn: conn}
}

// periodColumn returns the key column for a period. The value is never taken
// from user input, so it is safe to splice into SQL.
func periodColumn(p shared.Period) (string, error) {
	switch p {
	case shared.PeriodDay:
		return "day_key", nil
	case shared.PeriodWeek:
		return "week_key", nil
	case shared.PeriodMonth:
		return "month_key", nil
	}
	return "", shared.NewDomainError("study", "periodColumn", shared.ErrValidation, fmt.Sprintf("unknown period %q", p))
}

// Append inserts one record.
func (r *RecordRepository) Append(ctx context.Context, rec *study.StudyRecord) error {
	query := `
		INSERT INTO study_records (
			id, user_id, source, start_time, end_time, minutes, day_key, week_key, month_key
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.conn.Exec(ctx, query,
		rec.ID,
		rec.UserID.String(),
		string(rec.Source),
		rec.StartTime,
		rec.EndTime,
		rec.Minutes,
		rec.DayKey,
		rec.WeekKey,
		rec.MonthKey,
	)
	if err != nil {
		return shared.Storage("study", "Append", err)
	}
	return nil
}

// TotalForPeriod sums a user's minutes for one period key.
func (r *RecordRepository) TotalForPeriod(ctx context.Context, userID shared.UserID, key shared.PeriodKey) (int, error) {
	col, err := periodColumn(key.Period)
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf(`
		SELECT COALESCE(SUM(minutes), 0)
		FROM study_records
		WHERE user_id = $1 AND %s = $2
	`, col)

	var total int
	if err := r.conn.QueryRow(ctx, query, userID.String(), key.Key).Scan(&total); err != nil {
		return 0, shared.Storage("study", "TotalForPeriod", err)
	}
	return total, nil
}

// TotalAllTime sums every minute a user has recorded.
func (r *RecordRepository) TotalAllTime(ctx context.Context, userID shared.UserID) (int, error) {
	var total int
	err := r.conn.QueryRow(ctx,
		`SELECT COALESCE(SUM(minutes), 0) FROM study_records WHERE user_id = $1`,
		userID.String(),
	).Scan(&total)
	if err != nil {
		return 0, shared.Storage("study", "TotalAllTime", err)
	}
	return total, nil
}

// TopForPeriod ranks users by summed minutes for a period key.
func (r *RecordRepository) TopForPeriod(ctx context.Context, key shared.PeriodKey, limit int) ([]study.UserTotal, error) {
	col, err := periodColumn(key.Period)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = study.DefaultTopLimit
	}

	query := fmt.Sprintf(`
		SELECT user_id, SUM(minutes) AS total
		FROM study_records
		WHERE %s = $1
		GROUP BY user_id
		ORDER BY total DESC, user_id ASC
		LIMIT $2
	`, col)

	rows, err := r.conn.Query(ctx, query, key.Key, limit)
	if err != nil {
		return nil, shared.Storage("study", "TopForPeriod", err)
	}
	defer rows.Close()

	var out []study.UserTotal
	for rows.Next() {
		var (
			id    string
			total int
		)
		if err := rows.Scan(&id, &total); err != nil {
			return nil, shared.Storage("study", "TopForPeriod", err)
		}
		out = append(out, study.UserTotal{UserID: shared.UserID(id), Minutes: total})
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Storage("study", "TopForPeriod", err)
	}
	return out, nil
}

// ListByUser returns a user's records, newest first. A non-positive limit
// returns every row.
func (r *RecordRepository) ListByUser(ctx context.Context, userID shared.UserID, limit int) ([]*study.StudyRecord, error) {
	query := `
		SELECT id, user_id, source, start_time, end_time, minutes, day_key, week_key, month_key
		FROM study_records
		WHERE user_id = $1
		ORDER BY end_time DESC, created_at DESC
	`
	args := []interface{}{userID.String()}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, shared.Storage("study", "ListByUser", err)
	}
	defer rows.Close()

	var out []*study.StudyRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, shared.Storage("study", "ListByUser", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Storage("study", "ListByUser", err)
	}
	return out, nil
}

func scanRecord(row pgx.Row) (*study.StudyRecord, error) {
	var (
		rec    study.StudyRecord
		userID string
		source string
	)
	err := row.Scan(
		&rec.ID,
		&userID,
		&source,
		&rec.StartTime,
		&rec.EndTime,
		&rec.Minutes,
		&rec.DayKey,
		&rec.WeekKey,
		&rec.MonthKey,
	)
	if err != nil {
		return nil, err
	}
	rec.UserID = shared.UserID(userID)
	rec.Source = study.Source(source)
	rec.StartTime = timeutil.ToReference(rec.StartTime)
	rec.EndTime = timeutil.ToReference(rec.EndTime)
	return &rec, nil
}
