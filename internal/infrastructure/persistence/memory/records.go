// Package memory provides in-process implementations of the repository ports.
// They back unit tests and the database-less development mode
// (USE_MEMORY_STORE=true). They follow the same contracts as the postgres
// repositories, including error kinds.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/safe1124/studyhub/internal/domain/shared"
	"github.com/safe1124/studyhub/internal/domain/study"
)

// Records is an append-only in-memory StudyRecord ledger.
type Records struct {
	mu   sync.RWMutex
	rows []study.StudyRecord
}

// NewRecords creates an empty ledger.
func NewRecords() *Records {
	return &Records{}
}

// Append stores a copy of the record.
func (r *Records) Append(ctx context.Context, record *study.StudyRecord) error {
	if err := ctx.Err(); err != nil {
		return shared.Storage("study", "Append", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, *record)
	return nil
}

// TotalForPeriod scans the ledger for matching rows.
func (r *Records) TotalForPeriod(ctx context.Context, userID shared.UserID, key shared.PeriodKey) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0
	for i := range r.rows {
		row := &r.rows[i]
		if row.UserID == userID && row.KeyFor(key.Period) == key.Key {
			total += row.Minutes
		}
	}
	return total, nil
}

// TotalAllTime sums every row of the user.
func (r *Records) TotalAllTime(ctx context.Context, userID shared.UserID) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0
	for i := range r.rows {
		if r.rows[i].UserID == userID {
			total += r.rows[i].Minutes
		}
	}
	return total, nil
}

// TopForPeriod groups matching rows by user and ranks them.
func (r *Records) TopForPeriod(ctx context.Context, key shared.PeriodKey, limit int) ([]study.UserTotal, error) {
	r.mu.RLock()
	sums := make(map[shared.UserID]int)
	for i := range r.rows {
		row := &r.rows[i]
		if row.KeyFor(key.Period) == key.Key {
			sums[row.UserID] += row.Minutes
		}
	}
	r.mu.RUnlock()

	totals := make([]study.UserTotal, 0, len(sums))
	for id, m := range sums {
		totals = append(totals, study.UserTotal{UserID: id, Minutes: m})
	}
	sort.Slice(totals, func(i, j int) bool {
		if totals[i].Minutes != totals[j].Minutes {
			return totals[i].Minutes > totals[j].Minutes
		}
		return totals[i].UserID < totals[j].UserID
	})
	if limit <= 0 {
		limit = study.DefaultTopLimit
	}
	if len(totals) > limit {
		totals = totals[:limit]
	}
	return totals, nil
}

// ListByUser returns the user's rows, newest first.
func (r *Records) ListByUser(ctx context.Context, userID shared.UserID, limit int) ([]*study.StudyRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*study.StudyRecord
	for i := len(r.rows) - 1; i >= 0; i-- {
		if r.rows[i].UserID != userID {
			continue
		}
		cp := r.rows[i]
		out = append(out, &cp)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Len returns the number of rows. Test helper.
func (r *Records) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rows)
}
