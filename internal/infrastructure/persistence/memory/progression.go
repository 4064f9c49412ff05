package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/safe1124/studyhub/internal/domain/progression"
	"github.com/safe1124/studyhub/internal/domain/shared"
	"github.com/safe1124/studyhub/pkg/timeutil"
)

// Progressions stores UserProgression rows in a map.
type Progressions struct {
	mu    sync.RWMutex
	rows  map[shared.UserID]progression.UserProgression
	clock timeutil.Clock
}

// NewProgressions creates an empty store.
func NewProgressions(clock timeutil.Clock) *Progressions {
	return &Progressions{
		rows:  make(map[shared.UserID]progression.UserProgression),
		clock: clock,
	}
}

func (p *Progressions) Get(ctx context.Context, userID shared.UserID) (*progression.UserProgression, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	row, ok := p.rows[userID]
	if !ok {
		return nil, shared.NewDomainError("progression", "Get", shared.ErrNotFound, "progression not found")
	}
	return &row, nil
}

func (p *Progressions) Credit(ctx context.Context, userID shared.UserID, minutes int) (*progression.UserProgression, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, shared.Storage("progression", "Credit", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock.Now()
	row, ok := p.rows[userID]
	if !ok {
		row = *progression.NewUserProgression(userID, now)
	}
	old, err := row.Credit(minutes, now)
	if err != nil {
		return nil, 0, err
	}
	p.rows[userID] = row
	return &row, old, nil
}

func (p *Progressions) TopByLevel(ctx context.Context, limit int) ([]*progression.UserProgression, error) {
	p.mu.RLock()
	out := make([]*progression.UserProgression, 0, len(p.rows))
	for _, row := range p.rows {
		cp := row
		out = append(out, &cp)
	}
	p.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Level != out[j].Level {
			return out[i].Level > out[j].Level
		}
		if out[i].CumulativeMinutes != out[j].CumulativeMinutes {
			return out[i].CumulativeMinutes > out[j].CumulativeMinutes
		}
		return out[i].UserID < out[j].UserID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (p *Progressions) CountAboveLevel(ctx context.Context, level int) (int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	n := 0
	for _, row := range p.rows {
		if row.Level > level {
			n++
		}
	}
	return n, nil
}

func (p *Progressions) ForEach(ctx context.Context, fn func(*progression.UserProgression) error) error {
	p.mu.RLock()
	rows := make([]progression.UserProgression, 0, len(p.rows))
	for _, row := range p.rows {
		rows = append(rows, row)
	}
	p.mu.RUnlock()

	for i := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(&rows[i]); err != nil {
			return err
		}
	}
	return nil
}

func (p *Progressions) SetLevel(ctx context.Context, userID shared.UserID, level int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	row, ok := p.rows[userID]
	if !ok {
		return shared.NewDomainError("progression", "SetLevel", shared.ErrNotFound, "progression not found")
	}
	row.Level = level
	row.UpdatedAt = p.clock.Now()
	p.rows[userID] = row
	return nil
}

// Put overwrites a row. Test helper for seeding stale levels.
func (p *Progressions) Put(row progression.UserProgression) {
	p.mu.Lock()
	p.rows[row.UserID] = row
	p.mu.Unlock()
}
