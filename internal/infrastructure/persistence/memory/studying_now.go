package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/safe1124/studyhub/internal/domain/shared"
	"github.com/safe1124/studyhub/internal/domain/study"
)

// StudyingNow is the in-process studying-now view, used when Redis is disabled.
type StudyingNow struct {
	mu    sync.Mutex
	users map[shared.UserID]map[study.Source]struct{}
}

// NewStudyingNow creates an empty view.
func NewStudyingNow() *StudyingNow {
	return &StudyingNow{users: make(map[shared.UserID]map[study.Source]struct{})}
}

func (s *StudyingNow) MarkStudying(ctx context.Context, userID shared.UserID, source study.Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.users[userID]
	if !ok {
		set = make(map[study.Source]struct{})
		s.users[userID] = set
	}
	set[source] = struct{}{}
	return nil
}

func (s *StudyingNow) MarkStopped(ctx context.Context, userID shared.UserID, source study.Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.users[userID]
	if !ok {
		return nil
	}
	delete(set, source)
	if len(set) == 0 {
		delete(s.users, userID)
	}
	return nil
}

func (s *StudyingNow) ListStudying(ctx context.Context) ([]study.StudyingEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]study.StudyingEntry, 0, len(s.users))
	for id, set := range s.users {
		entry := study.StudyingEntry{UserID: id}
		for src := range set {
			entry.Sources = append(entry.Sources, src)
		}
		sort.Slice(entry.Sources, func(i, j int) bool { return entry.Sources[i] < entry.Sources[j] })
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}
