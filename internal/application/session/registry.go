// Package session runs the per-user session state machines: manual study
// sessions, passive presence tracking and focus timers. All three share the
// same completion path (Completer) and the same serialization rule: every
// operation for a user runs under that user's own mutex, never a global one.
//
// Open sessions live only in memory. A restart drops them without credit.
package session

import (
	"sync"

	"github.com/safe1124/studyhub/internal/domain/shared"
)

// userLocks hands out one mutex per user. Entries are never removed; the
// table is bounded by the number of community members.
type userLocks struct {
	m sync.Map // shared.UserID -> *sync.Mutex
}

// lock acquires the user's mutex and returns its release func.
func (l *userLocks) lock(userID shared.UserID) func() {
	v, _ := l.m.LoadOrStore(userID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// registry is a concurrent map of open sessions keyed by user.
type registry[T any] struct {
	m sync.Map // shared.UserID -> *T
}

func (r *registry[T]) get(userID shared.UserID) (*T, bool) {
	v, ok := r.m.Load(userID)
	if !ok {
		return nil, false
	}
	return v.(*T), true
}

func (r *registry[T]) put(userID shared.UserID, s *T) {
	r.m.Store(userID, s)
}

func (r *registry[T]) delete(userID shared.UserID) {
	r.m.Delete(userID)
}

// compareAndDelete removes the entry only if it is still s. The caller that
// gets true owns the session's completion; everyone else must no-op.
func (r *registry[T]) compareAndDelete(userID shared.UserID, s *T) bool {
	return r.m.CompareAndDelete(userID, s)
}

func (r *registry[T]) each(fn func(shared.UserID, *T)) {
	r.m.Range(func(k, v any) bool {
		fn(k.(shared.UserID), v.(*T))
		return true
	})
}

func (r *registry[T]) len() int {
	n := 0
	r.m.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
