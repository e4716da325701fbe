package session

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/ClareAI/astra-outbound-bridge/pkg/logger"
	"go.uber.org/zap"
)

var (
	ErrCallNotFound = errors.New("call not found")
	ErrCallExists   = errors.New("call already exists")
)

// Store is the in-memory registry of call sessions for this instance.
type Store struct {
	mu        sync.RWMutex
	calls     map[string]*entry
	grace     time.Duration
	now       func() time.Time
	afterFunc func(time.Duration, func()) *time.Timer
	onRemove  func(callID string)
}

type entry struct {
	session   *CallSession
	expiresAt time.Time
	timer     *time.Timer
}

// StoreOption customizes a Store.
type StoreOption func(*Store)

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// WithOnRemove registers a callback run after a session is removed.
func WithOnRemove(fn func(callID string)) StoreOption {
	return func(s *Store) { s.onRemove = fn }
}

// NewStore creates an empty store whose completed sessions are removed after grace.
func NewStore(grace time.Duration, opts ...StoreOption) *Store {
	s := &Store{
		calls:     make(map[string]*entry),
		grace:     grace,
		now:       time.Now,
		afterFunc: time.AfterFunc,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Now() time.Time {
	return s.now()
}

// Create registers a new session; ids must be unique.
func (s *Store) Create(cs *CallSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.calls[cs.ID]; ok && !s.expiredLocked(e) {
		return ErrCallExists
	}
	s.putLocked(cs)
	return nil
}

// GetOrCreate returns the existing session or registers the one built by build.
func (s *Store) GetOrCreate(callID string, build func() *CallSession) (*CallSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.calls[callID]; ok && !s.expiredLocked(e) {
		return e.session, false
	}
	cs := build()
	s.putLocked(cs)
	return cs, true
}

// putLocked stores cs, stopping the removal timer of any expired entry it replaces.
func (s *Store) putLocked(cs *CallSession) {
	if old, ok := s.calls[cs.ID]; ok && old.timer != nil {
		old.timer.Stop()
	}
	s.calls[cs.ID] = &entry{session: cs}
}

// Get returns a session unless it is unknown or past its grace period.
func (s *Store) Get(callID string) (*CallSession, error) {
	s.mu.RLock()
	e, ok := s.calls[callID]
	s.mu.RUnlock()
	if !ok || s.expired(e) {
		return nil, ErrCallNotFound
	}
	return e.session, nil
}

// List returns a snapshot of every non-expired session ordered by start time.
func (s *Store) List() []*CallSession {
	s.mu.RLock()
	out := make([]*CallSession, 0, len(s.calls))
	for _, e := range s.calls {
		if !s.expiredLocked(e) {
			out = append(out, e.session)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.calls)
}

// ScheduleRemoval starts the grace period for a session. Repeated calls keep
// the first deadline.
func (s *Store) ScheduleRemoval(callID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.calls[callID]
	if !ok || !e.expiresAt.IsZero() {
		return
	}
	e.expiresAt = s.now().Add(s.grace)
	e.timer = s.afterFunc(s.grace, func() { s.removeEntry(callID, e) })
	logger.ForCall(callID).Debug("call scheduled for removal", zap.Duration("grace", s.grace))
}

// Remove deletes a session immediately.
func (s *Store) Remove(callID string) {
	s.removeEntry(callID, nil)
}

// removeEntry deletes callID only while it still maps to want; a nil want matches any entry.
func (s *Store) removeEntry(callID string, want *entry) {
	s.mu.Lock()
	e, ok := s.calls[callID]
	ok = ok && (want == nil || e == want)
	if ok {
		delete(s.calls, callID)
		if e.timer != nil {
			e.timer.Stop()
		}
	}
	s.mu.Unlock()

	if ok && s.onRemove != nil {
		s.onRemove(callID)
	}
}

// Close stops all pending removal timers.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.calls {
		if e.timer != nil {
			e.timer.Stop()
		}
	}
}

func (s *Store) expired(e *entry) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiredLocked(e)
}

func (s *Store) expiredLocked(e *entry) bool {
	return !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt)
}
