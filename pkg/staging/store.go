// Package staging holds classified transactions until the user confirms or cancels them.
package staging

import (
	"log/slog"
	"sync"

	"github.com/ginasoft/BotGastos/pkg/api"
)

// Store keeps at most one pending transaction per user.
//
// Operations for the same user are serialized by a per-user mutex so that a Stage
// never interleaves with a Commit in progress. The store-level mutex only guards
// the maps and is never held while a commit function runs.
type Store struct {
	mu      sync.Mutex
	locks   map[api.UserID]*sync.Mutex
	pending map[api.UserID]*api.PendingTransaction
	logger  *slog.Logger
}

// NewStore creates an empty store.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		locks:   make(map[api.UserID]*sync.Mutex),
		pending: make(map[api.UserID]*api.PendingTransaction),
		logger:  logger,
	}
}

// userLock returns the mutex serializing operations for user.
// Locks are never removed; there is one per human that ever talked to the bot.
func (s *Store) userLock(user api.UserID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[user]
	if !ok {
		l = &sync.Mutex{}
		s.locks[user] = l
	}
	return l
}

// Stage stores p as the user's pending transaction, replacing any previous one.
// Records without an amount are rejected with api.ErrNoAmount.
func (s *Store) Stage(user api.UserID, p api.PendingTransaction) error {
	if !p.Record.Amount.Valid {
		return api.ErrNoAmount
	}

	l := s.userLock(user)
	l.Lock()
	defer l.Unlock()

	staged := p.Clone()
	staged.SummaryAppended = false

	s.mu.Lock()
	_, replaced := s.pending[user]
	s.pending[user] = &staged
	s.mu.Unlock()

	s.logger.Debug("staged transaction",
		"user", user,
		"record_id", p.Record.ID,
		"items", len(p.Items),
		"replaced", replaced,
	)
	return nil
}

// Pending returns a copy of the user's pending transaction.
func (s *Store) Pending(user api.UserID) (api.PendingTransaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[user]
	if !ok {
		return api.PendingTransaction{}, false
	}
	return p.Clone(), true
}

// Commit calls fn with a copy of the user's pending transaction while holding the
// user's lock. The entry is removed only when fn returns nil; on error the copy,
// including any progress fn recorded on it, replaces the staged entry. The boolean
// is false when nothing was pending.
//
// Staged entries are never mutated in place, so Pending can read them under the
// store mutex alone while a commit is in flight.
func (s *Store) Commit(user api.UserID, fn func(p *api.PendingTransaction) error) (bool, error) {
	l := s.userLock(user)
	l.Lock()
	defer l.Unlock()

	s.mu.Lock()
	p, ok := s.pending[user]
	s.mu.Unlock()
	if !ok {
		return false, nil
	}

	work := p.Clone()
	err := fn(&work)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.pending[user] = &work
		return true, err
	}
	delete(s.pending, user)
	return true, nil
}

// Discard removes the user's pending transaction. It reports whether one existed.
func (s *Store) Discard(user api.UserID) bool {
	l := s.userLock(user)
	l.Lock()
	defer l.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.pending[user]
	delete(s.pending, user)
	return ok
}

// Len returns the number of users with a pending transaction.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
