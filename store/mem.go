package store

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemStore is an in-memory Store, for tests and for running without a
// database. Mutations are serialized on a single mutex, which gives the same
// atomicity guarantees as the SQL implementation.
type MemStore struct {
	lk       sync.Mutex
	users    map[int64]UserRecord
	keywords []KeywordEntry
	nextID   int64
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		users:  make(map[int64]UserRecord),
		nextID: 1,
	}
}

// AddKeyword registers a forbidden term. Intended for fixtures and tests.
func (s *MemStore) AddKeyword(term string) {
	s.lk.Lock()
	defer s.lk.Unlock()
	s.keywords = append(s.keywords, KeywordEntry{ID: s.nextID, Term: term})
	s.nextID++
}

// ReplaceKeywords swaps the entire keyword list.
func (s *MemStore) ReplaceKeywords(terms []string) {
	s.lk.Lock()
	defer s.lk.Unlock()
	s.keywords = s.keywords[:0]
	for _, t := range terms {
		s.keywords = append(s.keywords, KeywordEntry{ID: s.nextID, Term: t})
		s.nextID++
	}
}

func (s *MemStore) GetUser(ctx context.Context, userID int64) (*UserRecord, error) {
	s.lk.Lock()
	defer s.lk.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (s *MemStore) UpsertUser(ctx context.Context, rec *UserRecord) error {
	s.lk.Lock()
	defer s.lk.Unlock()
	s.users[rec.UserID] = *rec
	return nil
}

func (s *MemStore) TouchUser(ctx context.Context, userID int64, username, displayName string, now time.Time) error {
	s.lk.Lock()
	defer s.lk.Unlock()
	if displayName == "" {
		displayName = fmt.Sprintf("User_%d", userID)
	}
	u, ok := s.users[userID]
	if !ok {
		u = UserRecord{UserID: userID, JoinedAt: now}
	}
	u.Username = username
	u.DisplayName = displayName
	u.LastActive = now
	s.users[userID] = u
	return nil
}

func (s *MemStore) IncrementWarning(ctx context.Context, userID int64) (int, error) {
	s.lk.Lock()
	defer s.lk.Unlock()
	u, ok := s.users[userID]
	if !ok {
		now := time.Now().UTC()
		u = UserRecord{UserID: userID, DisplayName: fmt.Sprintf("User_%d", userID), JoinedAt: now, LastActive: now}
	}
	u.WarningCount++
	s.users[userID] = u
	return u.WarningCount, nil
}

func (s *MemStore) DecrementWarning(ctx context.Context, userID int64) (int, error) {
	s.lk.Lock()
	defer s.lk.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return 0, nil
	}
	if u.WarningCount > 0 {
		u.WarningCount--
	}
	s.users[userID] = u
	return u.WarningCount, nil
}

func (s *MemStore) MarkBanned(ctx context.Context, userID int64) error {
	s.lk.Lock()
	defer s.lk.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil
	}
	u.Banned = true
	s.users[userID] = u
	return nil
}

func (s *MemStore) ListKeywords(ctx context.Context) ([]KeywordEntry, error) {
	s.lk.Lock()
	defer s.lk.Unlock()
	out := make([]KeywordEntry, len(s.keywords))
	copy(out, s.keywords)
	return out, nil
}
