package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates the user record does not exist. Callers generally
	// treat this as an implicit "clean" state, not a failure.
	ErrNotFound = errors.New("user record not found")
	// ErrUnavailable indicates the backing store could not complete the
	// operation (connection failure, timeout, etc).
	ErrUnavailable = errors.New("store unavailable")
)

// UserRecord is the durable per-user moderation state.
type UserRecord struct {
	UserID       int64
	Username     string
	DisplayName  string
	WarningCount int
	Banned       bool
	JoinedAt     time.Time
	LastActive   time.Time
}

// KeywordEntry is a single forbidden term. Immutable once loaded into a
// wordlist snapshot.
type KeywordEntry struct {
	ID   int64
	Term string
}

// Store is the durable backend for user records and the keyword list.
//
// IncrementWarning and DecrementWarning must be atomic at the store: two
// concurrent increments for the same user must each be applied, and each
// caller must observe a distinct new count.
type Store interface {
	GetUser(ctx context.Context, userID int64) (*UserRecord, error)
	UpsertUser(ctx context.Context, rec *UserRecord) error
	// TouchUser upserts identity fields and the last-active timestamp,
	// creating the record on first contact.
	TouchUser(ctx context.Context, userID int64, username, displayName string, now time.Time) error
	IncrementWarning(ctx context.Context, userID int64) (int, error)
	// DecrementWarning never drives the count below zero. Returns the new
	// count; zero (with no record created) if the user is unknown.
	DecrementWarning(ctx context.Context, userID int64) (int, error)
	MarkBanned(ctx context.Context, userID int64) error
	ListKeywords(ctx context.Context) ([]KeywordEntry, error)
}
