package moderation

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/vigilbot/vigil/moderation/countstore"
	"github.com/vigilbot/vigil/moderation/event"
	"github.com/vigilbot/vigil/moderation/rules"
	"github.com/vigilbot/vigil/moderation/wordlist"
	"github.com/vigilbot/vigil/store"
)

// errTransportUnavailable stands in for a chat transport failure. Distinct
// from the store sentinels: fail-open/fail-closed decisions treat the two
// domains differently.
var errTransportUnavailable = errors.New("transport unavailable")

// CaptureActions records outbound actions instead of performing them.
// Intended for tests and capture-replay debugging.
type CaptureActions struct {
	lk       sync.Mutex
	Deleted  []event.MessageRef
	Banned   []int64
	Messages []string
	Polls    []string

	// FailDeletes makes DeleteMessage fail, to exercise the fail-closed path.
	FailDeletes bool
}

var _ Actions = (*CaptureActions)(nil)

func NewCaptureActions() *CaptureActions {
	return &CaptureActions{}
}

func (c *CaptureActions) DeleteMessage(ctx context.Context, ref event.MessageRef) error {
	c.lk.Lock()
	defer c.lk.Unlock()
	if c.FailDeletes {
		return errTransportUnavailable
	}
	c.Deleted = append(c.Deleted, ref)
	return nil
}

func (c *CaptureActions) BanUser(ctx context.Context, chat event.ChatRef, userID int64) error {
	c.lk.Lock()
	defer c.lk.Unlock()
	c.Banned = append(c.Banned, userID)
	return nil
}

func (c *CaptureActions) SendMessage(ctx context.Context, chat event.ChatRef, text string) error {
	c.lk.Lock()
	defer c.lk.Unlock()
	c.Messages = append(c.Messages, text)
	return nil
}

func (c *CaptureActions) SendPoll(ctx context.Context, chat event.ChatRef, question string, options []string, anonymous bool) error {
	c.lk.Lock()
	defer c.lk.Unlock()
	c.Polls = append(c.Polls, question)
	return nil
}

func (c *CaptureActions) BanCount(userID int64) int {
	c.lk.Lock()
	defer c.lk.Unlock()
	n := 0
	for _, id := range c.Banned {
		if id == userID {
			n++
		}
	}
	return n
}

func (c *CaptureActions) DeletedCount() int {
	c.lk.Lock()
	defer c.lk.Unlock()
	return len(c.Deleted)
}

// EngineTestFixture builds an engine against in-memory stores, with
// "casino" and "crypto" as forbidden terms and user 1000 as the only admin.
func EngineTestFixture() (*Engine, *store.MemStore, *CaptureActions) {
	st := store.NewMemStore()
	st.AddKeyword("casino")
	st.AddKeyword("crypto")

	cache := wordlist.NewCache()
	if _, err := cache.Load(context.Background(), st); err != nil {
		panic(err)
	}

	actions := NewCaptureActions()
	eng := &Engine{
		Logger:   slog.Default(),
		Store:    st,
		Wordlist: cache,
		Counters: countstore.NewMemCountStore(),
		Actions:  actions,
		Admins:   NewAdminSet([]int64{1000}),
		Links:    rules.LinkPolicy{AllowedDomains: map[string]bool{"example.com": true}},
	}
	return eng, st, actions
}
