package moderation

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/vigilbot/vigil/moderation/event"
	"github.com/vigilbot/vigil/store"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func groupMessage(userID int64, text string) *event.MessageEvent {
	return &event.MessageEvent{
		From:     event.UserRef{ID: userID, Username: "someone", DisplayName: "Someone"},
		Chat:     event.ChatRef{ID: -5001, Type: "supergroup"},
		Ref:      event.MessageRef{Chat: event.ChatRef{ID: -5001, Type: "supergroup"}, MessageID: 42},
		Text:     text,
		Received: time.Now().UTC(),
	}
}

func TestEngineCleanMessage(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, _, actions := EngineTestFixture()

	assert.NoError(eng.ProcessMessage(ctx, groupMessage(123, "hello friends")))
	assert.Empty(actions.Deleted)
	assert.Empty(actions.Messages)
	assert.Empty(actions.Banned)
}

func TestEngineKeywordViolation(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, st, actions := EngineTestFixture()

	assert.NoError(eng.ProcessMessage(ctx, groupMessage(123, "visit casino.biz now")))

	assert.Equal(1, actions.DeletedCount())
	assert.Empty(actions.Banned)
	require.Len(t, actions.Messages, 1)
	assert.Contains(actions.Messages[0], "Warning 1/3")

	u, err := st.GetUser(ctx, 123)
	assert.NoError(err)
	assert.Equal(1, u.WarningCount)
	assert.False(u.Banned)
}

func TestEngineEscalationToBan(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, st, actions := EngineTestFixture()

	for i := 0; i < 3; i++ {
		assert.NoError(eng.ProcessMessage(ctx, groupMessage(123, "crypto pump today")))
	}

	assert.Equal(3, actions.DeletedCount())
	assert.Equal(1, actions.BanCount(123))

	u, err := st.GetUser(ctx, 123)
	assert.NoError(err)
	assert.Equal(3, u.WarningCount)
	assert.True(u.Banned)

	// ban notice is the third message sent
	require.Len(t, actions.Messages, 3)
	assert.Contains(actions.Messages[2], "banned")
}

func TestEngineBannedUserIsTerminal(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, st, actions := EngineTestFixture()

	for i := 0; i < 3; i++ {
		assert.NoError(eng.ProcessMessage(ctx, groupMessage(123, "crypto again")))
	}
	assert.Equal(1, actions.BanCount(123))

	// further violations: still deleted, never re-warned, never re-banned
	assert.NoError(eng.ProcessMessage(ctx, groupMessage(123, "casino casino")))
	assert.Equal(4, actions.DeletedCount())
	assert.Equal(1, actions.BanCount(123))

	u, err := st.GetUser(ctx, 123)
	assert.NoError(err)
	assert.Equal(3, u.WarningCount)
}

func TestEngineAdminsExempt(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, _, actions := EngineTestFixture()

	// user 1000 is the fixture admin
	assert.NoError(eng.ProcessMessage(ctx, groupMessage(1000, "casino crypto t.me/spam")))
	assert.Empty(actions.Deleted)
	assert.Empty(actions.Messages)
}

func TestEnginePrivateChatNotModerated(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, _, actions := EngineTestFixture()

	evt := groupMessage(123, "casino")
	evt.Chat.Type = "private"
	assert.NoError(eng.ProcessMessage(ctx, evt))
	assert.Empty(actions.Deleted)
}

func TestEngineFailsClosedOnDeleteFailure(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, st, actions := EngineTestFixture()
	actions.FailDeletes = true

	err := eng.ProcessMessage(ctx, groupMessage(123, "casino"))
	assert.ErrorIs(err, errTransportUnavailable)

	// no sanction accounting when the deletion could not be confirmed
	_, err = st.GetUser(ctx, 123)
	assert.ErrorIs(err, store.ErrNotFound)
	assert.Empty(actions.Banned)
	assert.Empty(actions.Messages)
}

type unavailableStore struct {
	*store.MemStore
}

func (s unavailableStore) GetUser(ctx context.Context, userID int64) (*store.UserRecord, error) {
	return nil, store.ErrUnavailable
}

func TestEngineFailsClosedOnStoreFailure(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, st, actions := EngineTestFixture()
	eng.Store = unavailableStore{st}

	err := eng.ProcessMessage(ctx, groupMessage(123, "casino"))
	assert.ErrorIs(err, store.ErrUnavailable)
	assert.Empty(actions.Deleted)
	assert.Empty(actions.Banned)
}

func TestEngineConcurrentViolationsNoLostUpdates(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, st, _ := EngineTestFixture()
	// raise the threshold so no ban interferes with counting
	eng.BanThreshold = 1000

	const k = 25
	var wg sync.WaitGroup
	for i := 0; i < k; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(eng.ProcessMessage(ctx, groupMessage(123, "casino")))
		}()
	}
	wg.Wait()

	u, err := st.GetUser(ctx, 123)
	assert.NoError(err)
	assert.Equal(k, u.WarningCount)
}

func TestEngineConcurrentViolationsBan(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, st, actions := EngineTestFixture()

	const k = 10
	var wg sync.WaitGroup
	for i := 0; i < k; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(eng.ProcessMessage(ctx, groupMessage(123, "casino")))
		}()
	}
	wg.Wait()

	// every violation is deleted and the user ends up banned. A race of
	// simultaneous violations may issue the (idempotent) ban action more
	// than once, but never zero times.
	assert.Equal(k, actions.DeletedCount())
	assert.GreaterOrEqual(actions.BanCount(123), 1)
	u, err := st.GetUser(ctx, 123)
	assert.NoError(err)
	assert.True(u.Banned)
}

type flakyBanActions struct {
	*CaptureActions
	lk       sync.Mutex
	failures int
}

func (a *flakyBanActions) BanUser(ctx context.Context, chat event.ChatRef, userID int64) error {
	a.lk.Lock()
	if a.failures > 0 {
		a.failures--
		a.lk.Unlock()
		return errTransportUnavailable
	}
	a.lk.Unlock()
	return a.CaptureActions.BanUser(ctx, chat, userID)
}

func TestEngineBanRetriedAfterTransportFailure(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, st, capture := EngineTestFixture()
	actions := &flakyBanActions{CaptureActions: capture, failures: 1}
	eng.Actions = actions

	// first two violations warn as usual
	assert.NoError(eng.ProcessMessage(ctx, groupMessage(123, "casino")))
	assert.NoError(eng.ProcessMessage(ctx, groupMessage(123, "casino")))

	// third reaches the threshold, but the ban action fails in transit
	err := eng.ProcessMessage(ctx, groupMessage(123, "casino"))
	assert.Error(err)
	u, err := st.GetUser(ctx, 123)
	assert.NoError(err)
	assert.Equal(3, u.WarningCount)
	assert.False(u.Banned)
	assert.Equal(0, capture.BanCount(123))

	// the next violation retries the ban even though the count overshot
	assert.NoError(eng.ProcessMessage(ctx, groupMessage(123, "casino")))
	assert.Equal(1, capture.BanCount(123))
	u, err = st.GetUser(ctx, 123)
	assert.NoError(err)
	assert.True(u.Banned)
}

func TestEngineActivityTouch(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, st, _ := EngineTestFixture()

	evt := groupMessage(123, "hello friends")
	assert.NoError(eng.ProcessMessage(ctx, evt))

	// the touch is fire-and-forget
	assert.Eventually(func() bool {
		u, err := st.GetUser(ctx, 123)
		return err == nil && u.LastActive.Equal(evt.Received)
	}, time.Second, 5*time.Millisecond)
}

type flakyTouchStore struct {
	*store.MemStore
	lk       sync.Mutex
	failures int
	calls    int
}

func (s *flakyTouchStore) TouchUser(ctx context.Context, userID int64, username, displayName string, now time.Time) error {
	s.lk.Lock()
	s.calls++
	if s.failures > 0 {
		s.failures--
		s.lk.Unlock()
		return store.ErrUnavailable
	}
	s.lk.Unlock()
	return s.MemStore.TouchUser(ctx, userID, username, displayName, now)
}

func (s *flakyTouchStore) callCount() int {
	s.lk.Lock()
	defer s.lk.Unlock()
	return s.calls
}

func TestEngineActivityTouchRetriesAfterFailure(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, st, _ := EngineTestFixture()
	flaky := &flakyTouchStore{MemStore: st, failures: 1}
	eng.Store = flaky
	eng.ActivityDebounce = expirable.NewLRU[int64, bool](16, nil, time.Minute)

	// first touch fails; the debounce must stay cold
	assert.NoError(eng.ProcessMessage(ctx, groupMessage(123, "hello friends")))
	assert.Eventually(func() bool {
		return flaky.callCount() == 1
	}, time.Second, 5*time.Millisecond)
	_, err := st.GetUser(ctx, 123)
	assert.ErrorIs(err, store.ErrNotFound)

	// the next event retries, lands, and warms the debounce
	assert.NoError(eng.ProcessMessage(ctx, groupMessage(123, "hello again")))
	assert.Eventually(func() bool {
		u, err := st.GetUser(ctx, 123)
		if err != nil || u.LastActive.IsZero() {
			return false
		}
		_, warm := eng.ActivityDebounce.Get(123)
		return warm
	}, time.Second, 5*time.Millisecond)

	// once a touch succeeded, further events are debounced
	assert.NoError(eng.ProcessMessage(ctx, groupMessage(123, "still here")))
	assert.Equal(2, flaky.callCount())
}

func TestEngineNewMemberWelcome(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, _, actions := EngineTestFixture()
	eng.SelfID = 9999

	evt := &event.NewMemberEvent{
		Chat: event.ChatRef{ID: -5001, Type: "supergroup"},
		Ref:  event.MessageRef{Chat: event.ChatRef{ID: -5001}, MessageID: 77},
		Joined: []event.UserRef{
			{ID: 123, DisplayName: "Alice"},
			{ID: 456, DisplayName: "HelperBot", IsBot: true},
			{ID: 9999, DisplayName: "Vigil"},
		},
		Received: time.Now().UTC(),
	}
	assert.NoError(eng.ProcessNewMember(ctx, evt))

	// join service message deleted; only the human, non-self member welcomed
	assert.Equal(1, actions.DeletedCount())
	require.Len(t, actions.Messages, 1)
	assert.Contains(actions.Messages[0], "Welcome, Alice")

	// re-joining the same day does not produce a second welcome
	assert.NoError(eng.ProcessNewMember(ctx, evt))
	assert.Len(actions.Messages, 1)
}

func TestEngineRecoversFromPanic(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, _, _ := EngineTestFixture()
	eng.Actions = panickyActions{}

	// one bad event must not crash the processing loop
	assert.NotPanics(func() {
		_ = eng.ProcessMessage(ctx, groupMessage(123, "casino"))
	})
}

type panickyActions struct{}

func (panickyActions) DeleteMessage(ctx context.Context, ref event.MessageRef) error {
	panic("transport exploded")
}
func (panickyActions) BanUser(ctx context.Context, chat event.ChatRef, userID int64) error {
	panic("transport exploded")
}
func (panickyActions) SendMessage(ctx context.Context, chat event.ChatRef, text string) error {
	panic("transport exploded")
}
func (panickyActions) SendPoll(ctx context.Context, chat event.ChatRef, question string, options []string, anonymous bool) error {
	panic("transport exploded")
}

func TestDisplayName(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("Alice", displayName(event.UserRef{ID: 1, Username: "alice", DisplayName: "Alice"}))
	assert.Equal("@alice", displayName(event.UserRef{ID: 1, Username: "alice"}))
	assert.Equal(fmt.Sprintf("User_%d", 1), displayName(event.UserRef{ID: 1}))
}
