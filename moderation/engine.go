package moderation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/vigilbot/vigil/moderation/countstore"
	"github.com/vigilbot/vigil/moderation/event"
	"github.com/vigilbot/vigil/moderation/helpers"
	"github.com/vigilbot/vigil/moderation/rules"
	"github.com/vigilbot/vigil/moderation/wordlist"
	"github.com/vigilbot/vigil/store"
)

// ErrUnauthorized is returned when a privileged command fails its gate. It
// deliberately carries no detail about which check failed.
var ErrUnauthorized = errors.New("unauthorized")

const (
	// DefaultBanThreshold is the warning count at which a user is banned.
	DefaultBanThreshold = 3
	// DefaultStoreTimeout bounds every persistent store call made while
	// processing a single event.
	DefaultStoreTimeout = 5 * time.Second
)

// runtime for classifying messages, managing warning state, and issuing
// moderation actions.
//
// TODO: careful when initializing: several fields should not be null or zero, even though they are pointer type.
type Engine struct {
	Logger   *slog.Logger
	Store    store.Store
	Wordlist *wordlist.Cache
	Counters countstore.CountStore
	Actions  Actions
	Admins   AdminSet
	Links    rules.LinkPolicy
	// BanThreshold defaults to DefaultBanThreshold when zero.
	BanThreshold int
	// StoreTimeout defaults to DefaultStoreTimeout when zero.
	StoreTimeout time.Duration
	// SelfID is the engine's own transport identity, skipped in welcomes.
	SelfID int64
	// ActivityDebounce, when set, suppresses repeat activity upserts for
	// recently seen users. Optional.
	ActivityDebounce *expirable.LRU[int64, bool]
}

func (e *Engine) banThreshold() int {
	if e.BanThreshold > 0 {
		return e.BanThreshold
	}
	return DefaultBanThreshold
}

func (e *Engine) storeTimeout() time.Duration {
	if e.StoreTimeout > 0 {
		return e.StoreTimeout
	}
	return DefaultStoreTimeout
}

// ProcessMessage runs the moderation pipeline for one inbound group
// message: touch activity (best-effort), classify against the current
// wordlist snapshot, then delete and sanction on a violation. Safe to call
// concurrently; warning-count atomicity is delegated to the store.
func (e *Engine) ProcessMessage(ctx context.Context, evt *event.MessageEvent) error {
	// similar to an HTTP server, we want to recover any panics from event processing
	defer func() {
		if r := recover(); r != nil {
			e.Logger.Error("moderation event execution exception", "err", r, "user", evt.From.ID, "chat", evt.Chat.ID)
		}
	}()
	eventsProcessed.WithLabelValues("message").Inc()
	logger := e.Logger.With("user", evt.From.ID, "chat", evt.Chat.ID)

	// activity tracking fails open: never blocks or fails the sanction path
	e.touchUser(evt.From, evt.Received)

	// admins are not auto-moderated, and only group chats are
	if e.Admins.Contains(evt.From.ID) || !evt.Chat.IsGroup() {
		return nil
	}

	verdict := rules.Classify(evt.Text, evt.Entities, e.Wordlist.Current(), e.Links)
	if verdict.Violation == rules.ViolationNone {
		return nil
	}
	violationsFound.WithLabelValues(verdict.Violation.String()).Inc()
	logger = logger.With("violation", verdict.Violation.String(), "textHash", helpers.HashOfString(evt.Text))

	sctx, cancel := context.WithTimeout(ctx, e.storeTimeout())
	defer cancel()

	// a banned user is terminal for warning accounting: messages are still
	// deleted, but never re-warned
	banned := false
	if u, err := e.Store.GetUser(sctx, evt.From.ID); err == nil {
		banned = u.Banned
	} else if !errors.Is(err, store.ErrNotFound) {
		// fail closed: don't sanction on a misread state
		eventsFailed.WithLabelValues("message").Inc()
		return fmt.Errorf("reading user state: %w", err)
	}

	if err := e.Actions.DeleteMessage(ctx, evt.Ref); err != nil {
		eventsFailed.WithLabelValues("message").Inc()
		return fmt.Errorf("deleting violating message: %w", err)
	}

	if banned {
		logger.Info("deleted message from banned user")
		return nil
	}

	newCount, err := e.Store.IncrementWarning(sctx, evt.From.ID)
	if err != nil {
		eventsFailed.WithLabelValues("message").Inc()
		return fmt.Errorf("recording violation: %w", err)
	}

	threshold := e.banThreshold()
	if newCount >= threshold {
		// the banned flag was false above, so the user owes a ban even when
		// the count overshot the threshold: a failed ban action on an earlier
		// violation retries here. MarkBanned lands only after the action
		// succeeds, keeping the flag honest.
		if err := e.Actions.BanUser(ctx, evt.Chat, evt.From.ID); err != nil {
			eventsFailed.WithLabelValues("message").Inc()
			return fmt.Errorf("banning user: %w", err)
		}
		bansIssued.Inc()
		if err := e.Store.MarkBanned(sctx, evt.From.ID); err != nil {
			logger.Error("marking user banned failed", "err", err)
		}
		if err := e.Actions.SendMessage(ctx, evt.Chat, banNotice(evt.From, verdict, threshold)); err != nil {
			logger.Warn("sending ban notice failed", "err", err)
		}
		logger.Warn("user banned", "warnings", newCount)
		return nil
	}
	warnNoticesSent.Inc()
	if err := e.Actions.SendMessage(ctx, evt.Chat, warnNotice(evt.From, verdict, newCount, threshold)); err != nil {
		logger.Warn("sending warn notice failed", "err", err)
	}
	logger.Info("message moderated", "warnings", newCount)
	return nil
}

// ProcessNewMember welcomes new chat members. The join service message is
// deleted best-effort; bots and the engine itself are skipped.
func (e *Engine) ProcessNewMember(ctx context.Context, evt *event.NewMemberEvent) error {
	defer func() {
		if r := recover(); r != nil {
			e.Logger.Error("moderation event execution exception", "err", r, "chat", evt.Chat.ID)
		}
	}()
	eventsProcessed.WithLabelValues("new_member").Inc()

	if err := e.Actions.DeleteMessage(ctx, evt.Ref); err != nil {
		e.Logger.Debug("deleting join message failed", "chat", evt.Chat.ID, "err", err)
	}

	for _, u := range evt.Joined {
		if u.IsBot || u.ID == e.SelfID {
			continue
		}
		e.touchUser(u, evt.Received)
		if e.Counters != nil {
			// don't re-welcome someone bouncing in and out of the chat;
			// dedupe is best-effort
			if c, err := e.Counters.GetCount(ctx, "welcome", fmt.Sprint(u.ID), countstore.PeriodDay); err == nil && c > 0 {
				continue
			}
		}
		if err := e.Actions.SendMessage(ctx, evt.Chat, welcomeNotice(u)); err != nil {
			e.Logger.Warn("sending welcome failed", "user", u.ID, "err", err)
			continue
		}
		if e.Counters != nil {
			if err := e.Counters.Increment(ctx, "welcome", fmt.Sprint(u.ID)); err != nil {
				e.Logger.Debug("welcome counter increment failed", "err", err)
			}
		}
	}
	return nil
}

// touchUser upserts identity and last-active state in the background. Its
// failure is logged, never propagated: activity data is best-effort
// telemetry, not correctness-critical.
func (e *Engine) touchUser(u event.UserRef, now time.Time) {
	if e.ActivityDebounce != nil {
		if _, ok := e.ActivityDebounce.Get(u.ID); ok {
			return
		}
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), e.storeTimeout())
		defer cancel()
		if err := e.Store.TouchUser(ctx, u.ID, u.Username, u.DisplayName, now); err != nil {
			// leave the debounce cold so the next event retries
			e.Logger.Warn("activity touch failed", "user", u.ID, "err", err)
			return
		}
		if e.ActivityDebounce != nil {
			e.ActivityDebounce.Add(u.ID, true)
		}
	}()
}
