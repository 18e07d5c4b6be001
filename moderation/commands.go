package moderation

import (
	"context"
	"fmt"

	"github.com/vigilbot/vigil/moderation/event"
)

// ProcessCommand dispatches privileged commands. Gate failures return
// ErrUnauthorized with no state change and no detail beyond a generic
// denial; unknown commands are ignored.
func (e *Engine) ProcessCommand(ctx context.Context, evt *event.CommandEvent) error {
	defer func() {
		if r := recover(); r != nil {
			e.Logger.Error("moderation event execution exception", "err", r, "command", evt.Name, "user", evt.From.ID)
		}
	}()
	eventsProcessed.WithLabelValues("command").Inc()

	switch evt.Name {
	case "reload":
		return e.cmdReload(ctx, evt)
	case "event":
		return e.cmdEvent(ctx, evt)
	case "unwarn":
		return e.cmdUnwarn(ctx, evt)
	default:
		e.Logger.Debug("ignoring unknown command", "command", evt.Name)
		return nil
	}
}

// cmdReload refreshes the keyword cache from the store. Restricted to
// admins in a private chat: reloads must never be triggerable from a public
// group.
func (e *Engine) cmdReload(ctx context.Context, evt *event.CommandEvent) error {
	if !e.Admins.Contains(evt.From.ID) || !evt.Chat.IsPrivate() {
		return ErrUnauthorized
	}

	sctx, cancel := context.WithTimeout(ctx, e.storeTimeout())
	defer cancel()

	snap, err := e.Wordlist.Load(sctx, e.Store)
	if err != nil {
		// previous snapshot stays active
		wordlistReloads.WithLabelValues("error").Inc()
		e.Logger.Error("wordlist reload failed, keeping previous snapshot", "err", err)
		if serr := e.Actions.SendMessage(ctx, evt.Chat, "⚠️ Reload failed; the previous keyword list is still active."); serr != nil {
			e.Logger.Warn("sending reload reply failed", "err", serr)
		}
		return err
	}
	wordlistReloads.WithLabelValues("ok").Inc()
	e.Logger.Info("wordlist reloaded", "keywords", len(snap.Entries), "generation", snap.Generation)
	return e.Actions.SendMessage(ctx, evt.Chat, fmt.Sprintf("✅ Keyword list reloaded! Total: %d", len(snap.Entries)))
}

// cmdEvent creates a non-anonymous attendance poll in the group.
func (e *Engine) cmdEvent(ctx context.Context, evt *event.CommandEvent) error {
	if !e.Admins.Contains(evt.From.ID) || !evt.Chat.IsGroup() {
		return ErrUnauthorized
	}
	if evt.Args == "" {
		return e.Actions.SendMessage(ctx, evt.Chat, "Give the event a name. Example: /event Movie night")
	}
	question := fmt.Sprintf("📅 %s. Who's in?", evt.Args)
	options := []string{"I'm in! ✅", "Thinking 🤔", "Not coming ❌"}
	return e.Actions.SendPoll(ctx, evt.Chat, question, options, false)
}

// cmdUnwarn removes one warning from the author of the replied-to message.
func (e *Engine) cmdUnwarn(ctx context.Context, evt *event.CommandEvent) error {
	if !e.Admins.Contains(evt.From.ID) || !evt.Chat.IsGroup() {
		return ErrUnauthorized
	}
	target := evt.ReplyTo
	if target == nil {
		return e.Actions.SendMessage(ctx, evt.Chat, "⚠️ Use /unwarn as a reply to the target user's message.")
	}
	if e.Admins.Contains(target.ID) {
		return e.Actions.SendMessage(ctx, evt.Chat, "❌ Admin warnings cannot be removed.")
	}
	if target.IsBot {
		return e.Actions.SendMessage(ctx, evt.Chat, "❌ Moderation commands do not apply to bots.")
	}

	sctx, cancel := context.WithTimeout(ctx, e.storeTimeout())
	defer cancel()

	newCount, err := e.Store.DecrementWarning(sctx, target.ID)
	if err != nil {
		eventsFailed.WithLabelValues("command").Inc()
		return fmt.Errorf("removing warning: %w", err)
	}
	e.Logger.Info("warning revoked", "target", target.ID, "by", evt.From.ID, "warnings", newCount)
	return e.Actions.SendMessage(ctx, evt.Chat, fmt.Sprintf("✅ Removed one warning from %s.\nCurrent count: %d.", displayName(*target), newCount))
}
