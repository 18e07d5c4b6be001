package moderation

import (
	"context"

	"github.com/vigilbot/vigil/moderation/event"
)

// Actions is the outbound side of the message source: the side effects the
// engine can issue against the chat. Implementations are expected to be
// safe for concurrent use.
type Actions interface {
	DeleteMessage(ctx context.Context, ref event.MessageRef) error
	BanUser(ctx context.Context, chat event.ChatRef, userID int64) error
	SendMessage(ctx context.Context, chat event.ChatRef, text string) error
	// SendPoll creates a poll; moderation polls are always non-anonymous.
	SendPoll(ctx context.Context, chat event.ChatRef, question string, options []string, anonymous bool) error
}
