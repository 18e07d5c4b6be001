package telegram

import (
	"context"

	"github.com/vigilbot/vigil/moderation/event"
)

// BotActions adapts the Bot API client to the side-effect interface the
// moderation engine calls into.
type BotActions struct {
	Client *Client
}

func (a *BotActions) DeleteMessage(ctx context.Context, ref event.MessageRef) error {
	return a.Client.DeleteMessage(ctx, ref.Chat.ID, ref.MessageID)
}

func (a *BotActions) BanUser(ctx context.Context, chat event.ChatRef, userID int64) error {
	return a.Client.BanChatMember(ctx, chat.ID, userID)
}

func (a *BotActions) SendMessage(ctx context.Context, chat event.ChatRef, text string) error {
	return a.Client.SendMessage(ctx, chat.ID, text)
}

func (a *BotActions) SendPoll(ctx context.Context, chat event.ChatRef, question string, options []string, anonymous bool) error {
	return a.Client.SendPoll(ctx, chat.ID, question, options, anonymous)
}
