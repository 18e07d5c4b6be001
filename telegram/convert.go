package telegram

import (
	"strings"
	"time"

	"github.com/vigilbot/vigil/moderation/event"
)

// Translated is the tagged union produced from a single update: exactly one
// field is non-nil. Updates that carry nothing of interest (no message,
// edits, channels we ignore) translate to the zero value.
type Translated struct {
	Message   *event.MessageEvent
	NewMember *event.NewMemberEvent
	Command   *event.CommandEvent
}

func userRef(u *User) event.UserRef {
	if u == nil {
		return event.UserRef{}
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	return event.UserRef{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: name,
		IsBot:       u.IsBot,
	}
}

func chatRef(c Chat) event.ChatRef {
	return event.ChatRef{ID: c.ID, Type: c.Type}
}

func entities(src []MessageEntity) []event.Entity {
	if len(src) == 0 {
		return nil
	}
	out := make([]event.Entity, len(src))
	for i, e := range src {
		out[i] = event.Entity{Type: e.Type, Offset: e.Offset, Length: e.Length, URL: e.URL}
	}
	return out
}

// commandName extracts the bare command from message text, dropping the
// leading slash and any @botname suffix. Returns ok=false if the text is
// not a command.
func commandName(text string) (name, args string, ok bool) {
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	rest := text[1:]
	if rest == "" {
		return "", "", false
	}
	name = rest
	if i := strings.IndexByte(rest, ' '); i >= 0 {
		name = rest[:i]
		args = strings.TrimSpace(rest[i+1:])
	}
	if j := strings.IndexByte(name, '@'); j >= 0 {
		name = name[:j]
	}
	if name == "" {
		return "", "", false
	}
	return name, args, true
}

// Translate maps a Bot API update into a moderation event. Receipt time is
// taken from the message timestamp when present so that replays during
// catch-up carry their original time.
func Translate(up *Update) Translated {
	if up == nil || up.Message == nil {
		return Translated{}
	}
	m := up.Message
	chat := chatRef(m.Chat)
	ref := event.MessageRef{Chat: chat, MessageID: m.MessageID}
	received := time.Now()
	if m.Date > 0 {
		received = time.Unix(m.Date, 0)
	}

	if len(m.NewChatMembers) > 0 {
		joined := make([]event.UserRef, len(m.NewChatMembers))
		for i := range m.NewChatMembers {
			joined[i] = userRef(&m.NewChatMembers[i])
		}
		return Translated{NewMember: &event.NewMemberEvent{
			Chat:     chat,
			Ref:      ref,
			Joined:   joined,
			Received: received,
		}}
	}

	from := userRef(m.From)

	if name, args, ok := commandName(m.Text); ok {
		var replyTo *event.UserRef
		if m.ReplyToMessage != nil && m.ReplyToMessage.From != nil {
			r := userRef(m.ReplyToMessage.From)
			replyTo = &r
		}
		return Translated{Command: &event.CommandEvent{
			From:     from,
			Chat:     chat,
			Ref:      ref,
			Name:     name,
			Args:     args,
			ReplyTo:  replyTo,
			Received: received,
		}}
	}

	return Translated{Message: &event.MessageEvent{
		From:     from,
		Chat:     chat,
		Ref:      ref,
		Text:     m.Text,
		Entities: entities(m.Entities),
		Received: received,
	}}
}
