// Package event defines the typed events the moderation engine consumes.
//
// Events are an explicit tagged enumeration: the transport translates its
// own update shapes into these types, and the engine has exactly one
// dispatch method per type. No handler registration, no reflection.
package event

import "time"

// UserRef identifies the author of an event.
type UserRef struct {
	ID          int64
	Username    string
	DisplayName string
	IsBot       bool
}

// ChatRef identifies the conversation an event happened in.
type ChatRef struct {
	ID int64
	// Type is the transport's chat type: "private", "group", "supergroup".
	Type string
}

// IsPrivate reports whether the chat is a one-on-one conversation with the
// bot. Privileged cache reloads are only accepted from private chats.
func (c ChatRef) IsPrivate() bool {
	return c.Type == "private"
}

// IsGroup reports whether the chat is a group conversation.
func (c ChatRef) IsGroup() bool {
	return c.Type == "group" || c.Type == "supergroup"
}

// MessageRef identifies a single message for outbound actions (delete).
type MessageRef struct {
	Chat      ChatRef
	MessageID int64
}

// Entity is a span annotation on message text, as reported by the
// transport: links, mentions, commands.
type Entity struct {
	Type   string
	Offset int
	Length int
	// URL is set for "text_link" entities, where the target is not part of
	// the visible text.
	URL string
}

// MessageEvent is an ordinary inbound group message.
type MessageEvent struct {
	From     UserRef
	Chat     ChatRef
	Ref      MessageRef
	Text     string
	Entities []Entity
	Received time.Time
}

// NewMemberEvent is delivered when users join a chat. Ref points at the
// join service message, if the transport produced one.
type NewMemberEvent struct {
	Chat     ChatRef
	Ref      MessageRef
	Joined   []UserRef
	Received time.Time
}

// CommandEvent is a bot command addressed to the moderation engine.
type CommandEvent struct {
	From UserRef
	Chat ChatRef
	Ref  MessageRef
	// Name is the bare command, without slash or bot suffix: "reload".
	Name string
	// Args is the free text following the command name.
	Args string
	// ReplyTo is the author of the message this command replies to, when the
	// transport reports one. Used by /unwarn to identify the target.
	ReplyTo  *UserRef
	Received time.Time
}
