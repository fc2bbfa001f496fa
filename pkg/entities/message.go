package entities

import "strings"

// TelegramServiceUserID is the id Telegram uses as the sender of posts relayed
// from a linked channel into its discussion group.
const TelegramServiceUserID int64 = 777000

type User struct {
	ID        int64
	FirstName string
	LastName  string
	UserName  string
}

// FullName joins first and last name the way Telegram clients display it.
func (u *User) FullName() string {
	if u == nil {
		return ""
	}

	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Message is an immutable view of a group message. Zero values of the optional
// identifiers (SenderChatID, ForwardFromChatID, ThreadID) mean "not present".
type Message struct {
	ID     int
	ChatID int64

	// From is nil for anonymous admins and channel posts
	From *User

	// SenderChatID is set when the message was sent on behalf of a chat
	SenderChatID int64

	// IsAutomaticForward marks channel posts forwarded into the linked group
	IsAutomaticForward bool

	// ForwardFromChatID is the origin chat of a forwarded message
	ForwardFromChatID int64

	// ThreadID is the message thread the message belongs to
	ThreadID int

	// ReplyTo is the message this one replies to, nil if unknown or absent
	ReplyTo *Message

	Text    string
	Caption string

	// Service holds the name of the service event (new_chat_members,
	// pinned_message, ...) or is empty for regular messages
	Service string

	IsCommand bool
}

// Content returns the trimmed text or caption of the message.
func (m *Message) Content() string {
	if m == nil {
		return ""
	}

	if m.Text != "" {
		return strings.TrimSpace(m.Text)
	}

	return strings.TrimSpace(m.Caption)
}

func (m *Message) IsService() bool {
	return m != nil && m.Service != ""
}

// SenderID returns the id of the sending user or 0 if there is none.
func (m *Message) SenderID() int64 {
	if m == nil || m.From == nil {
		return 0
	}

	return m.From.ID
}

// Shallow returns a copy of the message without its reply reference.
func (m *Message) Shallow() *Message {
	if m == nil {
		return nil
	}

	c := *m
	c.ReplyTo = nil
	return &c
}

// SendOptions controls how an outgoing message is delivered.
type SendOptions struct {
	ReplyToID      int
	HTML           bool
	DisablePreview bool
}
