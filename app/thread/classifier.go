// Package thread decides whether a group message lives inside a discussion
// thread of a linked channel post.
package thread

import (
	"context"

	e "nuclight.org/thread-guard-bot/pkg/entities"
	"nuclight.org/thread-guard-bot/pkg/logger"
)

// DefaultMaxDepth bounds the reply-ancestry walk when no depth is configured.
const DefaultMaxDepth = 20

// Parents resolves the message a given message replies to. It returns nil
// without an error when the message has no known parent.
type Parents interface {
	Parent(ctx context.Context, msg *e.Message) (*e.Message, error)
}

// AttachedParents follows the ReplyTo references carried by the messages
// themselves.
type AttachedParents struct{}

func (AttachedParents) Parent(_ context.Context, msg *e.Message) (*e.Message, error) {
	if msg == nil {
		return nil, nil
	}

	return msg.ReplyTo, nil
}

// Classifier tells channel posts and discussion thread messages apart from
// messages posted in the general area of the group.
type Classifier struct {
	// Log is a logger, anomalies are reported at debug level
	Log logger.Logger

	// ChannelID is the id of the linked broadcast channel
	ChannelID int64

	// MaxDepth is the number of ancestors inspected, DefaultMaxDepth if zero
	MaxDepth int

	// Parents resolves reply ancestry, AttachedParents if nil
	Parents Parents
}

// IsChannelPost reports whether the message originates from the linked channel,
// either directly or via forwarding. Missing fields count as absent.
func (c *Classifier) IsChannelPost(msg *e.Message) bool {
	if msg == nil {
		return false
	}

	if msg.SenderChatID != 0 {
		return true
	}

	if msg.SenderID() == e.TelegramServiceUserID {
		return true
	}

	if msg.IsAutomaticForward {
		return true
	}

	return c.ChannelID != 0 && msg.ForwardFromChatID == c.ChannelID
}

// IsInDiscussionThread reports whether the message is a channel post, belongs to
// a message thread or replies (directly or through a chain of replies) to such
// a message. The ancestry walk is bounded by MaxDepth, and a message whose
// qualifying ancestor lies deeper is treated as being outside any thread.
func (c *Classifier) IsInDiscussionThread(ctx context.Context, msg *e.Message) bool {
	if msg == nil {
		return false
	}

	if c.IsChannelPost(msg) || msg.ThreadID != 0 {
		return true
	}

	return c.walkAncestors(ctx, msg)
}

func (c *Classifier) walkAncestors(ctx context.Context, msg *e.Message) bool {
	current := msg
	for depth := 0; depth < c.maxDepth(); depth++ {
		parent, err := c.parents().Parent(ctx, current)
		if err != nil {
			c.debug("resolving reply parent", "tg_message_id", current.ID, "depth", depth, "error", err)
			return false
		}

		if parent == nil {
			return false
		}

		if c.IsChannelPost(parent) || parent.ThreadID != 0 {
			return true
		}

		current = parent
	}

	c.debug("reply chain depth limit reached", "tg_message_id", msg.ID, "max_depth", c.maxDepth())
	return false
}

func (c *Classifier) maxDepth() int {
	if c.MaxDepth <= 0 {
		return DefaultMaxDepth
	}
	return c.MaxDepth
}

func (c *Classifier) parents() Parents {
	if c.Parents == nil {
		return AttachedParents{}
	}
	return c.Parents
}

func (c *Classifier) debug(msg string, args ...any) {
	if c.Log != nil {
		c.Log.Debug(msg, args...)
	}
}
