package thread

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	e "nuclight.org/thread-guard-bot/pkg/entities"
)

// History remembers recently seen group messages and the messages they replied
// to. The Bot API only attaches a single level of reply_to_message, so deeper
// ancestors of a reply chain are looked up here.
type History struct {
	entries *lru.Cache[historyKey, historyEntry]
}

type historyKey struct {
	chatID    int64
	messageID int
}

type historyEntry struct {
	msg      *e.Message
	parentID int
}

// NewHistory creates a history keeping at most size messages.
func NewHistory(size int) (*History, error) {
	cache, err := lru.New[historyKey, historyEntry](size)
	if err != nil {
		return nil, fmt.Errorf("creating lru cache: %w", err)
	}

	return &History{entries: cache}, nil
}

// Remember stores the message and, if attached, its direct parent.
func (h *History) Remember(msg *e.Message) {
	if msg == nil {
		return
	}

	entry := historyEntry{msg: msg.Shallow()}
	if msg.ReplyTo != nil {
		entry.parentID = msg.ReplyTo.ID
		h.rememberParent(msg.ChatID, msg.ReplyTo)
	}

	h.entries.Add(historyKey{chatID: msg.ChatID, messageID: msg.ID}, entry)
}

// rememberParent keeps a parent seen only as a reply target without
// overwriting what is already known about its own ancestry.
func (h *History) rememberParent(chatID int64, parent *e.Message) {
	key := historyKey{chatID: chatID, messageID: parent.ID}
	if h.entries.Contains(key) {
		return
	}

	p := parent.Shallow()
	if p.ChatID == 0 {
		p.ChatID = chatID
	}

	entry := historyEntry{msg: p}
	if parent.ReplyTo != nil {
		entry.parentID = parent.ReplyTo.ID
	}

	h.entries.Add(key, entry)
}

// Parent implements Parents: an attached reply reference wins, otherwise the
// remembered parent is returned.
func (h *History) Parent(_ context.Context, msg *e.Message) (*e.Message, error) {
	if msg == nil {
		return nil, nil
	}

	if msg.ReplyTo != nil {
		return msg.ReplyTo, nil
	}

	entry, ok := h.entries.Get(historyKey{chatID: msg.ChatID, messageID: msg.ID})
	if !ok || entry.parentID == 0 {
		return nil, nil
	}

	parent, ok := h.entries.Get(historyKey{chatID: msg.ChatID, messageID: entry.parentID})
	if !ok {
		return nil, nil
	}

	return parent.msg, nil
}

// Len returns the number of remembered messages.
func (h *History) Len() int {
	return h.entries.Len()
}
