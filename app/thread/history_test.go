package thread

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	e "nuclight.org/thread-guard-bot/pkg/entities"
)

// deliver mimics the Bot API: only one level of reply is attached.
func deliver(msg *e.Message) *e.Message {
	out := msg.Shallow()
	if msg.ReplyTo != nil {
		out.ReplyTo = msg.ReplyTo.Shallow()
	}
	return out
}

func TestHistoryResolvesDeepChains(t *testing.T) {
	ctx := context.Background()
	h, err := NewHistory(100)
	require.NoError(t, err)

	post := &e.Message{ID: 1, ChatID: groupID, IsAutomaticForward: true, SenderChatID: channelID}
	top := chain(post, 4)

	var received []*e.Message
	for m := top; m != nil; m = m.ReplyTo {
		received = append([]*e.Message{deliver(m)}, received...)
	}
	for _, m := range received {
		h.Remember(m)
	}

	attachedOnly := &Classifier{ChannelID: channelID}
	assert.False(t, attachedOnly.IsInDiscussionThread(ctx, received[len(received)-1]))

	withHistory := &Classifier{ChannelID: channelID, Parents: h}
	assert.True(t, withHistory.IsInDiscussionThread(ctx, received[len(received)-1]))
}

func TestHistoryKeepsKnownAncestry(t *testing.T) {
	ctx := context.Background()
	h, err := NewHistory(10)
	require.NoError(t, err)

	root := userMessage(1, 10)
	mid := userMessage(2, 11)
	mid.ReplyTo = root
	h.Remember(deliver(mid))

	// a later reply carries mid as a shallow parent, which must not erase
	// the fact that mid replies to root
	leaf := userMessage(3, 12)
	leaf.ReplyTo = mid.Shallow()
	h.Remember(leaf)

	parent, err := h.Parent(ctx, mid.Shallow())
	require.NoError(t, err)
	require.NotNil(t, parent)
	assert.Equal(t, 1, parent.ID)
}

func TestHistoryUnknownMessage(t *testing.T) {
	h, err := NewHistory(10)
	require.NoError(t, err)

	parent, err := h.Parent(context.Background(), userMessage(5, 1))
	require.NoError(t, err)
	assert.Nil(t, parent)

	parent, err = h.Parent(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, parent)
}

func TestHistoryIsBounded(t *testing.T) {
	h, err := NewHistory(3)
	require.NoError(t, err)

	for i := 1; i <= 10; i++ {
		h.Remember(userMessage(i, 1))
	}

	assert.Equal(t, 3, h.Len())
}

func TestNewHistoryRejectsBadSize(t *testing.T) {
	_, err := NewHistory(0)
	assert.Error(t, err)
}
