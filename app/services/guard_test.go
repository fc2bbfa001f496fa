package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"nuclight.org/thread-guard-bot/app/moderator"
	e "nuclight.org/thread-guard-bot/pkg/entities"
	"nuclight.org/thread-guard-bot/pkg/logger"
)

const (
	groupID = int64(-1001)
	adminID = int64(1)
	delay   = 10 * time.Second
)

type guardMocks struct {
	classifier *classifierMock
	warner     *warnerMock
	notifier   *notifierMock
	deleter    *deleterMock
	admins     *adminsMock
}

func newGuard(t *testing.T) (*Guard, guardMocks) {
	m := guardMocks{
		classifier: &classifierMock{},
		warner:     &warnerMock{},
		notifier:   &notifierMock{},
		deleter:    &deleterMock{},
		admins:     &adminsMock{},
	}

	t.Cleanup(func() {
		m.classifier.AssertExpectations(t)
		m.warner.AssertExpectations(t)
		m.notifier.AssertExpectations(t)
		m.deleter.AssertExpectations(t)
		m.admins.AssertExpectations(t)
	})

	g := &Guard{
		Log:         logger.Discard(),
		Classifier:  m.classifier,
		Warner:      m.warner,
		Notifier:    m.notifier,
		Deleter:     m.deleter,
		Admins:      m.admins,
		DeleteDelay: delay,
	}

	return g, m
}

func groupMessage(id int, userID int64, text string) *e.Message {
	return &e.Message{ID: id, ChatID: groupID, From: &e.User{ID: userID}, Text: text}
}

func TestGuardWarnsOffTopicMessage(t *testing.T) {
	ctx := context.Background()
	g, m := newGuard(t)
	msg := groupMessage(10, 42, "hello")

	m.admins.On("Get", ctx).Return([]int64{adminID}, nil)
	m.classifier.On("IsInDiscussionThread", ctx, msg).Return(false)
	m.warner.On("MaybeWarn", ctx, msg).Return(moderator.Outcome{Kind: moderator.OutcomeSent, MessageID: 11}, nil)
	m.notifier.On("OffTopic", ctx, msg).Return(nil)
	m.deleter.On("Schedule", groupID, []int{10, 11}, delay).Return(true)

	act, err := g.HandleMessage(ctx, msg)
	require.NoError(t, err)
	assert.Equal(t, e.ActionKindWarn, act.Kind)
	assert.Equal(t, "warning sent", act.Note)
}

func TestGuardSuppressedWarningDeletesOriginalOnly(t *testing.T) {
	ctx := context.Background()
	g, m := newGuard(t)
	msg := groupMessage(10, 42, "again")

	m.admins.On("Get", ctx).Return([]int64{adminID}, nil)
	m.classifier.On("IsInDiscussionThread", ctx, msg).Return(false)
	m.warner.On("MaybeWarn", ctx, msg).Return(moderator.Outcome{Kind: moderator.OutcomeSuppressed, Remaining: time.Minute}, nil)
	m.notifier.On("OffTopic", ctx, msg).Return(nil)
	m.deleter.On("Schedule", groupID, []int{10}, delay).Return(true)

	act, err := g.HandleMessage(ctx, msg)
	require.NoError(t, err)
	assert.Equal(t, e.ActionKindWarn, act.Kind)
}

func TestGuardWarningFailureStillNotifiesAndDeletes(t *testing.T) {
	ctx := context.Background()
	g, m := newGuard(t)
	msg := groupMessage(10, 42, "hello")
	boom := errors.New("boom")

	m.admins.On("Get", ctx).Return([]int64{adminID}, nil)
	m.classifier.On("IsInDiscussionThread", ctx, msg).Return(false)
	m.warner.On("MaybeWarn", ctx, msg).Return(moderator.Outcome{Kind: moderator.OutcomeFailed, Err: boom}, boom)
	m.notifier.On("OffTopic", ctx, msg).Return(errors.New("admin unreachable"))
	m.deleter.On("Schedule", groupID, []int{10}, delay).Return(true)

	act, err := g.HandleMessage(ctx, msg)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, e.ActionKindWarn, act.Kind)
	assert.Equal(t, "warning failed", act.Note)
}

func TestGuardSkipsMessagesInThread(t *testing.T) {
	ctx := context.Background()
	g, m := newGuard(t)
	msg := groupMessage(10, 42, "on topic")

	m.admins.On("Get", ctx).Return([]int64{adminID}, nil)
	m.classifier.On("IsInDiscussionThread", ctx, msg).Return(true)

	act, err := g.HandleMessage(ctx, msg)
	require.NoError(t, err)
	assert.Equal(t, e.ActionKindNoop, act.Kind)
}

func TestGuardSkips(t *testing.T) {
	tests := []struct {
		name string
		msg  *e.Message
		note string
	}{
		{
			name: "admin",
			msg:  groupMessage(1, adminID, "hi"),
			note: "sender is an admin",
		},
		{
			name: "command entity",
			msg:  &e.Message{ID: 1, ChatID: groupID, From: &e.User{ID: 42}, Text: "/status", IsCommand: true},
			note: "command",
		},
		{
			name: "slash in caption",
			msg:  &e.Message{ID: 1, ChatID: groupID, From: &e.User{ID: 42}, Caption: "  /start"},
			note: "command",
		},
		{
			name: "service",
			msg:  &e.Message{ID: 1, ChatID: groupID, From: &e.User{ID: 42}, Service: "new_chat_members"},
			note: "service message",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			g, m := newGuard(t)
			m.admins.On("Get", ctx).Return([]int64{adminID}, nil)

			act, err := g.HandleMessage(ctx, tt.msg)
			require.NoError(t, err)
			assert.Equal(t, e.ActionKindNoop, act.Kind)
			assert.Equal(t, tt.note, act.Note)
		})
	}
}

func TestGuardUsesStaleAdminsOnRefreshError(t *testing.T) {
	ctx := context.Background()
	g, m := newGuard(t)

	m.admins.On("Get", ctx).Return([]int64{adminID}, errors.New("timeout"))

	act, err := g.HandleMessage(ctx, groupMessage(1, adminID, "hi"))
	require.NoError(t, err)
	assert.Equal(t, "sender is an admin", act.Note)
}

func TestGuardChannelPostWithoutSender(t *testing.T) {
	ctx := context.Background()
	g, m := newGuard(t)
	msg := &e.Message{ID: 5, ChatID: groupID, SenderChatID: 999, Text: "post"}

	m.classifier.On("IsInDiscussionThread", ctx, msg).Return(true)

	act, err := g.HandleMessage(ctx, msg)
	require.NoError(t, err)
	assert.Equal(t, e.ActionKindNoop, act.Kind)
	m.admins.AssertNotCalled(t, "Get", mock.Anything)
}
