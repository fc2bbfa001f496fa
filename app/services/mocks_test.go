package services

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"nuclight.org/thread-guard-bot/app/moderator"
	e "nuclight.org/thread-guard-bot/pkg/entities"
)

type classifierMock struct{ mock.Mock }

func (m *classifierMock) IsInDiscussionThread(ctx context.Context, msg *e.Message) bool {
	return m.Called(ctx, msg).Bool(0)
}

type warnerMock struct{ mock.Mock }

func (m *warnerMock) MaybeWarn(ctx context.Context, msg *e.Message) (moderator.Outcome, error) {
	args := m.Called(ctx, msg)
	return args.Get(0).(moderator.Outcome), args.Error(1)
}

type notifierMock struct{ mock.Mock }

func (m *notifierMock) OffTopic(ctx context.Context, msg *e.Message) error {
	return m.Called(ctx, msg).Error(0)
}

type deleterMock struct{ mock.Mock }

func (m *deleterMock) Schedule(chatID int64, messageIDs []int, delay time.Duration) bool {
	return m.Called(chatID, messageIDs, delay).Bool(0)
}

type adminsMock struct{ mock.Mock }

func (m *adminsMock) Get(ctx context.Context) ([]int64, error) {
	args := m.Called(ctx)
	ids, _ := args.Get(0).([]int64)
	return ids, args.Error(1)
}

type senderMock struct{ mock.Mock }

func (m *senderMock) SendMessage(ctx context.Context, chatID int64, text string, opts e.SendOptions) (int, error) {
	args := m.Called(ctx, chatID, text, opts)
	return args.Int(0), args.Error(1)
}

type chainsMock struct{ mock.Mock }

func (m *chainsMock) DescribeChain(ctx context.Context, msg *e.Message, maxDepth int) string {
	return m.Called(ctx, msg, maxDepth).String(0)
}

type statsMock struct{ mock.Mock }

func (m *statsMock) FormatStats(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}
