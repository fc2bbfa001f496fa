package services

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"nuclight.org/thread-guard-bot/app/moderator"
	e "nuclight.org/thread-guard-bot/pkg/entities"
	"nuclight.org/thread-guard-bot/pkg/logger"
)

// Guard is a handler of new group messages. Messages of admins, commands and
// service events are ignored. Every other message is checked for being part of
// a channel post discussion. If it is not, the author is warned (at most once
// per cooldown window), the admin is notified and both the message and the
// warning are deleted after DeleteDelay.
type Guard struct {
	// Log is a logger
	Log logger.Logger

	// Classifier decides whether a message belongs to a discussion thread
	Classifier Classifier

	// Warner warns authors of off-topic messages
	Warner Warner

	// Notifier alerts the admin about off-topic messages
	Notifier Notifier

	// Deleter removes messages later
	Deleter Deleter

	// Admins returns ids of the group administrators
	Admins AdminSource

	// DeleteDelay is the time off-topic messages stay visible
	DeleteDelay time.Duration
}

// HandleMessage handles a group message and returns the action taken. Returned
// action has to be considered even if error is not nil.
func (g *Guard) HandleMessage(ctx context.Context, msg *e.Message) (e.Action, error) {
	if msg == nil {
		return noop, nil
	}

	log := g.Log.With("tg_message_id", msg.ID, "tg_user_id", msg.SenderID())

	if g.isAdmin(ctx, log, msg) {
		log.Debug("message from admin skipped")
		return e.Action{Kind: e.ActionKindNoop, Note: "sender is an admin"}, nil
	}

	if msg.IsCommand || strings.HasPrefix(msg.Content(), "/") {
		return e.Action{Kind: e.ActionKindNoop, Note: "command"}, nil
	}

	if msg.IsService() {
		log.Debug("service message ignored", "service", msg.Service)
		return e.Action{Kind: e.ActionKindNoop, Note: "service message"}, nil
	}

	inThread := g.Classifier.IsInDiscussionThread(ctx, msg)
	log.Info("group message classified", "in_thread", inThread)

	if inThread {
		return e.Action{Kind: e.ActionKindNoop, Note: "in discussion thread"}, nil
	}

	outcome, warnErr := g.Warner.MaybeWarn(ctx, msg)
	if warnErr != nil {
		warnErr = fmt.Errorf("warning sender: %w", warnErr)
	}

	err := g.Notifier.OffTopic(ctx, msg)
	if err != nil {
		log.Error("notifying admin", "error", err)
	}

	toDelete := []int{msg.ID}
	if outcome.Kind == moderator.OutcomeSent && outcome.MessageID != 0 {
		toDelete = append(toDelete, outcome.MessageID)
	}

	if !g.Deleter.Schedule(msg.ChatID, toDelete, g.DeleteDelay) {
		log.Warn("deletion not scheduled, shutting down")
	}

	return e.Action{
		Kind: e.ActionKindWarn,
		Note: fmt.Sprintf("warning %s", outcome.Kind),
	}, warnErr
}

func (g *Guard) isAdmin(ctx context.Context, log logger.Logger, msg *e.Message) bool {
	if msg.From == nil {
		return false
	}

	ids, err := g.Admins.Get(ctx)
	if err != nil {
		log.Warn("refreshing admin list, using cached one", "error", err, "admins", len(ids))
	}

	return slices.Contains(ids, msg.From.ID)
}

type Classifier interface {
	IsInDiscussionThread(ctx context.Context, msg *e.Message) bool
}

type Warner interface {
	MaybeWarn(ctx context.Context, msg *e.Message) (moderator.Outcome, error)
}

type Notifier interface {
	OffTopic(ctx context.Context, msg *e.Message) error
}

type Deleter interface {
	Schedule(chatID int64, messageIDs []int, delay time.Duration) bool
}

// AdminSource is satisfied by *cached.Value[[]int64].
type AdminSource interface {
	Get(ctx context.Context) ([]int64, error)
}

var noop = e.Action{
	Kind: e.ActionKindNoop,
	Note: "",
}
