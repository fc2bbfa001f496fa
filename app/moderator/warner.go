package moderator

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	e "nuclight.org/thread-guard-bot/pkg/entities"
	"nuclight.org/thread-guard-bot/pkg/logger"
	"nuclight.org/thread-guard-bot/pkg/mutex"
)

// DefaultTemplate is the warning text used when no template is configured.
const DefaultTemplate = "{username}, it looks like you are writing in the general chat, " +
	"while your reply belongs in the comments under a channel post.\n\n" +
	"Please move your message to the comments under the corresponding post."

type OutcomeKind string

const (
	// OutcomeSkipped means the message has no sender to warn
	OutcomeSkipped OutcomeKind = "skipped"

	// OutcomeSuppressed means the sender was warned within the cooldown window
	OutcomeSuppressed OutcomeKind = "suppressed"

	// OutcomeSent means a warning was delivered
	OutcomeSent OutcomeKind = "sent"

	// OutcomeFailed means the warning could not be delivered
	OutcomeFailed OutcomeKind = "failed"
)

// Outcome is the result of a MaybeWarn call.
type Outcome struct {
	Kind OutcomeKind

	// Remaining is the rest of the cooldown window, set when suppressed
	Remaining time.Duration

	// MessageID is the id of the warning message, set when sent
	MessageID int

	// Err is the delivery error, set when failed
	Err error
}

type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string, opts e.SendOptions) (int, error)
}

// Warner warns authors of off-topic messages at most once per cooldown window.
// Each user is either cooled (no warning within the window) or suppressed. The
// state is derived on demand from the last recorded warning, there are no
// timers. A cooldown is recorded only after the warning was delivered.
type Warner struct {
	// Log is a logger
	Log logger.Logger

	// Cooldown is the minimal interval between two warnings to the same user
	Cooldown time.Duration

	// Template is the warning text with {username}, {full_name}, {chat_id} and
	// {message_id} placeholders, DefaultTemplate if empty
	Template string

	// Cooldowns keeps last warning timestamps
	Cooldowns *Cooldowns

	// Sender delivers warnings
	Sender Sender

	// Now is the clock, time.Now if nil
	Now func() time.Time

	locks mutex.KeyedMutex[int64]
}

// MaybeWarn warns the sender of msg unless they are on cooldown. Returned
// outcome has to be considered even if error is not nil: a sent warning whose
// cooldown could not be recorded is reported as sent together with the error.
func (w *Warner) MaybeWarn(ctx context.Context, msg *e.Message) (Outcome, error) {
	if msg == nil || msg.From == nil {
		return Outcome{Kind: OutcomeSkipped}, nil
	}

	userID := msg.From.ID
	w.locks.Lock(userID)
	defer w.locks.Unlock(userID)

	log := w.Log.With("tg_user_id", userID, "tg_message_id", msg.ID)

	now := w.now()
	last, ok, err := w.Cooldowns.Get(ctx, userID)
	if err != nil {
		log.Warn("reading last warning, treating user as eligible", "error", err)
		ok = false
	}

	if ok {
		if remaining := w.remaining(now, last); remaining > 0 {
			log.Info("warning suppressed by cooldown", "remaining", remaining)
			return Outcome{Kind: OutcomeSuppressed, Remaining: remaining}, nil
		}
	}

	text := w.Render(msg.From, msg.ChatID, msg.ID)
	warningID, err := w.Sender.SendMessage(ctx, msg.ChatID, text, e.SendOptions{
		ReplyToID: msg.ID,
		HTML:      true,
	})
	if err != nil {
		return Outcome{Kind: OutcomeFailed, Err: err}, fmt.Errorf("sending warning: %w", err)
	}

	outcome := Outcome{Kind: OutcomeSent, MessageID: warningID}
	log.Info("warning sent", "tg_warning_id", warningID)

	err = w.Cooldowns.Set(ctx, userID, now.Unix())
	if err != nil {
		return outcome, fmt.Errorf("recording warning: %w", err)
	}

	return outcome, nil
}

// Render fills the warning template for the given user.
func (w *Warner) Render(user *e.User, chatID int64, messageID int) string {
	fullName := html.EscapeString(user.FullName())

	username := fullName
	if user != nil && user.UserName != "" {
		username = "@" + user.UserName
	}

	template := w.Template
	if template == "" {
		template = DefaultTemplate
	}

	r := strings.NewReplacer(
		"{username}", username,
		"{full_name}", fullName,
		"{chat_id}", strconv.FormatInt(chatID, 10),
		"{message_id}", strconv.Itoa(messageID),
	)

	return r.Replace(template)
}

func (w *Warner) remaining(now time.Time, last int64) time.Duration {
	elapsed := time.Duration(now.Unix()-last) * time.Second
	return w.Cooldown - elapsed
}

func (w *Warner) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}
