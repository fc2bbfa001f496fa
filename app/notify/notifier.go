// Package notify keeps the bot administrator informed via private messages.
package notify

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"

	e "nuclight.org/thread-guard-bot/pkg/entities"
	"nuclight.org/thread-guard-bot/pkg/logger"
)

// PreviewLength is the number of characters of the offending text quoted in an
// alert.
const PreviewLength = 200

type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string, opts e.SendOptions) (int, error)
}

type Notifier struct {
	// Log is a logger
	Log logger.Logger

	// Sender delivers notifications
	Sender Sender

	// AdminID is the private chat notifications go to
	AdminID int64
}

func (n *Notifier) Startup(ctx context.Context) error {
	return n.send(ctx, "🟢 <b>Bot started</b>\n\nWatching for messages posted outside channel discussion threads.")
}

func (n *Notifier) Shutdown(ctx context.Context) error {
	return n.send(ctx, "🔴 <b>Bot stopped</b>")
}

// OffTopic reports a message posted outside a discussion thread.
func (n *Notifier) OffTopic(ctx context.Context, msg *e.Message) error {
	if msg == nil {
		return nil
	}

	err := n.send(ctx, OffTopicText(msg))
	if err != nil {
		return fmt.Errorf("notifying about message %d: %w", msg.ID, err)
	}

	return nil
}

// OffTopicText renders the alert about an off-topic message.
func OffTopicText(msg *e.Message) string {
	var sb strings.Builder
	sb.WriteString("⚠️ <b>Message outside a discussion thread</b>\n\n")

	name := "Unknown"
	if msg.From != nil {
		name = html.EscapeString(msg.From.FullName())
	}
	sb.WriteString("👤 <b>User:</b> ")
	sb.WriteString(name)
	if msg.From != nil && msg.From.UserName != "" {
		sb.WriteString(" (@")
		sb.WriteString(html.EscapeString(msg.From.UserName))
		sb.WriteString(")")
	}

	sb.WriteString("\n💬 <b>Text:</b> ")
	text := msg.Content()
	if text == "" {
		sb.WriteString("⚠️ Media without text")
	} else {
		runes := []rune(text)
		if len(runes) > PreviewLength {
			sb.WriteString(html.EscapeString(string(runes[:PreviewLength])))
			sb.WriteString("...")
		} else {
			sb.WriteString(html.EscapeString(text))
		}
	}

	fmt.Fprintf(&sb, "\n🔗 <b>Link:</b> <a href='%s'>Message #%d</a>", MessageLink(msg.ChatID, msg.ID), msg.ID)
	return sb.String()
}

// MessageLink builds a t.me link to a message of a private supergroup.
func MessageLink(chatID int64, messageID int) string {
	id := strconv.FormatInt(chatID, 10)
	id = strings.TrimPrefix(id, "-100")
	return fmt.Sprintf("https://t.me/c/%s/%d", id, messageID)
}

func (n *Notifier) send(ctx context.Context, text string) error {
	_, err := n.Sender.SendMessage(ctx, n.AdminID, text, e.SendOptions{
		HTML:           true,
		DisablePreview: true,
	})
	if err != nil {
		return fmt.Errorf("sending to admin: %w", err)
	}

	n.Log.Debug("admin notified", "tg_chat_id", n.AdminID)
	return nil
}
