package services

import (
	"context"
	"fmt"
	"html"
	"time"

	e "nuclight.org/thread-guard-bot/pkg/entities"
	"nuclight.org/thread-guard-bot/pkg/logger"
)

// DefaultChainDepth is the number of levels /debug_chain prints.
const DefaultChainDepth = 10

// Commands answers bot commands and private messages. Only /test is open to
// everyone, the rest are answered to the admin only and silently ignored
// otherwise.
type Commands struct {
	// Log is a logger
	Log logger.Logger

	// Sender delivers answers
	Sender Sender

	// Chains describes reply chains for /debug_chain
	Chains ChainDescriber

	// Stats renders warning statistics for /warnings
	Stats StatsFormatter

	AdminID     int64
	GroupID     int64
	ChannelID   int64
	DeleteDelay time.Duration
	Cooldown    time.Duration

	// ChainDepth limits /debug_chain output, DefaultChainDepth if zero
	ChainDepth int
}

// HandleCommand answers the command without the leading slash.
func (c *Commands) HandleCommand(ctx context.Context, command string, msg *e.Message) error {
	log := c.Log.With("command", command, "tg_user_id", msg.SenderID())

	switch command {
	case "test":
		return c.reply(ctx, msg, "✅ <b>Bot is running!</b>\n\n"+
			"Administrators are ignored.\n"+
			"Messages outside discussion threads are deleted automatically.", true)
	case "status", "debug_chain", "warnings":
		if msg.SenderID() != c.AdminID {
			log.Debug("admin command from non-admin ignored")
			return nil
		}
	default:
		log.Debug("unknown command ignored")
		return nil
	}

	switch command {
	case "status":
		return c.reply(ctx, msg, c.statusText(), true)
	case "debug_chain":
		if msg.ReplyTo == nil {
			return c.reply(ctx, msg, "❌ Reply to a message to analyze its chain.", false)
		}

		depth := c.ChainDepth
		if depth <= 0 {
			depth = DefaultChainDepth
		}

		info := c.Chains.DescribeChain(ctx, msg.ReplyTo, depth)
		return c.reply(ctx, msg, "<pre>"+html.EscapeString(info)+"</pre>", true)
	default:
		stats, err := c.Stats.FormatStats(ctx)
		if err != nil {
			return fmt.Errorf("formatting stats: %w", err)
		}

		return c.reply(ctx, msg, stats, true)
	}
}

// HandlePrivate greets users writing to the bot directly.
func (c *Commands) HandlePrivate(ctx context.Context, msg *e.Message) error {
	return c.reply(ctx, msg, "👋 Hi!\n\n"+
		"I watch messages in the discussion group of the channel.\n"+
		"Commands: /status /test /debug_chain /warnings", false)
}

func (c *Commands) statusText() string {
	return fmt.Sprintf("🟢 <b>Bot status</b>\n\n"+
		"📊 Group: <code>%d</code>\n"+
		"📺 Channel: <code>%d</code>\n"+
		"👤 Admin: <code>%d</code>\n"+
		"⏱ Deletion after: <code>%ds</code>\n"+
		"⌛ Warning cooldown: <code>%ds</code>",
		c.GroupID, c.ChannelID, c.AdminID,
		int64(c.DeleteDelay/time.Second), int64(c.Cooldown/time.Second))
}

func (c *Commands) reply(ctx context.Context, msg *e.Message, text string, asHTML bool) error {
	_, err := c.Sender.SendMessage(ctx, msg.ChatID, text, e.SendOptions{
		HTML:           asHTML,
		DisablePreview: true,
	})
	if err != nil {
		return fmt.Errorf("replying: %w", err)
	}

	return nil
}

type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string, opts e.SendOptions) (int, error)
}

type ChainDescriber interface {
	DescribeChain(ctx context.Context, msg *e.Message, maxDepth int) string
}

type StatsFormatter interface {
	FormatStats(ctx context.Context) (string, error)
}
