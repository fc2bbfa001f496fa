package telegram

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	e "nuclight.org/thread-guard-bot/pkg/entities"
	"nuclight.org/thread-guard-bot/pkg/logger"
)

const (
	// pollTimeout is the long polling timeout in seconds
	pollTimeout = 60

	pollRetryDelay = 3 * time.Second

	// DefaultRequestTimeout bounds every non-polling request when
	// RequestTimeout is not set
	DefaultRequestTimeout = 10 * time.Second
)

// MessageHandler handles messages of the moderated group.
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg *e.Message) (e.Action, error)
}

// CommandHandler handles commands and private messages outside the group.
type CommandHandler interface {
	HandleCommand(ctx context.Context, command string, msg *e.Message) error
	HandlePrivate(ctx context.Context, msg *e.Message) error
}

// Recorder remembers seen group messages for later reply chain lookups.
type Recorder interface {
	Remember(msg *e.Message)
}

type telegramAPI interface {
	MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error)
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetChatAdministrators(config tgbotapi.ChatAdministratorsConfig) ([]tgbotapi.ChatMember, error)
}

type Client struct {
	Log        logger.Logger
	APIToken   string
	WorkersNum int

	// GroupID is the moderated discussion group
	GroupID int64

	// RequestTimeout bounds send, delete and admin list requests
	RequestTimeout time.Duration

	Handler  MessageHandler
	Commands CommandHandler

	// History is fed with every group message, optional
	History Recorder

	api    telegramAPI
	poller telegramAPI
	wg     sync.WaitGroup
}

// Connect creates the bot api clients and checks the token. Sending is
// possible after Connect, updates are received after Start.
func (c *Client) Connect(ctx context.Context) error {
	timeout := c.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	bot, err := tgbotapi.NewBotAPIWithClient(c.APIToken, tgbotapi.APIEndpoint, &http.Client{Timeout: timeout})
	if err != nil {
		return fmt.Errorf("creating bot api: %w", err)
	}

	c.Log.Info("bot api created", "username", bot.Self.UserName)

	poller := *bot
	poller.Client = &contextClient{
		ctx:    ctx,
		client: &http.Client{Timeout: pollTimeout*time.Second + timeout},
	}

	c.api = bot
	c.poller = &poller
	return nil
}

func (c *Client) Start(ctx context.Context) error {
	if c.WorkersNum == 0 {
		return fmt.Errorf("workers number must be greater than 0")
	}

	if c.api == nil {
		err := c.Connect(ctx)
		if err != nil {
			return err
		}
	}

	c.run(ctx)
	return nil
}

func (c *Client) Wait() {
	c.wg.Wait()
}

func (c *Client) run(ctx context.Context) {
	updates := make(chan incomingUpdate, 100)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.poll(ctx, updates)
	}()

	for i := 0; i < c.WorkersNum; i++ {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.handleUpdatesFromChan(ctx, updates)
		}()
	}
}

func (c *Client) poll(ctx context.Context, updates chan<- incomingUpdate) {
	offset := 0

	for ctx.Err() == nil {
		batch, err := c.getUpdates(offset)
		if err != nil {
			if ctx.Err() != nil {
				return
			}

			c.Log.Warn("getting updates, retrying", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(pollRetryDelay):
			}

			continue
		}

		for _, u := range batch {
			if u.update.UpdateID < offset {
				continue
			}
			offset = u.update.UpdateID + 1

			select {
			case <-ctx.Done():
				return
			case updates <- u:
			}
		}
	}
}

func (c *Client) handleUpdatesFromChan(ctx context.Context, updates <-chan incomingUpdate) {
	for {
		select {
		case <-ctx.Done():
			return
		case update := <-updates:
			err := c.handleUpdate(ctx, update)
			if err != nil {
				c.Log.Error("handling update", "tg_update_id", update.update.UpdateID, "error", err)
			}
		}
	}
}

func (c *Client) handleUpdate(ctx context.Context, in incomingUpdate) (err error) {
	log := c.Log.With("tg_update_id", in.update.UpdateID)

	defer func() {
		if r := recover(); r != nil {
			log.Error("panic", "error", fmt.Errorf("panic: %v", r), "stack", string(debug.Stack()))
			err = nil
		}
	}()

	message := in.update.Message
	if message == nil {
		log.Debug("update without message skipped")
		return nil
	}

	if message.Chat == nil {
		log.Warn("message chat is nil")
		return nil
	}

	msg := convertMessage(message, in.extra)

	log.Info(
		"new message",
		"tg_message_id", msg.ID,
		"tg_user_id", msg.SenderID(),
		"tg_user_nick", takeUserNick(message.From),
		"tg_chat_id", msg.ChatID,
		"tg_chat_title", message.Chat.Title,
		"tg_thread_id", msg.ThreadID,
		"tg_reply_to", takeReplyID(msg),
	)

	switch {
	case message.Chat.ID == c.GroupID:
		if c.History != nil {
			c.History.Remember(msg)
		}

		act, err := c.Handler.HandleMessage(ctx, msg)
		log.Info("message handled", "action", act.Kind, "note", act.Note)
		if err != nil {
			return fmt.Errorf("handling message: %w", err)
		}

		return nil

	case message.IsCommand():
		log.Info("command received", "command", message.Command())

		err := c.Commands.HandleCommand(ctx, message.Command(), msg)
		if err != nil {
			return fmt.Errorf("handling command %s: %w", message.Command(), err)
		}

		return nil

	case message.Chat.IsPrivate():
		err := c.Commands.HandlePrivate(ctx, msg)
		if err != nil {
			return fmt.Errorf("replying to private message: %w", err)
		}

		return nil

	default:
		log.Debug("message from unrelated chat skipped", "tg_chat_id", msg.ChatID)
		return nil
	}
}

func takeUserNick(user *tgbotapi.User) string {
	if user == nil {
		return ""
	}

	return user.UserName
}

func takeReplyID(msg *e.Message) int {
	if msg.ReplyTo == nil {
		return 0
	}

	return msg.ReplyTo.ID
}

// contextClient cancels long polling requests when the bot stops.
type contextClient struct {
	ctx    context.Context
	client *http.Client
}

func (c *contextClient) Do(req *http.Request) (*http.Response, error) {
	return c.client.Do(req.WithContext(c.ctx))
}
