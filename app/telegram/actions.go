package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	e "nuclight.org/thread-guard-bot/pkg/entities"
)

// SendMessage sends a text message and returns its id. ctx only gates the
// start of the request; once sent, the call is bounded by RequestTimeout of
// the http client, same for the other actions below.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, opts e.SendOptions) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	conf := tgbotapi.NewMessage(chatID, text)
	conf.DisableWebPagePreview = opts.DisablePreview

	if opts.HTML {
		conf.ParseMode = tgbotapi.ModeHTML
	}

	if opts.ReplyToID != 0 {
		conf.ReplyToMessageID = opts.ReplyToID
		conf.AllowSendingWithoutReply = true
	}

	sent, err := c.api.Send(conf)
	if err != nil {
		return 0, fmt.Errorf("sending message to %d: %w", chatID, classifyError(err))
	}

	return sent.MessageID, nil
}

// DeleteMessage deletes a message. It returns an error wrapping
// entities.ErrMessageNotFound when the message is already gone and
// entities.ErrForbidden when the bot may not delete it.
func (c *Client) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := c.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID))
	if err != nil {
		return fmt.Errorf("deleting message %d: %w", messageID, classifyError(err))
	}

	return nil
}

// ChatAdminIDs returns ids of the chat administrators, bots included.
func (c *Client) ChatAdminIDs(ctx context.Context, chatID int64) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	members, err := c.api.GetChatAdministrators(tgbotapi.ChatAdministratorsConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: chatID},
	})
	if err != nil {
		return nil, fmt.Errorf("getting administrators of %d: %w", chatID, classifyError(err))
	}

	ids := make([]int64, 0, len(members))
	for _, m := range members {
		if m.User != nil {
			ids = append(ids, m.User.ID)
		}
	}

	return ids, nil
}

func classifyError(err error) error {
	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) {
		return err
	}

	description := strings.ToLower(apiErr.Message)

	switch {
	case apiErr.Code == http.StatusForbidden:
		return fmt.Errorf("%w: %s", e.ErrForbidden, apiErr.Message)
	case strings.Contains(description, "not found"):
		return fmt.Errorf("%w: %s", e.ErrMessageNotFound, apiErr.Message)
	case strings.Contains(description, "can't be deleted"), strings.Contains(description, "not enough rights"):
		return fmt.Errorf("%w: %s", e.ErrForbidden, apiErr.Message)
	default:
		return err
	}
}
