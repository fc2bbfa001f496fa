package telegram

import (
	"encoding/json"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	e "nuclight.org/thread-guard-bot/pkg/entities"
)

type incomingUpdate struct {
	update tgbotapi.Update
	extra  *rawMessage
}

// rawUpdate carries the message fields the bot api library does not decode.
type rawUpdate struct {
	Message *rawMessage `json:"message"`
}

type rawMessage struct {
	MessageThreadID int            `json:"message_thread_id"`
	ReplyToMessage  *rawMessage    `json:"reply_to_message"`
	ForwardOrigin   *forwardOrigin `json:"forward_origin"`

	VideoChatScheduled           json.RawMessage `json:"video_chat_scheduled"`
	VideoChatStarted             json.RawMessage `json:"video_chat_started"`
	VideoChatEnded               json.RawMessage `json:"video_chat_ended"`
	VideoChatParticipantsInvited json.RawMessage `json:"video_chat_participants_invited"`
	WebAppData                   json.RawMessage `json:"web_app_data"`
	ForumTopicCreated            json.RawMessage `json:"forum_topic_created"`
	ForumTopicEdited             json.RawMessage `json:"forum_topic_edited"`
	ForumTopicClosed             json.RawMessage `json:"forum_topic_closed"`
	ForumTopicReopened           json.RawMessage `json:"forum_topic_reopened"`
	GeneralForumTopicHidden      json.RawMessage `json:"general_forum_topic_hidden"`
	GeneralForumTopicUnhidden    json.RawMessage `json:"general_forum_topic_unhidden"`
	WriteAccessAllowed           json.RawMessage `json:"write_access_allowed"`
}

// forwardOrigin replaces forward_from_chat since Bot API 7.0. Only channel
// origins carry a chat.
type forwardOrigin struct {
	Type string `json:"type"`
	Chat *struct {
		ID int64 `json:"id"`
	} `json:"chat"`
}

func (c *Client) getUpdates(offset int) ([]incomingUpdate, error) {
	params := make(tgbotapi.Params)
	params.AddNonZero("offset", offset)
	params.AddNonZero("timeout", pollTimeout)

	resp, err := c.poller.MakeRequest("getUpdates", params)
	if err != nil {
		return nil, fmt.Errorf("requesting updates: %w", err)
	}

	return decodeUpdates(resp.Result)
}

func decodeUpdates(data json.RawMessage) ([]incomingUpdate, error) {
	var updates []tgbotapi.Update
	err := json.Unmarshal(data, &updates)
	if err != nil {
		return nil, fmt.Errorf("decoding updates: %w", err)
	}

	var extras []rawUpdate
	err = json.Unmarshal(data, &extras)
	if err != nil {
		return nil, fmt.Errorf("decoding update extras: %w", err)
	}

	result := make([]incomingUpdate, len(updates))
	for i, u := range updates {
		result[i].update = u
		if i < len(extras) {
			result[i].extra = extras[i].Message
		}
	}

	return result, nil
}

// convertMessage maps a bot api message and its attached reply onto the
// domain message. extra may be nil.
func convertMessage(m *tgbotapi.Message, extra *rawMessage) *e.Message {
	if m == nil {
		return nil
	}

	msg := &e.Message{
		ID:                 m.MessageID,
		From:               convertUser(m.From),
		IsAutomaticForward: m.IsAutomaticForward,
		Text:               m.Text,
		Caption:            m.Caption,
		Service:            serviceName(m, extra),
		IsCommand:          m.IsCommand(),
	}

	if m.Chat != nil {
		msg.ChatID = m.Chat.ID
	}

	if m.SenderChat != nil {
		msg.SenderChatID = m.SenderChat.ID
	}

	if m.ForwardFromChat != nil {
		msg.ForwardFromChatID = m.ForwardFromChat.ID
	}

	var replyExtra *rawMessage
	if extra != nil {
		msg.ThreadID = extra.MessageThreadID
		replyExtra = extra.ReplyToMessage

		origin := extra.ForwardOrigin
		if msg.ForwardFromChatID == 0 && origin != nil && origin.Chat != nil {
			msg.ForwardFromChatID = origin.Chat.ID
		}
	}

	if m.ReplyToMessage != nil {
		msg.ReplyTo = convertMessage(m.ReplyToMessage, replyExtra)
		if msg.ReplyTo.ChatID == 0 {
			msg.ReplyTo.ChatID = msg.ChatID
		}
	}

	return msg
}

func convertUser(u *tgbotapi.User) *e.User {
	if u == nil {
		return nil
	}

	return &e.User{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		UserName:  u.UserName,
	}
}

// serviceName returns the name of the service event the message carries or an
// empty string for regular messages.
func serviceName(m *tgbotapi.Message, extra *rawMessage) string {
	switch {
	case len(m.NewChatMembers) > 0:
		return "new_chat_members"
	case m.LeftChatMember != nil:
		return "left_chat_member"
	case m.NewChatTitle != "":
		return "new_chat_title"
	case len(m.NewChatPhoto) > 0:
		return "new_chat_photo"
	case m.DeleteChatPhoto:
		return "delete_chat_photo"
	case m.GroupChatCreated:
		return "group_chat_created"
	case m.SuperGroupChatCreated:
		return "supergroup_chat_created"
	case m.ChannelChatCreated:
		return "channel_chat_created"
	case m.MigrateToChatID != 0:
		return "migrate_to_chat_id"
	case m.MigrateFromChatID != 0:
		return "migrate_from_chat_id"
	case m.PinnedMessage != nil:
		return "pinned_message"
	case m.Invoice != nil:
		return "invoice"
	case m.SuccessfulPayment != nil:
		return "successful_payment"
	case m.VoiceChatScheduled != nil:
		return "video_chat_scheduled"
	case m.VoiceChatStarted != nil:
		return "video_chat_started"
	case m.VoiceChatEnded != nil:
		return "video_chat_ended"
	case m.VoiceChatParticipantsInvited != nil:
		return "video_chat_participants_invited"
	}

	if extra == nil {
		return ""
	}

	fields := []struct {
		name  string
		value json.RawMessage
	}{
		{"video_chat_scheduled", extra.VideoChatScheduled},
		{"video_chat_started", extra.VideoChatStarted},
		{"video_chat_ended", extra.VideoChatEnded},
		{"video_chat_participants_invited", extra.VideoChatParticipantsInvited},
		{"web_app_data", extra.WebAppData},
		{"forum_topic_created", extra.ForumTopicCreated},
		{"forum_topic_edited", extra.ForumTopicEdited},
		{"forum_topic_closed", extra.ForumTopicClosed},
		{"forum_topic_reopened", extra.ForumTopicReopened},
		{"general_forum_topic_hidden", extra.GeneralForumTopicHidden},
		{"general_forum_topic_unhidden", extra.GeneralForumTopicUnhidden},
		{"write_access_allowed", extra.WriteAccessAllowed},
	}

	for _, f := range fields {
		if len(f.value) > 0 && string(f.value) != "null" {
			return f.name
		}
	}

	return ""
}
