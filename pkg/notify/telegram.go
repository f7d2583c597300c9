package notify

import (
	"context"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
)

type TelegramSink struct {
	bot    *tgbotapi.BotAPI
	chatID string
}

func NewTelegramSink(bot *tgbotapi.BotAPI, chatID string) *TelegramSink {
	return &TelegramSink{bot: bot, chatID: chatID}
}

func (s *TelegramSink) Name() string { return "telegram" }

// Send addresses numeric ids as chats and anything else as a channel username.
func (s *TelegramSink) Send(_ context.Context, m Message) error {
	var msg tgbotapi.MessageConfig
	if id, err := strconv.ParseInt(s.chatID, 10, 64); err == nil {
		msg = tgbotapi.NewMessage(id, m.Text)
	} else {
		msg = tgbotapi.NewMessageToChannel(s.chatID, m.Text)
	}
	msg.ParseMode = m.ParseMode
	msg.DisableWebPagePreview = true

	if _, err := s.bot.Send(msg); err != nil {
		return errors.Wrap(err, "telegram send")
	}
	return nil
}
