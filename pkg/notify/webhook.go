package notify

import (
	"context"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

type webhookPayload struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

// WebhookSink posts messages to a Telegram-compatible relay.
type WebhookSink struct {
	http   *resty.Client
	url    string
	chatID string
}

func NewWebhookSink(url, chatID string) *WebhookSink {
	return &WebhookSink{
		http:   resty.New().SetHeader("Content-Type", "application/json"),
		url:    url,
		chatID: chatID,
	}
}

func (s *WebhookSink) Name() string { return "webhook" }

func (s *WebhookSink) Send(ctx context.Context, m Message) error {
	resp, err := s.http.R().
		SetContext(ctx).
		SetBody(webhookPayload{ChatID: s.chatID, Text: m.Text, ParseMode: m.ParseMode}).
		Post(s.url)
	if err != nil {
		return errors.Wrap(err, "post webhook")
	}
	if !resp.IsSuccess() {
		return errors.Errorf("webhook answered %s", resp.Status())
	}
	return nil
}
