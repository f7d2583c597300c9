package notify

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/mailjet/mailjet-apiv3-go/v4"
	"github.com/pkg/errors"
	"gopkg.in/gomail.v2"
)

const mailSenderName = "SOMI CARDS"

// renderMail wraps the message lines in the operator e-mail layout.
func renderMail(m Message) string {
	var rows strings.Builder
	for _, line := range strings.Split(m.Text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		// Text is already escaped for HTML parse mode; reload messages are plain.
		if m.ParseMode == "" {
			line = html.EscapeString(line)
		}
		fmt.Fprintf(&rows, `<tr><td style="font-family:Arial,sans-serif;font-size:16px;color:#111;padding:6px 0;">%s</td></tr>`, line)
	}
	return fmt.Sprintf(`<body style="margin:0;padding:0;background:#f6f6f6;">
  <table width="100%%" cellpadding="0" cellspacing="0" border="0" style="max-width:600px;background:#f3f2f0;border-radius:28px;padding:32px;">
    <tr><td><h1 style="margin:0 0 12px 0;font-family:Arial,sans-serif;font-size:28px;color:#111;">%s</h1></td></tr>
    %s
  </table>
</body>`, html.EscapeString(m.Subject), rows.String())
}

type MailjetSink struct {
	client *mailjet.Client
	from   string
	to     string
}

func NewMailjetSink(apiKey, secretKey, from, to string) *MailjetSink {
	return &MailjetSink{
		client: mailjet.NewMailjetClient(apiKey, secretKey),
		from:   from,
		to:     to,
	}
}

func (s *MailjetSink) Name() string { return "mailjet" }

func (s *MailjetSink) Send(_ context.Context, m Message) error {
	messages := &mailjet.MessagesV31{Info: []mailjet.InfoMessagesV31{
		{
			From:     &mailjet.RecipientV31{Email: s.from, Name: mailSenderName},
			To:       &mailjet.RecipientsV31{{Email: s.to}},
			Subject:  m.Subject,
			HTMLPart: renderMail(m),
		},
	}}
	if _, err := s.client.SendMailV31(messages); err != nil {
		return errors.Wrap(err, "mailjet send")
	}
	return nil
}

type SMTPSink struct {
	dialer *gomail.Dialer
	from   string
	to     string
}

func NewSMTPSink(host string, port int, user, password, from, to string) *SMTPSink {
	return &SMTPSink{
		dialer: gomail.NewDialer(host, port, user, password),
		from:   from,
		to:     to,
	}
}

func (s *SMTPSink) Name() string { return "smtp" }

func (s *SMTPSink) Send(_ context.Context, m Message) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", s.from)
	msg.SetHeader("To", s.to)
	msg.SetHeader("Subject", m.Subject)
	msg.SetBody("text/html", renderMail(m))

	if err := s.dialer.DialAndSend(msg); err != nil {
		return errors.Wrap(err, "smtp send")
	}
	return nil
}
