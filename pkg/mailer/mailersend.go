package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mailersend/mailersend-go"
	"github.com/rs/zerolog/log"
)

type mailersendAPI interface {
	Send(ctx context.Context, message *mailersend.Message) (*mailersend.Response, error)
}

type MailerSendSender struct {
	api     mailersendAPI
	from    mailersend.From
	timeout time.Duration
}

func NewMailerSendSender(cfg Config) (*MailerSendSender, error) {
	apiKey := strings.TrimSpace(cfg.MailerSendAPIKey)
	if apiKey == "" {
		return nil, errors.New("mailersend api key is required")
	}
	client := mailersend.NewMailersend(apiKey)
	return newMailerSendSender(client.Email, cfg), nil
}

func newMailerSendSender(api mailersendAPI, cfg Config) *MailerSendSender {
	return &MailerSendSender{
		api:     api,
		from:    mailersend.From{Name: cfg.FromName, Email: cfg.From},
		timeout: cfg.Timeout,
	}
}

func (m *MailerSendSender) Name() string { return BackendMailerSend }

func (m *MailerSendSender) Send(ctx context.Context, to, subject, body string) error {
	if err := checkMessage(to, subject, body); err != nil {
		return err
	}
	ctx, cancel := withTimeout(ctx, m.timeout)
	defer cancel()

	message := &mailersend.Message{}
	message.SetFrom(m.from)
	message.SetRecipients([]mailersend.Recipient{{Email: to}})
	message.SetSubject(subject)
	message.SetText(body)

	res, err := m.api.Send(ctx, message)
	if err != nil {
		return fmt.Errorf("mailersend send: %w", err)
	}
	if res != nil && res.Response != nil {
		log.Debug().Str("message_id", res.Header.Get("X-Message-Id")).Msg("mailersend accepted reply")
	}
	return nil
}
