package mailer

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
)

const (
	BackendLog        = "log"
	BackendSES        = "ses"
	BackendMailerSend = "mailersend"
)

var ErrInvalidMessage = errors.New("mail message is invalid")

// Config is read with the MAIL_ prefix.
type Config struct {
	Backend          string        `split_words:"true" default:"log"`
	From             string        `split_words:"true" default:"biblioteca@example.com"`
	FromName         string        `split_words:"true" default:"Biblioteca"`
	AWSRegion        string        `envconfig:"AWS_REGION" default:"us-east-1"`
	MailerSendAPIKey string        `envconfig:"MAILERSEND_API_KEY"`
	Timeout          time.Duration `split_words:"true" default:"10s"`
}

// Sender delivers a plain-text reply.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
	Name() string
}

func New(ctx context.Context, cfg Config) (Sender, error) {
	if _, err := mail.ParseAddress(cfg.From); err != nil {
		return nil, fmt.Errorf("mail from address: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendLog:
		return NewLogSender(), nil
	case BackendSES:
		return NewSESSender(ctx, cfg)
	case BackendMailerSend:
		return NewMailerSendSender(cfg)
	default:
		return nil, fmt.Errorf("unknown mail backend %q", cfg.Backend)
	}
}

func checkMessage(to, subject, body string) error {
	if _, err := mail.ParseAddress(to); err != nil {
		return fmt.Errorf("%w: recipient: %v", ErrInvalidMessage, err)
	}
	if strings.TrimSpace(subject) == "" {
		return fmt.Errorf("%w: subject is empty", ErrInvalidMessage)
	}
	if strings.TrimSpace(body) == "" {
		return fmt.Errorf("%w: body is empty", ErrInvalidMessage)
	}
	return nil
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}
