package mailer

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

type Message struct {
	To      string
	Subject string
	Body    string
}

// LogSender writes replies to the log instead of delivering them. It keeps
// what it sent so local runs can inspect the outbox.
type LogSender struct {
	mu   sync.Mutex
	sent []Message
}

func NewLogSender() *LogSender {
	return &LogSender{}
}

func (l *LogSender) Name() string { return BackendLog }

func (l *LogSender) Send(_ context.Context, to, subject, body string) error {
	if err := checkMessage(to, subject, body); err != nil {
		return err
	}
	l.mu.Lock()
	l.sent = append(l.sent, Message{To: to, Subject: subject, Body: body})
	l.mu.Unlock()

	log.Info().Str("to", to).Str("subject", subject).Str("body", body).Msg("reply mail (log backend)")
	return nil
}

func (l *LogSender) Sent() []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Message(nil), l.sent...)
}
