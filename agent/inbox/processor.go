package inbox

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tanpawarit/library-mail-agent/agent/agents/pipeline"
	contractx "github.com/tanpawarit/library-mail-agent/agent/contract"
	"github.com/tanpawarit/library-mail-agent/pkg/broker"
	"github.com/tanpawarit/library-mail-agent/pkg/mailer"
	"github.com/tanpawarit/library-mail-agent/pkg/metrics"
)

var ErrInvalidMail = errors.New("mail is invalid")

type Mail struct {
	From           string `json:"from_email"`
	Subject        string `json:"subject"`
	Body           string `json:"body"`
	ConversationID string `json:"conversation_id,omitempty"`
}

type Result struct {
	RequestID    string                  `json:"request_id"`
	Operation    contractx.OperationKind `json:"operation,omitempty"`
	Outcome      contractx.OutcomeKind   `json:"outcome"`
	ResponseSent bool                    `json:"response_sent"`
	UserResponse string                  `json:"user_response"`
	Simulated    bool                    `json:"simulated"`
}

type Handler interface {
	Handle(ctx context.Context, req pipeline.Request) pipeline.Result
	ReplySubject(original string) string
}

// Processor answers one inbound mail: it runs the pipeline and mails the
// reply back. A failed send does not fail the request.
type Processor struct {
	pipeline Handler
	sender   mailer.Sender
}

func NewProcessor(h Handler, sender mailer.Sender) (*Processor, error) {
	if h == nil {
		return nil, errors.New("pipeline is required")
	}
	if sender == nil {
		return nil, errors.New("mail sender is required")
	}
	return &Processor{pipeline: h, sender: sender}, nil
}

func (p *Processor) Validate(m Mail) error {
	if strings.TrimSpace(m.Subject) == "" {
		return fmt.Errorf("%w: subject is required", ErrInvalidMail)
	}
	if strings.TrimSpace(m.Body) == "" {
		return fmt.Errorf("%w: body is required", ErrInvalidMail)
	}
	if strings.TrimSpace(m.From) == "" {
		return fmt.Errorf("%w: from_email is required", ErrInvalidMail)
	}
	if _, err := mail.ParseAddress(m.From); err != nil {
		return fmt.Errorf("%w: from_email is not a valid address", ErrInvalidMail)
	}
	return nil
}

func (p *Processor) Process(ctx context.Context, m Mail) (Result, error) {
	if err := p.Validate(m); err != nil {
		return Result{}, err
	}
	addr, _ := mail.ParseAddress(m.From)

	res := p.pipeline.Handle(ctx, pipeline.Request{
		Sender:         addr.Address,
		Name:           addr.Name,
		Text:           m.Body,
		ConversationID: m.ConversationID,
	})

	out := Result{
		RequestID:    res.RequestID,
		Operation:    res.Outcome.Operation,
		Outcome:      res.Outcome.Kind,
		UserResponse: res.Reply,
		Simulated:    res.Simulated,
	}

	subject := p.pipeline.ReplySubject(m.Subject)
	if err := p.sender.Send(ctx, addr.Address, subject, res.Reply); err != nil {
		log.Warn().
			Str("request_id", res.RequestID).
			Str("backend", p.sender.Name()).
			Err(err).
			Msg("reply mail not sent")
		metrics.RepliesSent.WithLabelValues(p.sender.Name(), "failed").Inc()
		return out, nil
	}
	metrics.RepliesSent.WithLabelValues(p.sender.Name(), "sent").Inc()
	out.ResponseSent = true
	return out, nil
}

// HandleQueued adapts Process to the queue consumer. Invalid mails are
// dropped by the consumer before they get here. Once the pipeline has run the
// delivery is settled: a reply that failed to send is logged and counted by
// Process, and redelivering would execute the operation a second time.
func (p *Processor) HandleQueued(ctx context.Context, m broker.InboundMail) error {
	subject := m.Subject
	if strings.TrimSpace(subject) == "" {
		subject = "(sin asunto)"
	}
	_, err := p.Process(ctx, Mail{
		From:           m.From,
		Subject:        subject,
		Body:           m.Body,
		ConversationID: m.ConversationID,
	})
	return err
}
