package pipelinenode

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/library-mail-agent/agent/contract"
	statex "github.com/tanpawarit/library-mail-agent/agent/state"
)

// Stage is one state of the request state machine. StageReplied is the only
// terminal state and every path reaches it.
type Stage string

const (
	StageReceived    Stage = "received"
	StageExtracting  Stage = "extracting"
	StageTranslating Stage = "translating"
	StageValidating  Stage = "validating"
	StageExecuting   Stage = "executing"
	StageComposing   Stage = "composing"
	StageFailing     Stage = "failing"
	StageReplied     Stage = "replied"
)

type GraphInput struct {
	RequestID      string
	Sender         string
	Name           string
	Text           string
	ConversationID string
}

type GraphOutput struct {
	Reply     string
	Outcome   contractx.Outcome
	Intent    contractx.Intent
	Trace     []Stage
	Simulated bool
	Failure   *contractx.ExtractionFailure
}

type GraphState struct {
	RequestID      string
	Sender         string
	Name           string
	Text           string
	ConversationID string
	Now            time.Time

	Trace     []Stage
	Simulated bool
	Failed    bool

	Conversation *statex.Conversation
	Intent       contractx.Intent
	Operation    contractx.Operation
	Outcome      *contractx.Outcome
	Failure      *contractx.ExtractionFailure
	Reply        string
}

// Gate reports whether a dependency is known to be down. *breaker.Breaker
// satisfies it.
type Gate interface {
	Open() bool
	Name() string
}

func (s *GraphState) enter(stage Stage) {
	s.Trace = append(s.Trace, stage)
	log.Debug().
		Str("request_id", s.RequestID).
		Str("stage", string(stage)).
		Bool("simulated", s.Simulated).
		Msg("pipeline stage")
}

// fail settles the request with out. The next hop is the failing state.
func (s *GraphState) fail(out contractx.Outcome) {
	s.Failed = true
	s.Outcome = &out
}

func (s *GraphState) requester() contractx.Requester {
	return contractx.Requester{Email: s.Sender, Name: s.Name}
}

func (s *GraphState) Output() GraphOutput {
	out := GraphOutput{
		Reply:     s.Reply,
		Intent:    s.Intent,
		Trace:     append([]Stage(nil), s.Trace...),
		Simulated: s.Simulated,
		Failure:   s.Failure,
	}
	if s.Outcome != nil {
		out.Outcome = *s.Outcome
	}
	return out
}

// conversationID keys history by sender. A caller-supplied id only selects a
// thread among the sender's own conversations.
func conversationID(in GraphInput) string {
	sender := strings.ToLower(strings.TrimSpace(in.Sender))
	id := strings.TrimSpace(in.ConversationID)
	if id == "" || strings.EqualFold(id, sender) {
		return sender
	}
	return sender + "/" + id
}

func nilState() error {
	return fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
}
