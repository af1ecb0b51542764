package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/library-mail-agent/agent/contract"
	"github.com/tanpawarit/library-mail-agent/agent/engine"
	"github.com/tanpawarit/library-mail-agent/agent/extractor"
	nodex "github.com/tanpawarit/library-mail-agent/agent/nodes"
	"github.com/tanpawarit/library-mail-agent/agent/reply"
	"github.com/tanpawarit/library-mail-agent/agent/safety"
	statex "github.com/tanpawarit/library-mail-agent/agent/state"
	"github.com/tanpawarit/library-mail-agent/agent/translate"
	"github.com/tanpawarit/library-mail-agent/pkg/breaker"
	"github.com/tanpawarit/library-mail-agent/pkg/metrics"
)

type Request struct {
	Sender         string
	Name           string
	Text           string
	ConversationID string
}

type Result struct {
	RequestID string
	Reply     string
	Outcome   contractx.Outcome
	Intent    contractx.Intent
	Trace     []nodex.Stage
	Simulated bool
}

type Option func(*Coordinator)

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

func WithConversations(store statex.Store) Option {
	return func(c *Coordinator) {
		if store != nil {
			c.conversations = store
		}
	}
}

func WithComposer(composer contractx.Composer) Option {
	return func(c *Coordinator) {
		if composer != nil {
			c.composer = composer
		}
	}
}

func WithHeuristic(x contractx.IntentExtractor) Option {
	return func(c *Coordinator) {
		if x != nil {
			c.heuristic = x
		}
	}
}

// WithReasoningBreaker makes an open reasoning-service breaker switch new
// requests into simulation mode.
func WithReasoningBreaker(br *breaker.Breaker) Option {
	return func(c *Coordinator) {
		if br != nil {
			c.gates = append(c.gates, br)
		}
	}
}

// WithStoreBreaker routes executions through br and switches new requests
// into simulation mode while it is open.
func WithStoreBreaker(br *breaker.Breaker) Option {
	return func(c *Coordinator) {
		if br != nil {
			c.storeBreaker = br
			c.gates = append(c.gates, br)
		}
	}
}

// Coordinator runs one mail request through the pipeline state machine. It
// is safe for concurrent use.
type Coordinator struct {
	extractor     contractx.IntentExtractor
	heuristic     contractx.IntentExtractor
	translator    contractx.Translator
	validator     contractx.Validator
	executor      contractx.Executor
	composer      contractx.Composer
	conversations statex.Store
	gates         []nodex.Gate
	storeBreaker  *breaker.Breaker

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]

	now func() time.Time
}

// New wires a coordinator around a live extractor and executor. A nil
// extractor means the reasoning service is not configured and every request
// runs in simulation mode.
func New(cfg Config, live contractx.IntentExtractor, executor contractx.Executor, opts ...Option) (*Coordinator, error) {
	if executor == nil {
		return nil, errors.New("executor is required")
	}

	composer, err := reply.New(cfg.Language)
	if err != nil {
		return nil, err
	}

	c := &Coordinator{
		extractor:     live,
		heuristic:     extractor.Heuristic{},
		translator:    translate.New(),
		validator:     safety.New(cfg.MaxFieldLength),
		composer:      composer,
		conversations: statex.NewMemoryStore(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.extractor == nil {
		c.extractor = extractor.Unavailable{}
	}
	c.executor = guardedExecutor{inner: executor, breaker: c.storeBreaker, timeout: cfg.StoreTimeout}

	graphRunner, err := c.compileHandleRequestGraph(context.Background())
	if err != nil {
		return nil, err
	}
	c.graphRunner = graphRunner

	return c, nil
}

// Handle always produces a reply. Failures inside the graph itself become a
// degraded reply.
func (c *Coordinator) Handle(ctx context.Context, req Request) Result {
	start := time.Now()
	requestID := uuid.NewString()

	out, err := c.graphRunner.Invoke(ctx, nodex.GraphInput{
		RequestID:      requestID,
		Sender:         req.Sender,
		Name:           req.Name,
		Text:           req.Text,
		ConversationID: req.ConversationID,
	})
	if err != nil {
		log.Error().
			Str("request_id", requestID).
			Err(err).
			Msg("pipeline graph failed")
		outcome := contractx.Degraded("", "", err.Error())
		out = nodex.GraphOutput{
			Reply:   c.composer.Compose(outcome),
			Outcome: outcome,
			Trace:   []nodex.Stage{nodex.StageReceived, nodex.StageFailing, nodex.StageReplied},
		}
	}

	kind := string(out.Outcome.Kind)
	metrics.PipelineRequests.WithLabelValues(kind, strconv.FormatBool(out.Simulated)).Inc()
	metrics.PipelineDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	if out.Failure != nil {
		metrics.ExtractionFailures.WithLabelValues(string(out.Failure.Cause)).Inc()
	}

	evt := log.Info()
	if out.Outcome.Kind == contractx.OutcomeSystemDegraded {
		evt = log.Warn()
	}
	evt.
		Str("request_id", requestID).
		Str("sender", strings.ToLower(strings.TrimSpace(req.Sender))).
		Str("kind", string(out.Intent.Kind)).
		Str("outcome", kind).
		Str("reason", out.Outcome.Reason).
		Bool("simulated", out.Simulated).
		Str("trace", traceString(out.Trace)).
		Msg("request answered")

	return Result{
		RequestID: requestID,
		Reply:     out.Reply,
		Outcome:   out.Outcome,
		Intent:    out.Intent,
		Trace:     out.Trace,
		Simulated: out.Simulated,
	}
}

// Reply is the plain entry point used by transports that only need text.
func (c *Coordinator) Reply(ctx context.Context, sender, text string) string {
	return c.Handle(ctx, Request{Sender: sender, Text: text}).Reply
}

// ReplySubject prefixes the subject of the mail being answered, in the
// coordinator's reply language.
func (c *Coordinator) ReplySubject(original string) string {
	if rc, ok := c.composer.(*reply.Composer); ok {
		return rc.ReplySubject(original)
	}
	return fmt.Sprintf("Re: %s", strings.TrimSpace(original))
}

func (cfg Config) ExtractorConfig() extractor.Config {
	return extractor.Config{
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		Timeout:             cfg.ExtractTimeout,
	}
}

func (cfg Config) EngineConfig() engine.Config {
	return engine.Config{
		LoanPeriod:    cfg.LoanPeriod,
		RenewalPeriod: cfg.RenewalPeriod,
	}
}

func traceString(trace []nodex.Stage) string {
	parts := make([]string, len(trace))
	for i, s := range trace {
		parts[i] = string(s)
	}
	return strings.Join(parts, ">")
}
