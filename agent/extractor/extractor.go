package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/library-mail-agent/agent/contract"
	"github.com/tanpawarit/library-mail-agent/pkg/breaker"
	"github.com/xeipuuv/gojsonschema"
)

const (
	DefaultConfidenceThreshold = 0.6
	DefaultTimeout             = 15 * time.Second
	historyTurns               = 6
)

type Config struct {
	ConfidenceThreshold float64
	Timeout             time.Duration
}

// Extractor asks the reasoning service for an Intent. Every error it returns
// is a *contractx.ExtractionFailure.
type Extractor struct {
	runner    compose.Runnable[map[string]any, *schema.Message]
	schema    *gojsonschema.Schema
	breaker   *breaker.Breaker
	threshold float64
	timeout   time.Duration
}

func New(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string, cfg Config, br *breaker.Breaker) (*Extractor, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("%w: chat model is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, contractx.ErrPromptMissing
	}
	if cfg.ConfidenceThreshold <= 0 || cfg.ConfidenceThreshold > 1 {
		cfg.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	runner, err := compileIntentGraph(ctx, chatModel, systemPrompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)
	}
	sch, err := intentSchema()
	if err != nil {
		return nil, fmt.Errorf("%w: intent schema: %v", contractx.ErrValidation, err)
	}

	return &Extractor{
		runner:    runner,
		schema:    sch,
		breaker:   br,
		threshold: cfg.ConfidenceThreshold,
		timeout:   cfg.Timeout,
	}, nil
}

func (x *Extractor) Extract(ctx context.Context, req contractx.ExtractRequest) (contractx.Intent, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return contractx.Intent{}, contractx.NewExtractionFailure(contractx.CauseMalformed, "empty message")
	}
	if x.breaker.Open() {
		return contractx.Intent{}, contractx.NewExtractionFailure(contractx.CauseUnavailable, "breaker %s is open", x.breaker.Name())
	}

	input, err := json.Marshal(buildPayload(text, req))
	if err != nil {
		return contractx.Intent{}, contractx.NewExtractionFailure(contractx.CauseMalformed, "marshal payload: %v", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, x.timeout)
	defer cancel()

	var msg *schema.Message
	call := func() error {
		var err error
		msg, err = x.runner.Invoke(callCtx, map[string]any{"input": string(input)})
		return err
	}
	if x.breaker != nil {
		err = x.breaker.Do(call, nil)
	} else {
		err = call()
	}
	if err != nil {
		return contractx.Intent{}, classify(callCtx, err)
	}
	if msg == nil {
		return contractx.Intent{}, contractx.NewExtractionFailure(contractx.CauseMalformed, "empty model response")
	}

	answer, err := parseAnswer(x.schema, msg.Content)
	if err != nil {
		log.Debug().Err(err).Str("content", truncate(msg.Content, 200)).Msg("intent answer rejected")
		return contractx.Intent{}, &contractx.ExtractionFailure{Cause: contractx.CauseMalformed, Err: err}
	}

	return x.toIntent(answer), nil
}

func (x *Extractor) toIntent(a intentAnswer) contractx.Intent {
	intent := contractx.Intent{
		Kind:       contractx.IntentKind(a.Kind),
		Slots:      make(map[string]string, 2),
		Confidence: a.Confidence,
	}
	for _, name := range []string{contractx.SlotTitle, contractx.SlotAuthor} {
		if v, ok := a.Slots[name]; ok && v != nil && strings.TrimSpace(*v) != "" {
			intent.Slots[name] = strings.TrimSpace(*v)
		}
	}
	if intent.Confidence < x.threshold {
		intent.Kind = contractx.IntentUnknown
		intent.LowConfidence = true
	}
	return intent
}

func buildPayload(text string, req contractx.ExtractRequest) map[string]any {
	payload := map[string]any{
		"message": text,
	}
	if !req.Now.IsZero() {
		payload["today"] = req.Now.Format("2006-01-02")
	}
	if turns := req.Conversation.Recent(historyTurns); len(turns) > 0 {
		history := make([]map[string]string, 0, len(turns))
		for _, t := range turns {
			history = append(history, map[string]string{
				"role": string(t.Role),
				"text": truncate(t.Text, 500),
			})
		}
		payload["history"] = history
	}
	return payload
}

func classify(callCtx context.Context, err error) *contractx.ExtractionFailure {
	switch {
	case breaker.IsOpen(err):
		return &contractx.ExtractionFailure{Cause: contractx.CauseUnavailable, Err: fmt.Errorf("%w: %v", contractx.ErrServiceUnavailable, err)}
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded):
		return &contractx.ExtractionFailure{Cause: contractx.CauseTimeout, Err: fmt.Errorf("%w: %v", contractx.ErrServiceTimeout, err)}
	default:
		return &contractx.ExtractionFailure{Cause: contractx.CauseUnavailable, Err: fmt.Errorf("%w: %v", contractx.ErrServiceUnavailable, err)}
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

// Unavailable is used when no reasoning service is configured; every call
// fails as unavailable so the pipeline runs in simulation mode.
type Unavailable struct{}

func (Unavailable) Extract(context.Context, contractx.ExtractRequest) (contractx.Intent, error) {
	return contractx.Intent{}, contractx.NewExtractionFailure(contractx.CauseUnavailable, "no reasoning service configured")
}
