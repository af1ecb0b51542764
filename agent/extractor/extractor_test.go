package extractor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	contractx "github.com/tanpawarit/library-mail-agent/agent/contract"
	statex "github.com/tanpawarit/library-mail-agent/agent/state"
	"github.com/tanpawarit/library-mail-agent/pkg/breaker"
)

type fakeChatModel struct {
	content string
	err     error
	block   bool
	calls   int
	lastIn  []*schema.Message
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	f.calls++
	f.lastIn = input
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.content, nil), nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not implemented in fake model")
}

func (f *fakeChatModel) WithTools(tools []*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	return f, nil
}

func newTestExtractor(t *testing.T, fake *fakeChatModel, cfg Config, br *breaker.Breaker) *Extractor {
	t.Helper()

	x, err := New(context.Background(), fake, "extract the intent", cfg, br)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return x
}

func wantFailure(t *testing.T, err error, cause contractx.FailureCause) {
	t.Helper()

	var failure *contractx.ExtractionFailure
	if !errors.As(err, &failure) {
		t.Fatalf("Extract() error = %v, want ExtractionFailure", err)
	}
	if failure.Cause != cause {
		t.Fatalf("Extract() cause = %s, want %s (err=%v)", failure.Cause, cause, err)
	}
}

func TestExtractSuccess(t *testing.T) {
	t.Parallel()

	fake := &fakeChatModel{content: `{"kind":"reserve","slots":{"title":" 1984 ","author":null},"confidence":0.93}`}
	x := newTestExtractor(t, fake, Config{}, nil)

	conv := statex.NewConversation("c1", "ana@example.com", time.Now())
	conv.Append(statex.RoleRequester, "hola", time.Now())

	intent, err := x.Extract(context.Background(), contractx.ExtractRequest{Text: "Quiero reservar 1984", Conversation: conv, Now: time.Now()})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if intent.Kind != contractx.IntentReserve || intent.Slot(contractx.SlotTitle) != "1984" {
		t.Fatalf("Extract() = %#v", intent)
	}
	if _, ok := intent.Slots[contractx.SlotAuthor]; ok {
		t.Fatalf("null slot must be dropped: %#v", intent.Slots)
	}
	if intent.LowConfidence || intent.Heuristic {
		t.Fatalf("unexpected flags: %#v", intent)
	}

	if len(fake.lastIn) != 2 || !strings.Contains(fake.lastIn[1].Content, "Quiero reservar 1984") {
		t.Fatalf("unexpected model input: %#v", fake.lastIn)
	}
	if !strings.Contains(fake.lastIn[1].Content, `"history"`) {
		t.Fatalf("conversation history missing from payload: %s", fake.lastIn[1].Content)
	}
}

func TestExtractToleratesCodeFence(t *testing.T) {
	t.Parallel()

	fake := &fakeChatModel{content: "```json\n{\"kind\":\"list_catalog\",\"confidence\":0.8}\n```"}
	intent, err := newTestExtractor(t, fake, Config{}, nil).Extract(context.Background(), contractx.ExtractRequest{Text: "¿Qué libros tienen?"})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if intent.Kind != contractx.IntentListCatalog {
		t.Fatalf("Extract() kind = %s", intent.Kind)
	}
}

func TestExtractLowConfidenceBecomesUnknown(t *testing.T) {
	t.Parallel()

	fake := &fakeChatModel{content: `{"kind":"cancel","slots":{"title":"Ficciones"},"confidence":0.59}`}
	intent, err := newTestExtractor(t, fake, Config{ConfidenceThreshold: 0.6}, nil).
		Extract(context.Background(), contractx.ExtractRequest{Text: "no sé, quizá cancelar algo"})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if intent.Kind != contractx.IntentUnknown || !intent.LowConfidence {
		t.Fatalf("Extract() = %#v, want low-confidence unknown", intent)
	}
}

func TestExtractSchemaViolationsAreMalformed(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"not json":          "I think they want to reserve a book",
		"unknown kind":      `{"kind":"drop_table","confidence":0.9}`,
		"missing kind":      `{"confidence":0.9}`,
		"confidence range":  `{"kind":"reserve","slots":{"title":"1984"},"confidence":7}`,
		"slot not a string": `{"kind":"reserve","slots":{"title":1984},"confidence":0.9}`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			x := newTestExtractor(t, &fakeChatModel{content: content}, Config{}, nil)
			_, err := x.Extract(context.Background(), contractx.ExtractRequest{Text: "hola"})
			wantFailure(t, err, contractx.CauseMalformed)
			if !errors.Is(err, contractx.ErrSchemaViolation) {
				t.Fatalf("Extract() error = %v, want ErrSchemaViolation", err)
			}
		})
	}
}

func TestExtractModelErrorIsUnavailable(t *testing.T) {
	t.Parallel()

	x := newTestExtractor(t, &fakeChatModel{err: errors.New("502 bad gateway")}, Config{}, nil)
	_, err := x.Extract(context.Background(), contractx.ExtractRequest{Text: "Quiero reservar 1984"})
	wantFailure(t, err, contractx.CauseUnavailable)
	if !errors.Is(err, contractx.ErrServiceUnavailable) {
		t.Fatalf("Extract() error = %v, want ErrServiceUnavailable", err)
	}
}

func TestExtractTimeout(t *testing.T) {
	t.Parallel()

	x := newTestExtractor(t, &fakeChatModel{block: true}, Config{Timeout: 20 * time.Millisecond}, nil)
	_, err := x.Extract(context.Background(), contractx.ExtractRequest{Text: "Quiero reservar 1984"})
	wantFailure(t, err, contractx.CauseTimeout)

	var failure *contractx.ExtractionFailure
	errors.As(err, &failure)
	if !failure.Degraded() {
		t.Fatal("timeout must count as degraded")
	}
}

func TestExtractOpenBreakerSkipsModel(t *testing.T) {
	t.Parallel()

	br := breaker.New("llm", breaker.Config{MinRequests: 1, FailureRatio: 0.5, Cooldown: time.Minute})
	fake := &fakeChatModel{err: errors.New("connection refused")}
	x := newTestExtractor(t, fake, Config{}, br)

	_, _ = x.Extract(context.Background(), contractx.ExtractRequest{Text: "a"})
	if !br.Open() {
		t.Fatal("breaker should be open after the failure")
	}

	_, err := x.Extract(context.Background(), contractx.ExtractRequest{Text: "Quiero reservar 1984"})
	wantFailure(t, err, contractx.CauseUnavailable)
	if fake.calls != 1 {
		t.Fatalf("model called %d times, want 1", fake.calls)
	}
}

func TestExtractMalformedDoesNotTripBreaker(t *testing.T) {
	t.Parallel()

	br := breaker.New("llm", breaker.Config{MinRequests: 1, FailureRatio: 0.5, Cooldown: time.Minute})
	x := newTestExtractor(t, &fakeChatModel{content: "nonsense"}, Config{}, br)
	for i := 0; i < 3; i++ {
		_, err := x.Extract(context.Background(), contractx.ExtractRequest{Text: "hola"})
		wantFailure(t, err, contractx.CauseMalformed)
	}
	if br.Open() {
		t.Fatal("malformed answers must not open the breaker")
	}
}

func TestExtractEmptyText(t *testing.T) {
	t.Parallel()

	fake := &fakeChatModel{content: `{"kind":"unknown","confidence":1}`}
	_, err := newTestExtractor(t, fake, Config{}, nil).Extract(context.Background(), contractx.ExtractRequest{Text: "   "})
	wantFailure(t, err, contractx.CauseMalformed)
	if fake.calls != 0 {
		t.Fatal("model must not be called for empty text")
	}
}

func TestNewRequiresPrompt(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), &fakeChatModel{}, "  ", Config{}, nil)
	if !errors.Is(err, contractx.ErrPromptMissing) {
		t.Fatalf("New() error = %v, want ErrPromptMissing", err)
	}
}

func TestUnavailableExtractor(t *testing.T) {
	t.Parallel()

	_, err := Unavailable{}.Extract(context.Background(), contractx.ExtractRequest{Text: "x"})
	wantFailure(t, err, contractx.CauseUnavailable)
}
