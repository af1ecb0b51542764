package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tanpawarit/library-mail-agent/agent/agents/pipeline"
	"github.com/tanpawarit/library-mail-agent/agent/catalog"
	contractx "github.com/tanpawarit/library-mail-agent/agent/contract"
	"github.com/tanpawarit/library-mail-agent/agent/engine"
	"github.com/tanpawarit/library-mail-agent/agent/extractor"
	"github.com/tanpawarit/library-mail-agent/agent/inbox"
	"github.com/tanpawarit/library-mail-agent/agent/llm"
	"github.com/tanpawarit/library-mail-agent/agent/prompt"
	statex "github.com/tanpawarit/library-mail-agent/agent/state"
	"github.com/tanpawarit/library-mail-agent/api"
	"github.com/tanpawarit/library-mail-agent/pkg/breaker"
	configx "github.com/tanpawarit/library-mail-agent/pkg/config"
	"github.com/tanpawarit/library-mail-agent/pkg/mailer"
	openrouterx "github.com/tanpawarit/library-mail-agent/pkg/openrouter"
)

// app is the fully wired agent shared by the serve, consume and ask
// commands.
type app struct {
	catalog       catalog.Store
	conversations statex.Store
	coordinator   *pipeline.Coordinator
	processor     *inbox.Processor
	sender        mailer.Sender
	probes        api.Probes

	closers []func() error
}

type probeFunc func(ctx context.Context) error

func (f probeFunc) Ping(ctx context.Context) error { return f(ctx) }

func newApp(ctx context.Context) (*app, error) {
	pipeCfg, err := configx.New[pipeline.Config]("PIPELINE")
	if err != nil {
		return nil, fmt.Errorf("pipeline config: %w", err)
	}
	llmCfg, err := configx.New[llm.Config]("LLM")
	if err != nil {
		return nil, fmt.Errorf("llm config: %w", err)
	}
	pgCfg, err := configx.New[catalog.PostgresConfig]("DATABASE")
	if err != nil {
		return nil, fmt.Errorf("database config: %w", err)
	}
	redisCfg, err := configx.New[statex.RedisConfig]("REDIS")
	if err != nil {
		return nil, fmt.Errorf("redis config: %w", err)
	}
	mailCfg, err := configx.New[mailer.Config]("MAIL")
	if err != nil {
		return nil, fmt.Errorf("mail config: %w", err)
	}

	a := &app{}

	if strings.TrimSpace(pgCfg.DSN) == "" {
		log.Warn().Msg("DATABASE_DSN not set, using the in-memory sample catalog")
		a.catalog = catalog.NewMemoryStore(catalog.Seed()...)
	} else {
		pg, err := catalog.NewPostgresStore(*pgCfg)
		if err != nil {
			return nil, err
		}
		a.catalog = pg
	}
	a.closers = append(a.closers, a.catalog.Close)

	if strings.TrimSpace(redisCfg.URL) == "" {
		a.conversations = statex.NewMemoryStore()
	} else {
		rs, err := statex.NewRedisStore(*redisCfg)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.conversations = rs
		a.closers = append(a.closers, rs.Close)
	}

	reasoningBreaker := breaker.New("reasoning", pipeCfg.Breaker)
	storeBreaker := breaker.New("catalog", pipeCfg.Breaker)

	var live contractx.IntentExtractor
	if llmCfg.Enabled() {
		if err := llmCfg.Validate(); err != nil {
			a.Close()
			return nil, err
		}
		chatModel, err := openrouterx.NewChatModel(ctx, llmCfg.Extractor())
		if err != nil {
			a.Close()
			return nil, err
		}
		x, err := extractor.New(ctx, chatModel, prompt.LoadPromptSet().Intent, pipeCfg.ExtractorConfig(), reasoningBreaker)
		if err != nil {
			a.Close()
			return nil, err
		}
		live = x
		a.probes.Reasoning = openrouterx.NewProber(openrouterx.NewClient(llmCfg.Extractor()), pipeCfg.ExtractTimeout)
	} else {
		log.Warn().Msg("LLM_API_KEY not set, every request runs in simulation mode")
	}

	eng, err := engine.New(a.catalog, pipeCfg.EngineConfig())
	if err != nil {
		a.Close()
		return nil, err
	}

	a.coordinator, err = pipeline.New(*pipeCfg, live, eng,
		pipeline.WithConversations(a.conversations),
		pipeline.WithReasoningBreaker(reasoningBreaker),
		pipeline.WithStoreBreaker(storeBreaker),
	)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.sender, err = mailer.New(ctx, *mailCfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.processor, err = inbox.NewProcessor(a.coordinator, a.sender)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.probes.Database = a.catalog
	if p, ok := a.sender.(contractx.Probe); ok {
		a.probes.EmailService = p
	} else {
		a.probes.EmailService = probeFunc(func(context.Context) error { return nil })
	}

	log.Info().
		Bool("reasoning", live != nil).
		Bool("postgres", strings.TrimSpace(pgCfg.DSN) != "").
		Bool("redis", strings.TrimSpace(redisCfg.URL) != "").
		Str("mail_backend", a.sender.Name()).
		Msg("agent wired")
	return a, nil
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
