package breaker

import (
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

var ErrOpen = gobreaker.ErrOpenState

type Config struct {
	MaxRequests  uint32        `envconfig:"MAX_REQUESTS" split_words:"true" default:"1"`
	Interval     time.Duration `envconfig:"INTERVAL" split_words:"true" default:"60s"`
	Cooldown     time.Duration `envconfig:"COOLDOWN" split_words:"true" default:"30s"`
	MinRequests  uint32        `envconfig:"MIN_REQUESTS" split_words:"true" default:"3"`
	FailureRatio float64       `envconfig:"FAILURE_RATIO" split_words:"true" default:"0.6"`
}

// Breaker tracks the health of one dependency. While it is open callers are
// expected to skip the dependency instead of waiting for it to time out.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

func New(name string, cfg Config) *Breaker {
	if cfg.MinRequests == 0 {
		cfg.MinRequests = 3
	}
	if cfg.FailureRatio <= 0 {
		cfg.FailureRatio = 0.6
	}
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("dependency breaker changed state")
		},
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

// Do runs fn through the breaker. Errors for which healthy returns true are
// passed back to the caller but do not count against the dependency.
func (b *Breaker) Do(fn func() error, healthy func(error) bool) error {
	if b == nil {
		return fn()
	}
	var callErr error
	_, err := b.cb.Execute(func() (interface{}, error) {
		callErr = fn()
		if callErr != nil && healthy != nil && healthy(callErr) {
			return nil, nil
		}
		return nil, callErr
	})
	if callErr != nil {
		return callErr
	}
	return err
}

// Open reports whether calls are currently being refused.
func (b *Breaker) Open() bool {
	return b != nil && b.cb.State() == gobreaker.StateOpen
}

func (b *Breaker) State() string {
	if b == nil {
		return gobreaker.StateClosed.String()
	}
	return b.cb.State().String()
}

func (b *Breaker) Name() string {
	if b == nil {
		return ""
	}
	return b.cb.Name()
}

func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
