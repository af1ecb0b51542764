package pipeline

import (
	"time"

	"github.com/tanpawarit/library-mail-agent/pkg/breaker"
)

// Config is read with the PIPELINE_ prefix.
type Config struct {
	ConfidenceThreshold float64       `envconfig:"CONFIDENCE_THRESHOLD" split_words:"true" default:"0.6"`
	ExtractTimeout      time.Duration `envconfig:"EXTRACT_TIMEOUT" split_words:"true" default:"15s"`
	StoreTimeout        time.Duration `envconfig:"STORE_TIMEOUT" split_words:"true" default:"5s"`
	Language            string        `envconfig:"LANGUAGE" split_words:"true" default:"es"`
	LoanPeriod          time.Duration `envconfig:"LOAN_PERIOD" split_words:"true" default:"336h"`
	RenewalPeriod       time.Duration `envconfig:"RENEWAL_PERIOD" split_words:"true" default:"336h"`
	MaxFieldLength      int           `envconfig:"MAX_FIELD_LENGTH" split_words:"true" default:"200"`

	Breaker breaker.Config `envconfig:"BREAKER" split_words:"true"`
}
