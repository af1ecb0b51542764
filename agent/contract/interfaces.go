package contract

import "context"

type IntentExtractor interface {
	Extract(ctx context.Context, req ExtractRequest) (Intent, error)
}

type Translator interface {
	Translate(intent Intent) (Operation, error)
}

type Validator interface {
	Validate(op Operation) (Operation, error)
}

type Executor interface {
	Execute(ctx context.Context, who Requester, op Operation) Outcome
}

type Composer interface {
	Compose(outcome Outcome) string
}

// Probe reports whether a dependency is reachable right now.
type Probe interface {
	Ping(ctx context.Context) error
}
