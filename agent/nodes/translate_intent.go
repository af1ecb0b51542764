package pipelinenode

import (
	"errors"

	contractx "github.com/tanpawarit/library-mail-agent/agent/contract"
)

func TranslateIntent(in *GraphState, translator contractx.Translator) (*GraphState, error) {
	if in == nil {
		return nil, nilState()
	}
	in.enter(StageTranslating)

	op, err := translator.Translate(in.Intent)
	if err != nil {
		reason := contractx.ReasonUnknownIntent
		if errors.Is(err, contractx.ErrMissingSlot) {
			reason = contractx.ReasonMissingSlot
		}
		in.fail(settle(in, "", reason, err))
		return in, nil
	}
	in.Operation = op
	return in, nil
}

func ValidateOperation(in *GraphState, validator contractx.Validator) (*GraphState, error) {
	if in == nil {
		return nil, nilState()
	}
	in.enter(StageValidating)

	op, err := validator.Validate(in.Operation)
	if err != nil {
		in.fail(settle(in, in.Operation.Kind(), contractx.ReasonUnsafeInput, err))
		return in, nil
	}
	in.Operation = op
	return in, nil
}

// settle turns a local stage error into the outcome the requester sees. In
// simulation mode nothing can be completed, so every path ends degraded.
func settle(in *GraphState, op contractx.OperationKind, reason string, err error) contractx.Outcome {
	if in.Simulated {
		return contractx.Degraded(op, contractx.ReasonSimulated, err.Error())
	}
	return contractx.Rejected(reason, err.Error())
}
