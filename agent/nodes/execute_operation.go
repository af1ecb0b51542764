package pipelinenode

import (
	"context"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/library-mail-agent/agent/contract"
)

// ExecuteOperation runs the validated operation. Simulated requests never
// reach the store.
func ExecuteOperation(ctx context.Context, in *GraphState, executor contractx.Executor) (*GraphState, error) {
	if in == nil {
		return nil, nilState()
	}
	in.enter(StageExecuting)

	if in.Simulated {
		out := contractx.Degraded(in.Operation.Kind(), contractx.ReasonSimulated, "simulation mode")
		out.Subject = in.Operation.Subject()
		in.fail(out)
		return in, nil
	}

	out := executor.Execute(ctx, in.requester(), in.Operation)
	if out.Kind == contractx.OutcomeSystemDegraded {
		log.Warn().
			Str("request_id", in.RequestID).
			Str("operation", string(out.Operation)).
			Str("detail", out.Detail).
			Msg("operation could not be executed")
		in.fail(out)
		return in, nil
	}
	in.Outcome = &out
	return in, nil
}
