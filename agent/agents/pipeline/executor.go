package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	contractx "github.com/tanpawarit/library-mail-agent/agent/contract"
	"github.com/tanpawarit/library-mail-agent/pkg/breaker"
)

var errStoreDegraded = errors.New("catalog store degraded")

// guardedExecutor bounds each execution with a timeout and feeds store
// failures into the store breaker.
type guardedExecutor struct {
	inner   contractx.Executor
	breaker *breaker.Breaker
	timeout time.Duration
}

func (g guardedExecutor) Execute(ctx context.Context, who contractx.Requester, op contractx.Operation) contractx.Outcome {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	if g.breaker == nil {
		return g.inner.Execute(ctx, who, op)
	}

	var out contractx.Outcome
	err := g.breaker.Do(func() error {
		out = g.inner.Execute(ctx, who, op)
		if out.Kind == contractx.OutcomeSystemDegraded {
			return fmt.Errorf("%w: %s", errStoreDegraded, out.Detail)
		}
		return nil
	}, nil)
	if err != nil && breaker.IsOpen(err) {
		out = contractx.Degraded(op.Kind(), contractx.ReasonStoreFailure, err.Error())
		out.Subject = op.Subject()
	}
	return out
}
