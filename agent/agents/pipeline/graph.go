package pipeline

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"
	contractx "github.com/tanpawarit/library-mail-agent/agent/contract"
	nodex "github.com/tanpawarit/library-mail-agent/agent/nodes"
)

const (
	nodeReceive   = "receive"
	nodeExtract   = "extract"
	nodeTranslate = "translate"
	nodeValidate  = "validate"
	nodeExecute   = "execute"
	nodeCompose   = "compose"
)

func (c *Coordinator) compileHandleRequestGraph(
	ctx context.Context,
) (compose.Runnable[nodex.GraphInput, nodex.GraphOutput], error) {
	graph := compose.NewGraph[nodex.GraphInput, nodex.GraphOutput]()

	if err := graph.AddLambdaNode(nodeReceive,
		compose.InvokableLambda(func(ctx context.Context, in nodex.GraphInput) (*nodex.GraphState, error) {
			return nodex.ReceiveRequest(in, c.now, c.gates...)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodeReceive, err)
	}

	if err := graph.AddLambdaNode(nodeExtract,
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.ExtractIntent(ctx, in, c.conversations, c.extractor, c.heuristic)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodeExtract, err)
	}

	if err := graph.AddLambdaNode(nodeTranslate,
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.TranslateIntent(in, c.translator)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodeTranslate, err)
	}

	if err := graph.AddLambdaNode(nodeValidate,
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.ValidateOperation(in, c.validator)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodeValidate, err)
	}

	if err := graph.AddLambdaNode(nodeExecute,
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.ExecuteOperation(ctx, in, c.executor)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodeExecute, err)
	}

	if err := graph.AddLambdaNode(nodeCompose,
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (nodex.GraphOutput, error) {
			return nodex.ComposeReply(ctx, in, c.composer, c.conversations)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodeCompose, err)
	}

	// Every stage either advances or jumps straight to compose once the
	// request is settled, so replied stays reachable from each failure.
	steps := [][2]string{
		{nodeReceive, nodeExtract},
		{nodeExtract, nodeTranslate},
		{nodeTranslate, nodeValidate},
		{nodeValidate, nodeExecute},
	}
	for _, step := range steps {
		if err := graph.AddBranch(step[0], advanceOrCompose(step[1])); err != nil {
			return nil, fmt.Errorf("add branch %s: %w", step[0], err)
		}
	}

	edges := [][2]string{
		{compose.START, nodeReceive},
		{nodeExecute, nodeCompose},
		{nodeCompose, compose.END},
	}
	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx,
		compose.WithGraphName("pipeline.handle_request"),
		compose.WithNodeTriggerMode(compose.AnyPredecessor),
	)
	if err != nil {
		return nil, fmt.Errorf("compile pipeline graph: %w", err)
	}
	return runner, nil
}

func advanceOrCompose(next string) *compose.GraphBranch {
	return compose.NewGraphBranch(
		func(ctx context.Context, in *nodex.GraphState) (string, error) {
			if in == nil {
				return "", fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
			}
			if in.Failed {
				return nodeCompose, nil
			}
			return next, nil
		},
		map[string]bool{
			next:        true,
			nodeCompose: true,
		},
	)
}
