package pipelinenode

import (
	"context"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/library-mail-agent/agent/contract"
	statex "github.com/tanpawarit/library-mail-agent/agent/state"
)

// ComposeReply renders the settled outcome and moves the request to its
// terminal state. It is reached from every stage.
func ComposeReply(ctx context.Context, in *GraphState, composer contractx.Composer, conversations statex.Store) (GraphOutput, error) {
	if in == nil {
		return GraphOutput{}, nilState()
	}
	if in.Failed {
		in.enter(StageFailing)
	} else {
		in.enter(StageComposing)
	}

	if in.Outcome == nil {
		out := contractx.Degraded("", "", "no outcome was settled")
		in.fail(out)
	}
	in.Reply = composer.Compose(*in.Outcome)

	saveConversation(ctx, conversations, in)
	in.enter(StageReplied)
	return in.Output(), nil
}

func saveConversation(ctx context.Context, store statex.Store, in *GraphState) {
	if store == nil || in.Conversation == nil {
		return
	}
	in.Conversation.Append(statex.RoleRequester, in.Text, in.Now)
	in.Conversation.Append(statex.RoleAgent, in.Reply, in.Now)
	if err := store.Save(ctx, in.Conversation); err != nil {
		log.Warn().
			Str("request_id", in.RequestID).
			Err(err).
			Msg("conversation save failed")
	}
}
