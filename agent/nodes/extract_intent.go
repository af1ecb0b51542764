package pipelinenode

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/library-mail-agent/agent/contract"
	statex "github.com/tanpawarit/library-mail-agent/agent/state"
)

// ExtractIntent asks the live extractor for an intent. When the reasoning
// service is unavailable, or the request already runs simulated, the
// heuristic fallback supplies a best-effort intent instead.
func ExtractIntent(
	ctx context.Context,
	in *GraphState,
	conversations statex.Store,
	live contractx.IntentExtractor,
	fallback contractx.IntentExtractor,
) (*GraphState, error) {
	if in == nil {
		return nil, nilState()
	}
	in.enter(StageExtracting)
	in.Conversation = loadConversation(ctx, conversations, in)

	req := contractx.ExtractRequest{
		Text:         in.Text,
		Sender:       in.Sender,
		Conversation: in.Conversation,
		Now:          in.Now,
	}

	if !in.Simulated && live != nil {
		intent, err := live.Extract(ctx, req)
		if err == nil {
			in.Intent = intent
			return in, nil
		}

		failure := asFailure(err)
		in.Failure = failure
		if !failure.Degraded() {
			log.Info().
				Str("request_id", in.RequestID).
				Err(err).
				Msg("intent extraction returned an unreadable answer")
			in.fail(contractx.Rejected(contractx.ReasonUnreadable, err.Error()))
			return in, nil
		}

		log.Warn().
			Str("request_id", in.RequestID).
			Str("cause", string(failure.Cause)).
			Err(err).
			Msg("reasoning service unavailable, switching to simulation mode")
		in.Simulated = true
	}

	intent, err := fallback.Extract(ctx, req)
	if err != nil {
		intent = contractx.Intent{Kind: contractx.IntentUnknown, Heuristic: true}
	}
	in.Intent = intent
	return in, nil
}

func asFailure(err error) *contractx.ExtractionFailure {
	var failure *contractx.ExtractionFailure
	if errors.As(err, &failure) {
		return failure
	}
	return &contractx.ExtractionFailure{Cause: contractx.CauseUnavailable, Err: err}
}

// loadConversation never fails: conversation history only enriches the
// extraction context. A stored conversation owned by another sender yields
// nil, so it is neither read nor overwritten.
func loadConversation(ctx context.Context, store statex.Store, in *GraphState) *statex.Conversation {
	fresh := statex.NewConversation(in.ConversationID, in.Sender, in.Now)
	if store == nil {
		return fresh
	}

	conv, err := store.Load(ctx, in.ConversationID)
	switch {
	case err == nil && !strings.EqualFold(conv.Sender, in.Sender):
		log.Warn().
			Str("request_id", in.RequestID).
			Str("conversation_id", in.ConversationID).
			Msg("conversation belongs to another sender, ignoring history")
		return nil
	case err == nil:
		return conv
	case errors.Is(err, statex.ErrConversationNotFound):
		return fresh
	default:
		log.Warn().
			Str("request_id", in.RequestID).
			Err(err).
			Msg("conversation load failed, continuing without history")
		return fresh
	}
}
