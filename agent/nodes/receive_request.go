package pipelinenode

import (
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/library-mail-agent/agent/contract"
)

// ReceiveRequest normalizes the raw message and decides up front whether the
// request runs in simulation mode. A simulated request settles as degraded
// even when the message itself is unusable.
func ReceiveRequest(in GraphInput, nowFn func() time.Time, gates ...Gate) (*GraphState, error) {
	st := &GraphState{
		RequestID:      in.RequestID,
		Sender:         strings.ToLower(strings.TrimSpace(in.Sender)),
		Name:           strings.TrimSpace(in.Name),
		Text:           strings.TrimSpace(in.Text),
		ConversationID: conversationID(in),
		Now:            nowFn().UTC(),
	}
	st.enter(StageReceived)

	for _, g := range gates {
		if g != nil && g.Open() {
			st.Simulated = true
			log.Warn().
				Str("request_id", st.RequestID).
				Str("dependency", g.Name()).
				Msg("dependency unreachable, running in simulation mode")
			break
		}
	}

	switch {
	case st.Text == "":
		st.fail(settle(st, "", contractx.ReasonEmptyMessage, errors.New("message text is empty")))
	case st.Sender == "":
		st.fail(settle(st, "", contractx.ReasonUnsafeInput, errors.New("sender address is empty")))
	}
	return st, nil
}
