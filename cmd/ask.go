package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/tanpawarit/library-mail-agent/agent/agents/pipeline"
	"github.com/tanpawarit/library-mail-agent/pkg/broker"
	configx "github.com/tanpawarit/library-mail-agent/pkg/config"
)

func newAskCmd() *cobra.Command {
	var (
		from         string
		conversation string
		asJSON       bool
		enqueue      bool
	)

	cmd := &cobra.Command{
		Use:   "ask [message]",
		Short: "Run one request through the pipeline and print the reply",
		Example: `  library-mail-agent ask "Quiero reservar 1984" --from ana@example.com

  # Publish the request on the inbound queue instead
  library-mail-agent ask "Renueva Ficciones" --enqueue`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.TrimSpace(strings.Join(args, " "))
			if text == "" {
				return errors.New("message is empty")
			}

			if enqueue {
				amqpCfg, err := configx.New[broker.Config]("AMQP")
				if err != nil {
					return err
				}
				consumer, err := broker.Dial(*amqpCfg)
				if err != nil {
					return err
				}
				defer consumer.Close()

				id := uuid.NewString()
				if err := consumer.Publish(cmd.Context(), broker.InboundMail{
					MessageID:      id,
					From:           from,
					Subject:        "ask",
					Body:           text,
					ConversationID: conversation,
				}); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "queued %s on %s\n", id, amqpCfg.Queue)
				return nil
			}

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			res := a.coordinator.Handle(cmd.Context(), pipeline.Request{
				Sender:         from,
				Text:           text,
				ConversationID: conversation,
			})

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}

			fmt.Fprintln(cmd.OutOrStdout(), res.Reply)
			fmt.Fprintf(cmd.ErrOrStderr(), "\noutcome=%s operation=%s simulated=%t\n",
				res.Outcome.Kind, res.Outcome.Operation, res.Simulated)
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "lector@example.com", "sender address")
	cmd.Flags().StringVar(&conversation, "conversation", "", "conversation id (defaults to the sender)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	cmd.Flags().BoolVar(&enqueue, "enqueue", false, "publish the request on the AMQP queue instead of answering it")

	return cmd
}
