package cmd

import (
	"github.com/spf13/cobra"
	"github.com/tanpawarit/library-mail-agent/pkg/broker"
	configx "github.com/tanpawarit/library-mail-agent/pkg/config"
)

func newConsumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "consume",
		Short: "Answer mails published on the inbound AMQP queue",
		Long: `Consumes inbound mails from RabbitMQ (AMQP_URL, AMQP_QUEUE) and replies
to each one. A mail whose reply could not be sent is requeued once.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			amqpCfg, err := configx.New[broker.Config]("AMQP")
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			consumer, err := broker.Dial(*amqpCfg)
			if err != nil {
				return err
			}
			defer consumer.Close()

			return consumer.Run(cmd.Context(), a.processor.HandleQueued)
		},
	}
}
