package cmd

import (
	"github.com/spf13/cobra"
	configx "github.com/tanpawarit/library-mail-agent/pkg/config"
	logx "github.com/tanpawarit/library-mail-agent/pkg/logger"
)

func NewRootCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "library-mail-agent",
		Short: "Answers library requests sent by email",
		Long: `library-mail-agent reads reservation, renewal and cancellation requests
written in plain language, runs them safely against the catalog and replies
by email.

When the reasoning service or the catalog database cannot be reached the agent
keeps answering in simulation mode.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			configx.SetEnvFile(envFile)
			logCfg, err := configx.New[logx.Config]("LOG")
			if err != nil {
				return err
			}
			logx.Init(*logCfg)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&envFile, "env", "", "path to .env file (defaults to ./.env when present)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newConsumeCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newAskCmd())

	return cmd
}
