package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tanpawarit/library-mail-agent/agent/catalog"
	configx "github.com/tanpawarit/library-mail-agent/pkg/config"
)

func newMigrateCmd() *cobra.Command {
	var seed bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the catalog schema in Postgres",
		Example: `  # Create tables and load the sample books
  library-mail-agent migrate --seed`,
		RunE: func(cmd *cobra.Command, args []string) error {
			pgCfg, err := configx.New[catalog.PostgresConfig]("DATABASE")
			if err != nil {
				return err
			}
			if strings.TrimSpace(pgCfg.DSN) == "" {
				return errors.New("DATABASE_DSN is required")
			}

			store, err := catalog.NewPostgresStore(*pgCfg)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.CreateSchema(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema ready")

			if seed {
				n, err := store.SeedBooks(cmd.Context(), catalog.Seed())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "seeded %d books\n", n)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&seed, "seed", false, "insert the sample books")

	return cmd
}
