package cmd

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tanpawarit/library-mail-agent/api"
	configx "github.com/tanpawarit/library-mail-agent/pkg/config"
	"github.com/tanpawarit/library-mail-agent/pkg/qstash"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Starts the HTTP API: health and status probes, Prometheus metrics,
POST /api/process-email and, when QSTASH_CURRENT_SIGNING_KEY is set, the
signed mail webhook.`,
		Example: `  # Serve on the default address
  library-mail-agent serve

  # Serve with a specific env file
  library-mail-agent serve --env prod.env --addr :9000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			var verifier *qstash.Verifier
			if qcfg, err := configx.New[qstash.Config]("QSTASH"); err == nil && strings.TrimSpace(qcfg.CurrentSigningKey) != "" {
				verifier, err = qstash.NewVerifier(*qcfg)
				if err != nil {
					return err
				}
			} else {
				log.Info().Msg("QSTASH signing keys not set, mail webhook disabled")
			}

			server := &http.Server{
				Addr:              addr,
				Handler:           api.NewRouter(a.processor, verifier, a.probes),
				ReadHeaderTimeout: 10 * time.Second,
			}

			serverErr := make(chan error, 1)
			go func() {
				log.Info().Str("addr", addr).Msg("library mail agent listening")
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			select {
			case <-cmd.Context().Done():
				log.Info().Msg("shutting down server")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					log.Error().Err(err).Msg("server shutdown failed")
					return err
				}
				log.Info().Msg("server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", ":8000", "address to listen on")

	return cmd
}
