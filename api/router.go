package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/library-mail-agent/agent/contract"
	"github.com/tanpawarit/library-mail-agent/agent/inbox"
	"github.com/tanpawarit/library-mail-agent/pkg/qstash"
)

const maxBodyBytes = 1 << 20

type Mailbox interface {
	Process(ctx context.Context, m inbox.Mail) (inbox.Result, error)
}

// Probes are consulted by /status. A nil probe reports false.
type Probes struct {
	Database     contractx.Probe
	EmailService contractx.Probe
	Reasoning    contractx.Probe
	Timeout      time.Duration
}

type Server struct {
	mailbox  Mailbox
	verifier *qstash.Verifier
	probes   Probes
}

// NewRouter registers every route. The webhook route is only served when
// verifier is set.
func NewRouter(mailbox Mailbox, verifier *qstash.Verifier, probes Probes) *mux.Router {
	if probes.Timeout <= 0 {
		probes.Timeout = 3 * time.Second
	}
	s := &Server{mailbox: mailbox, verifier: verifier, probes: probes}

	r := mux.NewRouter()
	r.HandleFunc("/", s.Root).Methods(http.MethodGet)
	r.HandleFunc("/health", s.Health).Methods(http.MethodGet)
	r.HandleFunc("/status", s.Status).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/api/process-email", s.ProcessEmail).Methods(http.MethodPost)
	if verifier != nil {
		r.HandleFunc("/api/webhooks/mail", s.MailWebhook).Methods(http.MethodPost)
	}
	r.Use(requestLogger)
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("encode response")
	}
}
