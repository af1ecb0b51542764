package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/tanpawarit/library-mail-agent/agent/inbox"
	"github.com/tanpawarit/library-mail-agent/pkg/metrics"
	"github.com/tanpawarit/library-mail-agent/pkg/qstash"
)

type processResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Data    *inbox.Result `json:"data,omitempty"`
}

type statusResponse struct {
	Database     bool `json:"database"`
	EmailService bool `json:"email_service"`
	Reasoning    bool `json:"reasoning"`
	Overall      bool `json:"overall"`
}

func (s *Server) Root(w http.ResponseWriter, r *http.Request) {
	endpoints := map[string]string{
		"health":         "/health",
		"status":         "/status",
		"metrics":        "/metrics",
		"process_single": "/api/process-email",
	}
	if s.verifier != nil {
		endpoints["mail_webhook"] = "/api/webhooks/mail"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "Library email automation API",
		"status":    "active",
		"endpoints": endpoints,
	})
}

func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "library_email_api",
	})
}

// Status probes every dependency concurrently. The agent is operational
// when both the reasoning service and the database answer.
func (s *Server) Status(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.probes.Timeout)
	defer cancel()

	var (
		wg  sync.WaitGroup
		out statusResponse
	)
	check := func(name string, p interface{ Ping(context.Context) error }, dst *bool) {
		defer wg.Done()
		if p == nil {
			return
		}
		if err := p.Ping(ctx); err != nil {
			log.Warn().Str("dependency", name).Err(err).Msg("status probe failed")
			return
		}
		*dst = true
	}

	wg.Add(3)
	go check("database", s.probes.Database, &out.Database)
	go check("email_service", s.probes.EmailService, &out.EmailService)
	go check("reasoning", s.probes.Reasoning, &out.Reasoning)
	wg.Wait()

	out.Overall = out.Database && out.Reasoning
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) ProcessEmail(w http.ResponseWriter, r *http.Request) {
	var m inbox.Mail
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&m); err != nil {
		metrics.InboundMessages.WithLabelValues("http", "invalid").Inc()
		writeJSON(w, http.StatusBadRequest, processResponse{Message: "request body must be a JSON object"})
		return
	}
	s.process(r.Context(), w, m, "http")
}

// MailWebhook accepts QStash deliveries. The signature covers the raw body,
// so it is read once and verified before decoding.
func (s *Server) MailWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, processResponse{Message: "could not read body"})
		return
	}
	if _, err := s.verifier.Verify(r.Header.Get(qstash.SignatureHeader), body); err != nil {
		log.Warn().Err(err).Msg("webhook signature rejected")
		metrics.InboundMessages.WithLabelValues("webhook", "unauthorized").Inc()
		writeJSON(w, http.StatusUnauthorized, processResponse{Message: "invalid signature"})
		return
	}

	var m inbox.Mail
	if err := json.Unmarshal(body, &m); err != nil {
		metrics.InboundMessages.WithLabelValues("webhook", "invalid").Inc()
		writeJSON(w, http.StatusBadRequest, processResponse{Message: "request body must be a JSON object"})
		return
	}
	s.process(r.Context(), w, m, "webhook")
}

func (s *Server) process(ctx context.Context, w http.ResponseWriter, m inbox.Mail, transport string) {
	res, err := s.mailbox.Process(ctx, m)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, inbox.ErrInvalidMail) {
			status = http.StatusBadRequest
		}
		metrics.InboundMessages.WithLabelValues(transport, "invalid").Inc()
		writeJSON(w, status, processResponse{Message: err.Error()})
		return
	}

	metrics.InboundMessages.WithLabelValues(transport, "processed").Inc()
	writeJSON(w, http.StatusOK, processResponse{
		Success: true,
		Message: "email processed",
		Data:    &res,
	})
}
