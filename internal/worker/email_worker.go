package worker

// email_worker.go
// Delivers customer order emails from QueueEmail through the SMTP relay,
// guarded by a circuit breaker.

import (
	"context"
	"encoding/json"
	"fmt"

	"storefront/internal/infra"

	"github.com/rs/zerolog/log"
)

// EmailJobPayload is the job envelope sent to QueueEmail.
type EmailJobPayload struct {
	ToEmail        string `json:"to_email"`
	Subject        string `json:"subject"`
	Body           string `json:"body"`
	AttachmentPath string `json:"attachment_path,omitempty"`
}

// EmailSender is the part of infra.Mailer the worker needs.
type EmailSender interface {
	Configured() bool
	Send(to, subject, body, attachmentPath string) error
}

var _ EmailSender = (*infra.Mailer)(nil)

type EmailWorker struct {
	mailer EmailSender
	cb     *infra.CircuitBreaker
}

func NewEmailWorker(mailer EmailSender, cb *infra.CircuitBreaker) *EmailWorker {
	return &EmailWorker{mailer: mailer, cb: cb}
}

// Process sends one email. Malformed payloads are dropped; delivery errors
// are returned so the dispatcher retries them.
func (w *EmailWorker) Process(_ context.Context, raw json.RawMessage) error {
	var payload EmailJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("email_worker: invalid payload")
		return nil
	}
	if payload.ToEmail == "" {
		log.Warn().Msg("email_worker: empty to_email, skipping")
		return nil
	}
	if !w.mailer.Configured() {
		log.Debug().Str("to", payload.ToEmail).Str("subject", payload.Subject).Msg("email_worker: smtp not configured, skipping")
		return nil
	}

	err := w.cb.Execute(func() error {
		return w.mailer.Send(payload.ToEmail, payload.Subject, payload.Body, payload.AttachmentPath)
	})
	if err != nil {
		return fmt.Errorf("email_worker: send to %s: %w", payload.ToEmail, err)
	}
	log.Info().Str("to", payload.ToEmail).Msg("email_worker: sent")
	return nil
}
