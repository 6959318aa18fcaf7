package worker

// email_worker.go
// Processes jobs from QueueReportEmail.
// Mails the stored end-of-day PDF to the configured report address.

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
)

// ReportMailer sends one message with an optional PDF attachment.
type ReportMailer interface {
	SendReport(to, subject, body, filename string, pdf []byte) error
}

// ReportFetcher reads a stored report back by key.
type ReportFetcher interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

type EmailWorker struct {
	mailer  ReportMailer
	reports ReportFetcher
}

func NewEmailWorker(mailer ReportMailer, reports ReportFetcher) *EmailWorker {
	return &EmailWorker{mailer: mailer, reports: reports}
}

// Process sends the report email. A malformed payload is dropped; send and
// storage failures are returned so the pool retries them.
func (w *EmailWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var payload ReportEmailPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("email_worker: invalid payload")
		return nil
	}
	if payload.ToEmail == "" {
		log.Warn().Msg("email_worker: empty to_email, skipping")
		return nil
	}

	var pdf []byte
	if payload.ReportKey != "" && w.reports != nil {
		body, err := w.reports.Get(ctx, payload.ReportKey)
		if err != nil {
			return fmt.Errorf("email_worker: load report %s: %w", payload.ReportKey, err)
		}
		pdf = body
	}

	if err := w.mailer.SendReport(payload.ToEmail, payload.Subject, payload.Body, payload.Filename, pdf); err != nil {
		return fmt.Errorf("email_worker: send to %s: %w", payload.ToEmail, err)
	}
	log.Info().Str("to", payload.ToEmail).Str("report", payload.ReportKey).Msg("email_worker: report sent")
	return nil
}
