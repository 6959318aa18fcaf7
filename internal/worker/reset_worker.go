package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
)

// DailyResetter archives one business date. The service layer implements it.
type DailyResetter interface {
	ResetDay(ctx context.Context, businessDate string) (int, error)
}

// ResetWorker processes jobs from QueueDailyReset.
type ResetWorker struct {
	resetter DailyResetter
}

func NewResetWorker(r DailyResetter) *ResetWorker {
	return &ResetWorker{resetter: r}
}

func (w *ResetWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var payload DailyResetPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("reset_worker: invalid payload")
		return nil
	}
	n, err := w.resetter.ResetDay(ctx, payload.BusinessDate)
	if err != nil {
		return fmt.Errorf("reset_worker: reset %s: %w", payload.BusinessDate, err)
	}
	log.Info().Str("business_date", payload.BusinessDate).Int("archived", n).Msg("reset_worker: day archived")
	return nil
}
