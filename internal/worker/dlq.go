package worker

// dlq.go: dead letter queue
// Jobs that exceed the maximum retry count, and ledger rows whose write kept
// failing, are moved here for manual inspection.
// Uses a Redis list per source queue: dlq:{original_queue}

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Skarath13/cards/internal/grid"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const (
	DLQPrefix = "dlq:"

	// QueueLedgerWrites is the DLQ source name for failed grid row writes.
	QueueLedgerWrites = "ledger_writes"
)

// DLQEntry wraps a failed job with metadata for debugging.
type DLQEntry struct {
	OriginalQueue string          `json:"original_queue"`
	JobType       string          `json:"job_type"`
	Payload       json.RawMessage `json:"payload"`
	Reason        string          `json:"reason"`
	FailedAt      string          `json:"failed_at"` // ISO 8601
	Attempts      int             `json:"attempts"`
}

// SendToDLQ pushes a failed job to the dead letter queue for manual inspection.
func SendToDLQ(ctx context.Context, rdb *redis.Client, queue string, jobType string, payload json.RawMessage, reason string, attempts int) {
	entry := DLQEntry{
		OriginalQueue: queue,
		JobType:       jobType,
		Payload:       payload,
		Reason:        reason,
		FailedAt:      time.Now().UTC().Format(time.RFC3339),
		Attempts:      attempts,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		log.Error().Err(err).Str("queue", queue).Msg("dlq: failed to marshal entry")
		return
	}

	dlqKey := DLQPrefix + queue
	if err := rdb.LPush(ctx, dlqKey, data).Err(); err != nil {
		log.Error().Err(err).Str("dlq_key", dlqKey).Msg("dlq: failed to push to DLQ")
		return
	}

	log.Warn().
		Str("queue", queue).
		Str("job_type", jobType).
		Str("reason", reason).
		Int("attempts", attempts).
		Msg("dlq: job moved to dead letter queue")
}

// DLQLength returns the number of entries in a DLQ for monitoring.
func DLQLength(ctx context.Context, rdb *redis.Client, queue string) (int64, error) {
	return rdb.LLen(ctx, DLQPrefix+queue).Result()
}

// ── Ledger write sink ─────────────────────────────────────────────────────────

// FailedRowPayload is the DLQ payload of a ledger row that could not be written.
type FailedRowPayload struct {
	UserID       string           `json:"user_id"`
	PaymentType  string           `json:"payment_type"`
	BusinessDate string           `json:"business_date"`
	EntryNumber  int              `json:"entry_number"`
	ID           string           `json:"id,omitempty"`
	TempID       string           `json:"temp_id,omitempty"`
	Time         string           `json:"time,omitempty"`
	Service      string           `json:"service,omitempty"`
	CashAmount   *decimal.Decimal `json:"cash_amount,omitempty"`
	CardAmount   *decimal.Decimal `json:"card_amount,omitempty"`
	Tips         *decimal.Decimal `json:"tips,omitempty"`
	Note         string           `json:"note,omitempty"`
}

// LedgerDLQ records grid rows whose writes exhausted their retries.
type LedgerDLQ struct {
	rdb      *redis.Client
	attempts int
}

func NewLedgerDLQ(rdb *redis.Client, attempts int) *LedgerDLQ {
	return &LedgerDLQ{rdb: rdb, attempts: attempts}
}

func (d *LedgerDLQ) WriteFailed(ctx context.Context, b grid.Bucket, row grid.Row, err error) {
	payload := FailedRowPayload{
		UserID:       b.UserID.String(),
		PaymentType:  string(b.PaymentType),
		BusinessDate: b.BusinessDate,
		EntryNumber:  row.EntryNumber,
		TempID:       row.TempID,
		Time:         row.Values.Time,
		Service:      row.Values.Service,
		CashAmount:   row.Values.Cash,
		CardAmount:   row.Values.Card,
		Tips:         row.Values.Tips,
		Note:         row.Values.Note,
	}
	if row.ID != uuid.Nil {
		payload.ID = row.ID.String()
	}
	data, mErr := json.Marshal(payload)
	if mErr != nil {
		log.Error().Err(mErr).Msg("dlq: failed to marshal ledger row")
		return
	}
	// the write context may already be spent
	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	SendToDLQ(pushCtx, d.rdb, QueueLedgerWrites, "ledger_write", data, err.Error(), d.attempts)
}
