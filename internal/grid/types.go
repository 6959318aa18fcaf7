// Package grid keeps one ledger bucket (a user's card or cash turns for one
// business day) in memory and mirrors it to a Backend. Edits apply locally
// at once and reach the backend through a debounced per-row write queue;
// structural changes (add, remove, delete) go to the backend synchronously.
package grid

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrUnknownPaymentType = errors.New("grid: unknown payment type")
	ErrUnknownField       = errors.New("grid: unknown field")
	ErrInvalidValue       = errors.New("grid: invalid cell value")
	ErrEntryOutOfRange    = errors.New("grid: entry out of range")
	ErrLastRow            = errors.New("grid: at least one row must remain")
	ErrRowNotEmpty        = errors.New("grid: row has data")
	ErrNoDeleteRequest    = errors.New("grid: no matching delete request")
	ErrDeleteExpired      = errors.New("grid: delete request expired")
	ErrNotLoaded          = errors.New("grid: not loaded")
	ErrClosed             = errors.New("grid: closed")
)

// PaymentType: "card" | "cash"
type PaymentType string

const (
	Card PaymentType = "card"
	Cash PaymentType = "cash"
)

func ParsePaymentType(s string) (PaymentType, error) {
	switch PaymentType(strings.ToLower(s)) {
	case Card:
		return Card, nil
	case Cash:
		return Cash, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPaymentType, s)
}

// Bucket identifies one grid.
type Bucket struct {
	UserID       uuid.UUID
	PaymentType  PaymentType
	BusinessDate string
}

func (b Bucket) String() string {
	return b.UserID.String() + "/" + string(b.PaymentType) + "/" + b.BusinessDate
}

// Field names a grid column as the UI sends it.
type Field string

const (
	FieldTime    Field = "time"
	FieldService Field = "service"
	FieldCash    Field = "cash_amount"
	FieldCard    Field = "card_amount"
	FieldTips    Field = "tips"
	FieldNote    Field = "note"
)

func ParseField(s string) (Field, error) {
	switch f := Field(s); f {
	case FieldTime, FieldService, FieldCash, FieldCard, FieldTips, FieldNote:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, s)
}

// Values are the editable cells of a row. Nil amounts are absent, which is
// not the same as zero.
type Values struct {
	Time    string
	Service string
	Note    string
	Cash    *decimal.Decimal
	Card    *decimal.Decimal
	Tips    *decimal.Decimal
}

// Empty reports whether no cell carries data.
func (v Values) Empty() bool {
	return v.Time == "" && v.Service == "" && v.Note == "" &&
		v.Cash == nil && v.Card == nil && v.Tips == nil
}

func (v *Values) set(f Field, raw string) error {
	switch f {
	case FieldTime:
		t, err := parseTime(raw)
		if err != nil {
			return err
		}
		v.Time = t
	case FieldService:
		v.Service = raw
	case FieldNote:
		v.Note = raw
	case FieldCash, FieldCard, FieldTips:
		d, err := parseCellAmount(raw)
		if err != nil {
			return err
		}
		switch f {
		case FieldCash:
			v.Cash = d
		case FieldCard:
			v.Card = d
		default:
			v.Tips = d
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, f)
	}
	return nil
}

// AmountScale and maxAmount mirror the decimal(12,2) amount columns.
const AmountScale = 2

var maxAmount = decimal.New(1, 10)

// ParseAmount turns cell input into an amount rounded to cents. Blank or
// unparsable input is absent (nil). A leading "$" and thousands separators
// are accepted.
func ParseAmount(raw string) *decimal.Decimal {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	d = d.Round(AmountScale)
	return &d
}

// parseCellAmount is ParseAmount plus the column range check.
func parseCellAmount(raw string) (*decimal.Decimal, error) {
	d := ParseAmount(raw)
	if d != nil && d.Abs().GreaterThanOrEqual(maxAmount) {
		return nil, fmt.Errorf("%w: amount %q out of range", ErrInvalidValue, raw)
	}
	return d, nil
}

// parseTime accepts "" or a 24h "HH:MM" clock time.
func parseTime(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", nil
	}
	if len(s) != 5 {
		return "", fmt.Errorf("%w: time %q is not HH:MM", ErrInvalidValue, raw)
	}
	if _, err := time.Parse("15:04", s); err != nil {
		return "", fmt.Errorf("%w: time %q is not HH:MM", ErrInvalidValue, raw)
	}
	return s, nil
}

// State of a row in its lifecycle.
type State int

const (
	Virtual   State = iota // shown, never written
	Pending                // has a temp id, insert not yet acknowledged
	Committed              // has a backend id
	Removed                // deleted from the backend
)

func (s State) String() string {
	switch s {
	case Virtual:
		return "virtual"
	case Pending:
		return "pending"
	case Committed:
		return "committed"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// SyncStatus tells the UI whether a row's cells match the backend.
type SyncStatus string

const (
	Synced     SyncStatus = "synced"
	SyncQueued SyncStatus = "pending"
	SyncFailed SyncStatus = "failed"
)

// Row is a read-only copy of a grid row.
type Row struct {
	EntryNumber int
	ID          uuid.UUID // uuid.Nil until committed
	TempID      string
	Values      Values
	State       State
	Sync        SyncStatus
	LastError   string
}

// Totals of the visible rows. Absent amounts count as zero.
type Totals struct {
	Cash decimal.Decimal
	Card decimal.Decimal
	Tips decimal.Decimal
}

// Sum adds up the values of rows.
func Sum(rows []Row) Totals {
	var t Totals
	for _, r := range rows {
		if r.Values.Cash != nil {
			t.Cash = t.Cash.Add(*r.Values.Cash)
		}
		if r.Values.Card != nil {
			t.Card = t.Card.Add(*r.Values.Card)
		}
		if r.Values.Tips != nil {
			t.Tips = t.Tips.Add(*r.Values.Tips)
		}
	}
	return t
}

// Record is a row as the backend stores it.
type Record struct {
	ID          uuid.UUID
	EntryNumber int
	Values      Values
}

// Backend persists the rows of one bucket.
type Backend interface {
	List(ctx context.Context) ([]Record, error)
	Insert(ctx context.Context, entry int, v Values) (uuid.UUID, error)
	Update(ctx context.Context, id uuid.UUID, entry int, v Values) error
	// DeleteAndRenumber removes the row with id (uuid.Nil when the row was
	// never written) and moves every entry above entry down by one, in one
	// transaction.
	DeleteAndRenumber(ctx context.Context, id uuid.UUID, entry int) error
}

// FailureSink receives rows whose write failed after every retry.
type FailureSink interface {
	WriteFailed(ctx context.Context, bucket Bucket, row Row, err error)
}

// Breaker guards backend calls. infra.CircuitBreaker satisfies it.
type Breaker interface {
	Execute(fn func() error) error
}
