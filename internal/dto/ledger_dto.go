package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type EditCellRequest struct {
	Field string `json:"field" validate:"required,oneof=time service cash_amount card_amount tips note"`
	// Value is the raw cell text; "" clears the cell. time takes 24h HH:MM;
	// amounts are rounded to cents.
	Value string `json:"value" validate:"max=500"`
}

type ConfirmDeleteRequest struct {
	Token string `json:"token" validate:"required,uuid"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type RowResponse struct {
	EntryNumber    int              `json:"entry_number"`
	ID             *string          `json:"id"`
	TempID         string           `json:"temp_id,omitempty"`
	Time           *string          `json:"time"`
	TimeDisplay    string           `json:"time_display,omitempty"`
	Service        *string          `json:"service"`
	ServiceDisplay string           `json:"service_display,omitempty"`
	CashAmount     *decimal.Decimal `json:"cash_amount"`
	CardAmount     *decimal.Decimal `json:"card_amount"`
	Tips           *decimal.Decimal `json:"tips"`
	Note           *string          `json:"note"`
	State          string           `json:"state"`       // virtual | pending | committed
	SyncStatus     string           `json:"sync_status"` // synced | pending | failed
	LastError      string           `json:"last_error,omitempty"`
}

// TotalsResponse carries amounts fixed to two decimals.
type TotalsResponse struct {
	Cash string `json:"cash"`
	Card string `json:"card"`
	Tips string `json:"tips"`
}

type LedgerResponse struct {
	PaymentType   string         `json:"payment_type"`
	BusinessDate  string         `json:"business_date"`
	RowCount      int            `json:"row_count"`
	Rows          []RowResponse  `json:"rows"`
	Totals        TotalsResponse `json:"totals"`
	PendingDelete *int           `json:"pending_delete,omitempty"`
}

type DeleteRequestResponse struct {
	Token       string `json:"token"`
	EntryNumber int    `json:"entry_number"`
	ExpiresIn   int    `json:"expires_in"` // seconds
}
