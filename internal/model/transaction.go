package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Transaction is one turn in a user's daily ledger for one payment type.
// PaymentType: "card" | "cash"
// EntryNumber is dense and 1-based within (user_id, payment_type, business_date).
// The bucket index is not unique: renumbering after a delete shifts
// entry_number in a single UPDATE.
type Transaction struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID       uuid.UUID `gorm:"type:uuid;not null;index:idx_transactions_bucket,priority:1"`
	PaymentType  string    `gorm:"type:varchar(4);not null;index:idx_transactions_bucket,priority:2"`
	BusinessDate string    `gorm:"type:varchar(10);not null;index:idx_transactions_bucket,priority:3;index"`
	EntryNumber  int       `gorm:"not null;index:idx_transactions_bucket,priority:4"`
	// Time is HH:MM (24h) as typed into the grid
	Time       *string          `gorm:"type:varchar(5)"`
	Service    *string          `gorm:"type:text"`
	CashAmount *decimal.Decimal `gorm:"type:decimal(12,2)"`
	CardAmount *decimal.Decimal `gorm:"type:decimal(12,2)"`
	Tips       *decimal.Decimal `gorm:"type:decimal(12,2)"`
	Note       *string          `gorm:"type:text"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (t *Transaction) BeforeCreate(_ *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// ArchivedTransaction is a Transaction copied out of the live table by the
// nightly reset. It keeps the original id.
type ArchivedTransaction struct {
	ID           uuid.UUID        `gorm:"type:uuid;primaryKey"`
	UserID       uuid.UUID        `gorm:"type:uuid;not null;index"`
	PaymentType  string           `gorm:"type:varchar(4);not null"`
	BusinessDate string           `gorm:"type:varchar(10);not null;index"`
	EntryNumber  int              `gorm:"not null"`
	Time         *string          `gorm:"type:varchar(5)"`
	Service      *string          `gorm:"type:text"`
	CashAmount   *decimal.Decimal `gorm:"type:decimal(12,2)"`
	CardAmount   *decimal.Decimal `gorm:"type:decimal(12,2)"`
	Tips         *decimal.Decimal `gorm:"type:decimal(12,2)"`
	Note         *string          `gorm:"type:text"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ArchivedAt   time.Time `gorm:"not null;index"`
}

// Archive copies t into an ArchivedTransaction stamped with at.
func (t Transaction) Archive(at time.Time) ArchivedTransaction {
	return ArchivedTransaction{
		ID:           t.ID,
		UserID:       t.UserID,
		PaymentType:  t.PaymentType,
		BusinessDate: t.BusinessDate,
		EntryNumber:  t.EntryNumber,
		Time:         t.Time,
		Service:      t.Service,
		CashAmount:   t.CashAmount,
		CardAmount:   t.CardAmount,
		Tips:         t.Tips,
		Note:         t.Note,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
		ArchivedAt:   at,
	}
}

// Bucket scopes transactions to one grid: a user's card or cash turns for
// one business day.
type Bucket struct {
	UserID       uuid.UUID
	PaymentType  string
	BusinessDate string
}
