package repository

import (
	"context"
	"time"

	"github.com/Skarath13/cards/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type TransactionRepository interface {
	ListBucket(ctx context.Context, b model.Bucket) ([]model.Transaction, error)
	Create(ctx context.Context, t *model.Transaction) error
	// Update writes every editable column of t, NULLs included.
	Update(ctx context.Context, t *model.Transaction) error
	// DeleteAndRenumber deletes id (skipped when uuid.Nil) and shifts every
	// entry above entry down by one, in one transaction.
	DeleteAndRenumber(ctx context.Context, b model.Bucket, id uuid.UUID, entry int) error
	ListByDate(ctx context.Context, businessDate string) ([]model.Transaction, error)
}

type transactionRepo struct{ db *gorm.DB }

func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepo{db: db}
}

func bucketScope(b model.Bucket) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("user_id = ? AND payment_type = ? AND business_date = ?",
			b.UserID, b.PaymentType, b.BusinessDate)
	}
}

func (r *transactionRepo) ListBucket(ctx context.Context, b model.Bucket) ([]model.Transaction, error) {
	var txs []model.Transaction
	err := r.db.WithContext(ctx).Scopes(bucketScope(b)).Order("entry_number ASC").Find(&txs).Error
	return txs, err
}

func (r *transactionRepo) Create(ctx context.Context, t *model.Transaction) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *transactionRepo) Update(ctx context.Context, t *model.Transaction) error {
	res := r.db.WithContext(ctx).Model(&model.Transaction{}).
		Where("id = ?", t.ID).
		Updates(map[string]interface{}{
			"entry_number": t.EntryNumber,
			"time":         nullString(t.Time),
			"service":      nullString(t.Service),
			"cash_amount":  nullDecimal(t.CashAmount),
			"card_amount":  nullDecimal(t.CardAmount),
			"tips":         nullDecimal(t.Tips),
			"note":         nullString(t.Note),
			"updated_at":   time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *transactionRepo) DeleteAndRenumber(ctx context.Context, b model.Bucket, id uuid.UUID, entry int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if id != uuid.Nil {
			if err := tx.Scopes(bucketScope(b)).Where("id = ?", id).Delete(&model.Transaction{}).Error; err != nil {
				return err
			}
		}
		return tx.Model(&model.Transaction{}).
			Scopes(bucketScope(b)).
			Where("entry_number > ?", entry).
			UpdateColumn("entry_number", gorm.Expr("entry_number - 1")).Error
	})
}

func (r *transactionRepo) ListByDate(ctx context.Context, businessDate string) ([]model.Transaction, error) {
	var txs []model.Transaction
	err := r.db.WithContext(ctx).
		Where("business_date = ?", businessDate).
		Order("user_id ASC, payment_type ASC, entry_number ASC").
		Find(&txs).Error
	return txs, err
}

// nil pointers must reach the driver as untyped nil so the column is cleared

func nullString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func nullDecimal(d *decimal.Decimal) interface{} {
	if d == nil {
		return nil
	}
	return *d
}
