package repository

import (
	"context"
	"time"

	"github.com/Skarath13/cards/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const archiveBatchSize = 200

type ArchiveRepository interface {
	// ArchiveThrough moves every transaction of businessDate, and any left
	// behind on an earlier date, into archived_transactions stamped with at,
	// in one transaction. Returns how many rows moved; an empty day moves 0
	// without error.
	ArchiveThrough(ctx context.Context, businessDate string, at time.Time) (int, error)
	ListArchived(ctx context.Context, businessDate string) ([]model.ArchivedTransaction, error)
}

type archiveRepo struct{ db *gorm.DB }

func NewArchiveRepository(db *gorm.DB) ArchiveRepository { return &archiveRepo{db: db} }

func (r *archiveRepo) ArchiveThrough(ctx context.Context, businessDate string, at time.Time) (int, error) {
	moved := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var live []model.Transaction
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("business_date <= ?", businessDate).
			Order("business_date ASC, user_id ASC, payment_type ASC, entry_number ASC").
			Find(&live).Error; err != nil {
			return err
		}
		if len(live) == 0 {
			return nil
		}

		archived := make([]model.ArchivedTransaction, len(live))
		ids := make([]uuid.UUID, len(live))
		for i, t := range live {
			archived[i] = t.Archive(at)
			ids[i] = t.ID
		}
		if err := tx.CreateInBatches(&archived, archiveBatchSize).Error; err != nil {
			return err
		}
		if err := tx.Where("id IN ?", ids).Delete(&model.Transaction{}).Error; err != nil {
			return err
		}
		moved = len(live)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return moved, nil
}

func (r *archiveRepo) ListArchived(ctx context.Context, businessDate string) ([]model.ArchivedTransaction, error) {
	var rows []model.ArchivedTransaction
	err := r.db.WithContext(ctx).
		Where("business_date = ?", businessDate).
		Order("user_id ASC, payment_type ASC, entry_number ASC").
		Find(&rows).Error
	return rows, err
}
