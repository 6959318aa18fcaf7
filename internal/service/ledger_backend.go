package service

import (
	"context"

	"github.com/Skarath13/cards/internal/grid"
	"github.com/Skarath13/cards/internal/model"
	"github.com/Skarath13/cards/internal/repository"

	"github.com/google/uuid"
)

// ledgerBackend binds a TransactionRepository to one bucket so a grid can
// persist through it.
type ledgerBackend struct {
	repo   repository.TransactionRepository
	bucket model.Bucket
}

func newLedgerBackend(repo repository.TransactionRepository, b grid.Bucket) *ledgerBackend {
	return &ledgerBackend{
		repo: repo,
		bucket: model.Bucket{
			UserID:       b.UserID,
			PaymentType:  string(b.PaymentType),
			BusinessDate: b.BusinessDate,
		},
	}
}

func (l *ledgerBackend) List(ctx context.Context) ([]grid.Record, error) {
	txs, err := l.repo.ListBucket(ctx, l.bucket)
	if err != nil {
		return nil, err
	}
	out := make([]grid.Record, len(txs))
	for i := range txs {
		out[i] = grid.Record{
			ID:          txs[i].ID,
			EntryNumber: txs[i].EntryNumber,
			Values:      valuesOf(&txs[i]),
		}
	}
	return out, nil
}

func (l *ledgerBackend) Insert(ctx context.Context, entry int, v grid.Values) (uuid.UUID, error) {
	t := l.transaction(entry, v)
	if err := l.repo.Create(ctx, t); err != nil {
		return uuid.Nil, err
	}
	return t.ID, nil
}

func (l *ledgerBackend) Update(ctx context.Context, id uuid.UUID, entry int, v grid.Values) error {
	t := l.transaction(entry, v)
	t.ID = id
	return l.repo.Update(ctx, t)
}

func (l *ledgerBackend) DeleteAndRenumber(ctx context.Context, id uuid.UUID, entry int) error {
	return l.repo.DeleteAndRenumber(ctx, l.bucket, id, entry)
}

func (l *ledgerBackend) transaction(entry int, v grid.Values) *model.Transaction {
	return &model.Transaction{
		UserID:       l.bucket.UserID,
		PaymentType:  l.bucket.PaymentType,
		BusinessDate: l.bucket.BusinessDate,
		EntryNumber:  entry,
		Time:         optional(v.Time),
		Service:      optional(v.Service),
		Note:         optional(v.Note),
		CashAmount:   v.Cash,
		CardAmount:   v.Card,
		Tips:         v.Tips,
	}
}

func valuesOf(t *model.Transaction) grid.Values {
	return grid.Values{
		Time:    deref(t.Time),
		Service: deref(t.Service),
		Note:    deref(t.Note),
		Cash:    t.CashAmount,
		Card:    t.CardAmount,
		Tips:    t.Tips,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
