package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Skarath13/cards/internal/bizdate"
	"github.com/Skarath13/cards/internal/catalog"
	"github.com/Skarath13/cards/internal/dto"
	"github.com/Skarath13/cards/internal/grid"
	"github.com/Skarath13/cards/internal/infra"
	"github.com/Skarath13/cards/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrLedgerUnavailable = errors.New("ledger unavailable, try again")
	ErrInvalidService    = errors.New("invalid service selection")
)

// LedgerService serves the grids of the current business date. Grids live in
// memory, one per (user, payment type, date), and load on first use.
type LedgerService interface {
	View(ctx context.Context, userID uuid.UUID, pt grid.PaymentType) (*dto.LedgerResponse, error)
	EditCell(ctx context.Context, userID uuid.UUID, pt grid.PaymentType, entry int, req dto.EditCellRequest) (*dto.RowResponse, error)
	AddRow(ctx context.Context, userID uuid.UUID, pt grid.PaymentType) (*dto.RowResponse, error)
	RemoveRow(ctx context.Context, userID uuid.UUID, pt grid.PaymentType) (*dto.LedgerResponse, error)
	RequestDelete(ctx context.Context, userID uuid.UUID, pt grid.PaymentType, entry int) (*dto.DeleteRequestResponse, error)
	ConfirmDelete(ctx context.Context, userID uuid.UUID, pt grid.PaymentType, token string) (*dto.LedgerResponse, error)
	CancelDelete(ctx context.Context, userID uuid.UUID, pt grid.PaymentType) error
	Totals(ctx context.Context, userID uuid.UUID, pt grid.PaymentType) (*dto.TotalsResponse, error)
	Flush(ctx context.Context, userID uuid.UUID, pt grid.PaymentType) (*dto.LedgerResponse, error)
	// DropThrough flushes and forgets every grid of businessDate or an
	// earlier date.
	DropThrough(ctx context.Context, businessDate string) error
	Shutdown(ctx context.Context) error
}

type gridEntry struct {
	ready chan struct{}
	grid  *grid.Grid
	err   error
}

type ledgerService struct {
	repo repository.TransactionRepository
	cal  *bizdate.Calendar
	opts grid.Options

	mu    sync.Mutex
	grids map[grid.Bucket]*gridEntry
}

func NewLedgerService(repo repository.TransactionRepository, cal *bizdate.Calendar, opts grid.Options) LedgerService {
	if opts.Clock == nil {
		opts.Clock = cal.Clock()
	}
	return &ledgerService{
		repo:  repo,
		cal:   cal,
		opts:  opts,
		grids: make(map[grid.Bucket]*gridEntry),
	}
}

// ── Operations ────────────────────────────────────────────────────────────────

func (s *ledgerService) View(ctx context.Context, userID uuid.UUID, pt grid.PaymentType) (*dto.LedgerResponse, error) {
	g, err := s.grid(ctx, userID, pt)
	if err != nil {
		return nil, err
	}
	return ledgerResponse(g), nil
}

func (s *ledgerService) EditCell(ctx context.Context, userID uuid.UUID, pt grid.PaymentType, entry int, req dto.EditCellRequest) (*dto.RowResponse, error) {
	field, err := grid.ParseField(req.Field)
	if err != nil {
		return nil, err
	}
	if field == grid.FieldService {
		if sel, ok := catalog.Parse(req.Value); ok {
			if err := sel.Validate(); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidService, err)
			}
		}
	}
	g, err := s.grid(ctx, userID, pt)
	if err != nil {
		return nil, err
	}
	row, err := g.EditCell(entry, field, req.Value)
	if err != nil {
		return nil, err
	}
	resp := rowResponse(row)
	return &resp, nil
}

func (s *ledgerService) AddRow(ctx context.Context, userID uuid.UUID, pt grid.PaymentType) (*dto.RowResponse, error) {
	g, err := s.grid(ctx, userID, pt)
	if err != nil {
		return nil, err
	}
	row, err := g.AddRow(ctx)
	if err != nil {
		return nil, err
	}
	resp := rowResponse(row)
	return &resp, nil
}

func (s *ledgerService) RemoveRow(ctx context.Context, userID uuid.UUID, pt grid.PaymentType) (*dto.LedgerResponse, error) {
	g, err := s.grid(ctx, userID, pt)
	if err != nil {
		return nil, err
	}
	if err := g.RemoveRow(); err != nil {
		return nil, err
	}
	return ledgerResponse(g), nil
}

func (s *ledgerService) RequestDelete(ctx context.Context, userID uuid.UUID, pt grid.PaymentType, entry int) (*dto.DeleteRequestResponse, error) {
	g, err := s.grid(ctx, userID, pt)
	if err != nil {
		return nil, err
	}
	token, err := g.RequestDelete(entry)
	if err != nil {
		return nil, err
	}
	return &dto.DeleteRequestResponse{
		Token:       token,
		EntryNumber: entry,
		ExpiresIn:   int(s.deleteTTL().Seconds()),
	}, nil
}

func (s *ledgerService) ConfirmDelete(ctx context.Context, userID uuid.UUID, pt grid.PaymentType, token string) (*dto.LedgerResponse, error) {
	g, err := s.grid(ctx, userID, pt)
	if err != nil {
		return nil, err
	}
	if err := g.ConfirmDelete(ctx, token); err != nil {
		return nil, err
	}
	return ledgerResponse(g), nil
}

func (s *ledgerService) CancelDelete(ctx context.Context, userID uuid.UUID, pt grid.PaymentType) error {
	g, err := s.grid(ctx, userID, pt)
	if err != nil {
		return err
	}
	g.CancelDelete()
	return nil
}

func (s *ledgerService) Totals(ctx context.Context, userID uuid.UUID, pt grid.PaymentType) (*dto.TotalsResponse, error) {
	g, err := s.grid(ctx, userID, pt)
	if err != nil {
		return nil, err
	}
	t := totalsResponse(g.Totals())
	return &t, nil
}

func (s *ledgerService) Flush(ctx context.Context, userID uuid.UUID, pt grid.PaymentType) (*dto.LedgerResponse, error) {
	g, err := s.grid(ctx, userID, pt)
	if err != nil {
		return nil, err
	}
	if err := g.Flush(ctx); err != nil {
		// failed rows are flagged in the response
		log.Warn().Err(err).Str("bucket", g.Bucket().String()).Msg("ledger: flush left failed rows")
	}
	return ledgerResponse(g), nil
}

func (s *ledgerService) DropThrough(ctx context.Context, businessDate string) error {
	// YYYY-MM-DD orders the same as a string
	return s.drop(ctx, func(b grid.Bucket) bool { return b.BusinessDate <= businessDate })
}

func (s *ledgerService) Shutdown(ctx context.Context) error {
	return s.drop(ctx, func(grid.Bucket) bool { return true })
}

// ── Registry ──────────────────────────────────────────────────────────────────

// grid returns the loaded grid of today's bucket, loading it on first use.
// Concurrent first callers share one load.
func (s *ledgerService) grid(ctx context.Context, userID uuid.UUID, pt grid.PaymentType) (*grid.Grid, error) {
	b := grid.Bucket{UserID: userID, PaymentType: pt, BusinessDate: s.cal.Today()}

	s.mu.Lock()
	if e, ok := s.grids[b]; ok {
		s.mu.Unlock()
		select {
		case <-e.ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if e.err != nil {
			return nil, e.err
		}
		return e.grid, nil
	}
	e := &gridEntry{ready: make(chan struct{})}
	s.grids[b] = e
	s.mu.Unlock()

	g := grid.New(b, newLedgerBackend(s.repo, b), s.opts)
	if _, err := g.Load(ctx); err != nil {
		log.Error().Err(err).Str("bucket", b.String()).Msg("ledger: initial load failed")
		g.Close()
		s.mu.Lock()
		delete(s.grids, b)
		s.mu.Unlock()
		e.err = fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
		close(e.ready)
		return nil, e.err
	}
	e.grid = g
	close(e.ready)
	infra.OpenGrids.Inc()
	return g, nil
}

func (s *ledgerService) drop(ctx context.Context, match func(grid.Bucket) bool) error {
	s.mu.Lock()
	var dropped []*gridEntry
	for b, e := range s.grids {
		if match(b) {
			dropped = append(dropped, e)
			delete(s.grids, b)
		}
	}
	s.mu.Unlock()

	var errs []error
	for _, e := range dropped {
		select {
		case <-e.ready:
		case <-ctx.Done():
			return ctx.Err()
		}
		if e.grid == nil {
			continue
		}
		if err := e.grid.Flush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.grid.Bucket(), err))
		}
		e.grid.Close()
		infra.OpenGrids.Dec()
	}
	return errors.Join(errs...)
}

func (s *ledgerService) deleteTTL() time.Duration {
	if s.opts.DeleteTTL > 0 {
		return s.opts.DeleteTTL
	}
	return 2 * time.Minute
}
