package service

import (
	"context"
	"fmt"

	"github.com/Skarath13/cards/internal/bizdate"
	"github.com/Skarath13/cards/internal/catalog"
	"github.com/Skarath13/cards/internal/dto"
	"github.com/Skarath13/cards/internal/infra"
	"github.com/Skarath13/cards/internal/model"
	"github.com/Skarath13/cards/internal/repository"
	"github.com/Skarath13/cards/internal/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// ResetService archives a business day: live grids are flushed and dropped,
// the day's rows move to archived_transactions, then the end-of-day report is
// rendered, stored and queued for email.
type ResetService interface {
	ResetDaily(ctx context.Context, businessDate string) (*dto.ResetResponse, error)
	// ResetDay is ResetDaily for the job queue.
	ResetDay(ctx context.Context, businessDate string) (int, error)
}

// ReportEmailQueue is the part of worker.Dispatcher the reset needs.
type ReportEmailQueue interface {
	EnqueueReportEmail(ctx context.Context, p worker.ReportEmailPayload) error
}

// ResetDeps bundles the collaborators of ResetService. Reports, Mail and
// ReportEmail are optional; without them the reset only archives.
type ResetDeps struct {
	Archive     repository.ArchiveRepository
	Users       repository.UserRepository
	Ledger      LedgerService
	Calendar    *bizdate.Calendar
	Reports     infra.ReportStore
	Mail        ReportEmailQueue
	ReportEmail string
}

type resetService struct {
	ResetDeps
}

func NewResetService(deps ResetDeps) ResetService {
	return &resetService{ResetDeps: deps}
}

func (s *resetService) ResetDay(ctx context.Context, businessDate string) (int, error) {
	resp, err := s.ResetDaily(ctx, businessDate)
	if err != nil {
		return 0, err
	}
	return resp.ArchivedCount, nil
}

// ResetDaily archives businessDate (today when empty) together with rows left
// on earlier dates. Running it again on an archived day moves nothing and
// succeeds.
func (s *resetService) ResetDaily(ctx context.Context, businessDate string) (*dto.ResetResponse, error) {
	if businessDate == "" {
		businessDate = s.Calendar.Today()
	}
	if !bizdate.Valid(businessDate) {
		return nil, fmt.Errorf("reset: invalid business date %q", businessDate)
	}

	// rows still waiting in a write queue must land before the move
	s.dropGrids(ctx, businessDate)
	at := s.Calendar.Now().UTC()
	moved, err := s.Archive.ArchiveThrough(ctx, businessDate, at)
	if err != nil {
		log.Error().Err(err).Str("business_date", businessDate).Msg("reset: archive failed")
		return nil, fmt.Errorf("reset: archive %s: %w", businessDate, err)
	}
	// A request may have reopened the day while its rows moved. Anything that
	// still slips past this pass is swept by the next reset.
	s.dropGrids(ctx, businessDate)
	if late, err := s.Archive.ArchiveThrough(ctx, businessDate, at); err != nil {
		log.Warn().Err(err).Str("business_date", businessDate).Msg("reset: second archive pass failed")
	} else {
		moved += late
	}
	infra.ArchivedRows.Add(float64(moved))
	log.Info().Str("business_date", businessDate).Int("archived", moved).Msg("reset: day archived")

	resp := &dto.ResetResponse{
		Success:       true,
		Message:       fmt.Sprintf("Reset completed. Archived %d transactions.", moved),
		BusinessDate:  businessDate,
		ArchivedCount: moved,
	}
	if moved > 0 && s.Reports != nil {
		// the archive is committed; a report failure is only logged
		key, err := s.publishReport(ctx, businessDate)
		if err != nil {
			log.Error().Err(err).Str("business_date", businessDate).Msg("reset: report failed")
		} else {
			resp.ReportKey = key
		}
	}
	return resp, nil
}

func (s *resetService) dropGrids(ctx context.Context, businessDate string) {
	if s.Ledger == nil {
		return
	}
	if err := s.Ledger.DropThrough(ctx, businessDate); err != nil {
		log.Warn().Err(err).Str("business_date", businessDate).Msg("reset: some rows failed to flush before archive")
	}
}

// ── Report ────────────────────────────────────────────────────────────────────

func reportKey(businessDate string) string {
	return "daily/" + businessDate + ".pdf"
}

func (s *resetService) publishReport(ctx context.Context, businessDate string) (string, error) {
	rows, err := s.Archive.ListArchived(ctx, businessDate)
	if err != nil {
		return "", err
	}
	names := map[uuid.UUID]string{}
	if users, err := s.Users.List(ctx); err == nil {
		for _, u := range users {
			names[u.ID] = u.Name
		}
	} else {
		log.Warn().Err(err).Msg("reset: user names unavailable for report")
	}

	report := buildDailyReport(businessDate, rows, names)
	report.GeneratedAt = s.Calendar.Now().In(s.Calendar.Location())
	pdf, err := infra.GenerateDailyReportPDF(report)
	if err != nil {
		return "", err
	}

	key := reportKey(businessDate)
	location, err := s.Reports.Put(ctx, key, pdf, "application/pdf")
	if err != nil {
		return "", err
	}
	log.Info().Str("location", location).Msg("reset: report stored")

	if s.Mail != nil && s.ReportEmail != "" {
		err := s.Mail.EnqueueReportEmail(ctx, worker.ReportEmailPayload{
			ToEmail:   s.ReportEmail,
			Subject:   "Daily ledger " + businessDate,
			Body:      fmt.Sprintf("Attached is the turn ledger for %s (%d turns).", businessDate, len(rows)),
			ReportKey: key,
			Filename:  "ledger-" + businessDate + ".pdf",
		})
		if err != nil {
			log.Warn().Err(err).Msg("reset: could not queue report email")
		}
	}
	return key, nil
}

// buildDailyReport groups rows, already ordered by user, payment type and
// entry, into report sections.
func buildDailyReport(businessDate string, rows []model.ArchivedTransaction, names map[uuid.UUID]string) infra.DailyReport {
	report := infra.DailyReport{BusinessDate: businessDate}
	var sec *infra.ReportSection
	var lastUser uuid.UUID
	lastType := ""
	for _, r := range rows {
		if sec == nil || r.UserID != lastUser || r.PaymentType != lastType {
			name := names[r.UserID]
			if name == "" {
				name = r.UserID.String()
			}
			report.Sections = append(report.Sections, infra.ReportSection{UserName: name, PaymentType: r.PaymentType})
			sec = &report.Sections[len(report.Sections)-1]
			lastUser, lastType = r.UserID, r.PaymentType
		}
		line := infra.ReportLine{
			Entry:   r.EntryNumber,
			Time:    bizdate.Display12h(deref(r.Time)),
			Service: catalog.DisplayService(deref(r.Service)),
			Cash:    amount(r.CashAmount),
			Card:    amount(r.CardAmount),
			Tips:    amount(r.Tips),
			Note:    deref(r.Note),
		}
		sec.Lines = append(sec.Lines, line)
		sec.Cash = sec.Cash.Add(line.Cash)
		sec.Card = sec.Card.Add(line.Card)
		sec.Tips = sec.Tips.Add(line.Tips)
	}
	return report
}

func amount(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}
