package infra

// pdf.go: end-of-day report rendered with go-pdf/fpdf.
// One A4 page (or more) per business date:
//   - Header with business date and generation time
//   - One section per user and payment type with its turns
//   - Section totals (cash, card, tips) and a grand total

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
)

// ReportLine is one archived turn.
type ReportLine struct {
	Entry   int
	Time    string // already formatted for display
	Service string
	Cash    decimal.Decimal
	Card    decimal.Decimal
	Tips    decimal.Decimal
	Note    string
}

// ReportSection is one user's ledger for one payment type.
type ReportSection struct {
	UserName    string
	PaymentType string
	Lines       []ReportLine
	Cash        decimal.Decimal
	Card        decimal.Decimal
	Tips        decimal.Decimal
}

type DailyReport struct {
	BusinessDate string
	GeneratedAt  time.Time
	Sections     []ReportSection
}

// GenerateDailyReportPDF renders r and returns the PDF bytes.
func GenerateDailyReportPDF(r DailyReport) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(12, 12, 12)
	pdf.SetAutoPageBreak(true, 12)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 24

	// ── Header ───────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(contentW, 9, "Daily Turn Ledger", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(contentW, 5, "Business date: "+r.BusinessDate, "", 1, "L", false, 0, "")
	pdf.CellFormat(contentW, 5, "Generated: "+r.GeneratedAt.Format("2006-01-02 15:04 MST"), "", 1, "L", false, 0, "")
	pdf.Ln(3)

	if len(r.Sections) == 0 {
		pdf.SetFont("Helvetica", "I", 10)
		pdf.CellFormat(contentW, 6, "No transactions were recorded.", "", 1, "L", false, 0, "")
	}

	// columns: # | time | service | cash | card | tips | note
	widths := []float64{8, 18, 60, 22, 22, 18, contentW - 148}
	headers := []string{"#", "Time", "Service", "Cash", "Card", "Tips", "Note"}

	var grandCash, grandCard, grandTips decimal.Decimal
	for _, sec := range r.Sections {
		// ── Section header ───────────────────────────────────────────────────
		pdf.SetFont("Helvetica", "B", 11)
		title := fmt.Sprintf("%s (%s)", sec.UserName, strings.ToUpper(sec.PaymentType))
		pdf.CellFormat(contentW, 7, tr(title), "", 1, "L", false, 0, "")

		pdf.SetFont("Helvetica", "B", 8)
		for i, h := range headers {
			align := "L"
			if i >= 3 && i <= 5 {
				align = "R"
			}
			pdf.CellFormat(widths[i], 5, h, "B", 0, align, false, 0, "")
		}
		pdf.Ln(-1)

		// ── Rows ─────────────────────────────────────────────────────────────
		pdf.SetFont("Helvetica", "", 8)
		for _, l := range sec.Lines {
			cells := []string{
				fmt.Sprintf("%d", l.Entry),
				l.Time,
				truncate(pdfSafe(l.Service), 38),
				money(l.Cash),
				money(l.Card),
				money(l.Tips),
				truncate(l.Note, 24),
			}
			for i, c := range cells {
				align := "L"
				if i >= 3 && i <= 5 {
					align = "R"
				}
				pdf.CellFormat(widths[i], 5, tr(c), "", 0, align, false, 0, "")
			}
			pdf.Ln(-1)
		}

		// ── Section totals ───────────────────────────────────────────────────
		pdf.SetFont("Helvetica", "B", 8)
		pdf.CellFormat(widths[0]+widths[1]+widths[2], 6, "Totals", "T", 0, "L", false, 0, "")
		pdf.CellFormat(widths[3], 6, money(sec.Cash), "T", 0, "R", false, 0, "")
		pdf.CellFormat(widths[4], 6, money(sec.Card), "T", 0, "R", false, 0, "")
		pdf.CellFormat(widths[5], 6, money(sec.Tips), "T", 0, "R", false, 0, "")
		pdf.CellFormat(widths[6], 6, "", "T", 1, "L", false, 0, "")
		pdf.Ln(4)

		grandCash = grandCash.Add(sec.Cash)
		grandCard = grandCard.Add(sec.Card)
		grandTips = grandTips.Add(sec.Tips)
	}

	// ── Grand total ──────────────────────────────────────────────────────────
	if len(r.Sections) > 0 {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(contentW, 6, fmt.Sprintf("Day total  cash %s  card %s  tips %s",
			money(grandCash), money(grandCard), money(grandTips)), "", 1, "L", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf: render report: %w", err)
	}
	return buf.Bytes(), nil
}

func money(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

// pdfSafe swaps characters the core fonts cannot encode.
func pdfSafe(s string) string {
	return strings.ReplaceAll(s, "→", ">")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "..."
}
