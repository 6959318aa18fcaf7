package service

import (
	"github.com/Skarath13/cards/internal/bizdate"
	"github.com/Skarath13/cards/internal/catalog"
	"github.com/Skarath13/cards/internal/dto"
	"github.com/Skarath13/cards/internal/grid"

	"github.com/google/uuid"
)

func rowResponse(r grid.Row) dto.RowResponse {
	resp := dto.RowResponse{
		EntryNumber: r.EntryNumber,
		TempID:      r.TempID,
		Time:        optional(r.Values.Time),
		Service:     optional(r.Values.Service),
		Note:        optional(r.Values.Note),
		CashAmount:  r.Values.Cash,
		CardAmount:  r.Values.Card,
		Tips:        r.Values.Tips,
		State:       r.State.String(),
		SyncStatus:  string(r.Sync),
		LastError:   r.LastError,
	}
	if r.ID != uuid.Nil {
		id := r.ID.String()
		resp.ID = &id
	}
	if r.Values.Time != "" {
		resp.TimeDisplay = bizdate.Display12h(r.Values.Time)
	}
	if r.Values.Service != "" {
		resp.ServiceDisplay = catalog.DisplayService(r.Values.Service)
	}
	return resp
}

func totalsResponse(t grid.Totals) dto.TotalsResponse {
	return dto.TotalsResponse{
		Cash: t.Cash.StringFixed(2),
		Card: t.Card.StringFixed(2),
		Tips: t.Tips.StringFixed(2),
	}
}

func ledgerResponse(g *grid.Grid) *dto.LedgerResponse {
	rows := g.Rows()
	out := make([]dto.RowResponse, len(rows))
	for i, r := range rows {
		out[i] = rowResponse(r)
	}
	b := g.Bucket()
	resp := &dto.LedgerResponse{
		PaymentType:  string(b.PaymentType),
		BusinessDate: b.BusinessDate,
		RowCount:     len(rows),
		Rows:         out,
		Totals:       totalsResponse(grid.Sum(rows)),
	}
	if entry, ok := g.PendingDelete(); ok {
		resp.PendingDelete = &entry
	}
	return resp
}
