package grid

import (
	"context"
	"testing"
	"time"

	"github.com/Skarath13/cards/internal/clock"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── Helpers ───────────────────────────────────────────────────────────────────

const (
	testDebounce = 20 * time.Millisecond
	waitFor      = 2 * time.Second
	tick         = 5 * time.Millisecond
)

var testBucket = Bucket{UserID: uuid.New(), PaymentType: Card, BusinessDate: "2026-10-19"}

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func testOptions() Options {
	return Options{
		Debounce:  testDebounce,
		RetryBase: time.Millisecond,
	}
}

func loadedGrid(t *testing.T, b *fakeBackend, opts Options) *Grid {
	t.Helper()
	g := New(testBucket, b, opts)
	_, err := g.Load(context.Background())
	require.NoError(t, err)
	t.Cleanup(g.Close)
	return g
}

func notes(rows []Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Values.Note
	}
	return out
}

// ── Load ──────────────────────────────────────────────────────────────────────

func TestLoad_EmptyBucketShowsOneVirtualRow(t *testing.T) {
	g := loadedGrid(t, newFakeBackend(), testOptions())

	rows := g.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].EntryNumber)
	assert.Equal(t, Virtual, rows[0].State)
}

func TestLoad_RowCountIsHighestEntry(t *testing.T) {
	b := newFakeBackend(
		Record{EntryNumber: 1, Values: Values{Note: "a"}},
		Record{EntryNumber: 4, Values: Values{Note: "d"}},
	)
	g := loadedGrid(t, b, testOptions())

	assert.Equal(t, 4, g.RowCount())
	assert.Equal(t, []string{"a", "", "", "d"}, notes(g.Rows()))
}

func TestLoad_MinRows(t *testing.T) {
	opts := testOptions()
	opts.MinRows = 5
	g := loadedGrid(t, newFakeBackend(Record{EntryNumber: 2}), opts)
	assert.Equal(t, 5, g.RowCount())
}

func TestLoad_BackendError(t *testing.T) {
	b := newFakeBackend()
	b.listErr = errBackend
	g := New(testBucket, b, testOptions())

	_, err := g.Load(context.Background())
	assert.ErrorIs(t, err, errBackend)

	_, err = g.EditCell(1, FieldNote, "x")
	assert.ErrorIs(t, err, ErrNotLoaded)
}

// ── Edits and the write queue ─────────────────────────────────────────────────

func TestEditCell_OneWritePerQuietPeriodWithFinalValues(t *testing.T) {
	b := newFakeBackend()
	g := loadedGrid(t, b, testOptions())

	for _, v := range []string{"1", "12", "12.5"} {
		_, err := g.EditCell(1, FieldCard, v)
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		ins, _, _ := b.counts()
		return ins == 1
	}, waitFor, tick)
	time.Sleep(3 * testDebounce)

	ins, upd, _ := b.counts()
	assert.Equal(t, 1, ins)
	assert.Equal(t, 0, upd)
	assert.True(t, dec("12.5").Equal(*b.lastWrite().Card))

	row, err := g.Row(1)
	require.NoError(t, err)
	assert.Equal(t, Committed, row.State)
	assert.Equal(t, Synced, row.Sync)
	assert.NotEqual(t, uuid.Nil, row.ID)
	assert.Empty(t, row.TempID)
}

func TestEditCell_TempIDReplacedNotDuplicated(t *testing.T) {
	b := newFakeBackend()
	g := loadedGrid(t, b, testOptions())

	row, err := g.EditCell(1, FieldNote, "first")
	require.NoError(t, err)
	assert.Equal(t, Pending, row.State)
	assert.Contains(t, row.TempID, "tmp-")

	require.NoError(t, g.Flush(context.Background()))
	_, err = g.EditCell(1, FieldNote, "second")
	require.NoError(t, err)
	require.NoError(t, g.Flush(context.Background()))

	ins, upd, _ := b.counts()
	assert.Equal(t, 1, ins)
	assert.Equal(t, 1, upd)
	recs := b.sorted()
	require.Len(t, recs, 1)
	assert.Equal(t, "second", recs[0].Values.Note)
}

func TestEditCell_EditDuringInflightWriteGetsOneFollowUp(t *testing.T) {
	b := newFakeBackend()
	b.gate = make(chan struct{})
	b.started = make(chan struct{}, 4)
	g := loadedGrid(t, b, testOptions())

	_, err := g.EditCell(1, FieldNote, "v1")
	require.NoError(t, err)
	<-b.started // insert is now in flight

	_, _ = g.EditCell(1, FieldNote, "v2")
	_, _ = g.EditCell(1, FieldNote, "v3")
	b.gate <- struct{}{} // release insert

	<-b.started // follow-up write
	b.gate <- struct{}{}

	require.Eventually(t, func() bool { return !g.Pending() }, waitFor, tick)
	ins, upd, _ := b.counts()
	assert.Equal(t, 1, ins)
	assert.Equal(t, 1, upd)
	assert.Equal(t, "v3", b.lastWrite().Note)
}

func TestEditCell_AmountCoercion(t *testing.T) {
	g := loadedGrid(t, newFakeBackend(), testOptions())

	row, err := g.EditCell(1, FieldCash, "abc")
	require.NoError(t, err)
	assert.Nil(t, row.Values.Cash)

	row, err = g.EditCell(1, FieldCash, "$1,234.50")
	require.NoError(t, err)
	require.NotNil(t, row.Values.Cash)
	assert.True(t, dec("1234.50").Equal(*row.Values.Cash))

	row, err = g.EditCell(1, FieldCash, "")
	require.NoError(t, err)
	assert.Nil(t, row.Values.Cash)

	row, err = g.EditCell(1, FieldTime, "14:05")
	require.NoError(t, err)
	assert.Equal(t, "14:05", row.Values.Time)
}

func TestEditCell_Rejects(t *testing.T) {
	g := loadedGrid(t, newFakeBackend(), testOptions())

	_, err := g.EditCell(2, FieldNote, "x")
	assert.ErrorIs(t, err, ErrEntryOutOfRange)
	_, err = g.EditCell(0, FieldNote, "x")
	assert.ErrorIs(t, err, ErrEntryOutOfRange)
	_, err = g.EditCell(1, Field("colour"), "x")
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestEditCell_ValuesFitTheColumns(t *testing.T) {
	b := newFakeBackend()
	g := loadedGrid(t, b, testOptions())

	row, err := g.EditCell(1, FieldCard, "1.005")
	require.NoError(t, err)
	require.NotNil(t, row.Values.Card)
	assert.Equal(t, "1.01", row.Values.Card.String())

	_, err = g.EditCell(1, FieldTime, "2:05 PM")
	assert.ErrorIs(t, err, ErrInvalidValue)
	_, err = g.EditCell(1, FieldTime, "24:00")
	assert.ErrorIs(t, err, ErrInvalidValue)
	_, err = g.EditCell(1, FieldCash, "123456789012.5")
	assert.ErrorIs(t, err, ErrInvalidValue)
	_, err = g.EditCell(1, FieldTips, "-10000000000")
	assert.ErrorIs(t, err, ErrInvalidValue)

	row, err = g.EditCell(1, FieldCash, "9,999,999,999.99")
	require.NoError(t, err)
	assert.True(t, dec("9999999999.99").Equal(*row.Values.Cash))

	require.NoError(t, g.Flush(context.Background()))
	sent := b.lastWrite()
	assert.Empty(t, sent.Time)
	assert.Equal(t, "1.01", sent.Card.String())
	assert.True(t, dec("9999999999.99").Equal(*sent.Cash))
	assert.Equal(t, "1.01", g.Totals().Card.String())
}

func TestPersist_RetriesThenFlagsRowFailed(t *testing.T) {
	b := newFakeBackend()
	b.insertErr = errBackend
	sink := &recordingSink{}
	opts := testOptions()
	opts.Sink = sink
	g := loadedGrid(t, b, opts)

	_, err := g.EditCell(1, FieldCard, "10")
	require.NoError(t, err)
	assert.Error(t, g.Flush(context.Background()))

	row, _ := g.Row(1)
	assert.Equal(t, SyncFailed, row.Sync)
	assert.Contains(t, row.LastError, "backend unavailable")
	assert.True(t, dec("10").Equal(*row.Values.Card), "local value is kept")
	assert.Equal(t, 1, sink.len())

	// backend recovers; the next edit writes and clears the flag
	b.mu.Lock()
	b.insertErr = nil
	b.mu.Unlock()
	_, err = g.EditCell(1, FieldCard, "11")
	require.NoError(t, err)
	require.NoError(t, g.Flush(context.Background()))

	row, _ = g.Row(1)
	assert.Equal(t, Synced, row.Sync)
	assert.Empty(t, row.LastError)
}

func TestPersist_TransientFailureIsRetried(t *testing.T) {
	b := newFakeBackend()
	b.failNext = 2
	var ops []string
	opts := testOptions()
	opts.OnPersist = func(op string, err error) {
		if err == nil {
			ops = append(ops, op)
		}
	}
	g := loadedGrid(t, b, opts)

	_, err := g.EditCell(1, FieldTips, "3")
	require.NoError(t, err)
	require.NoError(t, g.Flush(context.Background()))

	row, _ := g.Row(1)
	assert.Equal(t, Synced, row.Sync)
	assert.Equal(t, []string{OpLoad, OpInsert}, ops)
}

// ── Totals ────────────────────────────────────────────────────────────────────

func TestTotals_FieldWiseSum(t *testing.T) {
	b := newFakeBackend(
		Record{EntryNumber: 1, Values: Values{Card: dec("10")}},
		Record{EntryNumber: 2, Values: Values{Card: dec("5"), Tips: dec("2")}},
	)
	g := loadedGrid(t, b, testOptions())

	tot := g.Totals()
	assert.True(t, tot.Card.Equal(decimal.NewFromInt(15)))
	assert.True(t, tot.Tips.Equal(decimal.NewFromInt(2)))
	assert.True(t, tot.Cash.IsZero())
}

func TestTotals_IgnoresHiddenRows(t *testing.T) {
	b := newFakeBackend(Record{EntryNumber: 1, Values: Values{Cash: dec("4")}})
	g := loadedGrid(t, b, testOptions())

	_, err := g.AddRow(context.Background())
	require.NoError(t, err)
	require.NoError(t, g.RemoveRow())
	assert.True(t, g.Totals().Cash.Equal(decimal.NewFromInt(4)))
}

// ── Add / remove ──────────────────────────────────────────────────────────────

func TestAddRow_ThenEditUpdatesInsertedRecord(t *testing.T) {
	b := newFakeBackend()
	g := loadedGrid(t, b, testOptions())

	row, err := g.AddRow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, row.EntryNumber)
	assert.Equal(t, Committed, row.State)
	assert.Equal(t, 2, g.RowCount())

	_, err = g.EditCell(2, FieldCard, "20")
	require.NoError(t, err)
	require.NoError(t, g.Flush(context.Background()))

	ins, upd, _ := b.counts()
	assert.Equal(t, 1, ins, "only the add-row insert")
	assert.Equal(t, 1, upd)
	recs := b.sorted()
	require.Len(t, recs, 1)
	assert.Equal(t, 2, recs[0].EntryNumber)
	assert.True(t, dec("20").Equal(*recs[0].Values.Card))
}

func TestAddRow_FailureRollsBack(t *testing.T) {
	b := newFakeBackend()
	b.insertErr = errBackend
	g := loadedGrid(t, b, testOptions())

	_, err := g.AddRow(context.Background())
	assert.ErrorIs(t, err, errBackend)
	assert.Equal(t, 1, g.RowCount())
}

func TestAddRow_EditDuringInsertAdoptsID(t *testing.T) {
	b := newFakeBackend()
	b.gate = make(chan struct{})
	b.started = make(chan struct{}, 4)
	g := loadedGrid(t, b, testOptions())

	done := make(chan error, 1)
	go func() {
		_, err := g.AddRow(context.Background())
		done <- err
	}()
	<-b.started // insert in flight, entry 2 already visible

	_, err := g.EditCell(2, FieldCard, "7")
	require.NoError(t, err)
	b.gate <- struct{}{}
	require.NoError(t, <-done)

	<-b.started // the edit goes out as an update of the new record
	b.gate <- struct{}{}

	require.Eventually(t, func() bool { return !g.Pending() }, waitFor, tick)
	ins, upd, _ := b.counts()
	assert.Equal(t, 1, ins)
	assert.Equal(t, 1, upd)
	recs := b.sorted()
	require.Len(t, recs, 1)
	assert.Equal(t, 2, recs[0].EntryNumber)
	assert.True(t, dec("7").Equal(*recs[0].Values.Card))
	rows := g.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, recs[0].ID, rows[1].ID)
	assert.Equal(t, Synced, rows[1].Sync)
}

func TestAddRow_EditDuringFailedInsertIsDropped(t *testing.T) {
	b := newFakeBackend()
	b.insertErr = errBackend
	b.gate = make(chan struct{})
	b.started = make(chan struct{}, 4)
	g := loadedGrid(t, b, testOptions())

	done := make(chan error, 1)
	go func() {
		_, err := g.AddRow(context.Background())
		done <- err
	}()
	<-b.started

	_, err := g.EditCell(2, FieldCard, "7")
	require.NoError(t, err)
	b.gate <- struct{}{}
	assert.ErrorIs(t, <-done, errBackend)

	require.Eventually(t, func() bool { return !g.Pending() }, waitFor, tick)
	assert.Equal(t, 1, g.RowCount())
	assert.Empty(t, b.sorted())
	rows := g.Rows()
	require.Len(t, rows, 1)
	assert.Nil(t, rows[0].Values.Card)
}

func TestAddRow_RevealsHiddenRow(t *testing.T) {
	b := newFakeBackend()
	g := loadedGrid(t, b, testOptions())

	first, err := g.AddRow(context.Background())
	require.NoError(t, err)
	require.NoError(t, g.RemoveRow())

	again, err := g.AddRow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	ins, _, _ := b.counts()
	assert.Equal(t, 1, ins)
}

func TestRemoveRow_Rules(t *testing.T) {
	b := newFakeBackend(
		Record{EntryNumber: 1},
		Record{EntryNumber: 2, Values: Values{Note: "keep"}},
	)
	g := loadedGrid(t, b, testOptions())

	assert.ErrorIs(t, g.RemoveRow(), ErrRowNotEmpty)

	_, err := g.AddRow(context.Background())
	require.NoError(t, err)
	require.NoError(t, g.RemoveRow())
	assert.Equal(t, 2, g.RowCount())

	single := loadedGrid(t, newFakeBackend(), testOptions())
	assert.ErrorIs(t, single.RemoveRow(), ErrLastRow)
}

// ── Delete ────────────────────────────────────────────────────────────────────

func threeRows() *fakeBackend {
	return newFakeBackend(
		Record{EntryNumber: 1, Values: Values{Note: "a"}},
		Record{EntryNumber: 2, Values: Values{Note: "b"}},
		Record{EntryNumber: 3, Values: Values{Note: "c"}},
	)
}

func TestConfirmDelete_RenumbersWithoutGaps(t *testing.T) {
	b := threeRows()
	g := loadedGrid(t, b, testOptions())

	token, err := g.RequestDelete(2)
	require.NoError(t, err)
	require.NoError(t, g.ConfirmDelete(context.Background(), token))

	assert.Equal(t, 2, g.RowCount())
	rows := g.Rows()
	assert.Equal(t, []string{"a", "c"}, notes(rows))
	assert.Equal(t, 1, rows[0].EntryNumber)
	assert.Equal(t, 2, rows[1].EntryNumber)

	recs := b.sorted()
	require.Len(t, recs, 2)
	assert.Equal(t, 1, recs[0].EntryNumber)
	assert.Equal(t, "a", recs[0].Values.Note)
	assert.Equal(t, 2, recs[1].EntryNumber)
	assert.Equal(t, "c", recs[1].Values.Note)

	// writes after the shift land on the new entry number
	_, err = g.EditCell(2, FieldNote, "c2")
	require.NoError(t, err)
	require.NoError(t, g.Flush(context.Background()))
	recs = b.sorted()
	assert.Equal(t, 2, recs[1].EntryNumber)
	assert.Equal(t, "c2", recs[1].Values.Note)
}

func TestConfirmDelete_LastRemainingRowKeepsOne(t *testing.T) {
	b := newFakeBackend(Record{EntryNumber: 1, Values: Values{Note: "only"}})
	g := loadedGrid(t, b, testOptions())

	token, err := g.RequestDelete(1)
	require.NoError(t, err)
	require.NoError(t, g.ConfirmDelete(context.Background(), token))

	assert.Equal(t, 1, g.RowCount())
	assert.Equal(t, Virtual, g.Rows()[0].State)
	assert.Empty(t, b.sorted())
}

func TestConfirmDelete_FailureLeavesGridUnchanged(t *testing.T) {
	b := threeRows()
	b.deleteErr = errBackend
	g := loadedGrid(t, b, testOptions())

	token, err := g.RequestDelete(2)
	require.NoError(t, err)
	assert.ErrorIs(t, g.ConfirmDelete(context.Background(), token), errBackend)

	assert.Equal(t, []string{"a", "b", "c"}, notes(g.Rows()))
	_, pending := g.PendingDelete()
	assert.False(t, pending, "the request is discarded")
}

func TestConfirmDelete_FlushesPendingWriteFirst(t *testing.T) {
	b := newFakeBackend(Record{EntryNumber: 1, Values: Values{Note: "a"}})
	opts := testOptions()
	opts.Debounce = time.Hour
	g := loadedGrid(t, b, opts)

	_, err := g.AddRow(context.Background())
	require.NoError(t, err)
	_, err = g.AddRow(context.Background())
	require.NoError(t, err)
	_, err = g.EditCell(2, FieldNote, "typed")
	require.NoError(t, err)

	token, err := g.RequestDelete(2)
	require.NoError(t, err)
	require.NoError(t, g.ConfirmDelete(context.Background(), token))

	_, upd, del := b.counts()
	assert.Equal(t, 1, upd, "queued edit written before delete")
	assert.Equal(t, 1, del)
	assert.False(t, g.Pending())
	assert.Len(t, b.sorted(), 2)
}

func TestConfirmDelete_VirtualRowOnlyRenumbers(t *testing.T) {
	b := newFakeBackend(Record{EntryNumber: 3, Values: Values{Note: "c"}})
	g := loadedGrid(t, b, testOptions())

	token, err := g.RequestDelete(2)
	require.NoError(t, err)
	require.NoError(t, g.ConfirmDelete(context.Background(), token))

	recs := b.sorted()
	require.Len(t, recs, 1)
	assert.Equal(t, 2, recs[0].EntryNumber)
	assert.Equal(t, []string{"", "c"}, notes(g.Rows()))
}

func TestConfirmDelete_TokenChecks(t *testing.T) {
	clk := clock.NewMock(time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC))
	opts := testOptions()
	opts.Clock = clk
	g := loadedGrid(t, threeRows(), opts)
	ctx := context.Background()

	assert.ErrorIs(t, g.ConfirmDelete(ctx, "nope"), ErrNoDeleteRequest)

	token, err := g.RequestDelete(1)
	require.NoError(t, err)
	assert.ErrorIs(t, g.ConfirmDelete(ctx, "other"), ErrNoDeleteRequest)

	g.CancelDelete()
	assert.ErrorIs(t, g.ConfirmDelete(ctx, token), ErrNoDeleteRequest)

	token, err = g.RequestDelete(3)
	require.NoError(t, err)
	entry, ok := g.PendingDelete()
	require.True(t, ok)
	assert.Equal(t, 3, entry)

	clk.Advance(3 * time.Minute)
	assert.ErrorIs(t, g.ConfirmDelete(ctx, token), ErrDeleteExpired)
	assert.Equal(t, 3, g.RowCount())

	_, err = g.RequestDelete(4)
	assert.ErrorIs(t, err, ErrEntryOutOfRange)
}

func TestClose_RejectsEdits(t *testing.T) {
	g := loadedGrid(t, newFakeBackend(), testOptions())
	g.Close()
	_, err := g.EditCell(1, FieldNote, "x")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestParsePaymentType(t *testing.T) {
	pt, err := ParsePaymentType("CARD")
	require.NoError(t, err)
	assert.Equal(t, Card, pt)
	_, err = ParsePaymentType("check")
	assert.ErrorIs(t, err, ErrUnknownPaymentType)
}
