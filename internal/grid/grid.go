package grid

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Skarath13/cards/internal/clock"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Persist operations reported to Options.OnPersist.
const (
	OpInsert = "insert"
	OpUpdate = "update"
	OpAdd    = "add_row"
	OpDelete = "delete"
	OpLoad   = "load"
)

// Options tune a Grid. Zero values take the defaults below.
type Options struct {
	MinRows      int           // default 1
	Debounce     time.Duration // default 300ms
	MaxAttempts  int           // default 3
	RetryBase    time.Duration // default 500ms
	WriteTimeout time.Duration // default 10s
	DeleteTTL    time.Duration // default 2m
	Clock        clock.Clock
	Breaker      Breaker
	Sink         FailureSink
	// OnPersist observes every backend call; err is nil on success.
	OnPersist func(op string, err error)
}

func (o Options) withDefaults() Options {
	if o.MinRows < 1 {
		o.MinRows = 1
	}
	if o.Debounce <= 0 {
		o.Debounce = 300 * time.Millisecond
	}
	if o.MaxAttempts < 1 {
		o.MaxAttempts = 3
	}
	if o.RetryBase <= 0 {
		o.RetryBase = 500 * time.Millisecond
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.DeleteTTL <= 0 {
		o.DeleteTTL = 2 * time.Minute
	}
	if o.Clock == nil {
		o.Clock = clock.Real{}
	}
	return o
}

type row struct {
	key     string // stable across renumbering; the write queue key
	entry   int
	id      uuid.UUID
	tempID  string
	values  Values
	state   State
	sync    SyncStatus
	lastErr string
	version uint64
}

func (r *row) snapshot() Row {
	return Row{
		EntryNumber: r.entry,
		ID:          r.id,
		TempID:      r.tempID,
		Values:      r.values,
		State:       r.state,
		Sync:        r.sync,
		LastError:   r.lastErr,
	}
}

type deleteRequest struct {
	token   string
	entry   int
	expires time.Time
}

// Grid is the in-memory ledger of one bucket.
//
// Locking: mu guards every field below it and is never held across a backend
// call. opMu orders backend work: row writes hold it shared, structural
// changes (add, remove, delete) hold it exclusively so entry numbers cannot
// shift under a running write.
type Grid struct {
	bucket  Bucket
	backend Backend
	opts    Options
	queue   *WriteQueue

	opMu sync.RWMutex

	mu       sync.Mutex
	loaded   bool
	closed   bool
	rowCount int
	rows     map[int]*row // by entry number, hidden rows included
	byKey    map[string]*row
	deletion *deleteRequest
}

func New(bucket Bucket, backend Backend, opts Options) *Grid {
	g := &Grid{
		bucket:  bucket,
		backend: backend,
		opts:    opts.withDefaults(),
		rows:    make(map[int]*row),
		byKey:   make(map[string]*row),
	}
	g.queue = NewWriteQueue(g.opts.Debounce, g.opts.WriteTimeout, g.persist)
	return g
}

func (g *Grid) Bucket() Bucket { return g.bucket }

// Load replaces the grid's contents with the backend's rows.
// rowCount becomes max(highest entry, MinRows).
func (g *Grid) Load(ctx context.Context) ([]Row, error) {
	var records []Record
	err := g.execute(OpLoad, func() error {
		var err error
		records, err = g.backend.List(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("grid: load %s: %w", g.bucket, err)
	}

	g.mu.Lock()
	g.rows = make(map[int]*row, len(records))
	g.byKey = make(map[string]*row, len(records))
	g.rowCount = g.opts.MinRows
	for _, rec := range records {
		if rec.EntryNumber < 1 {
			continue
		}
		if _, dup := g.rows[rec.EntryNumber]; dup {
			log.Warn().Str("bucket", g.bucket.String()).Int("entry", rec.EntryNumber).
				Msg("grid: duplicate entry number in backend, keeping first")
			continue
		}
		r := &row{
			key:    rec.ID.String(),
			entry:  rec.EntryNumber,
			id:     rec.ID,
			values: rec.Values,
			state:  Committed,
			sync:   Synced,
		}
		g.rows[r.entry] = r
		g.byKey[r.key] = r
		if r.entry > g.rowCount {
			g.rowCount = r.entry
		}
	}
	g.loaded = true
	g.deletion = nil
	out := g.visibleLocked()
	g.mu.Unlock()
	return out, nil
}

// RowCount is the number of visible rows.
func (g *Grid) RowCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rowCount
}

// Rows returns entries 1..rowCount, virtual rows included.
func (g *Grid) Rows() []Row {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.visibleLocked()
}

// Row returns one visible row.
func (g *Grid) Row(entry int) (Row, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if entry < 1 || entry > g.rowCount {
		return Row{}, fmt.Errorf("%w: %d", ErrEntryOutOfRange, entry)
	}
	return g.rowLocked(entry), nil
}

// Totals sums the visible rows.
func (g *Grid) Totals() Totals {
	return Sum(g.Rows())
}

// EditCell applies value to one cell and schedules the row's write.
func (g *Grid) EditCell(entry int, field Field, value string) (Row, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.usableLocked(); err != nil {
		return Row{}, err
	}
	if entry < 1 || entry > g.rowCount {
		return Row{}, fmt.Errorf("%w: %d", ErrEntryOutOfRange, entry)
	}

	r := g.rows[entry]
	next := Values{}
	if r != nil {
		next = r.values
	}
	if err := next.set(field, value); err != nil {
		return Row{}, err
	}

	if r == nil {
		tmp := "tmp-" + uuid.NewString()
		r = &row{key: tmp, entry: entry, tempID: tmp, state: Pending}
		g.rows[entry] = r
		g.byKey[r.key] = r
	}
	r.values = next
	r.version++
	r.sync = SyncQueued
	g.queue.Schedule(r.key)
	return r.snapshot(), nil
}

// AddRow appends a row and writes an empty record for it right away. If the
// backend refuses, the row count is restored. A hidden row left behind by
// RemoveRow is shown again instead of inserting a new one.
func (g *Grid) AddRow(ctx context.Context) (Row, error) {
	g.opMu.Lock()
	defer g.opMu.Unlock()

	g.mu.Lock()
	if err := g.usableLocked(); err != nil {
		g.mu.Unlock()
		return Row{}, err
	}
	g.rowCount++
	entry := g.rowCount
	if hidden, ok := g.rows[entry]; ok {
		out := hidden.snapshot()
		g.mu.Unlock()
		return out, nil
	}
	g.mu.Unlock()

	var id uuid.UUID
	err := g.execute(OpAdd, func() error {
		var err error
		id, err = g.backend.Insert(ctx, entry, Values{})
		return err
	})

	g.mu.Lock()
	defer g.mu.Unlock()
	// the new entry was visible during the insert, so it may have been edited
	edited := g.rows[entry]
	if err != nil {
		if g.rowCount == entry {
			g.rowCount--
		}
		if edited != nil {
			delete(g.rows, entry)
			delete(g.byKey, edited.key)
			g.queue.Cancel(edited.key)
		}
		return Row{}, fmt.Errorf("grid: add row: %w", err)
	}
	if edited != nil {
		edited.id = id
		edited.tempID = ""
		edited.state = Committed
		return edited.snapshot(), nil
	}
	r := &row{key: id.String(), entry: entry, id: id, state: Committed, sync: Synced}
	g.rows[entry] = r
	g.byKey[r.key] = r
	return r.snapshot(), nil
}

// RemoveRow hides the trailing row. Only an empty row can be removed and one
// row always remains.
func (g *Grid) RemoveRow() error {
	g.opMu.Lock()
	defer g.opMu.Unlock()

	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.usableLocked(); err != nil {
		return err
	}
	if g.rowCount <= 1 {
		return ErrLastRow
	}
	if r, ok := g.rows[g.rowCount]; ok && !r.values.Empty() {
		return fmt.Errorf("%w: entry %d", ErrRowNotEmpty, g.rowCount)
	}
	g.rowCount--
	return nil
}

// RequestDelete opens a delete confirmation for entry and returns its token.
// A newer request replaces an older one.
func (g *Grid) RequestDelete(entry int) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.usableLocked(); err != nil {
		return "", err
	}
	if entry < 1 || entry > g.rowCount {
		return "", fmt.Errorf("%w: %d", ErrEntryOutOfRange, entry)
	}
	g.deletion = &deleteRequest{
		token:   uuid.NewString(),
		entry:   entry,
		expires: g.opts.Clock.Now().Add(g.opts.DeleteTTL),
	}
	return g.deletion.token, nil
}

// PendingDelete returns the entry awaiting confirmation, if any.
func (g *Grid) PendingDelete() (int, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.deletion == nil || g.opts.Clock.Now().After(g.deletion.expires) {
		return 0, false
	}
	return g.deletion.entry, true
}

// CancelDelete discards the open delete request.
func (g *Grid) CancelDelete() {
	g.mu.Lock()
	g.deletion = nil
	g.mu.Unlock()
}

// ConfirmDelete deletes the requested row and renumbers the rows after it.
// Pending writes of the row are flushed first. The backend does the delete
// and the renumbering in one transaction; local rows shift only after it
// succeeds. The request is consumed either way.
func (g *Grid) ConfirmDelete(ctx context.Context, token string) error {
	g.mu.Lock()
	req := g.deletion
	if err := g.checkDeleteLocked(token); err != nil {
		g.mu.Unlock()
		return err
	}
	var key string
	if r, ok := g.rows[req.entry]; ok {
		key = r.key
	}
	g.mu.Unlock()

	if key != "" {
		if err := g.queue.Run(ctx, key); err != nil {
			log.Warn().Err(err).Str("bucket", g.bucket.String()).Int("entry", req.entry).
				Msg("grid: flush before delete failed")
		}
	}

	g.opMu.Lock()
	defer g.opMu.Unlock()

	g.mu.Lock()
	if err := g.checkDeleteLocked(token); err != nil {
		g.mu.Unlock()
		return err
	}
	g.deletion = nil
	entry := req.entry
	target := g.rows[entry]
	id := uuid.Nil
	if target != nil {
		id = target.id
	}
	g.mu.Unlock()

	err := g.execute(OpDelete, func() error {
		return g.backend.DeleteAndRenumber(ctx, id, entry)
	})
	if err != nil {
		return fmt.Errorf("grid: delete entry %d: %w", entry, err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if target != nil {
		target.state = Removed
		delete(g.byKey, target.key)
		g.queue.Cancel(target.key)
	}
	shifted := make(map[int]*row, len(g.rows))
	for e, r := range g.rows {
		if e == entry {
			continue
		}
		if e > entry {
			r.entry = e - 1
		}
		shifted[r.entry] = r
	}
	g.rows = shifted
	g.rowCount = max(g.rowCount-1, 1)
	return nil
}

// Flush writes every queued row now.
func (g *Grid) Flush(ctx context.Context) error {
	return g.queue.Flush(ctx)
}

// Pending reports whether any row has a write queued or running.
func (g *Grid) Pending() bool {
	return g.queue.Len() > 0
}

// Close stops the write timers. Writes already running are not cancelled.
func (g *Grid) Close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
	g.queue.Close()
}

// ── persistence ───────────────────────────────────────────────────────────────

// persist is the WriteFunc of the grid's queue: one write carrying the row's
// current values, retried with backoff.
func (g *Grid) persist(ctx context.Context, key string) error {
	g.opMu.RLock()
	defer g.opMu.RUnlock()

	g.mu.Lock()
	r, ok := g.byKey[key]
	if !ok || r.state == Removed {
		g.mu.Unlock()
		return nil
	}
	values := r.values
	version := r.version
	entry := r.entry
	id := r.id
	g.mu.Unlock()

	err := withRetry(ctx, g.opts.MaxAttempts, g.opts.RetryBase, func(attempt int) error {
		if id != uuid.Nil {
			return g.execute(OpUpdate, func() error {
				return g.backend.Update(ctx, id, entry, values)
			})
		}
		return g.execute(OpInsert, func() error {
			newID, err := g.backend.Insert(ctx, entry, values)
			if err != nil {
				return err
			}
			id = newID
			return nil
		})
	})

	g.mu.Lock()
	if r.state == Removed {
		g.mu.Unlock()
		return err
	}
	if id != uuid.Nil && r.id == uuid.Nil {
		r.id = id
		r.tempID = ""
		r.state = Committed
	}
	if err != nil {
		r.sync = SyncFailed
		r.lastErr = err.Error()
		failed := r.snapshot()
		g.mu.Unlock()

		log.Error().Err(err).
			Str("bucket", g.bucket.String()).
			Int("entry", entry).
			Int("attempts", g.opts.MaxAttempts).
			Msg("grid: row write failed after retries")
		if g.opts.Sink != nil {
			g.opts.Sink.WriteFailed(ctx, g.bucket, failed, err)
		}
		return err
	}
	r.lastErr = ""
	if r.version == version {
		r.sync = Synced
	}
	g.mu.Unlock()
	return nil
}

func (g *Grid) execute(op string, fn func() error) error {
	var err error
	if g.opts.Breaker != nil {
		err = g.opts.Breaker.Execute(fn)
	} else {
		err = fn()
	}
	if g.opts.OnPersist != nil {
		g.opts.OnPersist(op, err)
	}
	return err
}

// ── helpers (g.mu held) ───────────────────────────────────────────────────────

func (g *Grid) usableLocked() error {
	if g.closed {
		return ErrClosed
	}
	if !g.loaded {
		return ErrNotLoaded
	}
	return nil
}

func (g *Grid) checkDeleteLocked(token string) error {
	if g.closed {
		return ErrClosed
	}
	req := g.deletion
	if req == nil || req.token != token {
		return ErrNoDeleteRequest
	}
	if g.opts.Clock.Now().After(req.expires) {
		g.deletion = nil
		return ErrDeleteExpired
	}
	return nil
}

func (g *Grid) rowLocked(entry int) Row {
	if r, ok := g.rows[entry]; ok {
		return r.snapshot()
	}
	return Row{EntryNumber: entry, State: Virtual, Sync: Synced}
}

func (g *Grid) visibleLocked() []Row {
	out := make([]Row, 0, g.rowCount)
	for e := 1; e <= g.rowCount; e++ {
		out = append(out, g.rowLocked(e))
	}
	return out
}

// Entries lists the materialized entry numbers, hidden rows included.
func (g *Grid) Entries() []int {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]int, 0, len(g.rows))
	for e := range g.rows {
		out = append(out, e)
	}
	sort.Ints(out)
	return out
}
