package grid

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// ── In-memory Backend Stub ────────────────────────────────────────────────────

type fakeBackend struct {
	mu      sync.Mutex
	records map[uuid.UUID]*Record

	inserts int
	updates int
	deletes int
	writes  []Values // every insert/update payload in order

	listErr   error
	insertErr error
	deleteErr error
	failNext  int // fail this many insert/update calls, then succeed

	// gate, when set, makes Insert/Update announce on started and wait for a
	// value on gate before returning.
	gate    chan struct{}
	started chan struct{}
}

func newFakeBackend(seed ...Record) *fakeBackend {
	b := &fakeBackend{records: make(map[uuid.UUID]*Record)}
	for i := range seed {
		rec := seed[i]
		if rec.ID == uuid.Nil {
			rec.ID = uuid.New()
		}
		b.records[rec.ID] = &rec
	}
	return b
}

var errBackend = errors.New("backend unavailable")

func (b *fakeBackend) List(_ context.Context) ([]Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listErr != nil {
		return nil, b.listErr
	}
	return b.sortedLocked(), nil
}

func (b *fakeBackend) Insert(_ context.Context, entry int, v Values) (uuid.UUID, error) {
	b.wait()
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.insertErr != nil {
		return uuid.Nil, b.insertErr
	}
	if b.failNext > 0 {
		b.failNext--
		return uuid.Nil, errBackend
	}
	id := uuid.New()
	b.records[id] = &Record{ID: id, EntryNumber: entry, Values: v}
	b.inserts++
	b.writes = append(b.writes, v)
	return id, nil
}

func (b *fakeBackend) Update(_ context.Context, id uuid.UUID, entry int, v Values) error {
	b.wait()
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failNext > 0 {
		b.failNext--
		return errBackend
	}
	rec, ok := b.records[id]
	if !ok {
		return errors.New("record not found")
	}
	rec.EntryNumber = entry
	rec.Values = v
	b.updates++
	b.writes = append(b.writes, v)
	return nil
}

func (b *fakeBackend) DeleteAndRenumber(_ context.Context, id uuid.UUID, entry int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.deleteErr != nil {
		return b.deleteErr
	}
	if id != uuid.Nil {
		delete(b.records, id)
	}
	for _, rec := range b.records {
		if rec.EntryNumber > entry {
			rec.EntryNumber--
		}
	}
	b.deletes++
	return nil
}

func (b *fakeBackend) wait() {
	b.mu.Lock()
	gate, started := b.gate, b.started
	b.mu.Unlock()
	if gate == nil {
		return
	}
	if started != nil {
		started <- struct{}{}
	}
	<-gate
}

func (b *fakeBackend) sortedLocked() []Record {
	out := make([]Record, 0, len(b.records))
	for _, r := range b.records {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntryNumber < out[j].EntryNumber })
	return out
}

func (b *fakeBackend) sorted() []Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sortedLocked()
}

func (b *fakeBackend) counts() (inserts, updates, deletes int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.inserts, b.updates, b.deletes
}

func (b *fakeBackend) lastWrite() Values {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.writes[len(b.writes)-1]
}

// ── Failure sink stub ─────────────────────────────────────────────────────────

type recordingSink struct {
	mu   sync.Mutex
	rows []Row
}

func (s *recordingSink) WriteFailed(_ context.Context, _ Bucket, row Row, _ error) {
	s.mu.Lock()
	s.rows = append(s.rows, row)
	s.mu.Unlock()
}

func (s *recordingSink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}
