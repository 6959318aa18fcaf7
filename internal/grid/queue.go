package grid

import (
	"context"
	"errors"
	"sync"
	"time"
)

// WriteFunc performs the write for key. It reads whatever the current state
// of key is at call time, so one call covers every edit made before it.
type WriteFunc func(ctx context.Context, key string) error

// WriteQueue holds at most one pending write per key, latest edit wins.
//
// Schedule (re)arms a quiet-period timer for the key; when it fires, one
// write runs. A key never has two writes in flight: scheduling during a
// write marks the key dirty and exactly one follow-up write is armed once
// the running write returns.
type WriteQueue struct {
	mu      sync.Mutex
	delay   time.Duration
	timeout time.Duration
	write   WriteFunc
	slots   map[string]*slot
	closed  bool
}

type slot struct {
	timer    *time.Timer
	gen      uint64 // bumped on every arm/cancel; stale timers compare and bail
	queued   bool
	inflight bool
	done     chan struct{}
}

// NewWriteQueue creates a queue that waits delay after the last Schedule of a
// key before writing it. timeout bounds writes started by the timer.
func NewWriteQueue(delay, timeout time.Duration, write WriteFunc) *WriteQueue {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WriteQueue{
		delay:   delay,
		timeout: timeout,
		write:   write,
		slots:   make(map[string]*slot),
	}
}

// Schedule queues a write for key. Returns false once the queue is closed.
func (q *WriteQueue) Schedule(key string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	s := q.slots[key]
	if s == nil {
		s = &slot{}
		q.slots[key] = s
	}
	s.queued = true
	if !s.inflight {
		q.arm(key, s)
	}
	return true
}

// Pending reports whether key has a queued or running write.
func (q *WriteQueue) Pending(key string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	s := q.slots[key]
	return s != nil && (s.queued || s.inflight)
}

// Len returns the number of keys with a queued or running write.
func (q *WriteQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.slots)
}

// Cancel drops a queued write for key. A running write is not interrupted.
func (q *WriteQueue) Cancel(key string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	s := q.slots[key]
	if s == nil {
		return
	}
	q.disarm(s)
	s.queued = false
	if !s.inflight {
		delete(q.slots, key)
	}
}

// Run writes key now instead of waiting for its timer. It first waits for
// a running write of key; if nothing is queued afterwards it returns nil.
func (q *WriteQueue) Run(ctx context.Context, key string) error {
	for {
		q.mu.Lock()
		s := q.slots[key]
		if s == nil {
			q.mu.Unlock()
			return nil
		}
		if s.inflight {
			done := s.done
			q.mu.Unlock()
			select {
			case <-done:
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if !s.queued {
			delete(q.slots, key)
			q.mu.Unlock()
			return nil
		}
		q.disarm(s)
		q.begin(s)
		q.mu.Unlock()

		err := q.write(ctx, key)
		q.finish(key, s)
		return err
	}
}

// Flush runs every queued write and waits for running ones.
func (q *WriteQueue) Flush(ctx context.Context) error {
	q.mu.Lock()
	keys := make([]string, 0, len(q.slots))
	for k := range q.slots {
		keys = append(keys, k)
	}
	q.mu.Unlock()

	var errs []error
	for _, k := range keys {
		if err := q.Run(ctx, k); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close stops every timer. Queued writes are dropped and running writes are
// left to finish on their own.
func (q *WriteQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	for k, s := range q.slots {
		q.disarm(s)
		s.queued = false
		if !s.inflight {
			delete(q.slots, k)
		}
	}
}

// ── internals (q.mu held unless noted) ───────────────────────────────────────

func (q *WriteQueue) arm(key string, s *slot) {
	q.disarm(s)
	gen := s.gen
	s.timer = time.AfterFunc(q.delay, func() { q.fire(key, gen) })
}

func (q *WriteQueue) disarm(s *slot) {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (q *WriteQueue) begin(s *slot) {
	s.queued = false
	s.inflight = true
	s.done = make(chan struct{})
}

// fire runs on the timer goroutine; takes q.mu itself.
func (q *WriteQueue) fire(key string, gen uint64) {
	q.mu.Lock()
	s := q.slots[key]
	if s == nil || s.gen != gen || !s.queued || s.inflight || q.closed {
		q.mu.Unlock()
		return
	}
	s.timer = nil
	q.begin(s)
	q.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	_ = q.write(ctx, key)
	cancel()
	q.finish(key, s)
}

// finish takes q.mu itself.
func (q *WriteQueue) finish(key string, s *slot) {
	q.mu.Lock()
	defer q.mu.Unlock()
	s.inflight = false
	close(s.done)
	if s.queued && !q.closed {
		q.arm(key, s)
		return
	}
	if q.slots[key] == s {
		delete(q.slots, key)
	}
}
