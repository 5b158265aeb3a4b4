// Package runlog provides the per-run append-only event bus. Every pipeline
// action publishes an event to its run's stream; HTTP pollers read back with
// a cursor and websocket clients subscribe for push delivery. Streams for
// finished runs stay readable for a grace period, then get evicted.
package runlog

import (
	"context"
	"sync"
	"time"

	"courseforge/internal/services"
)

// Event is a single entry in a run's stream. Sequence numbers are assigned at
// append time, start at 1, and are strictly increasing with no gaps per run.
type Event struct {
	Sequence  uint64            `json:"seq"`
	Timestamp time.Time         `json:"timestamp"`
	Level     string            `json:"level"`
	Type      string            `json:"type"`
	Stage     string            `json:"stage,omitempty"`
	Provider  string            `json:"provider,omitempty"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// Event types published by the run coordinator and stage pipeline.
const (
	TypeRunAccepted     = "run_accepted"
	TypeStageStarted    = "stage_started"
	TypeStageFinished   = "stage_finished"
	TypeStageSkipped    = "stage_skipped"
	TypeAttemptStarted  = "attempt_started"
	TypeAttemptFinished = "attempt_finished"
	TypeFallbackUsed    = "fallback_used"
	TypeRunFinished     = "run_finished"
	TypeMessage         = "message"
)

// Bus owns the streams for all live runs.
type Bus struct {
	capacity int
	grace    time.Duration

	mu      sync.Mutex
	streams map[string]*stream
}

type stream struct {
	mu       sync.Mutex
	cond     *sync.Cond
	capacity int
	buffer   []Event
	nextSeq  uint64
	closed   bool
	closedAt time.Time
	subs     map[*Subscription]struct{}
}

// NewBus constructs a bus whose streams buffer up to capacity events each and
// remain readable for grace after their run finishes.
func NewBus(capacity int, grace time.Duration) *Bus {
	if capacity <= 0 {
		capacity = 1024
	}
	if grace <= 0 {
		grace = 5 * time.Minute
	}
	return &Bus{
		capacity: capacity,
		grace:    grace,
		streams:  make(map[string]*stream),
	}
}

// Open creates the stream for a run. Opening an existing run id is a no-op so
// the coordinator can call it idempotently.
func (b *Bus) Open(runID string) {
	if b == nil || runID == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.streams[runID]; ok {
		return
	}
	s := &stream{capacity: b.capacity, subs: make(map[*Subscription]struct{})}
	s.cond = sync.NewCond(&s.mu)
	b.streams[runID] = s
}

// Append publishes an event to a run's stream. Appends to unknown or closed
// streams are dropped; the single-writer pipeline never appends after close.
func (b *Bus) Append(runID string, evt Event) {
	s := b.lookup(runID)
	if s == nil {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.nextSeq++
	evt.Sequence = s.nextSeq
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	if evt.Level == "" {
		evt.Level = "INFO"
	}
	if len(s.buffer) == s.capacity {
		copy(s.buffer, s.buffer[1:])
		s.buffer = s.buffer[:s.capacity-1]
	}
	s.buffer = append(s.buffer, evt)
	for sub := range s.subs {
		sub.deliver(evt)
	}
	s.cond.Broadcast()
	s.mu.Unlock()
}

// Close marks a run's stream terminal. Readers drain what remains; the
// eviction sweep removes the stream once the grace period has passed.
func (b *Bus) Close(runID string) {
	s := b.lookup(runID)
	if s == nil {
		return
	}
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		s.closedAt = time.Now()
		for sub := range s.subs {
			sub.close()
		}
		s.subs = make(map[*Subscription]struct{})
		s.cond.Broadcast()
	}
	s.mu.Unlock()
}

// ReadSince returns buffered events with sequence greater than since, up to
// limit. When follow is true and no events are pending, it blocks until an
// event arrives, the stream closes, or ctx ends. closed reports whether the
// stream is terminal and fully drained.
func (b *Bus) ReadSince(ctx context.Context, runID string, since uint64, limit int, follow bool) (events []Event, next uint64, closed bool, err error) {
	s := b.lookup(runID)
	if s == nil {
		return nil, since, false, services.Wrap(services.ErrNotFound, "", "read run log", "no log stream for run "+runID, nil)
	}
	if limit <= 0 || limit > s.capacity {
		limit = s.capacity
	}

	cancelWait := make(chan struct{})
	if follow && ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				s.cond.Broadcast()
			case <-cancelWait:
			}
		}()
	}
	defer close(cancelWait)

	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		events, next := s.snapshotLocked(since, limit)
		drained := s.closed && next == s.nextSeq && len(events) == 0
		if len(events) > 0 || !follow || s.closed {
			return events, next, drained, contextError(ctx)
		}
		if err := contextError(ctx); err != nil {
			return nil, next, false, err
		}
		s.cond.Wait()
		if err := contextError(ctx); err != nil {
			return nil, next, false, err
		}
	}
}

// Tail returns the most recent limit events without blocking.
func (b *Bus) Tail(runID string, limit int) ([]Event, uint64, error) {
	s := b.lookup(runID)
	if s == nil {
		return nil, 0, services.Wrap(services.ErrNotFound, "", "read run log", "no log stream for run "+runID, nil)
	}
	if limit <= 0 || limit > s.capacity {
		limit = s.capacity
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.buffer) == 0 {
		return nil, s.nextSeq, nil
	}
	start := len(s.buffer) - limit
	if start < 0 {
		start = 0
	}
	out := make([]Event, len(s.buffer)-start)
	copy(out, s.buffer[start:])
	return out, s.nextSeq, nil
}

// EvictExpired removes streams whose runs finished more than the grace period
// before now, and returns how many were evicted.
func (b *Bus) EvictExpired(now time.Time) int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	evicted := 0
	for id, s := range b.streams {
		s.mu.Lock()
		expired := s.closed && now.Sub(s.closedAt) >= b.grace
		s.mu.Unlock()
		if expired {
			delete(b.streams, id)
			evicted++
		}
	}
	return evicted
}

// Sweep runs the eviction loop until ctx is cancelled.
func (b *Bus) Sweep(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			b.EvictExpired(now)
		}
	}
}

func (b *Bus) lookup(runID string) *stream {
	if b == nil || runID == "" {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.streams[runID]
}

func (s *stream) snapshotLocked(since uint64, limit int) ([]Event, uint64) {
	if len(s.buffer) == 0 || s.buffer[len(s.buffer)-1].Sequence <= since {
		return nil, s.nextSeq
	}
	startIdx := len(s.buffer)
	for i, evt := range s.buffer {
		if evt.Sequence > since {
			startIdx = i
			break
		}
	}
	end := startIdx + limit
	if end > len(s.buffer) {
		end = len(s.buffer)
	}
	out := make([]Event, end-startIdx)
	copy(out, s.buffer[startIdx:end])
	return out, s.nextSeq
}

func contextError(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}
