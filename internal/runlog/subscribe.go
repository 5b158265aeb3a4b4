package runlog

import "courseforge/internal/services"

// Subscription is a push channel onto a run's stream. Delivery is best-effort:
// a subscriber that falls more than its buffer behind is dropped and should
// resynchronize with ReadSince using the last sequence it saw.
type Subscription struct {
	stream *stream
	ch     chan Event
	done   chan struct{}
	once   bool
}

// Subscribe attaches a push subscriber to a run's stream and replays the
// buffered backlog after since. The returned subscription must be cancelled
// when the consumer goes away.
func (b *Bus) Subscribe(runID string, since uint64, buffer int) (*Subscription, error) {
	s := b.lookup(runID)
	if s == nil {
		return nil, services.Wrap(services.ErrNotFound, "", "subscribe run log", "no log stream for run "+runID, nil)
	}
	if buffer <= 0 {
		buffer = 64
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	backlog, _ := s.snapshotLocked(since, s.capacity)
	sub := &Subscription{
		stream: s,
		ch:     make(chan Event, buffer+len(backlog)),
		done:   make(chan struct{}),
	}
	for _, evt := range backlog {
		sub.ch <- evt
	}
	if s.closed {
		close(sub.ch)
		sub.once = true
		return sub, nil
	}
	s.subs[sub] = struct{}{}
	return sub, nil
}

// Events returns the delivery channel. It is closed when the run finishes,
// the subscriber is cancelled, or the subscriber falls behind.
func (sub *Subscription) Events() <-chan Event {
	return sub.ch
}

// Cancel detaches the subscription from its stream.
func (sub *Subscription) Cancel() {
	if sub == nil {
		return
	}
	sub.stream.mu.Lock()
	if _, ok := sub.stream.subs[sub]; ok {
		delete(sub.stream.subs, sub)
		sub.close()
	}
	sub.stream.mu.Unlock()
}

// deliver is called with the stream lock held.
func (sub *Subscription) deliver(evt Event) {
	select {
	case sub.ch <- evt:
	default:
		// Slow consumer. Drop it rather than block the pipeline writer.
		delete(sub.stream.subs, sub)
		sub.close()
	}
}

// close is called with the stream lock held.
func (sub *Subscription) close() {
	if sub.once {
		return
	}
	sub.once = true
	close(sub.ch)
}
