package remote

import "sync"

// Subscription is one change feed over a collection.
//
// Snapshots arrive on C in increasing Seq order. A slow consumer never
// blocks the store: pending snapshots are coalesced so that only the most
// recent undelivered one is kept. When the feed terminates (store closed or
// subscription failure) C is closed and Err reports the terminal error.
// Consumers must resubscribe explicitly; there is no automatic retry.
type Subscription struct {
	collection string
	orderBy    string
	desc       bool

	ch chan Snapshot

	mu     sync.Mutex
	err    error
	closed bool

	unsubscribe func(*Subscription)
}

// C returns the snapshot delivery channel. It is closed on termination.
func (s *Subscription) C() <-chan Snapshot { return s.ch }

// Err returns the terminal error, if any, after C has been closed. A nil
// error means the subscription was closed deliberately.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close detaches the subscription from the store and closes C.
func (s *Subscription) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe(s)
	}
	s.terminate(nil)
}

// deliver hands a snapshot to the consumer, coalescing to the latest value
// when the consumer lags. Called with the store lock held, so there is only
// ever one sender.
func (s *Subscription) deliver(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- snap:
		return
	default:
	}
	// Buffer full: drop the stale pending snapshot and queue the new one.
	// The channel has capacity 1 and this is the only sender, so the second
	// send cannot block.
	select {
	case <-s.ch:
	default:
	}
	s.ch <- snap
}

// terminate closes the delivery channel exactly once, recording err.
func (s *Subscription) terminate(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.err = err
	close(s.ch)
}
