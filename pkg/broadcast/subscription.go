package broadcast

import "sync/atomic"

// Subscription is one observer's view of a topic.
type Subscription[T any] struct {
	ch      chan T
	topic   *topic[T]
	dropped atomic.Int64
}

// Single returns a closed subscription that yields v once. It stands in for
// a topic that has already been torn down.
func Single[T any](v T) *Subscription[T] {
	s := &Subscription[T]{ch: make(chan T, 1)}
	s.ch <- v
	close(s.ch)
	return s
}

// Events returns the receive channel. It is closed after the final value or
// when the subscription is closed.
func (s *Subscription[T]) Events() <-chan T {
	return s.ch
}

// Dropped reports how many values were discarded because the buffer was full.
func (s *Subscription[T]) Dropped() int64 {
	return s.dropped.Load()
}

// Close detaches the subscription. Safe to call more than once and after
// the topic has finished.
func (s *Subscription[T]) Close() {
	if s.topic == nil {
		return
	}

	s.topic.mu.Lock()
	defer s.topic.mu.Unlock()

	if _, ok := s.topic.subs[s]; ok {
		delete(s.topic.subs, s)
		close(s.ch)
	}
}

// deliver must be called with the topic lock held.
func (s *Subscription[T]) deliver(v T) {
	for {
		select {
		case s.ch <- v:
			return
		default:
		}

		select {
		case <-s.ch:
			s.dropped.Add(1)
		default:
		}
	}
}
