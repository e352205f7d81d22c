// Package broadcast provides a keyed publish/subscribe registry.
//
// Each key owns a topic. A topic remembers the most recent value and hands it
// to every new subscriber before any live value, so a subscriber never starts
// from an empty state. Publishing never blocks: every subscriber has a bounded
// buffer, and when it is full the oldest buffered value is dropped in favour
// of the newest. Finishing a topic delivers a final value, closes every
// subscriber channel and keeps the final value available for late subscribers
// until the retain window elapses.
package broadcast

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrTopicNotFound indicates no topic is registered under the key.
	ErrTopicNotFound = errors.New("topic not found")
	// ErrTopicFinished indicates the topic already received its final value.
	ErrTopicFinished = errors.New("topic finished")
	// ErrBrokerClosed indicates the broker has been shut down.
	ErrBrokerClosed = errors.New("broker closed")
)

// Config sizes subscriber buffers and the post-finish retain window.
type Config struct {
	Buffer int
	Retain time.Duration
}

// Option customizes a Broker.
type Option[T any] func(*Broker[T])

// WithReplay transforms the remembered value before it is handed to a new
// subscriber, e.g. to flag it as a replay.
func WithReplay[T any](fn func(T) T) Option[T] {
	return func(b *Broker[T]) {
		b.replay = fn
	}
}

// Broker is a registry of topics keyed by string.
type Broker[T any] struct {
	mu     sync.Mutex
	topics map[string]*topic[T]
	buffer int
	retain time.Duration
	replay func(T) T
	closed bool
}

type topic[T any] struct {
	mu       sync.Mutex
	last     T
	hasLast  bool
	finished bool
	subs     map[*Subscription[T]]struct{}

	// guarded by Broker.mu
	timer *time.Timer
}

// New creates a Broker. Buffers smaller than one are raised to one.
func New[T any](cfg Config, opts ...Option[T]) *Broker[T] {
	b := &Broker[T]{
		topics: make(map[string]*topic[T]),
		buffer: max(cfg.Buffer, 1),
		retain: cfg.Retain,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Open registers a topic for key. Opening an existing topic is a no-op.
func (b *Broker[T]) Open(key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBrokerClosed
	}
	if _, ok := b.topics[key]; !ok {
		b.topics[key] = &topic[T]{subs: make(map[*Subscription[T]]struct{})}
	}
	return nil
}

// Publish records v as the topic's latest value and delivers it to every
// current subscriber without blocking.
func (b *Broker[T]) Publish(key string, v T) error {
	t, err := b.lookup(key)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.finished {
		return ErrTopicFinished
	}

	t.last, t.hasLast = v, true
	for s := range t.subs {
		s.deliver(v)
	}
	return nil
}

// Finish publishes the final value, closes every subscriber and schedules
// the topic for removal after the retain window.
func (b *Broker[T]) Finish(key string, v T) error {
	t, err := b.lookup(key)
	if err != nil {
		return err
	}

	t.mu.Lock()
	if t.finished {
		t.mu.Unlock()
		return ErrTopicFinished
	}
	t.last, t.hasLast, t.finished = v, true, true
	for s := range t.subs {
		s.deliver(v)
		delete(t.subs, s)
		close(s.ch)
	}
	t.mu.Unlock()

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed || b.topics[key] != t {
		return nil
	}
	t.timer = time.AfterFunc(b.retain, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.topics[key] == t {
			delete(b.topics, key)
		}
	})
	return nil
}

// Subscribe attaches to the topic for key. When the topic has a value, it is
// the first value received. Subscribing to a finished topic yields the final
// value on an already closed channel.
func (b *Broker[T]) Subscribe(key string) (*Subscription[T], error) {
	t, err := b.lookup(key)
	if err != nil {
		return nil, err
	}

	s := &Subscription[T]{
		ch:    make(chan T, b.buffer),
		topic: t,
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.hasLast {
		last := t.last
		if b.replay != nil {
			last = b.replay(last)
		}
		s.ch <- last
	}

	if t.finished {
		close(s.ch)
		return s, nil
	}

	t.subs[s] = struct{}{}
	return s, nil
}

// Remove tears the topic down immediately, closing any subscribers.
func (b *Broker[T]) Remove(key string) {
	b.mu.Lock()
	t, ok := b.topics[key]
	if ok {
		delete(b.topics, key)
		if t.timer != nil {
			t.timer.Stop()
		}
	}
	b.mu.Unlock()

	if ok {
		t.close()
	}
}

// Shutdown removes every topic and rejects further Open calls.
func (b *Broker[T]) Shutdown() {
	b.mu.Lock()
	b.closed = true
	topics := b.topics
	b.topics = make(map[string]*topic[T])
	for _, t := range topics {
		if t.timer != nil {
			t.timer.Stop()
		}
	}
	b.mu.Unlock()

	for _, t := range topics {
		t.close()
	}
}

// Len returns the number of registered topics, finished or not.
func (b *Broker[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.topics)
}

// Subscribers returns the number of live subscribers on key.
func (b *Broker[T]) Subscribers(key string) int {
	t, err := b.lookup(key)
	if err != nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}

func (b *Broker[T]) lookup(key string) (*topic[T], error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBrokerClosed
	}
	t, ok := b.topics[key]
	if !ok {
		return nil, ErrTopicNotFound
	}
	return t, nil
}

func (t *topic[T]) close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.finished = true
	for s := range t.subs {
		delete(t.subs, s)
		close(s.ch)
	}
}
