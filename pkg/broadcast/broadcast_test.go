package broadcast_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/JaimeStill/attest/pkg/broadcast"
)

type event struct {
	Seq    int
	Replay bool
}

func newBroker(buffer int, retain time.Duration) *broadcast.Broker[event] {
	return broadcast.New(
		broadcast.Config{Buffer: buffer, Retain: retain},
		broadcast.WithReplay(func(e event) event {
			e.Replay = true
			return e
		}),
	)
}

func drain(t *testing.T, s *broadcast.Subscription[event]) []event {
	t.Helper()
	var got []event
	timeout := time.After(2 * time.Second)
	for {
		select {
		case e, ok := <-s.Events():
			if !ok {
				return got
			}
			got = append(got, e)
		case <-timeout:
			t.Fatal("subscription did not close")
		}
	}
}

func TestSubscribeUnknownTopic(t *testing.T) {
	b := newBroker(4, time.Minute)
	if _, err := b.Subscribe("missing"); !errors.Is(err, broadcast.ErrTopicNotFound) {
		t.Errorf("error = %v, want ErrTopicNotFound", err)
	}
	if err := b.Publish("missing", event{}); !errors.Is(err, broadcast.ErrTopicNotFound) {
		t.Errorf("error = %v, want ErrTopicNotFound", err)
	}
}

func TestLateSubscriberReceivesReplay(t *testing.T) {
	b := newBroker(4, time.Minute)
	b.Open("job")

	b.Publish("job", event{Seq: 1})
	b.Publish("job", event{Seq: 2})

	s, err := b.Subscribe("job")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	first := <-s.Events()
	if first.Seq != 2 || !first.Replay {
		t.Errorf("first = %+v, want replay of seq 2", first)
	}

	b.Publish("job", event{Seq: 3})
	next := <-s.Events()
	if next.Seq != 3 || next.Replay {
		t.Errorf("next = %+v, want live seq 3", next)
	}
}

func TestSubscribeBeforeFirstPublish(t *testing.T) {
	b := newBroker(4, time.Minute)
	b.Open("job")

	s, _ := b.Subscribe("job")
	select {
	case e := <-s.Events():
		t.Fatalf("unexpected event %+v", e)
	default:
	}

	b.Publish("job", event{Seq: 1})
	if e := <-s.Events(); e.Seq != 1 {
		t.Errorf("seq = %d, want 1", e.Seq)
	}
}

func TestSubscribersReceiveIdenticalSequences(t *testing.T) {
	b := newBroker(64, time.Minute)
	b.Open("job")

	subs := make([]*broadcast.Subscription[event], 3)
	for i := range subs {
		subs[i], _ = b.Subscribe("job")
	}

	for i := 1; i <= 10; i++ {
		b.Publish("job", event{Seq: i})
	}
	b.Finish("job", event{Seq: 11})

	var want []event
	for i, s := range subs {
		got := drain(t, s)
		if i == 0 {
			want = got
			continue
		}
		if len(got) != len(want) {
			t.Fatalf("subscriber %d got %d events, want %d", i, len(got), len(want))
		}
		for j := range got {
			if got[j] != want[j] {
				t.Errorf("subscriber %d event %d = %+v, want %+v", i, j, got[j], want[j])
			}
		}
	}
	if len(want) != 11 {
		t.Errorf("events = %d, want 11", len(want))
	}
}

func TestSlowSubscriberDropsOldest(t *testing.T) {
	b := newBroker(2, time.Minute)
	b.Open("job")

	s, _ := b.Subscribe("job")
	for i := 1; i <= 5; i++ {
		if err := b.Publish("job", event{Seq: i}); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}
	b.Finish("job", event{Seq: 6})

	got := drain(t, s)
	if len(got) != 2 {
		t.Fatalf("events = %d, want 2", len(got))
	}
	if got[0].Seq != 5 || got[1].Seq != 6 {
		t.Errorf("got %+v, want seq 5 then final seq 6", got)
	}
	if s.Dropped() != 4 {
		t.Errorf("dropped = %d, want 4", s.Dropped())
	}
}

func TestFinishedTopic(t *testing.T) {
	b := newBroker(4, time.Minute)
	b.Open("job")
	b.Finish("job", event{Seq: 9})

	t.Run("rejects publish", func(t *testing.T) {
		if err := b.Publish("job", event{Seq: 10}); !errors.Is(err, broadcast.ErrTopicFinished) {
			t.Errorf("error = %v, want ErrTopicFinished", err)
		}
		if err := b.Finish("job", event{Seq: 10}); !errors.Is(err, broadcast.ErrTopicFinished) {
			t.Errorf("error = %v, want ErrTopicFinished", err)
		}
	})

	t.Run("late subscriber gets final value then close", func(t *testing.T) {
		s, err := b.Subscribe("job")
		if err != nil {
			t.Fatalf("subscribe: %v", err)
		}
		got := drain(t, s)
		if len(got) != 1 || got[0].Seq != 9 || !got[0].Replay {
			t.Errorf("got %+v, want single replay of seq 9", got)
		}
	})
}

func TestRetainWindowRemovesTopic(t *testing.T) {
	b := newBroker(4, 20*time.Millisecond)
	b.Open("job")
	b.Finish("job", event{Seq: 1})

	deadline := time.Now().Add(2 * time.Second)
	for b.Len() > 0 {
		if time.Now().After(deadline) {
			t.Fatal("topic not removed after retain window")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if _, err := b.Subscribe("job"); !errors.Is(err, broadcast.ErrTopicNotFound) {
		t.Errorf("error = %v, want ErrTopicNotFound", err)
	}
}

func TestCloseDetachesSubscriber(t *testing.T) {
	b := newBroker(4, time.Minute)
	b.Open("job")

	s, _ := b.Subscribe("job")
	if n := b.Subscribers("job"); n != 1 {
		t.Fatalf("subscribers = %d, want 1", n)
	}

	s.Close()
	s.Close()

	if n := b.Subscribers("job"); n != 0 {
		t.Errorf("subscribers = %d, want 0", n)
	}
	if _, ok := <-s.Events(); ok {
		t.Error("channel should be closed")
	}
	if err := b.Publish("job", event{Seq: 1}); err != nil {
		t.Errorf("publish after detach: %v", err)
	}
}

func TestConcurrentSubscribePublish(t *testing.T) {
	b := newBroker(8, time.Minute)
	b.Open("job")

	var wg sync.WaitGroup
	for range 8 {
		wg.Go(func() {
			s, err := b.Subscribe("job")
			if err != nil {
				return
			}
			prev := -1
			for e := range s.Events() {
				if e.Seq < prev {
					t.Errorf("sequence regressed: %d after %d", e.Seq, prev)
				}
				prev = e.Seq
			}
		})
	}

	for i := range 200 {
		b.Publish("job", event{Seq: i})
	}
	b.Finish("job", event{Seq: 200})
	wg.Wait()
}

func TestShutdown(t *testing.T) {
	b := newBroker(4, time.Minute)
	b.Open("a")
	s, _ := b.Subscribe("a")

	b.Shutdown()

	if _, ok := <-s.Events(); ok {
		t.Error("subscriber should be closed on shutdown")
	}
	if err := b.Open("b"); !errors.Is(err, broadcast.ErrBrokerClosed) {
		t.Errorf("error = %v, want ErrBrokerClosed", err)
	}
}

func TestSingle(t *testing.T) {
	s := broadcast.Single(event{Seq: 4})
	got := drain(t, s)
	if len(got) != 1 || got[0].Seq != 4 {
		t.Errorf("got %+v, want single seq 4", got)
	}
	s.Close()
}
