package workflow_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/attest/internal/documents"
	"github.com/JaimeStill/attest/internal/frameworks"
	"github.com/JaimeStill/attest/internal/prompts"
	"github.com/JaimeStill/attest/internal/workflow"
	"github.com/JaimeStill/attest/pkg/broadcast"
	"github.com/JaimeStill/attest/pkg/lifecycle"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeCatalog struct {
	controls []frameworks.Control
	err      error
}

func (f *fakeCatalog) Controls(context.Context, uuid.UUID) ([]frameworks.Control, error) {
	return f.controls, f.err
}

type fakeDocuments struct {
	pc  *documents.PreparedContext
	err error
}

func (f *fakeDocuments) GetPreparedContext(context.Context, uuid.UUID, []uuid.UUID) (*documents.PreparedContext, error) {
	return f.pc, f.err
}

type fakePrompts struct{}

func (fakePrompts) Compose(_ context.Context, stage prompts.Stage, _ uuid.UUID) (string, error) {
	return "evaluate instructions for " + string(stage), nil
}

type evaluateFunc func(ctx context.Context, req workflow.Request, call int) (*workflow.Evaluation, error)

type fakeClient struct {
	fn    evaluateFunc
	mu    sync.Mutex
	calls map[string]int
}

func newClient(fn evaluateFunc) *fakeClient {
	return &fakeClient{fn: fn, calls: make(map[string]int)}
}

func (c *fakeClient) Evaluate(ctx context.Context, req workflow.Request) (*workflow.Evaluation, error) {
	c.mu.Lock()
	c.calls[req.Control.Code]++
	n := c.calls[req.Control.Code]
	c.mu.Unlock()
	return c.fn(ctx, req, n)
}

func (c *fakeClient) Calls(code string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[code]
}

type memStore struct {
	mu          sync.Mutex
	jobs        map[uuid.UUID]workflow.Job
	outcomes    map[uuid.UUID][]workflow.ControlOutcome
	states      map[uuid.UUID][]workflow.State
	completeErr error
	onCreate    func()
}

func newStore() *memStore {
	return &memStore{
		jobs:     make(map[uuid.UUID]workflow.Job),
		outcomes: make(map[uuid.UUID][]workflow.ControlOutcome),
		states:   make(map[uuid.UUID][]workflow.State),
	}
}

func (s *memStore) Create(_ context.Context, job workflow.Job) error {
	if s.onCreate != nil {
		s.onCreate()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	s.states[job.ID] = append(s.states[job.ID], job.State)
	return nil
}

func (s *memStore) UpdateState(_ context.Context, job workflow.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	s.states[job.ID] = append(s.states[job.ID], job.State)
	return nil
}

func (s *memStore) Complete(_ context.Context, job workflow.Job, outcomes []workflow.ControlOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completeErr != nil {
		return s.completeErr
	}
	s.jobs[job.ID] = job
	s.outcomes[job.ID] = outcomes
	s.states[job.ID] = append(s.states[job.ID], job.State)
	return nil
}

func (s *memStore) Fail(_ context.Context, job workflow.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	delete(s.outcomes, job.ID)
	s.states[job.ID] = append(s.states[job.ID], job.State)
	return nil
}

func (s *memStore) Find(_ context.Context, id uuid.UUID) (*workflow.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, workflow.ErrJobNotFound
	}
	return &job, nil
}

func (s *memStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return workflow.ErrJobNotFound
	}
	if !job.State.Terminal() {
		return workflow.ErrNotTerminal
	}
	delete(s.jobs, id)
	delete(s.outcomes, id)
	return nil
}

func (s *memStore) Outcomes(id uuid.UUID) []workflow.ControlOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcomes[id]
}

func (s *memStore) Jobs() []workflow.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]workflow.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job)
	}
	return out
}

func (s *memStore) Job(id uuid.UUID) workflow.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

type harness struct {
	lc      *lifecycle.Coordinator
	store   *memStore
	client  *fakeClient
	catalog *fakeCatalog
	docs    *fakeDocuments
	orch    *workflow.Orchestrator
}

func controls(n int) []frameworks.Control {
	out := make([]frameworks.Control, n)
	for i := range out {
		out[i] = frameworks.Control{
			ID:       uuid.New(),
			Code:     fmt.Sprintf("C%d", i+1),
			Title:    fmt.Sprintf("Control %d", i+1),
			Position: i + 1,
		}
	}
	return out
}

func preparedContext() *documents.PreparedContext {
	return documents.NewPreparedContext([]documents.PreparedDocument{
		{ID: uuid.New(), Name: "policy.txt", Pages: []string{"Access rights are reviewed quarterly."}},
	}, 0)
}

func defaultConfig() workflow.Config {
	return workflow.Config{
		Concurrency:      3,
		Evaluator:        workflow.EvaluatorConfig{MaxAttempts: 2, Timeout: time.Second},
		JobTimeout:       10 * time.Second,
		PersistTimeout:   time.Second,
		RetainWindow:     time.Minute,
		SubscriberBuffer: 256,
	}
}

func newHarness(t *testing.T, n int, fn evaluateFunc, cfg workflow.Config) *harness {
	t.Helper()

	lc := lifecycle.New()
	t.Cleanup(func() {
		if err := lc.Shutdown(5 * time.Second); err != nil {
			t.Errorf("shutdown: %v", err)
		}
	})

	h := &harness{
		lc:      lc,
		store:   newStore(),
		client:  newClient(fn),
		catalog: &fakeCatalog{controls: controls(n)},
		docs:    &fakeDocuments{pc: preparedContext()},
	}
	h.orch = workflow.New(workflow.Runtime{
		Frameworks: h.catalog,
		Documents:  h.docs,
		Prompts:    fakePrompts{},
		Client:     h.client,
		Store:      h.store,
		Logger:     discard,
	}, cfg, lc)
	return h
}

func (h *harness) start(t *testing.T) *workflow.Job {
	t.Helper()
	job, err := h.orch.Start(context.Background(), workflow.StartCommand{
		OrganizationID: uuid.New(),
		FrameworkID:    uuid.New(),
		DocumentIDs:    []uuid.UUID{uuid.New()},
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	return job
}

func (h *harness) subscribe(t *testing.T, id uuid.UUID) *broadcast.Subscription[workflow.ProgressEvent] {
	t.Helper()
	sub, err := h.orch.Subscribe(context.Background(), id)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	t.Cleanup(sub.Close)
	return sub
}

// drain collects events until the subscription closes.
func drain(t *testing.T, sub *broadcast.Subscription[workflow.ProgressEvent]) []workflow.ProgressEvent {
	t.Helper()

	var events []workflow.ProgressEvent
	timeout := time.After(10 * time.Second)
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatalf("timed out after %d events", len(events))
		}
	}
}

// run starts a job and waits for its terminal event.
func (h *harness) run(t *testing.T) (workflow.Job, []workflow.ProgressEvent) {
	t.Helper()
	job := h.start(t)
	events := drain(t, h.subscribe(t, job.ID))

	last := events[len(events)-1]
	if !last.Terminal {
		t.Fatalf("last event not terminal: %+v", last)
	}
	return h.store.Job(job.ID), events
}

func respond(status string, confidence float64) evaluateFunc {
	return func(context.Context, workflow.Request, int) (*workflow.Evaluation, error) {
		return &workflow.Evaluation{Status: status, Confidence: workflow.Score(confidence), Reasoning: "ok"}, nil
	}
}

var errBackend = errors.New("backend unavailable")

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
