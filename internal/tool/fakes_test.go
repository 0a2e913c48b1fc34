package tool

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"activityplanner/internal/config"
	"activityplanner/internal/domain"
)

type fakeBrowserSession struct {
	closeErr error
	closed   atomic.Bool
}

func (s *fakeBrowserSession) Navigate(context.Context, string) error           { return nil }
func (s *fakeBrowserSession) Click(context.Context, string) error              { return nil }
func (s *fakeBrowserSession) Fill(context.Context, string, string, bool) error { return nil }
func (s *fakeBrowserSession) Snapshot(context.Context) (*domain.PageSnapshot, error) {
	return &domain.PageSnapshot{}, nil
}
func (s *fakeBrowserSession) Close(context.Context) error {
	s.closed.Store(true)
	return s.closeErr
}

type fakeBrowser struct {
	startErr error
	session  *fakeBrowserSession
	poolID   string
}

func (b *fakeBrowser) Start(_ context.Context, poolID string) (domain.BrowserSession, error) {
	b.poolID = poolID
	if b.startErr != nil {
		return nil, b.startErr
	}
	return b.session, nil
}

type fakeRunner struct {
	out  string
	err  error
	task domain.BrowserTask
}

func (r *fakeRunner) Run(_ context.Context, _ domain.BrowserSession, task domain.BrowserTask) (string, error) {
	r.task = task
	return r.out, r.err
}

type fakeLLM struct {
	content string
	err     error
	prompt  string
}

func (f *fakeLLM) Chat(_ context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	if len(req.Messages) > 0 {
		f.prompt = req.Messages[len(req.Messages)-1].Content
	}
	if f.err != nil {
		return nil, f.err
	}
	return &domain.ChatResponse{Content: f.content}, nil
}
func (f *fakeLLM) Name() string { return "fake" }

type fakeSandboxSession struct {
	events   []domain.SandboxEvent
	execErr  error
	closeErr error
	delay    time.Duration
	req      domain.ExecRequest
	closed   atomic.Bool
}

func (s *fakeSandboxSession) Execute(_ context.Context, req domain.ExecRequest) (<-chan domain.SandboxEvent, error) {
	s.req = req
	if s.execErr != nil {
		return nil, s.execErr
	}
	ch := make(chan domain.SandboxEvent, len(s.events))
	go func() {
		defer close(ch)
		time.Sleep(s.delay)
		for _, e := range s.events {
			ch <- e
		}
	}()
	return ch, nil
}

func (s *fakeSandboxSession) Close(context.Context) error {
	s.closed.Store(true)
	return s.closeErr
}

// fakeSandbox hands out a fresh session per Start unless session is set.
type fakeSandbox struct {
	mu        sync.Mutex
	session   *fakeSandboxSession
	eventsFor func(n int) []domain.SandboxEvent
	started   []*fakeSandboxSession
	startErr  error
}

func (s *fakeSandbox) Start(context.Context, string) (domain.SandboxSession, error) {
	if s.startErr != nil {
		return nil, s.startErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.session
	if sess == nil {
		sess = &fakeSandboxSession{events: s.eventsFor(len(s.started)), delay: 10 * time.Millisecond}
	}
	s.started = append(s.started, sess)
	return sess, nil
}

type fakeMemory struct {
	mu      sync.Mutex
	turns   []domain.Turn
	records []domain.MemoryRecord
	err     error
	query   string
	max     int
}

func (m *fakeMemory) SaveTurn(_ context.Context, t domain.Turn) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, t)
	return nil
}

func (m *fakeMemory) Retrieve(_ context.Context, query string, max int) ([]domain.MemoryRecord, error) {
	m.query, m.max = query, max
	return m.records, m.err
}

func (m *fakeMemory) ListEvents(context.Context, string, string, int) ([]domain.Turn, error) {
	return m.turns, m.err
}

func (m *fakeMemory) Close() error { return nil }

func allCaps() config.Capabilities {
	return config.Capabilities{
		Region:            "us-west-2",
		MemoryID:          "mem-1",
		BrowserID:         "browser-1",
		CodeInterpreterID: "ci-1",
	}
}

func textEvent(s string) domain.SandboxEvent {
	b, _ := json.Marshal(s)
	return domain.SandboxEvent{Result: b}
}

var errBoom = errors.New("boom")
