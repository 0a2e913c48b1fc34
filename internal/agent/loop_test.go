package agent

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"activityplanner/internal/domain"
	"activityplanner/internal/results"
	"activityplanner/internal/tool"
)

type scriptedProvider struct {
	mu        sync.Mutex
	responses []*domain.ChatResponse
	err       error
	requests  []domain.ChatRequest
}

func (p *scriptedProvider) Chat(_ context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}
	if len(p.responses) == 0 {
		return &domain.ChatResponse{ToolCalls: []domain.ToolCall{{ID: "again", Name: "get_activity_preferences"}}}, nil
	}
	resp := p.responses[0]
	p.responses = p.responses[1:]
	return resp, nil
}

func (p *scriptedProvider) Name() string { return "scripted" }

type recordingInvoker struct {
	mu    sync.Mutex
	calls []domain.ToolRequest
}

func (r *recordingInvoker) Invoke(_ context.Context, req domain.ToolRequest) domain.ToolResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, req)
	switch req.Kind {
	case domain.ToolGetWeatherData:
		return domain.Success(`[{"date":"2025-09-20","high":72}]`)
	case domain.ToolExecuteCode:
		return domain.Failure(&domain.CapabilityDisabledError{Capability: "Code Interpreter"})
	default:
		return domain.Success("User preferences: hiking")
	}
}

func newTestLoop(t *testing.T, p domain.Provider, inv tool.Invoker) (*Loop, *results.Store) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := tool.NewRegistry(logger)
	reg.RegisterPlanner(inv)
	store, err := results.NewStore(results.StoreConfig{Dir: t.TempDir(), Bucket: "weather-results-bucket", Logger: logger})
	require.NoError(t, err)
	reg.Register(results.NewSaveTool(store))

	return NewLoop(LoopConfig{
		Provider:      p,
		Tools:         reg,
		Logger:        logger,
		ResultsBucket: store.Bucket(),
		MaxIterations: 5,
		RatePerMinute: 6000,
		RateBurst:     100,
	}), store
}

func TestLoop_AdvisorySequence(t *testing.T) {
	p := &scriptedProvider{responses: []*domain.ChatResponse{
		{ToolCalls: []domain.ToolCall{{ID: "1", Name: "get_weather_data", Arguments: map[string]any{"city": "Richmond VA"}}}},
		{ToolCalls: []domain.ToolCall{
			{ID: "2", Name: "execute_code", Arguments: map[string]any{"python_code": "print(1)"}},
			{ID: "3", Name: "get_activity_preferences", Arguments: map[string]any{}},
		}},
		{ToolCalls: []domain.ToolCall{{ID: "4", Name: "save_results", Arguments: map[string]any{"content": "# Saturday: hike"}}}},
		{Content: "Saturday is GOOD for hiking."},
	}}
	inv := &recordingInvoker{}
	loop, store := newTestLoop(t, p, inv)

	res := loop.Run(context.Background(), "What should I do in Richmond VA?")
	require.Equal(t, StatusCompleted, res.Status, res.Error)
	assert.Equal(t, "Saturday is GOOD for hiking.", res.Result)

	require.Len(t, p.requests, 4)
	assert.Contains(t, p.requests[0].System, "weather-results-bucket")
	assert.Contains(t, p.requests[0].System, "Call get_weather_data(city)")
	assert.Len(t, p.requests[0].Tools, 7)

	// Second call sees the weather tool result; third sees both parallel results in order.
	second := p.requests[1].Messages
	assert.Equal(t, "tool", second[len(second)-1].Role)
	assert.Contains(t, second[len(second)-1].Content, `"high":72`)

	third := p.requests[2].Messages
	require.GreaterOrEqual(t, len(third), 2)
	assert.Equal(t, "2", third[len(third)-2].ToolCallID)
	assert.Contains(t, third[len(third)-2].Content, "Code Interpreter capability not enabled")
	assert.Equal(t, "3", third[len(third)-1].ToolCallID)

	saved, err := store.Get(results.DefaultKey)
	require.NoError(t, err)
	assert.Equal(t, "# Saturday: hike", saved)
	assert.Len(t, inv.calls, 3)
}

func TestLoop_DefaultQuery(t *testing.T) {
	p := &scriptedProvider{responses: []*domain.ChatResponse{{Content: "Go to the beach."}}}
	loop, _ := newTestLoop(t, p, &recordingInvoker{})

	res := loop.Run(context.Background(), "  ")
	require.Equal(t, StatusCompleted, res.Status)
	require.Len(t, p.requests, 1)
	assert.Equal(t, DefaultQuery, p.requests[0].Messages[0].Content)
}

func TestLoop_ExtractsToolCallsFromContent(t *testing.T) {
	p := &scriptedProvider{responses: []*domain.ChatResponse{
		{Content: `{"name": "getWeatherData", "arguments": {"city": "Boston MA"}}`},
		{Content: "Sunday looks OK."},
	}}
	inv := &recordingInvoker{}
	loop, _ := newTestLoop(t, p, inv)

	res := loop.Run(context.Background(), "Boston?")
	require.Equal(t, StatusCompleted, res.Status)
	require.Len(t, inv.calls, 1)
	assert.Equal(t, domain.ToolGetWeatherData, inv.calls[0].Kind)
	assert.Equal(t, "Boston MA", inv.calls[0].Arguments["city"])
}

func TestLoop_UnknownToolReportedToModel(t *testing.T) {
	p := &scriptedProvider{responses: []*domain.ChatResponse{
		{ToolCalls: []domain.ToolCall{{ID: "x", Name: "use_aws", Arguments: map[string]any{}}}},
		{Content: "done"},
	}}
	loop, _ := newTestLoop(t, p, &recordingInvoker{})

	res := loop.Run(context.Background(), "q")
	require.Equal(t, StatusCompleted, res.Status)
	msgs := p.requests[1].Messages
	assert.Contains(t, msgs[len(msgs)-1].Content, "Error executing tool use_aws: unknown tool")
}

func TestLoop_LLMErrorIsErrorStatus(t *testing.T) {
	p := &scriptedProvider{err: errors.New("throttled")}
	loop, _ := newTestLoop(t, p, &recordingInvoker{})

	res := loop.Run(context.Background(), "q")
	assert.Equal(t, StatusError, res.Status)
	assert.Contains(t, res.Error, "throttled")
	assert.Empty(t, res.Result)
}

func TestLoop_IterationCap(t *testing.T) {
	p := &scriptedProvider{}
	loop, _ := newTestLoop(t, p, &recordingInvoker{})

	res := loop.Run(context.Background(), "q")
	assert.Equal(t, StatusError, res.Status)
	assert.Contains(t, res.Error, "no final answer after 5 iterations")
	assert.Len(t, p.requests, 5)
}

func TestLoop_NoProvider(t *testing.T) {
	loop, _ := newTestLoop(t, nil, &recordingInvoker{})
	res := loop.Run(context.Background(), "q")
	assert.Equal(t, StatusError, res.Status)
	assert.Equal(t, "no LLM provider configured", res.Error)
}

func TestLoop_CancelledContext(t *testing.T) {
	p := &scriptedProvider{responses: []*domain.ChatResponse{{Content: "never"}}}
	loop, _ := newTestLoop(t, p, &recordingInvoker{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := loop.Run(ctx, "q")
	assert.Equal(t, StatusError, res.Status)
	assert.Contains(t, res.Error, "rate limit")
}
