package browser

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"activityplanner/internal/domain"
)

type scriptedLLM struct {
	replies []string
	prompts []string
	err     error
}

func (l *scriptedLLM) Chat(_ context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	if l.err != nil {
		return nil, l.err
	}
	l.prompts = append(l.prompts, req.Messages[0].Content)
	if len(l.replies) == 0 {
		return &domain.ChatResponse{Content: `{"action":"done","text":""}`}, nil
	}
	r := l.replies[0]
	l.replies = l.replies[1:]
	return &domain.ChatResponse{Content: r}, nil
}
func (l *scriptedLLM) Name() string { return "scripted" }

type recordingSession struct {
	calls    []string
	clickErr error
}

func (s *recordingSession) Navigate(_ context.Context, u string) error {
	s.calls = append(s.calls, "navigate "+u)
	return nil
}
func (s *recordingSession) Click(_ context.Context, sel string) error {
	s.calls = append(s.calls, "click "+sel)
	return s.clickErr
}
func (s *recordingSession) Fill(_ context.Context, sel, v string, submit bool) error {
	call := "fill " + sel + "=" + v
	if submit {
		call += " submit"
	}
	s.calls = append(s.calls, call)
	return nil
}
func (s *recordingSession) Snapshot(context.Context) (*domain.PageSnapshot, error) {
	return &domain.PageSnapshot{
		URL:   "https://weather.gov",
		Title: "National Weather Service",
		Text:  "Local forecast by City, St",
		Links: []domain.PageLink{{Text: "Printable Forecast", Selector: `[data-planner-ref="3"]`}},
		Forms: []string{"#inputstring"},
	}, nil
}
func (s *recordingSession) Close(context.Context) error { return nil }

func TestAgent_RunsToDone(t *testing.T) {
	llm := &scriptedLLM{replies: []string{
		`{"action":"fill","selector":"#inputstring","value":"Richmond VA","submit":true}`,
		"Clicking now.\n```json\n{\"action\":\"click\",\"selector\":\"[data-planner-ref=\\\"3\\\"]\"}\n```",
		`{"action":"done","text":"[{\"date\":\"Sat\",\"high\":78}]"}`,
	}}
	sess := &recordingSession{}
	a := NewAgent(AgentConfig{LLM: llm, MaxSteps: 5})

	out, err := a.Run(context.Background(), sess, domain.BrowserTask{Description: "get forecast", StartURL: "https://weather.gov"})
	require.NoError(t, err)
	assert.Equal(t, `[{"date":"Sat","high":78}]`, out)
	assert.Equal(t, []string{
		"navigate https://weather.gov",
		"fill #inputstring=Richmond VA submit",
		`click [data-planner-ref="3"]`,
	}, sess.calls)

	require.Len(t, llm.prompts, 3)
	assert.Contains(t, llm.prompts[0], "Printable Forecast => ")
	assert.Contains(t, llm.prompts[2], "step 2: clicked")
}

func TestAgent_EmptyDoneIsNoData(t *testing.T) {
	a := NewAgent(AgentConfig{LLM: &scriptedLLM{replies: []string{`{"action":"done"}`}}})
	_, err := a.Run(context.Background(), &recordingSession{}, domain.BrowserTask{Description: "x"})
	var noData *domain.NoDataError
	require.ErrorAs(t, err, &noData)
	assert.Equal(t, "NO Data", err.Error())
}

func TestAgent_StepBudgetExhausted(t *testing.T) {
	replies := make([]string, 10)
	for i := range replies {
		replies[i] = `{"action":"click","selector":"#nope"}`
	}
	sess := &recordingSession{clickErr: errors.New("not found")}
	llm := &scriptedLLM{replies: replies}
	a := NewAgent(AgentConfig{LLM: llm, MaxSteps: 3})

	_, err := a.Run(context.Background(), sess, domain.BrowserTask{Description: "x"})
	var noData *domain.NoDataError
	require.ErrorAs(t, err, &noData)
	assert.Len(t, sess.calls, 3)
	assert.Contains(t, llm.prompts[2], "click failed: not found")
}

func TestAgent_InvalidReplyIsRecorded(t *testing.T) {
	llm := &scriptedLLM{replies: []string{"I am not sure", `{"action":"done","text":"ok"}`}}
	a := NewAgent(AgentConfig{LLM: llm})
	out, err := a.Run(context.Background(), &recordingSession{}, domain.BrowserTask{Description: "x"})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Contains(t, llm.prompts[1], "invalid reply")
}

func TestAgent_LLMError(t *testing.T) {
	a := NewAgent(AgentConfig{LLM: &scriptedLLM{err: errors.New("rate limited")}})
	_, err := a.Run(context.Background(), &recordingSession{}, domain.BrowserTask{Description: "x"})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "rate limited"))
}

func TestParseAction(t *testing.T) {
	act, err := parseAction(`Sure: {"action":"NAVIGATE","url":"https://a.b/{x}"} then`)
	require.NoError(t, err)
	assert.Equal(t, "navigate", act.Action)
	assert.Equal(t, "https://a.b/{x}", act.URL)

	_, err = parseAction("no json here")
	assert.Error(t, err)

	_, err = parseAction(`{"url":"x"}`)
	assert.Error(t, err)
}

func TestReadableText_FallsBackToStrippedHTML(t *testing.T) {
	got := readableText("<html><body><p>Hi</p>   <p>there</p></body></html>", "https://example.com")
	assert.Contains(t, got, "Hi")
	assert.Contains(t, got, "there")
}
