package tool

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"activityplanner/internal/config"
	"activityplanner/internal/domain"
)

const (
	preferencesQuery      = "What are the user's activity preferences and interests?"
	preferencesMaxResults = 5
	defaultPreferences    = "No preferences stored. Default: outdoor activities, hiking, beaches, museums."
	weatherStartURL       = "https://weather.gov"
)

// Invoker runs one tool request to completion. Implementations never panic
// or return errors; failures are reported in the ToolResult.
type Invoker interface {
	Invoke(ctx context.Context, req domain.ToolRequest) domain.ToolResult
}

// ReleaseFunc is told about a capability handle that failed to close.
type ReleaseFunc func(capability string, err error)

// Planner implements the six planner tools on top of the capability clients.
type Planner struct {
	caps           config.Capabilities
	identity       config.IdentityConfig
	browser        domain.Browser
	runner         domain.TaskRunner
	browserTimeout time.Duration
	startURL       string
	llm            domain.Provider
	sandbox        domain.Sandbox
	memory         domain.MemoryStore
	onRelease      ReleaseFunc
}

// PlannerConfig holds the capability clients and the immutable settings.
type PlannerConfig struct {
	Capabilities   config.Capabilities
	Identity       config.IdentityConfig
	Browser        domain.Browser
	TaskRunner     domain.TaskRunner
	BrowserTimeout time.Duration
	StartURL       string
	LLM            domain.Provider
	Sandbox        domain.Sandbox
	Memory         domain.MemoryStore
	OnReleaseError ReleaseFunc
}

func NewPlanner(cfg PlannerConfig) *Planner {
	if cfg.BrowserTimeout <= 0 {
		cfg.BrowserTimeout = 150 * time.Second
	}
	if cfg.StartURL == "" {
		cfg.StartURL = weatherStartURL
	}
	if cfg.OnReleaseError == nil {
		cfg.OnReleaseError = func(string, error) {}
	}
	return &Planner{
		caps:           cfg.Capabilities,
		identity:       cfg.Identity,
		browser:        cfg.Browser,
		runner:         cfg.TaskRunner,
		browserTimeout: cfg.BrowserTimeout,
		startURL:       cfg.StartURL,
		llm:            cfg.LLM,
		sandbox:        cfg.Sandbox,
		memory:         cfg.Memory,
		onRelease:      cfg.OnReleaseError,
	}
}

// Invoke dispatches req to the matching handler. A panic inside a capability
// client is converted into an error result.
func (p *Planner) Invoke(ctx context.Context, req domain.ToolRequest) (res domain.ToolResult) {
	defer func() {
		if r := recover(); r != nil {
			res = domain.Failure(fmt.Errorf("%s panicked: %v", req.Kind, r))
		}
	}()

	var (
		text string
		err  error
	)
	switch req.Kind {
	case domain.ToolGetWeatherData:
		text, err = p.getWeatherData(ctx, req.Arguments)
	case domain.ToolGenerateAnalysisCode:
		text, err = p.generateAnalysisCode(ctx, req.Arguments)
	case domain.ToolExecuteCode:
		text, err = p.executeCode(ctx, req.Arguments)
	case domain.ToolStoreUserPreferences:
		text, err = p.storeUserPreferences(ctx, req.Arguments)
	case domain.ToolGetActivityPreferences:
		text, err = p.getActivityPreferences(ctx)
	case domain.ToolStoreActivityPlan:
		text, err = p.storeActivityPlan(ctx, req.Arguments)
	default:
		err = fmt.Errorf("unknown tool kind %d", int(req.Kind))
	}
	if err != nil {
		return domain.Failure(err)
	}
	return domain.Success(text)
}

// WeatherTask builds the fixed browser task for city.
func WeatherTask(city, startURL string) domain.BrowserTask {
	return domain.BrowserTask{
		StartURL: startURL,
		Description: fmt.Sprintf(`Extract 8-Day Weather Forecast for %[1]s from weather.gov
Steps:
- Go to https://weather.gov
- Search for "%[1]s" and click GO
- Click "Printable Forecast" link
- Extract date, high, low, conditions, wind, precip for each day
- Return JSON array of daily forecasts`, city),
	}
}

// AnalysisPrompt builds the classification prompt for the LLM.
func AnalysisPrompt(weatherData string) string {
	return fmt.Sprintf(`Create Python code to classify weather days as GOOD/OK/POOR:
Rules: GOOD: 65-80°F clear, OK: 55-85°F partly cloudy, POOR: <55°F or >85°F
Weather data: %s
Return code that outputs list of tuples: [('2025-09-16', 'GOOD'), ...]`, weatherData)
}

func (p *Planner) getWeatherData(ctx context.Context, args map[string]any) (string, error) {
	if !p.caps.HasBrowser() {
		return "", &domain.CapabilityDisabledError{Capability: "Browser"}
	}
	var in weatherArgs
	if err := decodeArgs(domain.ToolGetWeatherData, args, &in); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, p.browserTimeout)
	defer cancel()

	var forecast string
	err := p.withBrowser(ctx, func(session domain.BrowserSession) error {
		var runErr error
		forecast, runErr = p.runner.Run(ctx, session, WeatherTask(in.City, p.startURL))
		return runErr
	})
	if err != nil {
		return "", err
	}
	return forecast, nil
}

func (p *Planner) generateAnalysisCode(ctx context.Context, args map[string]any) (string, error) {
	var in analysisArgs
	if err := decodeArgs(domain.ToolGenerateAnalysisCode, args, &in); err != nil {
		return "", err
	}
	if p.llm == nil {
		return "", errors.New("no LLM provider configured")
	}

	resp, err := p.llm.Chat(ctx, domain.ChatRequest{
		Messages: []domain.Message{{Role: "user", Content: AnalysisPrompt(in.WeatherData)}},
	})
	if err != nil {
		return "", fmt.Errorf("generate analysis code: %w", err)
	}
	return ExtractCode(resp.Content), nil
}

func (p *Planner) executeCode(ctx context.Context, args map[string]any) (string, error) {
	if !p.caps.HasCodeInterpreter() {
		return "", &domain.CapabilityDisabledError{Capability: "Code Interpreter"}
	}
	var in executeArgs
	if err := decodeArgs(domain.ToolExecuteCode, args, &in); err != nil {
		return "", err
	}

	var last []byte
	err := p.withSandbox(ctx, func(session domain.SandboxSession) error {
		events, err := session.Execute(ctx, domain.ExecRequest{
			Code:         in.PythonCode,
			Language:     "python",
			ClearContext: true,
		})
		if err != nil {
			return fmt.Errorf("execute code: %w", err)
		}
		// Only the final payload is kept; earlier chunks are superseded.
		for evt := range events {
			if evt.Err != nil {
				return fmt.Errorf("execute code: %w", evt.Err)
			}
			if len(evt.Result) > 0 {
				last = evt.Result
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if last == nil {
		return "", errors.New("code execution produced no result")
	}
	return stringifyPayload(last)
}

func (p *Planner) storeUserPreferences(ctx context.Context, args map[string]any) (string, error) {
	if !p.caps.HasMemory() {
		return "", &domain.CapabilityDisabledError{Capability: "Memory"}
	}
	var in preferencesArgs
	if err := decodeArgs(domain.ToolStoreUserPreferences, args, &in); err != nil {
		return "", err
	}
	err := p.memory.SaveTurn(ctx, p.turn("My preferences: "+in.Preferences, "Preferences saved"))
	if err != nil {
		return "", fmt.Errorf("save preferences: %w", err)
	}
	return "Preferences stored: " + in.Preferences, nil
}

func (p *Planner) getActivityPreferences(ctx context.Context) (string, error) {
	if !p.caps.HasMemory() {
		return "", &domain.CapabilityDisabledError{Capability: "Memory"}
	}
	records, err := p.memory.Retrieve(ctx, preferencesQuery, preferencesMaxResults)
	if err != nil {
		return "", fmt.Errorf("retrieve preferences: %w", err)
	}
	if len(records) == 0 {
		return defaultPreferences, nil
	}
	lines := make([]string, 0, len(records))
	for _, r := range records {
		lines = append(lines, r.String())
	}
	return "User preferences: " + strings.Join(lines, "\n"), nil
}

func (p *Planner) storeActivityPlan(ctx context.Context, args map[string]any) (string, error) {
	if !p.caps.HasMemory() {
		return "", &domain.CapabilityDisabledError{Capability: "Memory"}
	}
	var in planArgs
	if err := decodeArgs(domain.ToolStoreActivityPlan, args, &in); err != nil {
		return "", err
	}
	if err := p.memory.SaveTurn(ctx, p.turn("Plan for "+in.City, in.Plan)); err != nil {
		return "", fmt.Errorf("save plan: %w", err)
	}
	return "Activity plan stored in memory for " + in.City, nil
}

func (p *Planner) turn(input, response string) domain.Turn {
	return domain.Turn{
		MemoryID:      p.caps.MemoryID,
		ActorID:       p.identity.ActorID,
		SessionID:     p.identity.SessionID,
		UserInput:     input,
		AgentResponse: response,
	}
}
