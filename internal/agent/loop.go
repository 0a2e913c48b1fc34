package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"activityplanner/internal/domain"
	"activityplanner/internal/tool"
)

const (
	defaultMaxIterations    = 20
	defaultLLMMaxTokens     = 4096
	defaultTemperature      = 0.3
	defaultMaxParallelTools = 3
	defaultRateBurst        = 5
	defaultRatePerMinute    = 30.0

	saveResultsTool = "save_results"
)

// Status values of a Result.
const (
	StatusCompleted = "completed"
	StatusError     = "error"
)

// Result is what one agent run reports back to its caller.
type Result struct {
	Status string `json:"status"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Loop drives one query through the LLM, executing the planner tools it
// asks for until it produces a final answer.
type Loop struct {
	provider      domain.Provider
	tools         *tool.Registry
	logger        *slog.Logger
	system        string
	maxIterations int
	limiter       *rate.Limiter
}

// LoopConfig holds all dependencies and tuning parameters for the agent loop.
type LoopConfig struct {
	Provider      domain.Provider
	Tools         *tool.Registry
	Logger        *slog.Logger
	ResultsBucket string
	MaxIterations int
	RatePerMinute float64
	RateBurst     int
}

// NewLoop creates a new agent loop with the given configuration.
func NewLoop(cfg LoopConfig) *Loop {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = defaultMaxIterations
	}
	if cfg.RatePerMinute <= 0 {
		cfg.RatePerMinute = defaultRatePerMinute
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Loop{
		provider:      cfg.Provider,
		tools:         cfg.Tools,
		logger:        cfg.Logger,
		system:        SystemPrompt(cfg.ResultsBucket),
		maxIterations: cfg.MaxIterations,
		limiter:       rate.NewLimiter(rate.Limit(cfg.RatePerMinute/60.0), cfg.RateBurst),
	}
}

// Run answers query, falling back to DefaultQuery when it is blank. It never
// returns an error; failures are reported in the Result.
func (l *Loop) Run(ctx context.Context, query string) Result {
	if strings.TrimSpace(query) == "" {
		query = DefaultQuery
	}
	l.logger.Info("agent run", "query", query)

	answer, err := l.Ask(ctx, query)
	if err != nil {
		l.logger.Error("agent run failed", "err", err)
		return Result{Status: StatusError, Error: err.Error()}
	}
	return Result{Status: StatusCompleted, Result: answer}
}

// Ask is the main agent logic: call LLM, loop on tool calls, return text.
func (l *Loop) Ask(ctx context.Context, query string) (string, error) {
	if l.provider == nil {
		return "", errors.New("no LLM provider configured")
	}

	messages := []domain.Message{{Role: "user", Content: query}}
	var toolDefs []domain.ToolDefinition
	if l.tools != nil {
		toolDefs = l.tools.Definitions()
	}

	for iteration := 0; iteration < l.maxIterations; iteration++ {
		l.logger.Debug("agent iteration", "iteration", iteration+1, "messages", len(messages))

		if err := l.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit: %w", err)
		}

		start := time.Now()
		resp, err := l.provider.Chat(ctx, domain.ChatRequest{
			System:      l.system,
			Messages:    messages,
			Tools:       toolDefs,
			MaxTokens:   defaultLLMMaxTokens,
			Temperature: defaultTemperature,
		})
		if err != nil {
			return "", fmt.Errorf("LLM error: %w", err)
		}
		l.logger.Debug("llm responded", "latency", time.Since(start), "tool_calls", len(resp.ToolCalls))

		// Some models embed tool calls as JSON in the content field.
		if !resp.HasToolCalls() && resp.Content != "" {
			if extracted := extractToolCallsFromContent(resp.Content); len(extracted) > 0 {
				resp.ToolCalls = extracted
				resp.Content = ""
				l.logger.Info("extracted tool calls from content text", "count", len(extracted))
			}
		}

		if !resp.HasToolCalls() {
			answer := stripRolePrefix(strings.TrimSpace(resp.Content))
			if answer == "" {
				answer = "I've completed processing but have no additional response."
			}
			return answer, nil
		}

		messages = append(messages, domain.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		messages = append(messages, l.executeTools(ctx, resp.ToolCalls)...)
	}

	return "", fmt.Errorf("no final answer after %d iterations", l.maxIterations)
}

// executeTools runs calls with bounded parallelism and returns the tool
// messages in call order.
func (l *Loop) executeTools(ctx context.Context, calls []domain.ToolCall) []domain.Message {
	out := make([]domain.Message, len(calls))
	var g errgroup.Group
	g.SetLimit(defaultMaxParallelTools)
	for i, tc := range calls {
		g.Go(func() error {
			result, err := l.executeTool(ctx, tc)
			if err != nil {
				result = fmt.Sprintf("Error executing tool %s: %s", tc.Name, err.Error())
			}
			out[i] = domain.Message{
				Role:       "tool",
				Content:    result,
				ToolCallID: tc.ID,
				ToolName:   tc.Name,
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (l *Loop) executeTool(ctx context.Context, tc domain.ToolCall) (string, error) {
	l.logger.Info("executing tool", "tool", tc.Name)
	if l.tools == nil {
		return "", fmt.Errorf("tool registry not initialized")
	}
	if l.logger.Enabled(ctx, slog.LevelDebug) {
		if argsJSON, err := json.Marshal(tc.Arguments); err == nil {
			l.logger.Debug("tool arguments", "tool", tc.Name, "args", string(argsJSON))
		}
	}
	return l.tools.Execute(ctx, tc.Name, tc.Arguments)
}
