package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"activityplanner/internal/domain"
)

const agentSystemPrompt = `You control a web browser to complete a task.
Each turn you receive the current page (URL, title, readable text, clickable
links and text inputs, each with a CSS selector). Reply with exactly one JSON
object and nothing else:
  {"action":"navigate","url":"https://..."}
  {"action":"click","selector":"<selector from the page>"}
  {"action":"fill","selector":"<input selector>","value":"...","submit":true}
  {"action":"done","text":"<final answer>"}
Use "done" when the task's requested output is complete. If the data cannot be
found, reply {"action":"done","text":""}.`

// Agent drives a BrowserSession through a natural-language task by asking
// the LLM for one action per page observation.
type Agent struct {
	llm      domain.Provider
	maxSteps int
	logger   *slog.Logger
}

// AgentConfig configures the browser task agent.
type AgentConfig struct {
	LLM      domain.Provider
	MaxSteps int
	Logger   *slog.Logger
}

func NewAgent(cfg AgentConfig) *Agent {
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = 12
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Agent{llm: cfg.LLM, maxSteps: cfg.MaxSteps, logger: cfg.Logger}
}

// Run returns the text of the agent's done action. A task that ends without
// one, or with an empty one, yields *domain.NoDataError.
func (a *Agent) Run(ctx context.Context, s domain.BrowserSession, task domain.BrowserTask) (string, error) {
	if a.llm == nil {
		return "", errors.New("browser agent has no LLM provider")
	}
	if task.StartURL != "" {
		if err := s.Navigate(ctx, task.StartURL); err != nil {
			return "", err
		}
	}

	var history []string
	for step := 1; step <= a.maxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		snap, err := s.Snapshot(ctx)
		if err != nil {
			return "", err
		}

		resp, err := a.llm.Chat(ctx, domain.ChatRequest{
			System:   agentSystemPrompt,
			Messages: []domain.Message{{Role: "user", Content: renderObservation(task, snap, history)}},
		})
		if err != nil {
			return "", fmt.Errorf("browser agent step %d: %w", step, err)
		}

		action, err := parseAction(resp.Content)
		if err != nil {
			history = append(history, fmt.Sprintf("step %d: invalid reply (%v)", step, err))
			continue
		}
		a.logger.Debug("browser agent action", "step", step, "action", action.Action, "selector", action.Selector, "url", action.URL)

		if action.Action == "done" {
			text := strings.TrimSpace(action.Text)
			if text == "" {
				return "", &domain.NoDataError{Task: task.Description}
			}
			return text, nil
		}

		if err := apply(ctx, s, action); err != nil {
			history = append(history, fmt.Sprintf("step %d: %s failed: %v", step, action.Action, err))
			continue
		}
		history = append(history, fmt.Sprintf("step %d: %s", step, describe(action)))
	}

	a.logger.Warn("browser agent gave up", "steps", a.maxSteps)
	return "", &domain.NoDataError{Task: task.Description}
}

func apply(ctx context.Context, s domain.BrowserSession, act domain.BrowserAction) error {
	switch act.Action {
	case "navigate":
		if act.URL == "" {
			return errors.New("navigate needs url")
		}
		return s.Navigate(ctx, act.URL)
	case "click":
		if act.Selector == "" {
			return errors.New("click needs selector")
		}
		return s.Click(ctx, act.Selector)
	case "fill":
		if act.Selector == "" {
			return errors.New("fill needs selector")
		}
		return s.Fill(ctx, act.Selector, act.Value, act.Submit)
	default:
		return fmt.Errorf("unknown action %q", act.Action)
	}
}

func describe(act domain.BrowserAction) string {
	switch act.Action {
	case "navigate":
		return "navigated to " + act.URL
	case "click":
		return "clicked " + act.Selector
	case "fill":
		d := fmt.Sprintf("filled %s with %q", act.Selector, act.Value)
		if act.Submit {
			d += " and submitted"
		}
		return d
	}
	return act.Action
}

func renderObservation(task domain.BrowserTask, snap *domain.PageSnapshot, history []string) string {
	var b strings.Builder
	b.WriteString("Task:\n")
	b.WriteString(task.Description)
	b.WriteString("\n\n")
	if len(history) > 0 {
		b.WriteString("Previous steps:\n")
		for _, h := range history {
			b.WriteString("- ")
			b.WriteString(h)
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "Current page: %s\nTitle: %s\n\n", snap.URL, snap.Title)
	if len(snap.Forms) > 0 {
		b.WriteString("Text inputs: ")
		b.WriteString(strings.Join(snap.Forms, ", "))
		b.WriteString("\n\n")
	}
	if len(snap.Links) > 0 {
		b.WriteString("Links:\n")
		for _, l := range snap.Links {
			fmt.Fprintf(&b, "- %s => %s\n", l.Text, l.Selector)
		}
		b.WriteByte('\n')
	}
	b.WriteString("Page text:\n")
	b.WriteString(snap.Text)
	return b.String()
}

// parseAction reads the first JSON object in content, tolerating code fences
// and surrounding prose.
func parseAction(content string) (domain.BrowserAction, error) {
	var act domain.BrowserAction
	start, end := findObject(content)
	if start < 0 {
		return act, errors.New("no JSON object")
	}
	if err := json.Unmarshal([]byte(content[start:end]), &act); err != nil {
		return act, err
	}
	act.Action = strings.ToLower(strings.TrimSpace(act.Action))
	if act.Action == "" {
		return act, errors.New("missing action")
	}
	return act, nil
}

// findObject returns the bounds of the first balanced {...} in s, or -1.
func findObject(s string) (int, int) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return -1, -1
	}
	depth := 0
	inStr := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inStr {
			if ch == '\\' {
				i++
				continue
			}
			if ch == '"' {
				inStr = false
			}
			continue
		}
		switch ch {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return start, i + 1
			}
		}
	}
	return -1, -1
}
