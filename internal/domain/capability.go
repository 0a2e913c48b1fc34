package domain

import (
	"context"
	"encoding/json"
)

// Browser opens browser sessions from a pool.
type Browser interface {
	Start(ctx context.Context, poolID string) (BrowserSession, error)
}

// BrowserSession is a live browser handle owned by one invocation.
type BrowserSession interface {
	Navigate(ctx context.Context, url string) error
	Click(ctx context.Context, selector string) error
	Fill(ctx context.Context, selector, value string, submit bool) error
	Snapshot(ctx context.Context) (*PageSnapshot, error)
	Close(ctx context.Context) error
}

// PageSnapshot is the readable view of the current page.
type PageSnapshot struct {
	URL   string     `json:"url"`
	Title string     `json:"title"`
	Text  string     `json:"text"`
	Links []PageLink `json:"links,omitempty"`
	Forms []string   `json:"forms,omitempty"` // CSS selectors of text inputs
}

type PageLink struct {
	Text     string `json:"text"`
	Selector string `json:"selector"`
}

// BrowserTask is a natural-language task for the browser agent.
type BrowserTask struct {
	Description string
	StartURL    string
}

// BrowserAction is one step the browser agent decided on.
type BrowserAction struct {
	Action   string `json:"action"` // navigate | click | fill | done
	URL      string `json:"url,omitempty"`
	Selector string `json:"selector,omitempty"`
	Value    string `json:"value,omitempty"`
	Submit   bool   `json:"submit,omitempty"`
	Text     string `json:"text,omitempty"`
}

// TaskRunner drives a browser session through a task and returns the done payload.
type TaskRunner interface {
	Run(ctx context.Context, session BrowserSession, task BrowserTask) (string, error)
}

// Sandbox opens code-execution sessions.
type Sandbox interface {
	Start(ctx context.Context, interpreterID string) (SandboxSession, error)
}

// SandboxSession is a live code interpreter owned by one invocation.
type SandboxSession interface {
	// Execute submits code and returns a stream of events. The channel is
	// closed when execution ends.
	Execute(ctx context.Context, req ExecRequest) (<-chan SandboxEvent, error)
	Close(ctx context.Context) error
}

type ExecRequest struct {
	Code         string `json:"code"`
	Language     string `json:"language"`
	ClearContext bool   `json:"clearContext"`
}

// SandboxEvent carries one result payload or a stream error.
type SandboxEvent struct {
	Result json.RawMessage `json:"result,omitempty"`
	Err    error           `json:"-"`
}
