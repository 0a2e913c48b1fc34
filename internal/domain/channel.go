package domain

import "context"

// Channel is a front end that serves the planner tools (HTTP, stdio MCP).
type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
}
