package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"activityplanner/internal/domain"
)

// Registry is the ordered set of tools the agent loop may call. Definitions
// are offered to the model in registration order.
type Registry struct {
	mu     sync.RWMutex
	order  []string
	byName map[string]domain.Tool
	logger *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{byName: make(map[string]domain.Tool), logger: logger}
}

// Register adds t, replacing any tool already registered under its name.
func (r *Registry) Register(t domain.Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byName[t.Name()]; !dup {
		r.order = append(r.order, t.Name())
	}
	r.byName[t.Name()] = t
	r.logger.Debug("tool registered", "tool", t.Name())
}

// RegisterPlanner adds the six planner tools, all dispatched through inv.
func (r *Registry) RegisterPlanner(inv Invoker) {
	for _, d := range Catalogue() {
		r.Register(&plannerTool{desc: d, inv: inv})
	}
}

func (r *Registry) Lookup(name string) (domain.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byName[name]
	return t, ok
}

// Execute runs the named tool. Unknown names are an error listing what is
// available, so the model can correct itself.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (string, error) {
	t, ok := r.Lookup(name)
	if !ok {
		return "", fmt.Errorf("unknown tool %q (available: %s)", name, strings.Join(r.Names(), ", "))
	}
	return t.Execute(ctx, args)
}

func (r *Registry) Definitions() []domain.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]domain.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		t := r.byName[name]
		defs = append(defs, domain.ToolDefinition{Name: name, Description: t.Description(), Parameters: t.Parameters()})
	}
	return defs
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// plannerTool adapts one catalogue entry to domain.Tool.
type plannerTool struct {
	desc Descriptor
	inv  Invoker
}

func (t *plannerTool) Name() string               { return t.desc.Name }
func (t *plannerTool) Description() string        { return t.desc.Description }
func (t *plannerTool) Parameters() map[string]any { return t.desc.InputSchema }

// Execute turns a failed ToolResult into an error carrying its reason.
func (t *plannerTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	res := t.inv.Invoke(ctx, domain.ToolRequest{Kind: t.desc.Kind, Arguments: args})
	switch {
	case res.OK():
		return res.Text, nil
	case res.Err != nil:
		return "", res.Err
	default:
		return "", errors.New(res.Text)
	}
}

// Param is one string property of a tool input schema.
type Param struct {
	Name        string
	Description string
	Required    bool
}

func Required(name, description string) Param { return Param{name, description, true} }
func Optional(name, description string) Param { return Param{name, description, false} }

// ObjectSchema builds a JSON schema object over string params and returns
// it with the names of the required ones.
func ObjectSchema(params ...Param) (map[string]any, []string) {
	props := make(map[string]any, len(params))
	var required []string
	for _, p := range params {
		props[p.Name] = map[string]any{"type": "string", "description": p.Description}
		if p.Required {
			required = append(required, p.Name)
		}
	}
	schema := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema, required
}

// StringArg reads args[key] as text; non-string values are rendered as
// JSON.
func StringArg(args map[string]any, key string) string {
	switch v := args[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
}
