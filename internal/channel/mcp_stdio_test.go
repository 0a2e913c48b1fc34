package channel

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"activityplanner/internal/domain"
)

func newTestMCP(inv *fakeInvoker) *MCPStdio {
	return NewMCPStdio(MCPStdioConfig{
		Dispatcher: NewDispatcher(inv, nil),
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func handleMCP(t *testing.T, m *MCPStdio, msg string) map[string]any {
	t.Helper()
	resp := m.Server().HandleMessage(context.Background(), json.RawMessage(msg))
	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestMCP_ToolsList(t *testing.T) {
	m := newTestMCP(&fakeInvoker{})
	out := handleMCP(t, m, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)

	result := out["result"].(map[string]any)
	tools := result["tools"].([]any)
	require.Len(t, tools, 6)

	byName := map[string]map[string]any{}
	for _, raw := range tools {
		tl := raw.(map[string]any)
		byName[tl["name"].(string)] = tl
	}
	plan := byName["store_activity_plan"]
	require.NotNil(t, plan)
	schema := plan["inputSchema"].(map[string]any)
	assert.ElementsMatch(t, []any{"city", "plan"}, schema["required"])
}

func TestMCP_ToolsCall(t *testing.T) {
	inv := &fakeInvoker{results: map[domain.ToolKind]domain.ToolResult{
		domain.ToolStoreUserPreferences: domain.Success("Preferences stored: kayaking"),
	}}
	m := newTestMCP(inv)

	out := handleMCP(t, m, `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"store_user_preferences","arguments":{"preferences":"kayaking"}}}`)
	result := out["result"].(map[string]any)
	content := result["content"].([]any)
	require.Len(t, content, 1)
	assert.Equal(t, "Preferences stored: kayaking", content[0].(map[string]any)["text"])
	assert.NotEqual(t, true, result["isError"])

	require.Len(t, inv.requests, 1)
	assert.Equal(t, "kayaking", inv.requests[0].Arguments["preferences"])
}

func TestMCP_ToolsCallError(t *testing.T) {
	inv := &fakeInvoker{results: map[domain.ToolKind]domain.ToolResult{
		domain.ToolGetActivityPreferences: domain.Failure(&domain.CapabilityDisabledError{Capability: "Memory"}),
	}}
	m := newTestMCP(inv)

	out := handleMCP(t, m, `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"get_activity_preferences","arguments":{}}}`)
	result := out["result"].(map[string]any)
	assert.Equal(t, true, result["isError"])
	assert.Equal(t, "Memory capability not enabled", result["content"].([]any)[0].(map[string]any)["text"])
}

func TestMCP_StdioRoundTrip(t *testing.T) {
	inv := &fakeInvoker{}
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	m := NewMCPStdio(MCPStdioConfig{
		Dispatcher: NewDispatcher(inv, nil),
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		In:         inR,
		Out:        outW,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- m.Start(ctx) }()

	_, err := io.WriteString(inW, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"test","version":"0"}}}`+"\n")
	require.NoError(t, err)

	line, err := bufio.NewReader(outR).ReadString('\n')
	require.NoError(t, err)
	var resp map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &resp))
	info := resp["result"].(map[string]any)["serverInfo"].(map[string]any)
	assert.Equal(t, "agent-core-tools", info["name"])
	assert.Equal(t, "1.0.0", info["version"])

	require.NoError(t, m.Stop())
	_ = inW.Close()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("stdio server did not stop")
	}
}
