package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"activityplanner/internal/domain"
	"activityplanner/internal/tool"
)

// JSON-RPC 2.0 error codes.
const (
	rpcParseError     = -32700
	rpcInvalidRequest = -32600
	rpcMethodNotFound = -32601
	rpcInvalidParams  = -32602
	rpcInternalError  = -32603
)

const (
	protocolVersion = "2024-11-05"
	ServerName      = "agent-core-tools"
	ServerVersion   = "1.0.0"
)

type jsonRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type jsonRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *jsonRPCError   `json:"error,omitempty"`
}

type jsonRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type toolsCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type toolsCallResult struct {
	Content []contentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

type listedTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// RPCRecorder receives one observation per answered JSON-RPC request.
type RPCRecorder interface {
	ObserveRPC(method string, code int)
}

// Dispatcher maps tool names and JSON-RPC methods onto a tool.Invoker.
type Dispatcher struct {
	invoker  tool.Invoker
	recorder RPCRecorder
}

// NewDispatcher wraps inv. recorder may be nil.
func NewDispatcher(inv tool.Invoker, recorder RPCRecorder) *Dispatcher {
	return &Dispatcher{invoker: inv, recorder: recorder}
}

// Call runs the named tool. ok is false when name is not a planner tool.
func (d *Dispatcher) Call(ctx context.Context, name string, args map[string]any) (res domain.ToolResult, ok bool) {
	kind, known := domain.ParseToolKind(name)
	if !known {
		return domain.ToolResult{}, false
	}
	if args == nil {
		args = map[string]any{}
	}
	return d.invoker.Invoke(ctx, domain.ToolRequest{Kind: kind, Arguments: args}), true
}

// HandleRPC decodes one JSON-RPC payload and returns the response to send.
// A nil response means the payload was a notification. A missing "jsonrpc"
// member is accepted; any version other than "2.0" is not.
func (d *Dispatcher) HandleRPC(ctx context.Context, payload []byte) *jsonRPCResponse {
	if trimmed := bytes.TrimSpace(payload); len(trimmed) > 0 && trimmed[0] == '[' && json.Valid(trimmed) {
		d.observe("", rpcInvalidRequest)
		return rpcError(nil, rpcInvalidRequest, "batch requests are not supported")
	}
	var req jsonRPCRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		d.observe("", rpcParseError)
		return rpcError(nil, rpcParseError, "parse error")
	}
	if (req.JSONRPC != "" && req.JSONRPC != "2.0") || req.Method == "" {
		d.observe(req.Method, rpcInvalidRequest)
		return rpcError(req.ID, rpcInvalidRequest, "invalid request")
	}
	if len(req.ID) == 0 && strings.HasPrefix(req.Method, "notifications/") {
		d.observe(req.Method, 0)
		return nil
	}

	resp := d.dispatch(ctx, req)
	code := 0
	if resp.Error != nil {
		code = resp.Error.Code
	}
	d.observe(req.Method, code)
	return resp
}

func (d *Dispatcher) dispatch(ctx context.Context, req jsonRPCRequest) *jsonRPCResponse {
	switch req.Method {
	case "initialize":
		return rpcResult(req.ID, map[string]any{
			"protocolVersion": protocolVersion,
			"capabilities":    map[string]any{"tools": map[string]any{}},
			"serverInfo":      map[string]any{"name": ServerName, "version": ServerVersion},
		})
	case "ping":
		return rpcResult(req.ID, map[string]any{})
	case "tools/list":
		tools := make([]listedTool, 0, len(domain.AllTools))
		for _, desc := range tool.Catalogue() {
			tools = append(tools, listedTool{Name: desc.Name, Description: desc.Description, InputSchema: desc.InputSchema})
		}
		return rpcResult(req.ID, map[string]any{"tools": tools})
	case "tools/call":
		var params toolsCallParams
		if len(req.Params) > 0 {
			if err := json.Unmarshal(req.Params, &params); err != nil {
				return rpcError(req.ID, rpcInvalidParams, fmt.Sprintf("invalid params: %v", err))
			}
		}
		res, ok := d.Call(ctx, params.Name, params.Arguments)
		if !ok {
			return rpcError(req.ID, rpcMethodNotFound, fmt.Sprintf("Unknown tool: %s", params.Name))
		}
		if res.OK() {
			return rpcResult(req.ID, toolsCallResult{Content: []contentBlock{{Type: "text", Text: res.Text}}})
		}
		return rpcResult(req.ID, toolsCallResult{Content: []contentBlock{{Type: "text", Text: res.Text}}, IsError: true})
	default:
		return rpcError(req.ID, rpcMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method))
	}
}

func (d *Dispatcher) observe(method string, code int) {
	if d.recorder == nil {
		return
	}
	switch method {
	case "initialize", "ping", "tools/list", "tools/call":
	default:
		if strings.HasPrefix(method, "notifications/") {
			method = "notification"
		} else {
			method = "other"
		}
	}
	d.recorder.ObserveRPC(method, code)
}

func rpcResult(id json.RawMessage, result any) *jsonRPCResponse {
	return &jsonRPCResponse{JSONRPC: "2.0", ID: normalizeID(id), Result: result}
}

func rpcError(id json.RawMessage, code int, msg string) *jsonRPCResponse {
	return &jsonRPCResponse{JSONRPC: "2.0", ID: normalizeID(id), Error: &jsonRPCError{Code: code, Message: msg}}
}

func normalizeID(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return json.RawMessage("null")
	}
	return id
}
