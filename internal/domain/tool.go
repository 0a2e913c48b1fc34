package domain

import "context"

// Tool is the interface the agent loop calls tools through.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any
	Execute(ctx context.Context, args map[string]any) (string, error)
}

// ToolKind is the closed set of planner operations exposed by every front end.
type ToolKind int

const (
	ToolGetWeatherData ToolKind = iota + 1
	ToolGenerateAnalysisCode
	ToolExecuteCode
	ToolStoreUserPreferences
	ToolGetActivityPreferences
	ToolStoreActivityPlan
)

// AllTools lists every ToolKind in catalogue order.
var AllTools = []ToolKind{
	ToolGetWeatherData,
	ToolGenerateAnalysisCode,
	ToolExecuteCode,
	ToolStoreUserPreferences,
	ToolGetActivityPreferences,
	ToolStoreActivityPlan,
}

var toolNames = map[ToolKind]string{
	ToolGetWeatherData:         "get_weather_data",
	ToolGenerateAnalysisCode:   "generate_analysis_code",
	ToolExecuteCode:            "execute_code",
	ToolStoreUserPreferences:   "store_user_preferences",
	ToolGetActivityPreferences: "get_activity_preferences",
	ToolStoreActivityPlan:      "store_activity_plan",
}

// String returns the wire name of the tool.
func (k ToolKind) String() string {
	if n, ok := toolNames[k]; ok {
		return n
	}
	return "unknown"
}

// ParseToolKind maps a wire name to its ToolKind.
func ParseToolKind(name string) (ToolKind, bool) {
	for k, n := range toolNames {
		if n == name {
			return k, true
		}
	}
	return 0, false
}

// ToolRequest is one invocation of a planner tool.
type ToolRequest struct {
	Kind      ToolKind
	Arguments map[string]any
}

// ResultStatus tags a ToolResult.
type ResultStatus string

const (
	StatusSuccess ResultStatus = "success"
	StatusError   ResultStatus = "error"
)

// ToolResult is the uniform outcome of a tool invocation. Err is kept for
// in-process observers and is never serialized.
type ToolResult struct {
	Status ResultStatus
	Text   string
	Err    error
}

func Success(text string) ToolResult {
	return ToolResult{Status: StatusSuccess, Text: text}
}

func Failure(err error) ToolResult {
	return ToolResult{Status: StatusError, Text: err.Error(), Err: err}
}

func (r ToolResult) OK() bool { return r.Status == StatusSuccess }
