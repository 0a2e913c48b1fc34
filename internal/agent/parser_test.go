package agent

import (
	"strings"
	"testing"
)

func TestExtractToolCallsFromContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string // tool names in order
		arg     string   // key=value expected on the first call, if set
	}{
		{"object with arguments", `{"name": "get_weather_data", "arguments": {"city": "Richmond VA"}}`, []string{"get_weather_data"}, "city=Richmond VA"},
		{"parameters field", `{"name": "execute_code", "parameters": {"python_code": "print(1)"}}`, []string{"execute_code"}, "python_code=print(1)"},
		{"tool and input fields", `{"tool": "store_activity_plan", "input": {"plan": "hike"}}`, []string{"store_activity_plan"}, "plan=hike"},
		{"array", `[{"name": "get_activity_preferences"}, {"name": "get_weather_data", "arguments": {"city": "Boston"}}]`, []string{"get_activity_preferences", "get_weather_data"}, ""},
		{"code fence", "```json\n{\"name\": \"get_activity_preferences\", \"arguments\": {}}\n```", []string{"get_activity_preferences"}, ""},
		{"surrounding prose", "Sure.\n{\"name\": \"get_weather_data\", \"arguments\": {\"city\": \"Austin TX\"}}\nLet me check.", []string{"get_weather_data"}, "city=Austin TX"},
		{"skips non-call object", `Data {"temp": 70} then {"name": "execute_code"}`, []string{"execute_code"}, ""},
		{"invalid escape", `{"name": "execute_code", "arguments": {"python_code": "print('100\%')"}}`, []string{"execute_code"}, "python_code=print('100%')"},
		{"camel case name", `{"name": "getWeatherData", "arguments": {"city": "Reno"}}`, []string{"get_weather_data"}, "city=Reno"},
		{"plain text", "Saturday looks GOOD for hiking.", nil, ""},
		{"empty name", `{"name": "", "arguments": {}}`, nil, ""},
		{"unterminated", `{"name": "execute_code", "arguments": {`, nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := extractToolCallsFromContent(tt.content)
			if len(calls) != len(tt.want) {
				t.Fatalf("got %d calls %+v, want %v", len(calls), calls, tt.want)
			}
			for i, c := range calls {
				if c.Name != tt.want[i] {
					t.Errorf("call %d: name %q, want %q", i, c.Name, tt.want[i])
				}
				if c.Arguments == nil {
					t.Errorf("call %d: nil arguments", i)
				}
			}
			if tt.arg != "" {
				key, val, _ := strings.Cut(tt.arg, "=")
				if got := calls[0].Arguments[key]; got != val {
					t.Errorf("argument %s = %v, want %q", key, got, val)
				}
			}
		})
	}
}

func TestExtractToolCallsFromContent_IDsDistinct(t *testing.T) {
	calls := extractToolCallsFromContent(`[{"name": "get_activity_preferences"}, {"name": "get_activity_preferences"}]`)
	if len(calls) != 2 || calls[0].ID == calls[1].ID {
		t.Fatalf("expected two calls with distinct ids, got %+v", calls)
	}
}

func TestNormalizeToolName(t *testing.T) {
	cases := map[string]string{
		"getWeatherData":          "get_weather_data",
		"get-weather-data":        "get_weather_data",
		"EXECUTE_CODE":            "execute_code",
		"saveresults":             "save_results",
		"store_activity_plan":     "store_activity_plan",
		"something_else_entirely": "something_else_entirely",
	}
	for in, want := range cases {
		if got := normalizeToolName(in); got != want {
			t.Errorf("normalizeToolName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRepairEscapes(t *testing.T) {
	cases := map[string]string{
		`{"key": "value with \"quotes\" and \\backslash"}`: `{"key": "value with \"quotes\" and \\backslash"}`,
		`{"key": "100\% done"}`:                            `{"key": "100% done"}`,
		`{"text": "line1\nline2\ttab \u00e9"}`:             `{"text": "line1\nline2\ttab \u00e9"}`,
		`{"path": "C:\\dir\Y"}`:                            `{"path": "C:\\dirY"}`,
	}
	for in, want := range cases {
		if got := repairEscapes(in); got != want {
			t.Errorf("repairEscapes(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStripRolePrefix(t *testing.T) {
	cases := map[string]string{
		"Assistant: Go hiking":    "Go hiking",
		"assistant:\nGo hiking":   "Go hiking",
		"assistant\nGo hiking":    "Go hiking",
		"Go hiking":               "Go hiking",
		"Assistants can help you": "Assistants can help you",
	}
	for in, want := range cases {
		if got := stripRolePrefix(in); got != want {
			t.Errorf("stripRolePrefix(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFirstMap(t *testing.T) {
	a := map[string]any{"key": "a"}
	b := map[string]any{"key": "b"}
	if firstMap(nil, a, b)["key"] != "a" {
		t.Fatal("expected first non-nil map")
	}
	if m := firstMap(nil, nil); m == nil || len(m) != 0 {
		t.Fatal("expected empty non-nil map")
	}
}
