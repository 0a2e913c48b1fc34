package agent

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"activityplanner/internal/domain"
)

// maxCandidates bounds how many JSON start positions are tried per reply.
const maxCandidates = 16

// contentCall is a tool call a model wrote into its text reply instead of
// the structured tool_calls field.
type contentCall struct {
	Name       string         `json:"name"`
	Tool       string         `json:"tool"`
	Arguments  map[string]any `json:"arguments"`
	Parameters map[string]any `json:"parameters"`
	Input      map[string]any `json:"input"`
}

func (c contentCall) toolCall(i int) (domain.ToolCall, bool) {
	name := firstString(c.Name, c.Tool)
	if name == "" {
		return domain.ToolCall{}, false
	}
	return domain.ToolCall{
		ID:        fmt.Sprintf("content_call_%d", i),
		Name:      normalizeToolName(name),
		Arguments: firstMap(c.Arguments, c.Parameters, c.Input),
	}, true
}

// extractToolCallsFromContent finds the first JSON object or array in a text
// reply that describes one or more tool calls. Surrounding prose, code fences
// and invalid backslash escapes are tolerated.
func extractToolCallsFromContent(content string) []domain.ToolCall {
	for _, text := range []string{content, repairEscapes(content)} {
		tried := 0
		for i := 0; i < len(text) && tried < maxCandidates; i++ {
			if text[i] != '{' && text[i] != '[' {
				continue
			}
			tried++
			if calls := decodeCalls(text[i:]); len(calls) > 0 {
				return calls
			}
		}
	}
	return nil
}

// decodeCalls decodes the JSON value at the start of s; trailing text is
// ignored.
func decodeCalls(s string) []domain.ToolCall {
	var raw json.RawMessage
	if err := json.NewDecoder(strings.NewReader(s)).Decode(&raw); err != nil {
		return nil
	}

	var list []contentCall
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil
		}
	} else {
		var one contentCall
		if err := json.Unmarshal(raw, &one); err != nil {
			return nil
		}
		list = []contentCall{one}
	}

	var calls []domain.ToolCall
	for i, c := range list {
		if tc, ok := c.toolCall(i); ok {
			calls = append(calls, tc)
		}
	}
	return calls
}

// strayEscape matches a backslash and the character it escapes.
var strayEscape = regexp.MustCompile(`(?s)\\.`)

// repairEscapes drops the backslash from escapes JSON does not define,
// such as \% in generated Python.
func repairEscapes(s string) string {
	return strayEscape.ReplaceAllStringFunc(s, func(m string) string {
		if strings.IndexByte(`"\/bfnrtu`, m[1]) >= 0 {
			return m
		}
		return m[1:]
	})
}

var knownToolNames = func() []string {
	names := []string{saveResultsTool}
	for _, k := range domain.AllTools {
		names = append(names, k.String())
	}
	return names
}()

// normalizeToolName maps variants such as "getWeatherData" or
// "get-weather-data" onto the registered name.
func normalizeToolName(name string) string {
	folded := strings.ToLower(strings.NewReplacer("-", "", "_", "", " ", "").Replace(name))
	for _, known := range knownToolNames {
		if strings.ReplaceAll(known, "_", "") == folded {
			return known
		}
	}
	return name
}

// stripRolePrefix removes a leaked "assistant:" or "assistant\n" lead-in.
func stripRolePrefix(s string) string {
	const role = "assistant"
	if len(s) < len(role) || !strings.EqualFold(s[:len(role)], role) {
		return s
	}
	rest := s[len(role):]
	switch {
	case strings.HasPrefix(rest, ":"):
		return strings.TrimSpace(rest[1:])
	case strings.HasPrefix(rest, "\n"):
		return strings.TrimSpace(rest)
	}
	return s
}

func firstString(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// firstMap returns the first non-nil map, or an empty one.
func firstMap(maps ...map[string]any) map[string]any {
	for _, m := range maps {
		if m != nil {
			return m
		}
	}
	return map[string]any{}
}
