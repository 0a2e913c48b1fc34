package tool

import (
	"encoding/json"
	"regexp"
	"strings"
)

// codeFencePattern matches the first ```json or ```python block, non-greedy
// across lines.
var codeFencePattern = regexp.MustCompile("(?s)```(?:json|python)\n(.*?)\n```")

// ExtractCode returns the trimmed body of the first json/python fenced block
// in response. Without a fence the response is returned unchanged.
func ExtractCode(response string) string {
	m := codeFencePattern.FindStringSubmatch(response)
	if m == nil {
		return response
	}
	return strings.TrimSpace(m[1])
}

// stringifyPayload renders a decoded sandbox payload as text: strings as-is,
// everything else as compact JSON.
func stringifyPayload(raw json.RawMessage) (string, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", err
	}
	if s, ok := v.(string); ok {
		return s, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
