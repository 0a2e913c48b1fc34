package tool

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"

	"activityplanner/internal/domain"
)

type weatherArgs struct {
	City string `mapstructure:"city"`
}

type analysisArgs struct {
	WeatherData string `mapstructure:"weather_data"`
}

type executeArgs struct {
	PythonCode string `mapstructure:"python_code"`
}

type preferencesArgs struct {
	Preferences string `mapstructure:"preferences"`
}

type planArgs struct {
	City string `mapstructure:"city"`
	Plan string `mapstructure:"plan"`
}

// decodeArgs decodes args into out and checks that every required field is
// present and non-blank. Numbers and booleans are accepted for string fields.
func decodeArgs(kind domain.ToolKind, args map[string]any, out any) error {
	for _, field := range Describe(kind).Required {
		v, ok := args[field]
		if !ok || v == nil {
			return &domain.ArgumentError{Field: field}
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			return &domain.ArgumentError{Field: field}
		}
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("build decoder: %w", err)
	}
	if err := dec.Decode(args); err != nil {
		return &domain.ArgumentError{Field: kind.String(), Reason: err.Error()}
	}
	return nil
}
