package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// envBindings maps config paths to the environment variables that override them.
var envBindings = map[string]string{
	"capabilities.region":            "AWS_REGION",
	"capabilities.memoryId":          "MEMORY_ID",
	"capabilities.browserId":         "BROWSER_ID",
	"capabilities.codeInterpreterId": "CODE_INTERPRETER_ID",
	"agent.resultsBucket":            "RESULTS_BUCKET",
	"llm.provider":                   "PLANNER_LLM_PROVIDER",
	"llm.providers.claude.apiKey":    "ANTHROPIC_API_KEY",
	"llm.providers.openai.apiKey":    "OPENAI_API_KEY",
	"memory.redis.addr":              "REDIS_ADDR",
	"server.port":                    "PORT",
}

// ApplyEnv overlays process environment values onto cfg. It is called once
// at startup; nothing reads the environment afterwards.
func ApplyEnv(cfg *Config) error {
	v := viper.New()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return err
		}
	}

	for key := range envBindings {
		val := v.GetString(key)
		if val == "" {
			continue
		}
		if err := SetByPath(cfg, key, val); err != nil {
			return fmt.Errorf("%s: %w", envBindings[key], err)
		}
	}
	return nil
}
