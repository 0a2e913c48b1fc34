package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the planner.
type Config struct {
	General      GeneralConfig  `json:"general"`
	Server       ServerConfig   `json:"server"`
	Capabilities Capabilities   `json:"capabilities"`
	Identity     IdentityConfig `json:"identity"`
	Browser      BrowserConfig  `json:"browser"`
	Sandbox      SandboxConfig  `json:"sandbox"`
	Memory       MemoryConfig   `json:"memory"`
	LLM          LLMConfig      `json:"llm"`
	Agent        AgentConfig    `json:"agent"`
	Metrics      MetricsConfig  `json:"metrics"`
}

type GeneralConfig struct {
	LogLevel  string `json:"logLevel"`
	LogFormat string `json:"logFormat"`         // "text" | "json"
	LogFile   string `json:"logFile,omitempty"` // optional log file path
}

type ServerConfig struct {
	Host                string `json:"host"`
	Port                int    `json:"port"`
	ReadTimeoutSeconds  int    `json:"readTimeoutSeconds"`
	WriteTimeoutSeconds int    `json:"writeTimeoutSeconds"` // must cover a full browser task
	MaxBodyBytes        int64  `json:"maxBodyBytes"`
}

// Capabilities identifies the external services each tool talks to.
// An empty identifier disables the tools that need it.
type Capabilities struct {
	Region            string `json:"region"`
	MemoryID          string `json:"memoryId,omitempty"`
	BrowserID         string `json:"browserId,omitempty"`
	CodeInterpreterID string `json:"codeInterpreterId,omitempty"`
}

func (c Capabilities) HasBrowser() bool         { return c.BrowserID != "" }
func (c Capabilities) HasCodeInterpreter() bool { return c.CodeInterpreterID != "" }
func (c Capabilities) HasMemory() bool          { return c.MemoryID != "" }

// IdentityConfig holds the fixed actor/session the memory tools write under.
type IdentityConfig struct {
	ActorID   string `json:"actorId"`
	SessionID string `json:"sessionId"`
}

type BrowserConfig struct {
	Endpoints map[string]string `json:"endpoints,omitempty"` // pool id -> CDP websocket URL
	TimeoutMs int               `json:"timeoutMs"`
	MaxSteps  int               `json:"maxSteps"`
	Headless  bool              `json:"headless"`
	StartURL  string            `json:"startURL"`
	MaxChars  int               `json:"maxChars"`
}

type SandboxConfig struct {
	Images         map[string]string `json:"images"` // language -> docker image
	TimeoutSeconds int               `json:"timeoutSeconds"`
	MaxMemory      string            `json:"maxMemory"`
	MaxCPU         string            `json:"maxCPU"`
}

type MemoryConfig struct {
	Backend string      `json:"backend"` // "sqlite" | "redis"
	DBPath  string      `json:"dbPath"`
	Redis   RedisConfig `json:"redis"`
	MaxScan int         `json:"maxScan"` // turns considered per retrieval
}

type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password,omitempty"`
	DB       int    `json:"db"`
	Prefix   string `json:"prefix"`
}

type LLMConfig struct {
	Provider  string                    `json:"provider"`
	Fallback  []string                  `json:"fallback,omitempty"` // tried in order when provider fails
	Providers map[string]ProviderConfig `json:"providers"`
}

type ProviderConfig struct {
	APIBase      string `json:"apiBase,omitempty"`
	APIKey       string `json:"apiKey,omitempty"`
	DefaultModel string `json:"defaultModel,omitempty"`
	MaxTokens    int    `json:"maxTokens,omitempty"`
}

type AgentConfig struct {
	MaxIterations int    `json:"maxIterations"`
	ResultsDir    string `json:"resultsDir"`
	ResultsBucket string `json:"resultsBucket"`
	DefaultQuery  string `json:"defaultQuery"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// DefaultConfigDir returns the default config directory (~/.planner).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".planner"
	}
	return filepath.Join(home, ".planner")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

// Load reads a JSON or YAML config file (by extension), expands ${VAR}
// references, and validates the result. Environment overrides are applied
// separately by ApplyEnv.
func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	if isYAML(path) {
		data, err = yamlToJSON(data)
		if err != nil {
			return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
		}
	}

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.Memory.DBPath = ExpandPath(cfg.Memory.DBPath)
	cfg.General.LogFile = ExpandPath(cfg.General.LogFile)
	cfg.Agent.ResultsDir = ExpandPath(cfg.Agent.ResultsDir)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// yamlToJSON re-encodes a YAML document as JSON so both formats share the
// json struct tags.
func yamlToJSON(data []byte) ([]byte, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return json.Marshal(raw)
}

// integralNumbers turns whole float64 values produced by encoding/json back
// into int64 so yaml.v3 does not write them in exponent form.
func integralNumbers(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, child := range val {
			val[k] = integralNumbers(child)
		}
		return val
	case []any:
		for i, child := range val {
			val[i] = integralNumbers(child)
		}
		return val
	case float64:
		if val == float64(int64(val)) {
			return int64(val)
		}
		return val
	default:
		return v
	}
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match
		}
		return val
	})
}

// Save writes cfg as JSON, or YAML when path ends in .yaml/.yml.
func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	if isYAML(path) {
		var raw map[string]any
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("cannot marshal config: %w", err)
		}
		if data, err = yaml.Marshal(integralNumbers(raw)); err != nil {
			return fmt.Errorf("cannot marshal config: %w", err)
		}
	}

	return os.WriteFile(path, data, 0o600)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	switch strings.ToLower(cfg.General.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}
	switch cfg.General.LogFormat {
	case "", "text", "json":
	default:
		errs = append(errs, "general.logFormat must be one of: text, json")
	}

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 0 and 65535")
	}
	if cfg.Server.MaxBodyBytes < 1 {
		errs = append(errs, "server.maxBodyBytes must be >= 1")
	}
	if cfg.Capabilities.Region == "" {
		errs = append(errs, "capabilities.region is required")
	}
	if cfg.Identity.ActorID == "" || cfg.Identity.SessionID == "" {
		errs = append(errs, "identity.actorId and identity.sessionId are required")
	}

	if cfg.Browser.TimeoutMs < 1000 {
		errs = append(errs, "browser.timeoutMs must be >= 1000")
	}
	if cfg.Browser.MaxSteps < 1 || cfg.Browser.MaxSteps > 50 {
		errs = append(errs, "browser.maxSteps must be between 1 and 50")
	}
	if cfg.Sandbox.TimeoutSeconds < 1 {
		errs = append(errs, "sandbox.timeoutSeconds must be >= 1")
	}
	if _, ok := cfg.Sandbox.Images["python"]; !ok {
		errs = append(errs, "sandbox.images.python is required")
	}

	switch cfg.Memory.Backend {
	case "sqlite":
		if cfg.Memory.DBPath == "" {
			errs = append(errs, "memory.dbPath is required for the sqlite backend")
		}
	case "redis":
		if cfg.Memory.Redis.Addr == "" {
			errs = append(errs, "memory.redis.addr is required for the redis backend")
		}
	default:
		errs = append(errs, "memory.backend must be one of: sqlite, redis")
	}

	if _, ok := cfg.LLM.Providers[cfg.LLM.Provider]; !ok {
		errs = append(errs, fmt.Sprintf("llm.provider references unknown provider: %s", cfg.LLM.Provider))
	}
	for _, name := range cfg.LLM.Fallback {
		if _, ok := cfg.LLM.Providers[name]; !ok {
			errs = append(errs, fmt.Sprintf("llm.fallback references unknown provider: %s", name))
		}
	}

	if cfg.Agent.MaxIterations < 1 || cfg.Agent.MaxIterations > 200 {
		errs = append(errs, "agent.maxIterations must be between 1 and 200")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
