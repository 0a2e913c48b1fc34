package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel:  "info",
			LogFormat: "text",
		},
		Server: ServerConfig{
			Host:                "0.0.0.0",
			Port:                8080,
			ReadTimeoutSeconds:  30,
			WriteTimeoutSeconds: 200,
			MaxBodyBytes:        1 << 20,
		},
		Capabilities: Capabilities{
			Region: "us-west-2",
		},
		Identity: IdentityConfig{
			ActorID:   "user123",
			SessionID: "session456",
		},
		Browser: BrowserConfig{
			TimeoutMs: 150000,
			MaxSteps:  12,
			Headless:  true,
			StartURL:  "https://weather.gov",
			MaxChars:  12000,
		},
		Sandbox: SandboxConfig{
			Images: map[string]string{
				"python":     "python:3.12-slim",
				"javascript": "node:22-alpine",
			},
			TimeoutSeconds: 60,
			MaxMemory:      "256m",
			MaxCPU:         "0.5",
		},
		Memory: MemoryConfig{
			Backend: "sqlite",
			DBPath:  "~/.planner/memory.db",
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "planner:memory:",
			},
			MaxScan: 500,
		},
		LLM: LLMConfig{
			Provider: "claude",
			Providers: map[string]ProviderConfig{
				"claude": {
					DefaultModel: "claude-3-7-sonnet-20250219",
					MaxTokens:    4096,
				},
				"openai": {
					APIBase:      "https://api.openai.com/v1",
					DefaultModel: "gpt-4o-mini",
					MaxTokens:    4096,
				},
			},
		},
		Agent: AgentConfig{
			MaxIterations: 20,
			ResultsDir:    "~/.planner/results",
			ResultsBucket: "weather-results-bucket",
			DefaultQuery:  "What should I do this weekend in Richmond VA?",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}
