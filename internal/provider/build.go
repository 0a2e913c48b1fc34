package provider

import (
	"fmt"
	"log/slog"

	"activityplanner/internal/config"
	"activityplanner/internal/domain"
)

// Build constructs the provider configured under name. Anthropic entries
// are recognised by name; anything else with an apiBase is treated as
// chat-completions compatible.
func Build(name string, pc config.ProviderConfig, logger *slog.Logger) (domain.Provider, error) {
	opts := Options{
		Name:      name,
		APIKey:    pc.APIKey,
		APIBase:   pc.APIBase,
		Model:     pc.DefaultModel,
		MaxTokens: pc.MaxTokens,
		Logger:    logger,
	}
	switch name {
	case "claude", "anthropic":
		if pc.APIKey == "" {
			return nil, fmt.Errorf("provider %s: no API key", name)
		}
		return NewClaude(opts), nil
	case "openai":
		if pc.APIKey == "" && (pc.APIBase == "" || pc.APIBase == openAIBase) {
			return nil, fmt.Errorf("provider %s: no API key", name)
		}
		return NewOpenAI(opts), nil
	}
	if pc.APIBase == "" {
		return nil, fmt.Errorf("provider %s: unknown kind and no apiBase", name)
	}
	return NewOpenAI(opts), nil
}

// FromConfig returns the configured provider, or a Chain over it and the
// llm.fallback entries. Fallbacks that cannot be built are skipped.
func FromConfig(cfg config.LLMConfig, logger *slog.Logger) (domain.Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pc, ok := cfg.Providers[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("llm.provider %q has no entry in llm.providers", cfg.Provider)
	}
	primary, err := Build(cfg.Provider, pc, logger)
	if err != nil {
		return nil, err
	}

	members := []domain.Provider{primary}
	seen := map[string]bool{cfg.Provider: true}
	for _, name := range cfg.Fallback {
		if seen[name] {
			continue
		}
		seen[name] = true
		p, err := Build(name, cfg.Providers[name], logger)
		if err != nil {
			logger.Warn("skipping llm fallback", "provider", name, "err", err)
			continue
		}
		members = append(members, p)
	}
	if len(members) == 1 {
		return primary, nil
	}
	return NewChain(members, 0, logger), nil
}
