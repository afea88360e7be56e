package llm

import (
	"fmt"
	"strings"
)

// NewClient creates a new LLM client based on configuration
func NewClient(config Config) (Client, error) {
	provider := strings.ToLower(config.Provider)

	switch provider {
	case "openai", "":
		return NewOpenAIClient(config)

	case "azure":
		return NewAzureClient(config)

	case "anthropic", "claude":
		return NewAnthropicClient(config)

	case "ollama":
		return NewOllamaClient(config)

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai, azure, anthropic, ollama)", config.Provider)
	}
}

// APIKeyEnv returns the environment variable conventionally holding the
// provider's API key, or "" when the provider needs none.
func APIKeyEnv(provider string) string {
	switch strings.ToLower(provider) {
	case "openai", "":
		return "OPENAI_API_KEY"
	case "azure":
		return "AZURE_OPENAI_API_KEY"
	case "anthropic", "claude":
		return "ANTHROPIC_API_KEY"
	default:
		return ""
	}
}
