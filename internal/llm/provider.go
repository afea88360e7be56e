package llm

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/ppiankov/broadlistening/internal/model"
)

// Message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Client sends chat requests to a language model.
// Implementations own transport concerns (auth, timeouts, proxies);
// any returned error is a failed request from the caller's point of view.
type Client interface {
	// Name returns the provider name
	Name() string

	// Send issues one chat request. The context bounds the HTTP exchange;
	// computation already started on the provider side is not recalled.
	Send(ctx context.Context, req Request) (*Response, error)
}

// Message is a single chat turn
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is one chat request
type Request struct {
	Messages []Message `json:"messages"`
	Model    string    `json:"model"`

	// JSON asks the provider for a structured (JSON) reply
	JSON bool `json:"json"`

	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float32 `json:"temperature,omitempty"`
}

// Response is the model's reply
type Response struct {
	// Text is the raw reply text
	Text string `json:"text"`

	// Value is the decoded reply when the request was in JSON mode and the
	// text was valid JSON; nil otherwise
	Value any `json:"value,omitempty"`

	Model      string `json:"model"`
	TokensUsed int    `json:"tokens_used"`
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "azure", "anthropic", "ollama"
	Provider string

	// Model name used when a request does not name one
	Model string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama, Azure, proxies)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// MaxTokens for response generation
	MaxTokens int

	Temperature float32

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:  "openai",
		Timeout:   60,
		MaxTokens: 2000,
	}
}

// ConfigFromModel converts model.LLMConfig to llm.Config
func ConfigFromModel(modelConfig model.LLMConfig, defaultModel string) Config {
	return Config{
		Provider:    modelConfig.Provider,
		Model:       defaultModel,
		APIKey:      modelConfig.APIKey,
		BaseURL:     modelConfig.BaseURL,
		Timeout:     modelConfig.Timeout,
		MaxTokens:   modelConfig.MaxTokens,
		Temperature: modelConfig.Temperature,
		HTTPProxy:   modelConfig.HTTPProxy,
		HTTPSProxy:  modelConfig.HTTPSProxy,
	}
}

// ChatMessages builds the system + user message pair used by extraction
func ChatMessages(system, user string) []Message {
	return []Message{
		{Role: RoleSystem, Content: system},
		{Role: RoleUser, Content: user},
	}
}

// decodeValue decodes text as JSON, tolerating surrounding whitespace.
// It returns nil when the text is not a single JSON value.
func decodeValue(text string) any {
	var v any
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &v); err != nil {
		return nil
	}
	return v
}

// splitSystem separates system messages from the conversation turns.
// Providers with a dedicated system field use it.
func splitSystem(messages []Message) (string, []Message) {
	var system []string
	turns := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
			continue
		}
		turns = append(turns, m)
	}
	return strings.Join(system, "\n\n"), turns
}
