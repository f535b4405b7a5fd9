package llm

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/dealcore/internal/model"
)

// Provider is the language-model capability: text in, text or a number out.
// Callers must treat every error and every malformed reply as "no answer".
type Provider interface {
	// Name returns the provider name
	Name() string

	// Complete generates text for the request
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Score asks for a single number. A reply with no number yields nil.
	Score(ctx context.Context, prompt string) (*float64, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// CompletionRequest contains the input for a completion
type CompletionRequest struct {
	// System is an optional system instruction
	System string

	// Prompt is the user prompt
	Prompt string

	// JSON asks the provider for a JSON object reply where supported
	JSON bool

	// Model overrides the configured model
	Model string

	// MaxTokens limits the response length
	MaxTokens int

	// Temperature; zero means the provider default for factual work
	Temperature float64
}

// CompletionResponse contains the model's output
type CompletionResponse struct {
	Text       string
	Model      string
	TokensUsed int
	Cached     bool
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// MaxTokens for response generation
	MaxTokens int

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:  "", // Disabled by default
		Timeout:   30,
		MaxTokens: 500,
	}
}

const defaultTemperature = 0.2

// ScoreSystemPrompt instructs the model to answer with a bare number
const ScoreSystemPrompt = "You are a precise scoring assistant. Reply with a single number and nothing else."

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Timeout) * time.Second
}

func (c Config) maxTokens(req CompletionRequest) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	if c.MaxTokens > 0 {
		return c.MaxTokens
	}
	return 500
}

func temperature(req CompletionRequest) float64 {
	if req.Temperature > 0 {
		return req.Temperature
	}
	return defaultTemperature
}

var numberPattern = regexp.MustCompile(`[-+]?[0-9]+(?:\.[0-9]+)?`)

// ParseScore extracts the first number in text, or nil
func ParseScore(text string) *float64 {
	m := numberPattern.FindString(strings.TrimSpace(text))
	if m == "" {
		return nil
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return nil
	}
	return &v
}

// scoreVia implements Score on top of Complete
func scoreVia(ctx context.Context, p Provider, prompt string) (*float64, error) {
	resp, err := p.Complete(ctx, CompletionRequest{
		System:    ScoreSystemPrompt,
		Prompt:    prompt,
		MaxTokens: 16,
	})
	if err != nil {
		return nil, err
	}
	return ParseScore(resp.Text), nil
}

// ConfigFromModel converts model.LLMConfig to llm.Config
func ConfigFromModel(modelConfig model.LLMConfig, httpCfg model.HTTPConfig) Config {
	return Config{
		Provider:   modelConfig.Provider,
		Model:      modelConfig.Model,
		APIKey:     modelConfig.APIKey,
		BaseURL:    modelConfig.BaseURL,
		Timeout:    modelConfig.Timeout,
		MaxTokens:  modelConfig.MaxTokens,
		HTTPProxy:  httpCfg.HTTPProxy,
		HTTPSProxy: httpCfg.HTTPSProxy,
		NoProxy:    httpCfg.NoProxy,
	}
}
