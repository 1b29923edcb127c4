package embed

import "fmt"

// Provider enumerates the embedding providers this module ships an
// adapter for, plus the two that are explicitly out of scope.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderGemini    Provider = "gemini"
	ProviderOllama    Provider = "ollama"
	ProviderDocker    Provider = "docker"
	ProviderLocalAI   Provider = "localai"
	ProviderLMStudio  Provider = "lmstudio"
	ProviderAnthropic Provider = "anthropic"
	ProviderXAI       Provider = "xai"
)

// ProviderConfig carries the fields any adapter constructor might need;
// unused fields for a given provider are ignored.
type ProviderConfig struct {
	Provider     Provider
	Host         string // base URL for self-hosted/HTTP providers
	APIKey       string
	Model        string
	PreferredDim int // 0 means "probe the provider"
}

// New dispatches to the concrete Embedder constructor for cfg.Provider.
// anthropic and xai return ErrUnsupportedProvider immediately since
// neither exposes a standalone embeddings endpoint in this module's
// provider list.
func New(cfg ProviderConfig) (Embedder, error) {
	switch cfg.Provider {
	case ProviderOpenAI:
		host := cfg.Host
		if host == "" {
			host = "https://api.openai.com"
		}
		return NewOpenAICompatEmbedder(host, cfg.APIKey, cfg.Model, cfg.PreferredDim), nil
	case ProviderDocker, ProviderLocalAI, ProviderLMStudio:
		if cfg.Host == "" {
			return nil, fmt.Errorf("embed: %s requires Host", cfg.Provider)
		}
		return NewOpenAICompatEmbedder(cfg.Host, cfg.APIKey, cfg.Model, cfg.PreferredDim), nil
	case ProviderOllama:
		host := cfg.Host
		if host == "" {
			host = "http://localhost:11434"
		}
		return NewOllamaEmbedder(host, cfg.Model, cfg.PreferredDim), nil
	case ProviderGemini:
		return NewGeminiEmbedder(cfg.APIKey, cfg.Model, cfg.PreferredDim), nil
	case ProviderAnthropic, ProviderXAI:
		return nil, ErrUnsupportedProvider
	default:
		return nil, fmt.Errorf("embed: unknown provider %q", cfg.Provider)
	}
}
