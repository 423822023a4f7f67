package embedder

import (
	"fmt"
	"os"
	"strings"
)

// Config holds embedder configuration
type Config struct {
	Provider  string
	AccountID string // Workers AI only
	APIKey    string
	CacheSize int
}

// EnvProvider selects the embedding provider explicitly.
const EnvProvider = "REGSEARCH_EMBEDDING_PROVIDER"

// NewFromEnv creates an embedder based on environment variables
// Priority:
// 1. REGSEARCH_EMBEDDING_PROVIDER (workersai, openai, local)
// 2. Check for credentials: CLOUDFLARE_API_TOKEN, OPENAI_API_KEY
// 3. Default to local if no credentials found
func NewFromEnv() (Embedder, error) {
	provider := os.Getenv(EnvProvider)
	cfToken := os.Getenv(EnvCloudflareAPIToken)
	openaiKey := os.Getenv(EnvOpenAIAPIKey)

	cache := NewCache(10000) // Default cache size

	// Explicit provider selection
	if provider != "" {
		provider = strings.ToLower(provider)
		switch provider {
		case ProviderWorkersAI:
			return NewWorkersAIProvider("", cfToken, cache)
		case ProviderOpenAI:
			return NewOpenAIProvider(openaiKey, cache)
		case ProviderLocal:
			return NewLocalProvider(cache)
		default:
			return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, provider)
		}
	}

	// Auto-detect based on available credentials
	if cfToken != "" && os.Getenv(EnvCloudflareAccountID) != "" {
		return NewWorkersAIProvider("", cfToken, cache)
	}
	if openaiKey != "" {
		return NewOpenAIProvider(openaiKey, cache)
	}

	// Fallback to local provider
	return NewLocalProvider(cache)
}

// New creates an embedder with explicit configuration
func New(cfg Config) (Embedder, error) {
	var cache *Cache
	if cfg.CacheSize > 0 {
		cache = NewCache(cfg.CacheSize)
	}

	provider := strings.ToLower(cfg.Provider)
	switch provider {
	case ProviderWorkersAI:
		return NewWorkersAIProvider(cfg.AccountID, cfg.APIKey, cache)
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg.APIKey, cache)
	case ProviderLocal:
		return NewLocalProvider(cache)
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}

// DetectProvider returns the provider that would be used based on current environment
func DetectProvider() string {
	provider := os.Getenv(EnvProvider)
	if provider != "" {
		return strings.ToLower(provider)
	}

	if os.Getenv(EnvCloudflareAPIToken) != "" && os.Getenv(EnvCloudflareAccountID) != "" {
		return ProviderWorkersAI
	}
	if os.Getenv(EnvOpenAIAPIKey) != "" {
		return ProviderOpenAI
	}

	return ProviderLocal
}
