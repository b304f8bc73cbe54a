// Package llm sends a system and user prompt to a hosted or local language
// model and returns the reply text. It speaks the OpenAI chat, Gemini
// generateContent, HuggingFace inference and Anthropic messages APIs.
package llm

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// Provider IDs
// ---------------------------------------------------------------------------

const (
	ProviderOpenAI       = "openai"
	ProviderGoogle       = "google"
	ProviderGroq         = "groq"
	ProviderAnthropic    = "anthropic"
	ProviderHuggingFace  = "huggingface"
	ProviderCustomOpenAI = "custom-openai"
	ProviderOllama       = "ollama"
)

// ---------------------------------------------------------------------------
// Provider configuration
// ---------------------------------------------------------------------------

// Provider holds the configuration for a model endpoint.
type Provider struct {
	// ID is the provider identifier (openai, google, groq, etc.).
	ID string
	// Name is the display name.
	Name string
	// BaseURL is the API base URL. Empty means the SDK default for anthropic.
	BaseURL string
	// APIKey is the authentication key (empty for local services).
	APIKey string
	// Model is the model identifier.
	Model string
	// Proxy is an optional HTTP/HTTPS proxy URL.
	Proxy string
	// Timeout is the request timeout.
	Timeout time.Duration
	// NeedsKey reports whether calls fail without an API key.
	NeedsKey bool
}

// DefaultProviders returns the pre-configured provider definitions.
func DefaultProviders() map[string]Provider {
	return map[string]Provider{
		ProviderOpenAI: {
			ID:       ProviderOpenAI,
			Name:     "OpenAI",
			BaseURL:  "https://api.openai.com/v1",
			Model:    "gpt-4o-mini",
			Timeout:  60 * time.Second,
			NeedsKey: true,
		},
		ProviderGoogle: {
			ID:       ProviderGoogle,
			Name:     "Google AI (Gemini)",
			BaseURL:  "https://generativelanguage.googleapis.com",
			Model:    "gemini-2.0-flash",
			Timeout:  120 * time.Second,
			NeedsKey: true,
		},
		ProviderGroq: {
			ID:       ProviderGroq,
			Name:     "Groq",
			BaseURL:  "https://api.groq.com/openai/v1",
			Model:    "llama-3.3-70b-versatile",
			Timeout:  60 * time.Second,
			NeedsKey: true,
		},
		ProviderAnthropic: {
			ID:       ProviderAnthropic,
			Name:     "Anthropic",
			Model:    "claude-3-5-haiku-latest",
			Timeout:  120 * time.Second,
			NeedsKey: true,
		},
		ProviderHuggingFace: {
			ID:       ProviderHuggingFace,
			Name:     "HuggingFace Inference",
			BaseURL:  "https://api-inference.huggingface.co/models",
			Model:    "Qwen/Qwen2.5-3B-Instruct",
			Timeout:  60 * time.Second,
			NeedsKey: true,
		},
		ProviderCustomOpenAI: {
			ID:      ProviderCustomOpenAI,
			Name:    "Custom OpenAI",
			Timeout: 60 * time.Second,
		},
		ProviderOllama: {
			ID:      ProviderOllama,
			Name:    "Ollama",
			BaseURL: "http://localhost:11434/v1",
			Model:   "llama3.1",
			Timeout: 120 * time.Second,
		},
	}
}

// ProviderIDs returns the known provider ids, sorted.
func ProviderIDs() []string {
	ids := make([]string, 0, 8)
	for id := range DefaultProviders() {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Resolve returns the default provider for id with non-empty overrides
// from o applied.
func Resolve(id string, o Provider) (Provider, error) {
	p, ok := DefaultProviders()[strings.ToLower(strings.TrimSpace(id))]
	if !ok {
		return Provider{}, fmt.Errorf("unknown provider %q (known: %s)", id, strings.Join(ProviderIDs(), ", "))
	}
	if o.BaseURL != "" {
		p.BaseURL = o.BaseURL
	}
	if o.APIKey != "" {
		p.APIKey = o.APIKey
	}
	if o.Model != "" {
		p.Model = o.Model
	}
	if o.Proxy != "" {
		p.Proxy = o.Proxy
	}
	if o.Timeout > 0 {
		p.Timeout = o.Timeout
	}
	return p, nil
}

// Validate reports missing settings that would make every call fail.
func (p Provider) Validate() error {
	if p.ID == ProviderCustomOpenAI && p.BaseURL == "" {
		return fmt.Errorf("provider %s requires a base URL", p.ID)
	}
	if p.Model == "" {
		return fmt.Errorf("provider %s requires a model", p.ID)
	}
	if p.NeedsKey && p.APIKey == "" {
		return fmt.Errorf("provider %s requires an API key", p.ID)
	}
	return nil
}
