// Provider Registry: metadata for the OpenAI-compatible backends officebot can talk to.

package providers

import (
	"os"
	"strings"
)

// ProviderSpec holds metadata for one LLM provider.
type ProviderSpec struct {
	Name              string   // config field name, e.g. "ollama"
	Keywords          []string // model-name keywords for matching (lowercase)
	EnvKey            string   // env var for API key, e.g. "OPENAI_API_KEY"
	DisplayName       string   // shown in status
	DefaultAPIBase    string   // fallback base URL
	DefaultModel      string   // model used when none is configured
	IsGateway         bool     // can route any model (OpenRouter)
	IsLocal           bool     // local deployment, no key needed (Ollama, vLLM)
	DetectByKeyPrefix string   // match api_key prefix
	DetectByBaseKW    string   // match substring in api_base URL
}

// Label returns a display label.
func (s *ProviderSpec) Label() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return s.Name
}

// Providers is the registry. Order = priority.
var Providers = []*ProviderSpec{
	// Ollama (default, local)
	{
		Name: "ollama", Keywords: []string{"smollm", "llama", "mistral", "phi", "gemma"},
		DisplayName: "Ollama", IsLocal: true,
		DetectByBaseKW: ":11434",
		DefaultAPIBase: "http://localhost:11434/v1",
		DefaultModel:   "smollm2:1.7b",
	},
	// vLLM / any local OpenAI-compatible server
	{
		Name: "vllm", Keywords: []string{"vllm"},
		EnvKey: "HOSTED_VLLM_API_KEY", DisplayName: "vLLM/Local",
		IsLocal: true,
		DefaultAPIBase: "http://localhost:8000/v1",
	},
	// OpenRouter
	{
		Name: "openrouter", Keywords: []string{"openrouter"},
		EnvKey: "OPENROUTER_API_KEY", DisplayName: "OpenRouter",
		IsGateway: true,
		DetectByKeyPrefix: "sk-or-", DetectByBaseKW: "openrouter",
		DefaultAPIBase: "https://openrouter.ai/api/v1",
	},
	// OpenAI
	{
		Name: "openai", Keywords: []string{"openai", "gpt"},
		EnvKey: "OPENAI_API_KEY", DisplayName: "OpenAI",
		DefaultAPIBase: "https://api.openai.com/v1",
		DefaultModel:   "gpt-4o-mini",
	},
	// DeepSeek
	{
		Name: "deepseek", Keywords: []string{"deepseek"},
		EnvKey: "DEEPSEEK_API_KEY", DisplayName: "DeepSeek",
		DefaultAPIBase: "https://api.deepseek.com/v1",
		DefaultModel:   "deepseek-chat",
	},
}

// FindByModel returns a provider spec matching a model name keyword.
// Skips gateways.
func FindByModel(model string) *ProviderSpec {
	lower := strings.ToLower(model)
	for _, spec := range Providers {
		if spec.IsGateway {
			continue
		}
		for _, kw := range spec.Keywords {
			if strings.Contains(lower, kw) {
				return spec
			}
		}
	}
	return nil
}

// FindByName finds a provider spec by config field name.
func FindByName(name string) *ProviderSpec {
	for _, spec := range Providers {
		if spec.Name == name {
			return spec
		}
	}
	return nil
}

// Detect picks a spec. Priority: 1) provider name  2) api_key prefix
// 3) api_base keyword  4) model keyword.
func Detect(providerName, apiKey, apiBase, model string) *ProviderSpec {
	if providerName != "" {
		if spec := FindByName(providerName); spec != nil {
			return spec
		}
	}
	for _, spec := range Providers {
		if spec.DetectByKeyPrefix != "" && apiKey != "" &&
			strings.HasPrefix(apiKey, spec.DetectByKeyPrefix) {
			return spec
		}
		if spec.DetectByBaseKW != "" && apiBase != "" &&
			strings.Contains(apiBase, spec.DetectByBaseKW) {
			return spec
		}
	}
	return FindByModel(model)
}

// ResolveEndpoint fills in base URL and key from the spec and its env var.
func (s *ProviderSpec) ResolveEndpoint(apiKey, apiBase string) (string, string) {
	if apiBase == "" {
		apiBase = s.DefaultAPIBase
	}
	if apiKey == "" && s.EnvKey != "" {
		apiKey = os.Getenv(s.EnvKey)
	}
	if apiKey == "" && s.IsLocal {
		// Local servers ignore the key but the client insists on one.
		apiKey = s.Name
	}
	return apiKey, apiBase
}
