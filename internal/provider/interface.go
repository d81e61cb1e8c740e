// Package provider selects and constructs the Eino chat model that turns a
// question plus retrieved veterinary context into an answer. Supported
// backends: OpenRouter, Ollama, OpenAI, Azure OpenAI, Volcano Engine Ark,
// Google Gemini.
package provider

import (
	"fmt"
	"strings"
)

// Backend enumerates the supported LLM inference providers.
type Backend string

const (
	// BackendOpenRouter selects the OpenRouter chat-completions gateway.
	BackendOpenRouter Backend = "openrouter"
	// BackendOllama selects a locally running Ollama instance.
	BackendOllama Backend = "ollama"
	// BackendOpenAI selects the OpenAI API.
	BackendOpenAI Backend = "openai"
	// BackendAzure selects Azure OpenAI Service.
	BackendAzure Backend = "azure"
	// BackendArk selects the Volcano Engine Ark model runtime.
	BackendArk Backend = "ark"
	// BackendGemini selects Google Gemini via AI Studio.
	BackendGemini Backend = "gemini"
)

// openRouterBaseURL is OpenRouter's OpenAI-compatible API root.
const openRouterBaseURL = "https://openrouter.ai/api/v1"

// Config holds all provider-level configuration resolved from environment
// variables or explicit caller-supplied values. Only the block matching
// Backend is read.
type Config struct {
	// Backend identifies which inference provider to use.
	Backend Backend

	// OpenRouter holds OpenRouter settings.
	OpenRouter ProviderOpenRouter

	// Ollama holds Ollama settings.
	Ollama ProviderOllama

	// OpenAI holds OpenAI settings.
	OpenAI ProviderOpenAI

	// AzureOpenAI holds Azure OpenAI settings.
	AzureOpenAI ProviderAzureOpenAI

	// Ark holds Volcano Engine Ark settings.
	Ark ProviderArk

	// Gemini holds Google Gemini settings.
	Gemini ProviderGemini

	// Tuning holds generation parameters shared by every backend.
	Tuning SharedTuning
}

// ProviderOpenRouter configures the OpenRouter backend.
type ProviderOpenRouter struct {
	// APIKey is the OpenRouter key (OPENROUTER_API_KEY).
	APIKey string
	// Model is the OpenRouter model slug (OPENROUTER_MODEL).
	Model string
	// BaseURL overrides the gateway URL (OPENROUTER_BASE_URL).
	BaseURL string
}

// ProviderOllama configures the Ollama backend.
type ProviderOllama struct {
	// Host is the Ollama API endpoint (OLLAMA_HOST).
	Host string
	// Model is the Ollama model name (OLLAMA_MODEL).
	Model string
}

// ProviderOpenAI configures the OpenAI backend.
type ProviderOpenAI struct {
	// APIKey is the OpenAI key (OPENAI_API_KEY).
	APIKey string
	// Model is the OpenAI model name (OPENAI_MODEL).
	Model string
}

// ProviderAzureOpenAI configures the Azure OpenAI backend.
type ProviderAzureOpenAI struct {
	// APIKey is the Azure OpenAI key (AZURE_OPENAI_API_KEY).
	APIKey string
	// Endpoint is the resource endpoint (AZURE_OPENAI_ENDPOINT).
	Endpoint string
	// Deployment is the deployment name (AZURE_OPENAI_DEPLOYMENT).
	Deployment string
	// APIVersion is the REST API version (AZURE_OPENAI_API_VERSION).
	APIVersion string
}

// ProviderArk configures the Volcano Engine Ark backend.
type ProviderArk struct {
	// APIKey is the Ark key (ARK_API_KEY).
	APIKey string
	// Model is the Ark endpoint or model id (ARK_MODEL).
	Model string
	// BaseURL overrides the regional Ark endpoint (ARK_BASE_URL).
	BaseURL string
}

// ProviderGemini configures the Gemini backend.
type ProviderGemini struct {
	// APIKey is the Google API key (GOOGLE_API_KEY).
	APIKey string
	// Model is the Gemini model name (GEMINI_MODEL).
	Model string
}

// SharedTuning holds generation parameters applied to every backend.
type SharedTuning struct {
	// MaxTokens caps the number of tokens the model may generate per
	// response. Zero leaves the provider default.
	MaxTokens int
	// Temperature controls response randomness (0.0–1.0).
	Temperature float32
}

// Validate reports the first missing required setting for the selected
// backend, naming the environment variable that supplies it.
func (c *Config) Validate() error {
	var missing []string
	require := func(v, env string) {
		if v == "" {
			missing = append(missing, env)
		}
	}

	switch c.Backend {
	case BackendOpenRouter:
		require(c.OpenRouter.APIKey, "OPENROUTER_API_KEY")
		require(c.OpenRouter.Model, "OPENROUTER_MODEL")
	case BackendOllama:
		require(c.Ollama.Host, "OLLAMA_HOST")
		require(c.Ollama.Model, "OLLAMA_MODEL")
	case BackendOpenAI:
		require(c.OpenAI.APIKey, "OPENAI_API_KEY")
		require(c.OpenAI.Model, "OPENAI_MODEL")
	case BackendAzure:
		require(c.AzureOpenAI.APIKey, "AZURE_OPENAI_API_KEY")
		require(c.AzureOpenAI.Endpoint, "AZURE_OPENAI_ENDPOINT")
		require(c.AzureOpenAI.Deployment, "AZURE_OPENAI_DEPLOYMENT")
	case BackendArk:
		require(c.Ark.APIKey, "ARK_API_KEY")
		require(c.Ark.Model, "ARK_MODEL")
	case BackendGemini:
		require(c.Gemini.APIKey, "GOOGLE_API_KEY")
		require(c.Gemini.Model, "GEMINI_MODEL")
	default:
		return fmt.Errorf("provider: unknown backend %q, valid values: openrouter, ollama, openai, azure, ark, gemini", c.Backend)
	}

	if len(missing) > 0 {
		return fmt.Errorf("provider: %s backend requires %s", c.Backend, strings.Join(missing, ", "))
	}
	if c.Tuning.Temperature < 0 || c.Tuning.Temperature > 2 {
		return fmt.Errorf("provider: MODEL_TEMPERATURE %.2f is outside [0, 2]", c.Tuning.Temperature)
	}
	return nil
}

// ModelName returns the model or deployment the selected backend will call.
func (c *Config) ModelName() string {
	switch c.Backend {
	case BackendOpenRouter:
		return c.OpenRouter.Model
	case BackendOllama:
		return c.Ollama.Model
	case BackendOpenAI:
		return c.OpenAI.Model
	case BackendAzure:
		return c.AzureOpenAI.Deployment
	case BackendArk:
		return c.Ark.Model
	case BackendGemini:
		return c.Gemini.Model
	default:
		return ""
	}
}
