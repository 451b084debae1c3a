package llm

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

// Supported provider names.
const (
	ProviderGLM          = "glm"
	ProviderOpenAICompat = "openai_compat"
	ProviderAnthropic    = "anthropic"
)

// NewLabeler creates the appropriate Labeler implementation based on the provider string.
// Configuration is read from the provided parameters, typically sourced from env vars.
func NewLabeler(provider, endpoint, model, apiKey string) (Labeler, error) {
	switch provider {
	case ProviderGLM:
		log.WithFields(log.Fields{
			"provider": provider,
			"endpoint": endpoint,
			"model":    model,
		}).Info("initializing GLM labeler")
		return NewGLMLabeler(endpoint, model, apiKey), nil

	case ProviderOpenAICompat:
		log.WithFields(log.Fields{
			"provider": provider,
			"endpoint": endpoint,
			"model":    model,
		}).Info("initializing OpenAI-compatible labeler")
		return NewOpenAICompatLabeler(endpoint, model, apiKey), nil

	case ProviderAnthropic:
		log.WithFields(log.Fields{
			"provider": provider,
			"endpoint": endpoint,
			"model":    model,
		}).Info("initializing Anthropic labeler")
		return NewAnthropicLabeler(endpoint, model, apiKey), nil

	default:
		return nil, fmt.Errorf("unknown LLM provider %q: must be one of: %s, %s, %s",
			provider, ProviderGLM, ProviderOpenAICompat, ProviderAnthropic)
	}
}
