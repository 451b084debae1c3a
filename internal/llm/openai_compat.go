package llm

import (
	"context"
	"fmt"
)

// OpenAICompatLabeler implements Labeler for any OpenAI-compatible API.
// Works with: OpenAI, Ollama, vLLM, LiteLLM, Together, Groq, etc.
type OpenAICompatLabeler struct {
	base baseClient
}

// NewOpenAICompatLabeler creates an OpenAI-compatible labeler.
func NewOpenAICompatLabeler(endpoint, model, apiKey string) *OpenAICompatLabeler {
	if endpoint == "" {
		endpoint = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAICompatLabeler{
		base: newBaseClient(endpoint, model, apiKey),
	}
}

func (o *OpenAICompatLabeler) Provider() string { return "openai_compat" }

func (o *OpenAICompatLabeler) Label(ctx context.Context, title, text string, maxTerms int) ([]Term, error) {
	prompt := BuildLabelPrompt(title, text, maxTerms)

	req := ChatRequest{
		Model: o.base.model,
		Messages: []ChatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.1,
	}

	headers := map[string]string{}
	if o.base.apiKey != "" {
		headers["Authorization"] = "Bearer " + o.base.apiKey
	}

	resp, err := o.base.chatCompletion(ctx, "/chat/completions", headers, req)
	if err != nil {
		return nil, fmt.Errorf("openai label: %w", err)
	}

	content, err := extractContent(resp)
	if err != nil {
		return nil, fmt.Errorf("openai label extract: %w", err)
	}

	return parseTerms(content)
}
