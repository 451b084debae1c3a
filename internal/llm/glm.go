package llm

import (
	"context"
	"fmt"
)

// GLMLabeler implements Labeler for Zhipu's GLM models.
// GLM uses an OpenAI-compatible API format with minor differences.
type GLMLabeler struct {
	base baseClient
}

// NewGLMLabeler creates a GLM labeler.
// Default endpoint: https://open.bigmodel.cn/api/coding/paas/v4
// Default model: glm-4.7
func NewGLMLabeler(endpoint, model, apiKey string) *GLMLabeler {
	if endpoint == "" {
		endpoint = "https://open.bigmodel.cn/api/coding/paas/v4"
	}
	if model == "" {
		model = "glm-4.7"
	}
	return &GLMLabeler{
		base: newBaseClient(endpoint, model, apiKey),
	}
}

func (g *GLMLabeler) Provider() string { return "glm" }

func (g *GLMLabeler) Label(ctx context.Context, title, text string, maxTerms int) ([]Term, error) {
	prompt := BuildLabelPrompt(title, text, maxTerms)

	req := ChatRequest{
		Model: g.base.model,
		Messages: []ChatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.1,
	}

	headers := map[string]string{
		"Authorization": "Bearer " + g.base.apiKey,
	}

	resp, err := g.base.chatCompletion(ctx, "/chat/completions", headers, req)
	if err != nil {
		return nil, fmt.Errorf("glm label: %w", err)
	}

	content, err := extractContent(resp)
	if err != nil {
		return nil, fmt.Errorf("glm label extract: %w", err)
	}

	return parseTerms(content)
}
