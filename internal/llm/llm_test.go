package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Test helpers ---

func newMockOpenAIServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	return httptest.NewServer(handler)
}

func openAIHandler(responseContent string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := ChatResponse{
			Choices: []ChatChoice{
				{Message: ChatMessage{Role: "assistant", Content: responseContent}},
			},
			Usage: &ChatUsage{PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func anthropicHandler(responseContent string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Verify Anthropic-specific headers
		if r.Header.Get("x-api-key") == "" {
			http.Error(w, "missing x-api-key", http.StatusUnauthorized)
			return
		}
		if r.Header.Get("anthropic-version") == "" {
			http.Error(w, "missing anthropic-version", http.StatusBadRequest)
			return
		}

		resp := anthropicResponse{
			Content: []anthropicContent{
				{Type: "text", Text: responseContent},
			},
			Usage: &anthropicUsage{InputTokens: 100, OutputTokens: 50},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

const testTitle = "Fire in Tai Po displaces dozens"
const testBody = "A fire broke out in a residential tower in Tai Po on Tuesday night, displacing dozens of residents. Firefighters brought the blaze under control by morning."

var testTermsResponse = `[
	{"term": "Tai Po fire", "weight": 0.9},
	{"term": "residential tower", "weight": 0.6},
	{"term": "firefighters", "weight": 0.4}
]`

// --- Factory tests ---

func TestNewLabeler(t *testing.T) {
	tests := []struct {
		provider string
		wantType string
		wantErr  bool
	}{
		{"glm", "glm", false},
		{"openai_compat", "openai_compat", false},
		{"anthropic", "anthropic", false},
		{"unknown", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			l, err := NewLabeler(tt.provider, "http://localhost", "model", "key")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, l.Provider())
		})
	}
}

// --- GLM tests ---

func TestGLMLabel(t *testing.T) {
	srv := newMockOpenAIServer(t, openAIHandler(testTermsResponse))
	defer srv.Close()

	labeler := NewGLMLabeler(srv.URL, "glm-4.7", "test-key")
	terms, err := labeler.Label(context.Background(), testTitle, testBody, 3)
	require.NoError(t, err)
	require.Len(t, terms, 3)
	assert.Equal(t, "Tai Po fire", terms[0].Term)
	assert.InDelta(t, 0.9, terms[0].Weight, 0.0001)
}

// --- OpenAI-compatible tests ---

func TestOpenAICompatLabel(t *testing.T) {
	srv := newMockOpenAIServer(t, openAIHandler(testTermsResponse))
	defer srv.Close()

	labeler := NewOpenAICompatLabeler(srv.URL, "gpt-4o-mini", "test-key")
	terms, err := labeler.Label(context.Background(), testTitle, testBody, 3)
	require.NoError(t, err)
	require.Len(t, terms, 3)
	assert.Equal(t, "firefighters", terms[2].Term)
}

// --- Anthropic tests ---

func TestAnthropicLabel(t *testing.T) {
	srv := newMockOpenAIServer(t, anthropicHandler(testTermsResponse))
	defer srv.Close()

	labeler := NewAnthropicLabeler(srv.URL, "claude-sonnet-4-20250514", "test-key")
	terms, err := labeler.Label(context.Background(), testTitle, testBody, 3)
	require.NoError(t, err)
	require.Len(t, terms, 3)
}

func TestAnthropicHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-api-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		// Verify request body structure
		var req anthropicRequest
		err := json.NewDecoder(r.Body).Decode(&req)
		require.NoError(t, err)
		assert.Equal(t, "claude-sonnet-4-20250514", req.Model)
		assert.NotEmpty(t, req.System)
		assert.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)

		resp := anthropicResponse{
			Content: []anthropicContent{{Type: "text", Text: `[{"term":"x","weight":0.5}]`}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	labeler := NewAnthropicLabeler(srv.URL, "claude-sonnet-4-20250514", "test-api-key")
	_, err := labeler.Label(context.Background(), testTitle, testBody, 3)
	require.NoError(t, err)
}

// --- Prompt tests ---

func TestBuildLabelPrompt(t *testing.T) {
	prompt := BuildLabelPrompt(testTitle, testBody, 5)
	assert.Contains(t, prompt, testTitle)
	assert.Contains(t, prompt, "JSON array")
	assert.Contains(t, prompt, "5")
}

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{`[{"id": 1}]`, `[{"id": 1}]`},
		{"```json\n[{\"id\": 1}]\n```", `[{"id": 1}]`},
		{"```\n[{\"id\": 1}]\n```", `[{"id": 1}]`},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, stripCodeFences(tt.input))
	}
}

// --- Error handling tests ---

func TestAPIErrorHandling(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": "rate limited"}`))
	}))
	defer srv.Close()

	labeler := NewGLMLabeler(srv.URL, "glm-4.7", "test-key")
	_, err := labeler.Label(context.Background(), testTitle, testBody, 3)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestEmptyResponseHandling(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := ChatResponse{Choices: []ChatChoice{}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	labeler := NewOpenAICompatLabeler(srv.URL, "model", "key")
	_, err := labeler.Label(context.Background(), testTitle, testBody, 3)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "empty response")
}
