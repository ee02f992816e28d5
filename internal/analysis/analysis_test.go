package analysis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/pulse/internal/trends"
)

func sampleRequest() Request {
	return Request{
		Country:     "Lebanon",
		Headlines:   []string{"Beirut port reopens"},
		Trends:      []trends.Trend{{Title: "طقس", Related: []string{"طقس بيروت"}}, {Title: "cat memes"}},
		Model:       "gpt-4",
		Temperature: 0.8,
		MaxTokens:   500,
	}
}

func TestBuildPromptDefaultTemplate(t *testing.T) {
	prompt, err := BuildPrompt(sampleRequest())
	require.NoError(t, err)

	assert.Contains(t, prompt, "headlines from Lebanon, using")
	assert.Contains(t, prompt, "Official Headlines:\n[\n  \"Beirut port reopens\"\n]")
	assert.Contains(t, prompt, `"title": "طقس"`)
	assert.Contains(t, prompt, `"related": []`)
	assert.NotContains(t, prompt, `\u`)
}

func TestBuildPromptCustomTemplate(t *testing.T) {
	req := sampleRequest()
	req.Template = "חדשות:\n{{.HeadlinesJSON}}\nחיפושים:\n{{.TrendsJSON}}"
	prompt, err := BuildPrompt(req)
	require.NoError(t, err)
	assert.True(t, len(prompt) > 0)
	assert.Contains(t, prompt, "חדשות:\n[\n  \"Beirut port reopens\"\n]\nחיפושים:\n[")

	req.Template = "{{.Nope}}"
	_, err = BuildPrompt(req)
	assert.Error(t, err)
}

func TestSystemPrompt(t *testing.T) {
	assert.Equal(t, DefaultPersona, SystemPrompt(Request{}))
	assert.Equal(t, "custom", SystemPrompt(Request{Persona: "  custom \n"}))
}

func TestCleanText(t *testing.T) {
	in := "First   line\r\ncontinues here.\r\n\r\n\r\n  Second\tparagraph.  \n\n   \n"
	assert.Equal(t, "First line continues here.\n\nSecond paragraph.", CleanText(in))
	assert.Equal(t, "", CleanText(" \n\n "))
}

func TestOpenAIGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		var req openai.ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4", req.Model)
		assert.Equal(t, 500, req.MaxTokens)
		assert.InDelta(t, 0.8, req.Temperature, 0.001)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, openai.ChatMessageRoleSystem, req.Messages[0].Role)
		assert.Equal(t, DefaultPersona, req.Messages[0].Content)
		assert.Contains(t, req.Messages[1].Content, "cat memes")

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Role: "assistant", Content: "One.\n\n\nTwo  words."}}},
		})
	}))
	defer srv.Close()

	cfg := openai.DefaultConfig("test")
	cfg.BaseURL = srv.URL + "/v1"
	got, err := NewOpenAI(openai.NewClientWithConfig(cfg)).Generate(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "One.\n\nTwo words.", got)
}

func TestOpenAIGenerateError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	cfg := openai.DefaultConfig("bad")
	cfg.BaseURL = srv.URL + "/v1"
	_, err := NewOpenAI(openai.NewClientWithConfig(cfg)).Generate(context.Background(), sampleRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Incorrect API key")
}

func TestAnthropicGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Contains(t, body["model"], "claude")
		assert.EqualValues(t, 500, body["max_tokens"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_01",
			"type": "message",
			"role": "assistant",
			"model": "claude-haiku-4-5",
			"content": [{"type": "text", "text": "Paragraph  one.\n\nParagraph two."}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 10, "output_tokens": 5}
		}`))
	}))
	defer srv.Close()

	a := NewAnthropic("test", option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
	got, err := a.Generate(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "Paragraph one.\n\nParagraph two.", got)
}
