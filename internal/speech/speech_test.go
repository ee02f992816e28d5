package speech

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/pulse/internal/retry"
)

func TestElevenLabs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/text-to-speech/TxGEqnHWrfWFTfGW9XjX", r.URL.Path)
		assert.Equal(t, "audio/mpeg", r.Header.Get("Accept"))
		assert.Equal(t, "key", r.Header.Get("xi-api-key"))

		var body elevenLabsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Two paragraphs.", body.Text)
		assert.Equal(t, "eleven_monolingual_v1", body.ModelID)
		assert.Equal(t, voiceSettings{Stability: 0.5, SimilarityBoost: 0.5}, body.VoiceSettings)

		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3\x04fake"))
	}))
	defer srv.Close()

	e := &ElevenLabs{Key: "key", Voice: "TxGEqnHWrfWFTfGW9XjX", BaseURL: srv.URL, Client: srv.Client()}
	got, err := e.Synthesize(context.Background(), "Two paragraphs.")
	require.NoError(t, err)
	assert.Equal(t, []byte("ID3\x04fake"), got)
}

func TestElevenLabsErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":{"status":"invalid_api_key"}}`))
	}))
	defer srv.Close()

	e := &ElevenLabs{Key: "bad", Voice: "v", BaseURL: srv.URL, Client: srv.Client()}
	_, err := e.Synthesize(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_api_key")
	assert.True(t, retry.IsPermanent(err))

	_, err = (&ElevenLabs{Voice: "v"}).Synthesize(context.Background(), "x")
	assert.True(t, retry.IsPermanent(err))
}

func TestElevenLabsServerErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := &ElevenLabs{Key: "k", Voice: "v", BaseURL: srv.URL, Client: srv.Client()}
	_, err := e.Synthesize(context.Background(), "x")
	require.Error(t, err)
	assert.False(t, retry.IsPermanent(err))
}

func TestOpenAISpeechRejectedKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`))
	}))
	defer srv.Close()

	cfg := openai.DefaultConfig("bad")
	cfg.BaseURL = srv.URL + "/v1"
	_, err := NewOpenAI(openai.NewClientWithConfig(cfg), "", "").Synthesize(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, retry.IsPermanent(err))
}

func TestOpenAISpeech(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/speech", r.URL.Path)
		var body openai.CreateSpeechRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, openai.TTSModel1HD, body.Model)
		assert.Equal(t, openai.VoiceNova, body.Voice)
		assert.Equal(t, "שלום", body.Input)

		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3mp3"))
	}))
	defer srv.Close()

	cfg := openai.DefaultConfig("test")
	cfg.BaseURL = srv.URL + "/v1"
	got, err := NewOpenAI(openai.NewClientWithConfig(cfg), "", "").Synthesize(context.Background(), "שלום")
	require.NoError(t, err)
	assert.Equal(t, []byte("ID3mp3"), got)
}
