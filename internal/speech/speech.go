// Package speech turns the essay into an MP3.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/deusflow/pulse/internal/retry"
)

type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

const ElevenLabsBaseURL = "https://api.elevenlabs.io"

// ElevenLabs calls the text-to-speech endpoint for one voice.
type ElevenLabs struct {
	Key     string
	Voice   string
	Model   string
	BaseURL string
	Client  *http.Client
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type elevenLabsRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

func (e *ElevenLabs) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if e.Key == "" {
		return nil, retry.Permanent(errors.New("elevenlabs: ELEVENLABS_API_KEY not set"))
	}
	base := e.BaseURL
	if base == "" {
		base = ElevenLabsBaseURL
	}
	model := e.Model
	if model == "" {
		model = "eleven_monolingual_v1"
	}

	body, err := json.Marshal(elevenLabsRequest{
		Text:          text,
		ModelID:       model,
		VoiceSettings: voiceSettings{Stability: 0.5, SimilarityBoost: 0.5},
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/v1/text-to-speech/"+e.Voice, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", e.Key)

	client := e.Client
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: reading audio: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("elevenlabs: status %d: %s", resp.StatusCode, truncate(string(data), 200))
		if retry.ClientError(resp.StatusCode) {
			return nil, retry.Permanent(err)
		}
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("elevenlabs: empty audio")
	}
	return data, nil
}

// OpenAI uses the speech endpoint (tts-1-hd, voice nova by default).
type OpenAI struct {
	client *openai.Client
	Voice  string
	Model  string
}

func NewOpenAI(client *openai.Client, voice, model string) *OpenAI {
	return &OpenAI{client: client, Voice: voice, Model: model}
}

func (o *OpenAI) Synthesize(ctx context.Context, text string) ([]byte, error) {
	voice := openai.SpeechVoice(o.Voice)
	if o.Voice == "" {
		voice = openai.VoiceNova
	}
	model := openai.SpeechModel(o.Model)
	if o.Model == "" {
		model = openai.TTSModel1HD
	}

	resp, err := o.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          model,
		Input:          text,
		Voice:          voice,
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		err = fmt.Errorf("openai tts: %w", err)
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && retry.ClientError(apiErr.HTTPStatusCode) {
			return nil, retry.Permanent(err)
		}
		return nil, err
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("openai tts: reading audio: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("openai tts: empty audio")
	}
	return data, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
