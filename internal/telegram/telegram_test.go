package telegram

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/pulse/internal/trends"
)

func TestSendMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		var payload map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "@pulse", payload["chat_id"])
		assert.Equal(t, "HTML", payload["parse_mode"])
		assert.Equal(t, "<b>hi</b>", payload["text"])
		_, _ = w.Write([]byte(`{"ok":true,"result":{}}`))
	}))
	defer srv.Close()

	c := &Client{Token: "TOKEN", ChatID: "@pulse", BaseURL: srv.URL, HTTP: srv.Client()}
	require.NoError(t, c.SendMessage(context.Background(), "<b>hi</b>"))
}

func TestSendMessageError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"description":"Bad Request: chat not found"}`))
	}))
	defer srv.Close()

	c := &Client{Token: "T", ChatID: "x", BaseURL: srv.URL, HTTP: srv.Client()}
	err := c.SendMessage(context.Background(), "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}

func TestSendAudio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botT/sendAudio", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "42", r.FormValue("chat_id"))
		assert.Equal(t, "caption", r.FormValue("caption"))

		f, hdr, err := r.FormFile("audio")
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, "IL_20250101_093000_analysis.mp3", hdr.Filename)
		data, _ := io.ReadAll(f)
		assert.Equal(t, "ID3", string(data))

		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := &Client{Token: "T", ChatID: "42", BaseURL: srv.URL, HTTP: srv.Client()}
	require.NoError(t, c.SendAudio(context.Background(), "IL_20250101_093000_analysis.mp3", []byte("ID3"), "caption"))
}

func TestFormatDigest(t *testing.T) {
	msg := FormatDigest("🇮🇱", "Israel", []trends.Trend{
		{Title: "cat memes", Related: []string{"funny cats"}},
		{Title: "a<b"},
	}, "First <point>.\n\nSecond.")

	assert.True(t, strings.HasPrefix(msg, "🇮🇱 <b>Israel</b>\n"))
	assert.Contains(t, msg, "• cat memes <i>(funny cats)</i>\n")
	assert.Contains(t, msg, "• a&lt;b\n")
	assert.True(t, strings.HasSuffix(msg, "First &lt;point&gt;.\n\nSecond."))
}

func TestFormatDigestLongAnalysis(t *testing.T) {
	long := strings.Repeat("A sentence here. ", 400)
	msg := FormatDigest("", "Iran", nil, long)
	assert.LessOrEqual(t, len([]rune(msg)), maxMessage)
	assert.True(t, strings.HasSuffix(msg, "."))
}
