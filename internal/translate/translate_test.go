package translate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/pulse/internal/cache"
)

func gtxServer(t *testing.T, calls *int32, replies map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		q := r.URL.Query()
		assert.Equal(t, "gtx", q.Get("client"))
		out, ok := replies[q.Get("q")]
		if !ok {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode([]any{[]any{[]any{out, q.Get("q"), nil}}, nil, q.Get("sl")})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestParseGoogleTranslateResponse(t *testing.T) {
	got, err := parseGoogleTranslateResponse([]byte(`[[["Hello ","שלום ",null],["world","עולם",null]],null,"iw"]`))
	require.NoError(t, err)
	assert.Equal(t, "Hello world", got)

	_, err = parseGoogleTranslateResponse([]byte(`[]`))
	assert.Error(t, err)
	_, err = parseGoogleTranslateResponse([]byte(`["x"]`))
	assert.Error(t, err)
}

func TestAnnotate(t *testing.T) {
	var calls int32
	srv := gtxServer(t, &calls, map[string]string{"מזג אוויר": "weather"})
	store := cache.NewMemory()
	defer store.Close()
	tr := New(WithBaseURL(srv.URL), WithHTTPClient(srv.Client()), WithCache(store, time.Hour))

	ctx := context.Background()
	assert.Equal(t, "מזג אוויר (weather)", tr.Annotate(ctx, "מזג אוויר"))
	assert.Equal(t, "מזג אוויר (weather)", tr.Annotate(ctx, "מזג אוויר"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "second call served from cache")

	assert.Equal(t, "cat memes", tr.Annotate(ctx, "cat memes"), "ASCII is left alone")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestToEnglishKeepsOriginalOnFailure(t *testing.T) {
	var calls int32
	srv := gtxServer(t, &calls, nil)
	tr := New(WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))

	assert.Equal(t, "بيروت", tr.ToEnglish(context.Background(), "بيروت"))
	assert.Equal(t, "بيروت", tr.Annotate(context.Background(), "بيروت"))
}

func TestTranslateFallsBackToOpenAI(t *testing.T) {
	var gtxCalls int32
	gtx := gtxServer(t, &gtxCalls, nil)

	ai := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		var req openai.ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Contains(t, req.Messages[0].Content, "to Czech")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Role: "assistant", Content: " Ahoj světe \n"}}},
		})
	}))
	defer ai.Close()

	cfg := openai.DefaultConfig("test")
	cfg.BaseURL = ai.URL + "/v1"
	tr := New(WithBaseURL(gtx.URL), WithHTTPClient(gtx.Client()), WithOpenAI(openai.NewClientWithConfig(cfg)))

	got, err := tr.Translate(context.Background(), "Hello world", "en", "cs")
	require.NoError(t, err)
	assert.Equal(t, "Ahoj světe", got)
	assert.Equal(t, int32(1), atomic.LoadInt32(&gtxCalls))
}

func TestTranslateKeepsParagraphs(t *testing.T) {
	var calls int32
	srv := gtxServer(t, &calls, map[string]string{
		"First paragraph.":  "První odstavec.",
		"Second paragraph.": "Druhý odstavec.",
	})
	tr := New(WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))

	got, err := tr.Translate(context.Background(), "First paragraph.\n\n  Second paragraph.\n", "en", "cs")
	require.NoError(t, err)
	assert.Equal(t, "První odstavec.\n\nDruhý odstavec.", got)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestTranslateSplitsLongParagraphs(t *testing.T) {
	var longest int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		if n := int32(utf8.RuneCountInString(q)); n > atomic.LoadInt32(&longest) {
			atomic.StoreInt32(&longest, n)
		}
		_ = json.NewEncoder(w).Encode([]any{[]any{[]any{q, q, nil}}, nil, "en"})
	}))
	defer srv.Close()
	tr := New(WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))

	long := strings.TrimSpace(strings.Repeat("The market never sleeps. ", 200))
	text := long + "\n\nShort ending."
	got, err := tr.Translate(context.Background(), text, "en", "cs")
	require.NoError(t, err)
	assert.Equal(t, text, got, "nothing is dropped")
	assert.LessOrEqual(t, int(atomic.LoadInt32(&longest)), maxChars)
}

func TestSplitRunes(t *testing.T) {
	assert.Equal(t, []string{"One. Two.", "Three."}, splitRunes("One. Two. Three.", 12))
	assert.Equal(t, []string{"abc def", "ghi"}, splitRunes("abc def ghi", 8))
	assert.Equal(t, []string{"abcd", "efgh"}, splitRunes("abcdefgh", 4))
	assert.Equal(t, []string{"short"}, splitRunes("short", 10))
}

func TestCleanTextForTranslation(t *testing.T) {
	assert.Equal(t, "one two\nthree", cleanTextForTranslation("  one   two \n\n\t three  "))
	assert.Equal(t, "", cleanTextForTranslation(" \n "))
}

func TestIsASCII(t *testing.T) {
	assert.True(t, IsASCII("Elections 2025"))
	assert.False(t, IsASCII("Bejrút"))
}
