package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/sashabaranov/go-openai"

	"github.com/deusflow/pulse/internal/cache"
)

const googleTranslateURL = "https://translate.googleapis.com/translate_a/single"

var paragraphBreak = regexp.MustCompile(`\n[ \t]*\n`)

// maxChars keeps requests inside the free endpoint's URL limit. Longer
// paragraphs are sent in several pieces.
const maxChars = 4000

// Translator tries the free Google endpoint first and OpenAI second.
// Results are cached; a failed translation returns the original text.
type Translator struct {
	httpClient *http.Client
	baseURL    string
	openai     *openai.Client
	model      string
	cache      cache.Store
	ttl        time.Duration
}

type Option func(*Translator)

func WithHTTPClient(c *http.Client) Option { return func(t *Translator) { t.httpClient = c } }

func WithBaseURL(u string) Option { return func(t *Translator) { t.baseURL = u } }

// WithOpenAI enables the OpenAI fallback.
func WithOpenAI(c *openai.Client) Option { return func(t *Translator) { t.openai = c } }

func WithCache(store cache.Store, ttl time.Duration) Option {
	return func(t *Translator) {
		t.cache = store
		t.ttl = ttl
	}
}

func New(opts ...Option) *Translator {
	t := &Translator{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    googleTranslateURL,
		model:      openai.GPT4oMini,
		ttl:        30 * 24 * time.Hour,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// IsASCII reports whether text needs no translation to English.
func IsASCII(text string) bool {
	for _, r := range text {
		if r > unicode.MaxASCII {
			return false
		}
	}
	return true
}

// Translate translates text from one language to another ("auto" detects the
// source). Paragraphs separated by blank lines are translated one by one and
// rejoined with a blank line.
func (t *Translator) Translate(ctx context.Context, text, from, to string) (string, error) {
	if from == "" {
		from = "auto"
	}
	var out []string
	for _, para := range splitParagraphs(text) {
		var parts []string
		for _, piece := range splitRunes(para, maxChars) {
			tr, err := t.translatePiece(ctx, piece, from, to)
			if err != nil {
				return "", err
			}
			parts = append(parts, tr)
		}
		out = append(out, strings.Join(parts, " "))
	}
	return strings.Join(out, "\n\n"), nil
}

func (t *Translator) translatePiece(ctx context.Context, text, from, to string) (string, error) {
	key := cache.Key("tr", from, to, text)
	if t.cache != nil {
		if v, ok := t.cache.Get(ctx, key); ok {
			return v, nil
		}
	}

	result, err := t.translateWithGoogle(ctx, text, from, to)
	if err != nil || result == "" {
		slog.Debug("google translate failed", "from", from, "to", to, "error", err)
		if t.openai == nil {
			if err == nil {
				err = errors.New("empty translation")
			}
			return "", err
		}
		result, err = t.translateWithOpenAI(ctx, text, from, to)
		if err != nil {
			return "", err
		}
	}

	if t.cache != nil {
		t.cache.Set(ctx, key, result, t.ttl)
	}
	return result, nil
}

// ToEnglish returns the English version of text, or text itself when it is
// ASCII already or translation fails.
func (t *Translator) ToEnglish(ctx context.Context, text string) string {
	if IsASCII(text) {
		return text
	}
	out, err := t.Translate(ctx, text, "auto", "en")
	if err != nil || out == "" {
		slog.Warn("translation failed, keeping original", "text", text, "error", err)
		return text
	}
	return out
}

// Annotate returns "text (english)" when text translates to something different.
func (t *Translator) Annotate(ctx context.Context, text string) string {
	en := t.ToEnglish(ctx, text)
	if strings.EqualFold(strings.TrimSpace(en), strings.TrimSpace(text)) {
		return text
	}
	return fmt.Sprintf("%s (%s)", text, en)
}

func (t *Translator) translateWithGoogle(ctx context.Context, text, from, to string) (string, error) {
	params := url.Values{}
	params.Set("client", "gtx")
	params.Set("sl", from)
	params.Set("tl", to)
	params.Set("dt", "t")
	params.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("google translate returned status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error reading response: %w", err)
	}

	return parseGoogleTranslateResponse(body)
}

// parseGoogleTranslateResponse concatenates the sentence chunks of a gtx reply:
// [[["Hello","שלום",...],...],...]
func parseGoogleTranslateResponse(body []byte) (string, error) {
	var response []interface{}
	if err := json.Unmarshal(body, &response); err != nil {
		return "", err
	}
	if len(response) == 0 {
		return "", errors.New("empty response from Google Translate")
	}

	translations, ok := response[0].([]interface{})
	if !ok {
		return "", errors.New("unexpected response format")
	}

	var result strings.Builder
	for _, translation := range translations {
		if parts, ok := translation.([]interface{}); ok && len(parts) > 0 {
			if s, ok := parts[0].(string); ok {
				result.WriteString(s)
			}
		}
	}
	return strings.TrimSpace(result.String()), nil
}

// cleanTextForTranslation collapses whitespace and drops empty lines.
func cleanTextForTranslation(text string) string {
	lines := strings.Split(text, "\n")
	clean := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			clean = append(clean, line)
		}
	}
	return strings.Join(clean, "\n")
}

// splitParagraphs cleans text and splits it on blank lines.
func splitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out []string
	for _, p := range paragraphBreak.Split(text, -1) {
		if p = cleanTextForTranslation(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// splitRunes cuts s into pieces of at most n runes, preferring a sentence
// end, then a space, as the cut point.
func splitRunes(s string, n int) []string {
	var out []string
	r := []rune(s)
	for len(r) > n {
		cut := lastBreak(r[:n])
		out = append(out, strings.TrimSpace(string(r[:cut])))
		r = []rune(strings.TrimLeftFunc(string(r[cut:]), unicode.IsSpace))
	}
	if rest := strings.TrimSpace(string(r)); rest != "" {
		out = append(out, rest)
	}
	return out
}

func lastBreak(r []rune) int {
	space := -1
	for i := len(r) - 1; i > 0; i-- {
		if !unicode.IsSpace(r[i]) {
			continue
		}
		switch r[i-1] {
		case '.', '!', '?', '\n':
			return i
		}
		if space < 0 {
			space = i
		}
	}
	if space > 0 {
		return space
	}
	return len(r)
}

var languageNames = map[string]string{
	"en": "English", "he": "Hebrew", "iw": "Hebrew", "ar": "Arabic",
	"fa": "Persian", "cs": "Czech", "auto": "the source language",
}

func languageName(code string) string {
	if n, ok := languageNames[code]; ok {
		return n
	}
	return code
}

func (t *Translator) translateWithOpenAI(ctx context.Context, text, from, to string) (string, error) {
	prompt := fmt.Sprintf(`Translate the following text from %s to %s.
Keep the meaning and tone of the original.
Translate only the text itself, without additional comments.

Text to translate:
%s`, languageName(from), languageName(to), text)

	ctx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	resp, err := t.openai.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: t.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens: 2000,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no response from OpenAI")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
