package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/deusflow/pulse/internal/trends"
)

const (
	DefaultBaseURL = "https://api.telegram.org"

	// Telegram limits: 4096 chars per message, 1024 per caption.
	maxMessage = 4000
	maxCaption = 1000
)

type Client struct {
	Token   string
	ChatID  string
	BaseURL string
	HTTP    *http.Client
}

func New(token, chatID string) *Client {
	return &Client{
		Token:   token,
		ChatID:  chatID,
		BaseURL: DefaultBaseURL,
		HTTP:    &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *Client) endpoint(method string) string {
	base := c.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	return fmt.Sprintf("%s/bot%s/%s", base, c.Token, method)
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (c *Client) do(req *http.Request) error {
	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("error HTTP request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var out apiResponse
	_ = json.Unmarshal(body, &out)
	if resp.StatusCode != http.StatusOK || !out.OK {
		if out.Description != "" {
			return fmt.Errorf("telegram API error: status %d: %s", resp.StatusCode, out.Description)
		}
		return fmt.Errorf("telegram API error: status %d", resp.StatusCode)
	}
	return nil
}

// SendMessage sends an HTML message without link previews.
func (c *Client) SendMessage(ctx context.Context, text string) error {
	payload := map[string]interface{}{
		"chat_id":                  c.ChatID,
		"text":                     text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("error make JSON: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("sendMessage"), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

// SendAudio uploads an MP3 with an optional HTML caption.
func (c *Client) SendAudio(ctx context.Context, filename string, mp3 []byte, caption string) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	_ = w.WriteField("chat_id", c.ChatID)
	if caption != "" {
		_ = w.WriteField("caption", truncate(caption, maxCaption))
		_ = w.WriteField("parse_mode", "HTML")
	}
	part, err := w.CreateFormFile("audio", filename)
	if err != nil {
		return err
	}
	if _, err := part.Write(mp3); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("sendAudio"), &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return c.do(req)
}

// FormatDigest renders one cycle as a Telegram HTML message.
func FormatDigest(flag, country string, selected []trends.Trend, analysis string) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("%s <b>%s</b>\n", flag, html.EscapeString(country)))
	b.WriteString("━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

	if len(selected) > 0 {
		b.WriteString("🔎 <b>What people searched</b>\n")
		for _, t := range selected {
			b.WriteString("• " + html.EscapeString(t.Title))
			if len(t.Related) > 0 {
				b.WriteString(" <i>(" + html.EscapeString(strings.Join(t.Related, ", ")) + ")</i>")
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	header := b.String()
	text := html.EscapeString(strings.TrimSpace(analysis))
	if room := maxMessage - len([]rune(header)); len([]rune(text)) > room {
		text = cutAtSentence(text, room)
	}
	return header + text
}

// cutAtSentence keeps at most n runes, ending on the last full sentence
// when there is one.
func cutAtSentence(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	cut := string(r[:n])
	if i := strings.LastIndex(cut, "."); i > 0 {
		return cut[:i+1]
	}
	return truncate(s, n)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
