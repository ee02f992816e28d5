// Package analysis asks an LLM to contrast headlines with what people search for.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/deusflow/pulse/internal/trends"
)

// DefaultPersona is the system prompt used when a country sets none.
const DefaultPersona = `You're a journalist with the biting wit of Christopher Hitchens, tasked with analyzing the collective psyche through search trends. Your unique talent lies in using these digital footprints (what people search for in private) to expose the raw, unfiltered reality beneath official narratives.

Your job is to decode these search patterns like a psychological X-ray, revealing the true preoccupations, fears, and absurdities that occupy people's minds while the state trumpets its grand narratives. Use dark humor and sharp insight to contrast the public face of events with the private thoughts revealed through search trends, showing how these digital confessions often tell a more honest story than any official report.`

// DefaultTemplate is rendered with Country, HeadlinesJSON and TrendsJSON.
const DefaultTemplate = `Analyze these search trends and headlines from {{.Country}}, using the search patterns as a window into the collective psyche:

Official Headlines:
{{.HeadlinesJSON}}

What People Secretly Search For:
{{.TrendsJSON}}

Write a brief, biting analysis (2 paragraphs) that:
1. Uses these search trends as psychological evidence to expose what people really think and feel beneath the official narrative
2. Interprets the search patterns as revealing unconscious truths, fears, and preoccupations that the news won't acknowledge
3. Shows how these private digital confessions tell a more honest story about daily life than public statements
4. Employs dark humor to highlight the gap between the state's grand narrative and the raw psychological reality revealed in search trends

Keep it sharp and psychologically insightful, treating the search trends as a collective Rorschach test that reveals uncomfortable truths. Each paragraph should be a single continuous line.`

// Request is everything a provider needs for one essay.
type Request struct {
	Country     string
	Headlines   []string
	Trends      []trends.Trend
	Persona     string
	Template    string
	Model       string
	Temperature float32
	MaxTokens   int
}

type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

type promptData struct {
	Country       string
	HeadlinesJSON string
	TrendsJSON    string
}

func indentJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// BuildPrompt renders the user prompt for req.
func BuildPrompt(req Request) (string, error) {
	headlines := req.Headlines
	if headlines == nil {
		headlines = []string{}
	}
	ts := make([]trends.Trend, len(req.Trends))
	for i, t := range req.Trends {
		if t.Related == nil {
			t.Related = []string{}
		}
		ts[i] = t
	}

	hj, err := indentJSON(headlines)
	if err != nil {
		return "", fmt.Errorf("encoding headlines: %w", err)
	}
	tj, err := indentJSON(ts)
	if err != nil {
		return "", fmt.Errorf("encoding trends: %w", err)
	}

	text := req.Template
	if strings.TrimSpace(text) == "" {
		text = DefaultTemplate
	}
	tmpl, err := template.New("prompt").Option("missingkey=error").Parse(text)
	if err != nil {
		return "", fmt.Errorf("parsing prompt template: %w", err)
	}
	var out bytes.Buffer
	if err := tmpl.Execute(&out, promptData{Country: req.Country, HeadlinesJSON: hj, TrendsJSON: tj}); err != nil {
		return "", fmt.Errorf("rendering prompt template: %w", err)
	}
	return out.String(), nil
}

// SystemPrompt returns the persona for req.
func SystemPrompt(req Request) string {
	if strings.TrimSpace(req.Persona) == "" {
		return DefaultPersona
	}
	return strings.TrimSpace(req.Persona)
}

// CleanText normalises line endings and collapses whitespace inside each
// paragraph, keeping blank lines between paragraphs.
func CleanText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	var paras []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.Join(strings.Fields(p), " "); p != "" {
			paras = append(paras, p)
		}
	}
	return strings.Join(paras, "\n\n")
}
