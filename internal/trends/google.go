package trends

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/deusflow/pulse/internal/rss"
)

const (
	GoogleTrendsRSSURL = "https://trends.google.com/trending/rss"
	SuggestURL         = "http://suggestqueries.google.com/complete/search"
)

// Pacer delays calls to a shared endpoint.
type Pacer interface {
	Wait(ctx context.Context, service string) error
}

// GoogleRSS reads the public Google Trends RSS feed and fills related
// terms from Google search suggestions.
type GoogleRSS struct {
	Fetcher      *rss.Fetcher
	Geo          string
	Language     string
	RelatedLimit int
	Max          int
	FeedURL      string
	Suggest      *Suggester
}

func (g *GoogleRSS) Trends(ctx context.Context) ([]Trend, error) {
	feedURL := g.FeedURL
	if feedURL == "" {
		feedURL = GoogleTrendsRSSURL
	}
	feed, err := g.Fetcher.Fetch(ctx, feedURL+"?geo="+url.QueryEscape(g.Geo))
	if err != nil {
		return nil, fmt.Errorf("google trends rss: %w", err)
	}

	limit := g.RelatedLimit
	if limit <= 0 {
		limit = 5
	}
	max := g.Max
	if max <= 0 || max > MaxCandidates {
		max = MaxCandidates
	}

	out := make([]Trend, 0, max)
	for _, item := range feed.Items {
		title := strings.TrimSpace(item.Title)
		if title == "" || isNewsOutlet(title) {
			continue
		}
		t := Trend{Title: title, Related: []string{}}
		if g.Suggest != nil {
			sugg, err := g.Suggest.Suggestions(ctx, title, g.Language)
			if err != nil {
				slog.Debug("suggestions failed", "keyword", title, "error", err)
			}
			t.Related = relatedTerms(title, sugg, limit)
		}
		out = append(out, t)
		if len(out) >= max {
			break
		}
	}
	return out, nil
}

// Suggester asks Google's autocomplete endpoint for related searches.
type Suggester struct {
	BaseURL string
	Client  *http.Client
	Pacer   Pacer
}

// Suggestions returns up to five completions of keyword, without keyword itself.
func (s *Suggester) Suggestions(ctx context.Context, keyword, language string) ([]string, error) {
	if s.Pacer != nil {
		if err := s.Pacer.Wait(ctx, "suggest"); err != nil {
			return nil, err
		}
	}
	base := s.BaseURL
	if base == "" {
		base = SuggestURL
	}
	params := url.Values{"client": {"firefox"}, "q": {keyword}}
	if language != "" {
		params.Set("hl", language)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("suggest: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	// ["keyword",["s1","s2",...]]
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil || len(raw) < 2 {
		return nil, fmt.Errorf("suggest: unexpected response")
	}
	var list []string
	if err := json.Unmarshal(raw[1], &list); err != nil {
		return nil, fmt.Errorf("suggest: unexpected response: %w", err)
	}
	return relatedTerms(keyword, list, 5), nil
}

// Annotator turns a foreign-language title into "original (english)".
type Annotator interface {
	Annotate(ctx context.Context, text string) string
}

// Translated annotates the titles and related searches of another source.
type Translated struct {
	Source
	Annotator Annotator
}

func (t Translated) Trends(ctx context.Context) ([]Trend, error) {
	list, err := t.Source.Trends(ctx)
	if err != nil {
		return nil, err
	}
	for i := range list {
		list[i].Title = t.Annotator.Annotate(ctx, list[i].Title)
		if len(list[i].Related) == 0 {
			continue
		}
		related := make([]string, len(list[i].Related))
		for j, r := range list[i].Related {
			related[j] = t.Annotator.Annotate(ctx, r)
		}
		list[i].Related = related
	}
	return list, nil
}

// Static serves fixed trends; used for dry runs and tests.
type Static []Trend

func (s Static) Trends(ctx context.Context) ([]Trend, error) {
	out := make([]Trend, len(s))
	copy(out, s)
	return out, nil
}
