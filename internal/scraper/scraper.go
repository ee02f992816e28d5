package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const userAgent = "Mozilla/5.0 (compatible; pulse/1.0; +https://github.com/deusflow/pulse)"

// Scraper pulls headline text out of news front pages.
type Scraper struct {
	client *http.Client
}

func New(client *http.Client) *Scraper {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Scraper{client: client}
}

// Headlines loads url and returns the text of every element matching
// selector, in document order, cleaned and de-duplicated.
func (s *Scraper) Headlines(ctx context.Context, url, selector string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error loading page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error parsing HTML: %w", err)
	}

	var out []string
	seen := map[string]struct{}{}
	doc.Find(selector).Each(func(i int, sel *goquery.Selection) {
		text := cleanContent(sel.Text())
		if len([]rune(text)) < 8 {
			return
		}
		if _, dup := seen[text]; dup {
			return
		}
		seen[text] = struct{}{}
		out = append(out, text)
	})
	slog.Debug("scraped headlines", "url", url, "selector", selector, "count", len(out))
	return out, nil
}

// StripHTML turns a fragment such as "<b>Gaza</b> &amp; talks" into plain text.
// Strings without markup are only whitespace-normalised.
func StripHTML(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return cleanContent(fragment)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + fragment + "</body>"))
	if err != nil {
		return cleanContent(fragment)
	}
	return cleanContent(doc.Find("body").Text())
}

// cleanContent collapses runs of whitespace into single spaces.
func cleanContent(content string) string {
	return strings.Join(strings.Fields(content), " ")
}
