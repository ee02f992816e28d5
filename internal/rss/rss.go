package rss

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

const userAgent = "Mozilla/5.0 (compatible; pulse/1.0; +https://github.com/deusflow/pulse)"

// Fetcher downloads and parses RSS/Atom feeds.
type Fetcher struct {
	parser *gofeed.Parser
}

func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	p := gofeed.NewParser()
	p.Client = client
	p.UserAgent = userAgent
	return &Fetcher{parser: p}
}

func (f *Fetcher) Fetch(ctx context.Context, url string) (*gofeed.Feed, error) {
	feed, err := f.parser.ParseURLWithContext(url, ctx)
	if err != nil {
		return nil, fmt.Errorf("parsing feed %s: %w", url, err)
	}
	return feed, nil
}

// TopTitles takes the first perFeed non-blank titles of every feed. A feed
// that fails is logged and skipped; the error is returned only when all fail.
func (f *Fetcher) TopTitles(ctx context.Context, urls []string, perFeed int) ([]string, error) {
	var (
		titles  []string
		lastErr error
		ok      int
	)
	for _, url := range urls {
		feed, err := f.Fetch(ctx, url)
		if err != nil {
			slog.Warn("feed failed", "url", url, "error", err)
			lastErr = err
			continue
		}
		ok++
		n := 0
		for _, item := range feed.Items {
			if n >= perFeed {
				break
			}
			t := strings.TrimSpace(item.Title)
			if t == "" {
				continue
			}
			titles = append(titles, t)
			n++
		}
		slog.Debug("feed loaded", "url", url, "items", len(feed.Items), "taken", n)
	}
	if ok == 0 && lastErr != nil {
		return nil, lastErr
	}
	return titles, nil
}
