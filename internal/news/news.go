// Package news gathers the day's headlines: the official narrative.
package news

import (
	"context"
	"log/slog"
	"strings"

	"github.com/deusflow/pulse/internal/scraper"
)

// Source returns raw headlines; Collect cleans them up.
type Source interface {
	Headlines(ctx context.Context) ([]string, error)
}

// Annotator turns a foreign-language headline into "original (english)".
type Annotator interface {
	Annotate(ctx context.Context, text string) string
}

// Outlets whose names in a title mean the item is about the outlet, not the news.
var newsOutlets = []string{
	"cnn", "bbc", "fox news", "nyt", "new york times",
	"reuters", "associated press", "ap news",
}

func mentionsOutlet(title string) bool {
	t := strings.ToLower(title)
	for _, o := range newsOutlets {
		if strings.Contains(t, o) {
			return true
		}
	}
	return false
}

type CollectOptions struct {
	Limit     int      // default 5
	Fallback  []string // used when the source yields nothing
	Annotator Annotator
}

// Collect fetches from src and returns at most Limit clean, unique headlines.
// A source error is logged and treated as no headlines, so the cycle can
// still run on Fallback.
func Collect(ctx context.Context, src Source, opts CollectOptions) []string {
	if opts.Limit <= 0 {
		opts.Limit = 5
	}

	raw, err := src.Headlines(ctx)
	if err != nil {
		slog.Warn("headline source failed", "error", err)
	}

	out := Filter(raw, opts.Limit)
	if len(out) == 0 && len(opts.Fallback) > 0 {
		slog.Info("no headlines found, using fallback headlines", "count", len(opts.Fallback))
		out = Filter(opts.Fallback, opts.Limit)
	}

	if opts.Annotator != nil {
		for i, h := range out {
			out[i] = opts.Annotator.Annotate(ctx, h)
		}
	}
	return out
}

// Filter strips markup, drops blanks, "[Removed]" placeholders, outlet
// self-references and duplicates, and keeps the first limit headlines.
func Filter(raw []string, limit int) []string {
	out := make([]string, 0, limit)
	seen := map[string]struct{}{}
	for _, h := range raw {
		h = scraper.StripHTML(h)
		if h == "" || h == "[Removed]" || mentionsOutlet(h) {
			continue
		}
		key := strings.ToLower(h)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, h)
		if len(out) >= limit {
			break
		}
	}
	return out
}
