package trends

import (
	"context"
	"strings"
)

// Trend is one trending search and the related queries around it.
type Trend struct {
	Title   string   `json:"title"`
	Related []string `json:"related"`
}

type Source interface {
	Trends(ctx context.Context) ([]Trend, error)
}

// newsOutlets are search titles that are just people looking up a news site.
var newsOutlets = []string{
	"cnn", "bbc", "fox news", "nyt", "new york times",
	"reuters", "associated press", "ap news",
}

func isNewsOutlet(title string) bool {
	t := strings.ToLower(title)
	for _, o := range newsOutlets {
		if strings.Contains(t, o) {
			return true
		}
	}
	return false
}

// relatedTerms drops blanks, duplicates and the title itself, keeping at most limit.
func relatedTerms(title string, candidates []string, limit int) []string {
	out := make([]string, 0, limit)
	seen := map[string]struct{}{strings.ToLower(strings.TrimSpace(title)): {}}
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		key := strings.ToLower(c)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
		if len(out) >= limit {
			break
		}
	}
	return out
}
