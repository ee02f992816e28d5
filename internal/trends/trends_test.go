package trends

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/pulse/internal/retry"
	"github.com/deusflow/pulse/internal/rss"
)

func TestSerpAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/search.json", r.URL.Path)
		assert.Equal(t, "google_trends_trending_now", q.Get("engine"))
		assert.Equal(t, "LB", q.Get("geo"))
		assert.Equal(t, "48", q.Get("hours"))
		assert.Equal(t, "ar", q.Get("hl"))
		assert.Equal(t, "k", q.Get("api_key"))
		_, _ = w.Write([]byte(`{"trending_searches":[
			{"query":"طقس","trend_breakdown":["طقس","طقس بيروت","weather beirut","طقس بيروت","a","b"]},
			{"query":"BBC News","trend_breakdown":[]},
			{"query":"cat memes"},
			{"query":""}
		]}`))
	}))
	defer srv.Close()

	s := &SerpAPI{Key: "k", Geo: "LB", Language: "ar", RelatedLimit: 3, BaseURL: srv.URL, Client: srv.Client()}
	got, err := s.Trends(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Trend{
		{Title: "طقس", Related: []string{"طقس بيروت", "weather beirut", "a"}},
		{Title: "cat memes", Related: []string{}},
	}, got)
}

func TestSerpAPICapsCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var parts []string
		for i := 0; i < 30; i++ {
			parts = append(parts, fmt.Sprintf(`{"query":"trend %d"}`, i))
		}
		_, _ = w.Write([]byte(`{"trending_searches":[` + strings.Join(parts, ",") + `]}`))
	}))
	defer srv.Close()

	s := &SerpAPI{Key: "k", Geo: "IR", BaseURL: srv.URL, Client: srv.Client()}
	got, err := s.Trends(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, MaxCandidates)
}

func TestSerpAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"Invalid API key."}`))
	}))
	defer srv.Close()

	_, err := (&SerpAPI{Key: "bad", Geo: "IL", BaseURL: srv.URL, Client: srv.Client()}).Trends(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid API key.")

	_, err = (&SerpAPI{Geo: "IL"}).Trends(context.Background())
	assert.Error(t, err)
}

func TestSerpAPIRetries(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantHits  int32
		permanent bool
	}{
		{"invalid key", http.StatusUnauthorized, `{"error":"Invalid API key."}`, 1, true},
		{"error with 200", http.StatusOK, `{"error":"Google Trends hasn't returned any results for this query."}`, 1, true},
		{"rate limited", http.StatusTooManyRequests, `{"error":"Your searches for the month are exhausted."}`, 3, false},
		{"server error", http.StatusBadGateway, `<html>bad gateway</html>`, 3, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&hits, 1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			s := &SerpAPI{Key: "k", Geo: "IL", BaseURL: srv.URL, Client: srv.Client()}
			err := retry.WithRetry(context.Background(), retry.RetryConfig{MaxAttempts: 3, Delay: time.Millisecond}, "trends", func(ctx context.Context) error {
				_, err := s.Trends(ctx)
				return err
			})
			require.Error(t, err)
			assert.Equal(t, tt.wantHits, atomic.LoadInt32(&hits))
			assert.Equal(t, tt.permanent, retry.IsPermanent(err))
		})
	}
}

type countingPacer struct{ n int32 }

func (p *countingPacer) Wait(ctx context.Context, service string) error {
	atomic.AddInt32(&p.n, 1)
	return nil
}

const trendsFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:ht="https://trends.google.com/trending/rss"><channel><title>Daily Search Trends</title>
<item><title>מכבי תל אביב</title></item>
<item><title>Fox News live</title></item>
<item><title>מזג אוויר</title></item>
</channel></rss>`

func TestGoogleRSSWithSuggestions(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rss", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "IL", r.URL.Query().Get("geo"))
		_, _ = w.Write([]byte(trendsFeed))
	})
	mux.HandleFunc("/suggest", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "firefox", q.Get("client"))
		assert.Equal(t, "iw", q.Get("hl"))
		kw := q.Get("q")
		if kw == "מזג אוויר" {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = fmt.Fprintf(w, `[%q,[%q,"%s היום","%s תוצאות","a","b","c","d"]]`, kw, kw, kw, kw)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	pacer := &countingPacer{}
	g := &GoogleRSS{
		Fetcher:      rss.NewFetcher(srv.Client()),
		Geo:          "IL",
		Language:     "iw",
		RelatedLimit: 3,
		FeedURL:      srv.URL + "/rss",
		Suggest:      &Suggester{BaseURL: srv.URL + "/suggest", Client: srv.Client(), Pacer: pacer},
	}
	got, err := g.Trends(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Trend{
		{Title: "מכבי תל אביב", Related: []string{"מכבי תל אביב היום", "מכבי תל אביב תוצאות", "a"}},
		{Title: "מזג אוויר", Related: []string{}},
	}, got)
	assert.Equal(t, int32(2), atomic.LoadInt32(&pacer.n))
}

type bracket struct{}

func (bracket) Annotate(ctx context.Context, text string) string { return text + " (x)" }

func TestTranslated(t *testing.T) {
	src := Static{
		{Title: "בחירות", Related: []string{"תוצאות בחירות", "סקרים"}},
		{Title: "بيروت"},
	}
	got, err := Translated{Source: src, Annotator: bracket{}}.Trends(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Trend{
		{Title: "בחירות (x)", Related: []string{"תוצאות בחירות (x)", "סקרים (x)"}},
		{Title: "بيروت (x)"},
	}, got)
	assert.Equal(t, "בחירות", src[0].Title, "source slice untouched")
	assert.Equal(t, []string{"תוצאות בחירות", "סקרים"}, src[0].Related)
}

func TestRelatedTerms(t *testing.T) {
	assert.Equal(t, []string{"b", "c"}, relatedTerms("A", []string{"a", " b ", "", "B", "c", "d"}, 2))
	assert.Equal(t, []string{}, relatedTerms("x", nil, 5))
}
