package trends

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/deusflow/pulse/internal/retry"
)

const SerpAPIBaseURL = "https://serpapi.com"

// MaxCandidates caps how many trends one fetch returns.
const MaxCandidates = 20

// SerpAPI reads Google Trends "trending now" through serpapi.com.
type SerpAPI struct {
	Key          string
	Geo          string
	Hours        int
	Language     string
	RelatedLimit int
	Max          int
	BaseURL      string
	Client       *http.Client
}

type serpResponse struct {
	Error            string `json:"error"`
	TrendingSearches []struct {
		Query          string   `json:"query"`
		TrendBreakdown []string `json:"trend_breakdown"`
	} `json:"trending_searches"`
}

func (s *SerpAPI) Trends(ctx context.Context) ([]Trend, error) {
	if s.Key == "" {
		return nil, retry.Permanent(errors.New("serpapi: SERPAPI_KEY not set"))
	}
	base := s.BaseURL
	if base == "" {
		base = SerpAPIBaseURL
	}
	hours := s.Hours
	if hours <= 0 {
		hours = 48
	}
	params := url.Values{
		"engine":  {"google_trends_trending_now"},
		"geo":     {s.Geo},
		"hours":   {strconv.Itoa(hours)},
		"api_key": {s.Key},
	}
	if s.Language != "" {
		params.Set("hl", s.Language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/search.json?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("serpapi: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("serpapi: reading response: %w", err)
	}
	var sr serpResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, statusErr(resp.StatusCode, fmt.Errorf("serpapi: status %d: %w", resp.StatusCode, err))
	}
	if sr.Error != "" {
		err := fmt.Errorf("serpapi: %s", sr.Error)
		if resp.StatusCode == http.StatusOK {
			return nil, retry.Permanent(err)
		}
		return nil, statusErr(resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusErr(resp.StatusCode, fmt.Errorf("serpapi: status %d", resp.StatusCode))
	}

	limit := s.RelatedLimit
	if limit <= 0 {
		limit = 5
	}
	max := s.Max
	if max <= 0 || max > MaxCandidates {
		max = MaxCandidates
	}

	out := make([]Trend, 0, max)
	for _, ts := range sr.TrendingSearches {
		if ts.Query == "" || isNewsOutlet(ts.Query) {
			continue
		}
		out = append(out, Trend{Title: ts.Query, Related: relatedTerms(ts.Query, ts.TrendBreakdown, limit)})
		if len(out) >= max {
			break
		}
	}
	return out, nil
}

// statusErr marks client errors as not worth retrying.
func statusErr(status int, err error) error {
	if retry.ClientError(status) {
		return retry.Permanent(err)
	}
	return err
}
