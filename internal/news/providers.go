package news

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/deusflow/pulse/internal/retry"
	"github.com/deusflow/pulse/internal/rss"
	"github.com/deusflow/pulse/internal/scraper"
)

const (
	NewsAPIBaseURL  = "https://newsapi.org"
	NewsDataBaseURL = "https://newsdata.io"
)

func defaultClient(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return &http.Client{Timeout: 30 * time.Second}
}

func getJSON(ctx context.Context, client *http.Client, u string, header http.Header, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("error HTTP request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("error reading response: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		if resp.StatusCode != http.StatusOK {
			return permanentIfClient(resp.StatusCode, fmt.Errorf("status %d", resp.StatusCode))
		}
		return fmt.Errorf("error parsing response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return permanentIfClient(resp.StatusCode, &statusError{code: resp.StatusCode, body: out})
	}
	return nil
}

func permanentIfClient(status int, err error) error {
	if retry.ClientError(status) {
		return retry.Permanent(err)
	}
	return err
}

type statusError struct {
	code int
	body any
}

func (e *statusError) Error() string {
	if m, ok := e.body.(interface{ message() string }); ok && m.message() != "" {
		return fmt.Sprintf("status %d: %s", e.code, m.message())
	}
	return fmt.Sprintf("status %d", e.code)
}

// NewsAPI queries newsapi.org: top headlines first, then the newest
// matching articles when the top list is short.
type NewsAPI struct {
	Key      string
	Query    string
	Language string
	Limit    int
	BaseURL  string
	Client   *http.Client
}

type newsAPIResponse struct {
	Status   string `json:"status"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Articles []struct {
		Title  string `json:"title"`
		Source struct {
			Name string `json:"name"`
		} `json:"source"`
	} `json:"articles"`
}

func (r *newsAPIResponse) message() string { return r.Message }

func (n *NewsAPI) fetch(ctx context.Context, endpoint string, params url.Values) ([]string, error) {
	base := n.BaseURL
	if base == "" {
		base = NewsAPIBaseURL
	}
	var resp newsAPIResponse
	header := http.Header{"X-Api-Key": []string{n.Key}}
	if err := getJSON(ctx, defaultClient(n.Client), base+endpoint+"?"+params.Encode(), header, &resp); err != nil {
		return nil, fmt.Errorf("newsapi %s: %w", endpoint, err)
	}
	if resp.Status != "ok" {
		return nil, fmt.Errorf("newsapi %s: %s %s", endpoint, resp.Code, resp.Message)
	}
	titles := make([]string, 0, len(resp.Articles))
	for _, a := range resp.Articles {
		titles = append(titles, a.Title)
	}
	return titles, nil
}

func (n *NewsAPI) Headlines(ctx context.Context) ([]string, error) {
	if n.Key == "" {
		return nil, retry.Permanent(errors.New("newsapi: NEWS_API_KEY not set"))
	}
	limit := n.Limit
	if limit <= 0 {
		limit = 5
	}
	lang := n.Language
	if lang == "" {
		lang = "en"
	}

	top, err := n.fetch(ctx, "/v2/top-headlines", url.Values{"q": {n.Query}, "language": {lang}})
	if err != nil {
		slog.Warn("newsapi top headlines failed", "error", err)
	}
	if len(Filter(top, limit)) >= limit {
		return top, nil
	}

	more, err2 := n.fetch(ctx, "/v2/everything", url.Values{
		"q":        {n.Query},
		"language": {lang},
		"sortBy":   {"publishedAt"},
		"pageSize": {strconv.Itoa(20)},
	})
	if err2 != nil {
		if len(top) == 0 {
			return nil, errors.Join(err, err2)
		}
		slog.Warn("newsapi everything failed", "error", err2)
	}
	return append(top, more...), nil
}

// NewsData queries newsdata.io for a country's top stories.
type NewsData struct {
	Key      string
	Country  string
	Language string
	Category string
	BaseURL  string
	Client   *http.Client
}

type newsDataResponse struct {
	Status  string `json:"status"`
	Results []struct {
		Title string `json:"title"`
	} `json:"results"`
	Message string `json:"message"`
}

func (r *newsDataResponse) message() string { return r.Message }

func (n *NewsData) Headlines(ctx context.Context) ([]string, error) {
	if n.Key == "" {
		return nil, retry.Permanent(errors.New("newsdata: NEWSDATA_API_KEY not set"))
	}
	base := n.BaseURL
	if base == "" {
		base = NewsDataBaseURL
	}
	params := url.Values{"apikey": {n.Key}, "country": {n.Country}}
	if n.Language != "" {
		params.Set("language", n.Language)
	}
	if n.Category != "" {
		params.Set("category", n.Category)
	}

	var resp newsDataResponse
	if err := getJSON(ctx, defaultClient(n.Client), base+"/api/1/news?"+params.Encode(), nil, &resp); err != nil {
		return nil, fmt.Errorf("newsdata: %w", err)
	}
	if resp.Status != "success" {
		return nil, fmt.Errorf("newsdata: status %q", resp.Status)
	}
	titles := make([]string, 0, len(resp.Results))
	for _, r := range resp.Results {
		titles = append(titles, r.Title)
	}
	return titles, nil
}

// RSS takes the top items of each configured feed.
type RSS struct {
	Fetcher *rss.Fetcher
	Feeds   []string
	PerFeed int
}

func (r *RSS) Headlines(ctx context.Context) ([]string, error) {
	per := r.PerFeed
	if per <= 0 {
		per = 3
	}
	return r.Fetcher.TopTitles(ctx, r.Feeds, per)
}

// HTMLPage is a front page scraped with a CSS selector.
type HTMLPage struct {
	URL      string
	Selector string
}

// HTML scrapes headlines from front pages that have no usable feed.
type HTML struct {
	Scraper *scraper.Scraper
	Pages   []HTMLPage
}

func (h *HTML) Headlines(ctx context.Context) ([]string, error) {
	var (
		out     []string
		lastErr error
	)
	for _, p := range h.Pages {
		titles, err := h.Scraper.Headlines(ctx, p.URL, p.Selector)
		if err != nil {
			slog.Warn("scrape failed", "url", p.URL, "error", err)
			lastErr = err
			continue
		}
		out = append(out, titles...)
	}
	if len(out) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return out, nil
}

// Static serves fixed headlines; used for dry runs and tests.
type Static []string

func (s Static) Headlines(ctx context.Context) ([]string, error) {
	return []string(s), nil
}
