package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const frontPage = `<html><body>
<div class="top"><h2 class="headline"><a href="/1">  Gaza ceasefire talks   resume </a></h2></div>
<h2 class="headline">Short</h2>
<h2 class="headline">Gaza ceasefire talks resume</h2>
<h2 class="headline">הממשלה דנה באמצעי ביטחון חדשים</h2>
<h3 class="other">Not a headline at all</h3>
</body></html>`

func TestHeadlines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("User-Agent"), "pulse")
		_, _ = w.Write([]byte(frontPage))
	}))
	defer srv.Close()

	got, err := New(srv.Client()).Headlines(context.Background(), srv.URL, "h2.headline")
	require.NoError(t, err)
	assert.Equal(t, []string{"Gaza ceasefire talks resume", "הממשלה דנה באמצעי ביטחון חדשים"}, got)
}

func TestHeadlinesHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := New(srv.Client()).Headlines(context.Background(), srv.URL, "h2")
	assert.Error(t, err)
}

func TestStripHTML(t *testing.T) {
	assert.Equal(t, "Gaza & talks", StripHTML("<b>Gaza</b> &amp; talks"))
	assert.Equal(t, "plain text", StripHTML("  plain \n text "))
	assert.Equal(t, "", StripHTML(""))
}
