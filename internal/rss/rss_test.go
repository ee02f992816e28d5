package rss

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const czechFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Zprávy</title>
<item><title>Vláda schválila rozpočet</title></item>
<item><title>  </title></item>
<item><title>Praha hlásí rekordní teploty</title></item>
<item><title>Sněmovna odložila hlasování</title></item>
<item><title>Čtvrtá zpráva</title></item>
</channel></rss>`

func TestTopTitles(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(czechFeed))
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := NewFetcher(srv.Client())
	titles, err := f.TopTitles(context.Background(), []string{srv.URL + "/broken", srv.URL + "/ok"}, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"Vláda schválila rozpočet", "Praha hlásí rekordní teploty", "Sněmovna odložila hlasování"}, titles)
}

func TestTopTitlesAllFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewFetcher(srv.Client()).TopTitles(context.Background(), []string{srv.URL}, 3)
	assert.Error(t, err)
}
