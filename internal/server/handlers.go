package server

import (
	"bytes"
	"errors"
	"html/template"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/deusflow/pulse/internal/app"
	"github.com/deusflow/pulse/internal/archive"
	"github.com/deusflow/pulse/internal/config"
)

var datePattern = regexp.MustCompile(`^\d{8}$`)

const signedURLTTL = 15 * time.Minute

var templateFuncs = template.FuncMap{
	"prettyDate": prettyDate,
	"paragraphs": paragraphs,
}

// prettyDate renders YYYYMMDD as 2006-01-02.
func prettyDate(d string) string {
	t, err := time.Parse("20060102", d)
	if err != nil {
		return d
	}
	return t.Format("2006-01-02")
}

func paragraphs(text string) []string {
	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

type countryResponse struct {
	Code        string `json:"code"`
	DisplayName string `json:"display_name"`
	Flag        string `json:"flag"`
}

type countrySummary struct {
	countryResponse
	Entries int
	Latest  string
}

type entryResponse struct {
	Entry archive.Entry `json:"entry"`
	Log   *archive.Log  `json:"log"`
}

func toCountry(p config.Profile) countryResponse {
	return countryResponse{Code: p.Code, DisplayName: p.DisplayName, Flag: p.Flag}
}

// profile resolves :code against the registry, writing a 404 when unknown.
func (s *Server) profile(c *gin.Context, html bool) (config.Profile, bool) {
	p, err := s.countries.Profile(c.Param("code"))
	if err != nil {
		if html {
			c.String(http.StatusNotFound, "Unknown country")
		} else {
			c.JSON(http.StatusNotFound, gin.H{"error": "Unknown country"})
		}
		return config.Profile{}, false
	}
	return p, true
}

// loadEntry returns the paired entry for :date and its Log, if any.
func (s *Server) loadEntry(c *gin.Context, p config.Profile) (archive.Entry, *archive.Log, int, error) {
	date := c.Param("date")
	if !datePattern.MatchString(date) {
		return archive.Entry{}, nil, http.StatusBadRequest, errors.New("invalid date")
	}
	ctx := c.Request.Context()
	entry, ok := s.catalog.Entry(ctx, p.Code, date)
	if !ok {
		return archive.Entry{}, nil, http.StatusNotFound, errors.New("no archive for this date")
	}
	if entry.Log == "" {
		return entry, nil, http.StatusOK, nil
	}
	l, err := archive.ReadLog(ctx, s.catalog.Store(), p.Code, entry.Log)
	if err != nil {
		s.log.Warn("reading log failed", "country", p.Code, "file", entry.Log, "error", err)
		return entry, nil, http.StatusOK, nil
	}
	return entry, l, http.StatusOK, nil
}

func (s *Server) index(c *gin.Context) {
	ctx := c.Request.Context()
	var list []countrySummary
	for _, p := range s.countries.All() {
		entries := s.catalog.Entries(ctx, p.Code)
		sum := countrySummary{countryResponse: toCountry(p), Entries: len(entries)}
		if len(entries) > 0 {
			sum.Latest = entries[0].Date
		}
		list = append(list, sum)
	}
	c.HTML(http.StatusOK, "index.html", gin.H{"Title": "Pulse", "Countries": list})
}

func (s *Server) countryPage(c *gin.Context) {
	p, ok := s.profile(c, true)
	if !ok {
		return
	}
	c.HTML(http.StatusOK, "country.html", gin.H{
		"Title":   p.DisplayName,
		"Country": toCountry(p),
		"Entries": s.catalog.Entries(c.Request.Context(), p.Code),
	})
}

func (s *Server) entryPage(c *gin.Context) {
	p, ok := s.profile(c, true)
	if !ok {
		return
	}
	entry, l, status, err := s.loadEntry(c, p)
	if err != nil {
		c.String(status, err.Error())
		return
	}
	c.HTML(http.StatusOK, "entry.html", gin.H{
		"Title":   p.DisplayName + " " + prettyDate(entry.Date),
		"Country": toCountry(p),
		"Entry":   entry,
		"Log":     l,
	})
}

func (s *Server) listCountries(c *gin.Context) {
	out := []countryResponse{}
	for _, p := range s.countries.All() {
		out = append(out, toCountry(p))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) archiveEntries(c *gin.Context) {
	p, ok := s.profile(c, false)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.catalog.Entries(c.Request.Context(), p.Code))
}

func (s *Server) archiveEntry(c *gin.Context) {
	p, ok := s.profile(c, false)
	if !ok {
		return
	}
	entry, l, status, err := s.loadEntry(c, p)
	if err != nil {
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, entryResponse{Entry: entry, Log: l})
}

func (s *Server) fetch(c *gin.Context) {
	if s.runner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Fetching is disabled"})
		return
	}
	p, ok := s.profile(c, false)
	if !ok {
		return
	}

	res, err := s.runner.Run(c.Request.Context(), p)
	switch {
	case errors.Is(err, app.ErrNoTrends):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	case err != nil:
		s.log.Error("fetch cycle failed", "country", p.Code, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Fetch cycle failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"run_id":   res.RunID,
		"log":      res.LogName,
		"audio":    res.AudioName,
		"selected": res.Selected,
	})
}

// listLogs returns Log names newest first; unknown or empty locations give [].
func (s *Server) listLogs(c *gin.Context) {
	code := strings.ToUpper(c.Param("code"))
	if !archive.ValidCode(code) {
		c.JSON(http.StatusOK, []string{})
		return
	}
	c.JSON(http.StatusOK, s.catalog.LogNames(c.Request.Context(), code))
}

func (s *Server) serveFile(kind archive.Kind) gin.HandlerFunc {
	contentType := "application/json; charset=utf-8"
	if kind == archive.KindAudio {
		contentType = "audio/mpeg"
	}
	return func(c *gin.Context) {
		code := strings.ToUpper(c.Param("code"))
		file := c.Param("file")
		n, err := archive.ParseName(file)
		if err != nil || n.Code != code || n.Kind != kind {
			c.String(http.StatusBadRequest, "Invalid file name")
			return
		}

		if kind == archive.KindAudio && s.signer != nil {
			u, err := s.signer.SignedURL(kind, code, file, signedURLTTL)
			if err == nil {
				c.Redirect(http.StatusFound, u)
				return
			}
			s.log.Warn("signing audio url failed, serving directly", "country", code, "file", file, "error", err)
		}

		data, err := s.catalog.Store().Read(c.Request.Context(), kind, code, file)
		if errors.Is(err, archive.ErrNotFound) {
			c.String(http.StatusNotFound, "Not found")
			return
		}
		if err != nil {
			s.log.Warn("reading archive file failed", "country", code, "file", file, "error", err)
			c.String(http.StatusInternalServerError, "Read error")
			return
		}

		c.Header("Content-Type", contentType)
		http.ServeContent(c.Writer, c.Request, file, time.Time{}, bytes.NewReader(data))
	}
}

// health reports 503 while the last cycle failed.
func (s *Server) health(c *gin.Context) {
	status, code := "ok", http.StatusOK
	resp := gin.H{"countries": s.countries.Codes()}
	if s.metrics != nil {
		stats := s.metrics.GetStats()
		if healthy, _ := stats["is_healthy"].(bool); !healthy {
			status, code = "error", http.StatusServiceUnavailable
		}
		resp["last_run"] = stats["last_run_time"]
		resp["last_error"] = stats["last_error"]
		resp["metrics"] = stats
	}
	if s.limiter != nil {
		resp["limits"] = s.limiter.GetStats()
	}
	if s.cache != nil {
		resp["cache"] = s.cache.GetStats()
	}
	resp["status"] = status
	c.JSON(code, resp)
}
