package archive

import (
	"context"
	"log/slog"
)

// Catalog answers "what is archived for this country" on top of a Store.
type Catalog struct {
	store Store
	log   *slog.Logger
}

func NewCatalog(store Store, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{store: store, log: logger}
}

func (c *Catalog) Store() Store { return c.store }

// Entries lists both locations for code and pairs them by date. Listing
// failures are logged and treated as an empty location.
func (c *Catalog) Entries(ctx context.Context, code string) []Entry {
	logs, err := c.store.List(ctx, KindLog, code)
	if err != nil {
		c.log.Warn("listing logs failed", "country", code, "error", err)
		logs = nil
	}
	audio, err := c.store.List(ctx, KindAudio, code)
	if err != nil {
		c.log.Warn("listing audio failed", "country", code, "error", err)
		audio = nil
	}
	return Pair(logs, audio)
}

// Entry returns the paired entry for one date.
func (c *Catalog) Entry(ctx context.Context, code, date string) (Entry, bool) {
	for _, e := range c.Entries(ctx, code) {
		if e.Date == date {
			return e, true
		}
	}
	return Entry{}, false
}

// LogNames returns Log names for code, newest first, as the old /list endpoint did.
func (c *Catalog) LogNames(ctx context.Context, code string) []string {
	names, err := c.store.List(ctx, KindLog, code)
	if err != nil {
		c.log.Warn("listing logs failed", "country", code, "error", err)
		return []string{}
	}
	parsed := make([]Name, 0, len(names))
	for _, f := range names {
		if n, err := ParseName(f); err == nil {
			parsed = append(parsed, n)
		}
	}
	out := make([]string, 0, len(parsed))
	for _, n := range newestFirst(parsed) {
		out = append(out, n.File)
	}
	return out
}
