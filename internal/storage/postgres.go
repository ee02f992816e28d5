package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"github.com/deusflow/pulse/internal/archive"
)

// IndexedLog is one row of the pulse_logs table.
type IndexedLog struct {
	Country     string
	Timestamp   string
	LogName     string
	AudioName   string
	Headlines   int
	Trends      int
	HasAnalysis bool
	RecordedAt  time.Time
}

// PostgresIndex mirrors archive metadata into PostgreSQL for querying.
// The archive files stay the source of truth.
type PostgresIndex struct {
	db *sql.DB
}

func NewPostgresIndex(ctx context.Context, connectionString string) (*PostgresIndex, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	idx := &PostgresIndex{db: db}
	if err := idx.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	slog.Info("postgres index connected")
	return idx, nil
}

// EnsureSchema creates the pulse_logs table if it does not exist.
func (p *PostgresIndex) EnsureSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS pulse_logs (
		id SERIAL PRIMARY KEY,
		country VARCHAR(8) NOT NULL,
		ts VARCHAR(15) NOT NULL,
		log_name TEXT NOT NULL,
		audio_name TEXT,
		headlines JSONB NOT NULL DEFAULT '[]',
		trends JSONB NOT NULL DEFAULT '[]',
		analysis TEXT NOT NULL DEFAULT '',
		recorded_at TIMESTAMP NOT NULL DEFAULT NOW(),
		UNIQUE (country, ts)
	);

	CREATE INDEX IF NOT EXISTS idx_pulse_logs_country_ts ON pulse_logs(country, ts DESC);
	`

	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// UpsertLog records a Log; re-indexing the same (country, timestamp) updates it.
func (p *PostgresIndex) UpsertLog(ctx context.Context, code, logName string, l *archive.Log) error {
	headlines, err := json.Marshal(nonNilStrings(l.Headlines))
	if err != nil {
		return fmt.Errorf("encoding headlines: %w", err)
	}
	trends, err := json.Marshal(l.Trends)
	if err != nil {
		return fmt.Errorf("encoding trends: %w", err)
	}
	if l.Trends == nil {
		trends = []byte("[]")
	}

	query := `
		INSERT INTO pulse_logs (country, ts, log_name, headlines, trends, analysis)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (country, ts) DO UPDATE SET
			log_name = EXCLUDED.log_name,
			headlines = EXCLUDED.headlines,
			trends = EXCLUDED.trends,
			analysis = EXCLUDED.analysis
	`
	if _, err := p.db.ExecContext(ctx, query, code, l.Timestamp, logName, string(headlines), string(trends), l.Analysis); err != nil {
		return fmt.Errorf("failed to index log %s: %w", logName, err)
	}
	return nil
}

// MarkAudio attaches an audio file name to an indexed Log.
func (p *PostgresIndex) MarkAudio(ctx context.Context, code, timestamp, audioName string) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE pulse_logs SET audio_name = $3 WHERE country = $1 AND ts = $2`,
		code, timestamp, audioName)
	if err != nil {
		return fmt.Errorf("failed to mark audio %s: %w", audioName, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s %s", archive.ErrNotFound, code, timestamp)
	}
	return nil
}

// RecentLogs returns the latest indexed Logs for code, or all countries when code is empty.
func (p *PostgresIndex) RecentLogs(ctx context.Context, code string, limit int) ([]IndexedLog, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT country, ts, log_name, COALESCE(audio_name, ''),
			jsonb_array_length(headlines), jsonb_array_length(trends),
			analysis <> '', recorded_at
		FROM pulse_logs
		WHERE ($1::text = '' OR country = $1::text)
		ORDER BY ts DESC
		LIMIT $2
	`
	rows, err := p.db.QueryContext(ctx, query, code, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []IndexedLog
	for rows.Next() {
		var item IndexedLog
		if err := rows.Scan(&item.Country, &item.Timestamp, &item.LogName, &item.AudioName,
			&item.Headlines, &item.Trends, &item.HasAnalysis, &item.RecordedAt); err != nil {
			slog.Warn("error scanning row", "error", err)
			continue
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// GetStats returns per-country counts of Logs and audio files.
func (p *PostgresIndex) GetStats(ctx context.Context) (map[string]int, error) {
	stats := make(map[string]int)

	var total int
	if err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pulse_logs`).Scan(&total); err != nil {
		return nil, err
	}
	stats["total_logs"] = total

	rows, err := p.db.QueryContext(ctx, `
		SELECT country, COUNT(*), COUNT(audio_name)
		FROM pulse_logs
		GROUP BY country
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var country string
		var logs, audio int
		if err := rows.Scan(&country, &logs, &audio); err == nil {
			stats["logs_"+country] = logs
			stats["audio_"+country] = audio
		}
	}
	return stats, rows.Err()
}

// Close closes the database connection
func (p *PostgresIndex) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
