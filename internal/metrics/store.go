// Package metrics keeps privacy-conscious operational counters in SQLite:
// page hits keyed by a salted IP hash, and contact delivery outcomes by kind.
// Contact submissions themselves are never written.
package metrics

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS visitors (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	hashed_ip TEXT NOT NULL,
	user_agent TEXT,
	path TEXT,
	ts INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS visitors_ts ON visitors(ts);
CREATE TABLE IF NOT EXISTS deliveries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	kind TEXT NOT NULL,
	status INTEGER NOT NULL DEFAULT 0,
	simulated INTEGER NOT NULL DEFAULT 0,
	ts INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS deliveries_ts ON deliveries(ts);
`

// Retention is how long rows are kept before Cleanup removes them.
const Retention = 365 * 24 * time.Hour

type Store struct {
	db   *sql.DB
	salt string
	now  func() time.Time
}

type Option func(*Store)

// WithSalt fixes the IP hashing salt. By default a random salt is drawn per
// process, so hashes cannot be joined across restarts.
func WithSalt(salt string) Option {
	return func(s *Store) { s.salt = salt }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open opens (creating if needed) the database at path. Use ":memory:" for
// a throwaway store.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("metrics: open %s: %w", path, err)
	}
	// one connection: writes are serialized and ":memory:" stays a single database
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("metrics: create schema: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if s.salt == "" {
		salt, err := randomHex(16)
		if err != nil {
			db.Close()
			return nil, err
		}
		s.salt = salt
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// HashIP is consistent per IP for the lifetime of the salt.
func (s *Store) HashIP(ip string) string {
	sum := sha256.Sum256([]byte(ip + s.salt))
	return hex.EncodeToString(sum[:])[:16]
}

func (s *Store) RecordVisit(ctx context.Context, ip, userAgent, path string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO visitors (hashed_ip, user_agent, path, ts) VALUES (?, ?, ?, ?)`,
		s.HashIP(ip), userAgent, path, s.now().Unix())
	if err != nil {
		return fmt.Errorf("metrics: record visit: %w", err)
	}
	return nil
}

// RecordDelivery stores the outcome of one contact relay call.
func (s *Store) RecordDelivery(ctx context.Context, kind string, status int, simulated bool) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO deliveries (kind, status, simulated, ts) VALUES (?, ?, ?, ?)`,
		kind, status, simulated, s.now().Unix())
	if err != nil {
		return fmt.Errorf("metrics: record delivery: %w", err)
	}
	return nil
}

type PathCount struct {
	Path  string `json:"path"`
	Count int64  `json:"count"`
}

type Summary struct {
	TotalVisitors    int64            `json:"total_visitors"`
	UniqueVisitors   int64            `json:"unique_visitors"`
	VisitorsToday    int64            `json:"visitors_today"`
	VisitorsThisWeek int64            `json:"visitors_this_week"`
	TopPaths         []PathCount      `json:"top_paths"`
	Deliveries       map[string]int64 `json:"deliveries"`
}

func (s *Store) Summary(ctx context.Context) (Summary, error) {
	now := s.now()
	y, m, d := now.Date()
	startOfDay := time.Date(y, m, d, 0, 0, 0, 0, now.Location()).Unix()
	weekAgo := now.Add(-7 * 24 * time.Hour).Unix()

	var sum Summary
	counters := []struct {
		dst   *int64
		query string
		args  []any
	}{
		{&sum.TotalVisitors, `SELECT COUNT(*) FROM visitors`, nil},
		{&sum.UniqueVisitors, `SELECT COUNT(DISTINCT hashed_ip) FROM visitors`, nil},
		{&sum.VisitorsToday, `SELECT COUNT(*) FROM visitors WHERE ts >= ?`, []any{startOfDay}},
		{&sum.VisitorsThisWeek, `SELECT COUNT(*) FROM visitors WHERE ts >= ?`, []any{weekAgo}},
	}
	for _, c := range counters {
		if err := s.db.QueryRowContext(ctx, c.query, c.args...).Scan(c.dst); err != nil {
			return Summary{}, fmt.Errorf("metrics: summary: %w", err)
		}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT path, COUNT(*) AS n FROM visitors
		GROUP BY path ORDER BY n DESC, path ASC LIMIT 10`)
	if err != nil {
		return Summary{}, fmt.Errorf("metrics: top paths: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var pc PathCount
		if err := rows.Scan(&pc.Path, &pc.Count); err != nil {
			return Summary{}, fmt.Errorf("metrics: top paths: %w", err)
		}
		sum.TopPaths = append(sum.TopPaths, pc)
	}
	if err := rows.Err(); err != nil {
		return Summary{}, fmt.Errorf("metrics: top paths: %w", err)
	}
	rows.Close()

	drows, err := s.db.QueryContext(ctx, `SELECT kind, COUNT(*) FROM deliveries GROUP BY kind`)
	if err != nil {
		return Summary{}, fmt.Errorf("metrics: deliveries: %w", err)
	}
	defer drows.Close()
	sum.Deliveries = make(map[string]int64)
	for drows.Next() {
		var kind string
		var n int64
		if err := drows.Scan(&kind, &n); err != nil {
			return Summary{}, fmt.Errorf("metrics: deliveries: %w", err)
		}
		sum.Deliveries[kind] = n
	}
	return sum, drows.Err()
}

// Cleanup removes rows older than the given age and reports how many went.
func (s *Store) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := s.now().Add(-olderThan).Unix()
	var total int64
	for _, table := range []string{"visitors", "deliveries"} {
		res, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE ts < ?`, cutoff)
		if err != nil {
			return total, fmt.Errorf("metrics: cleanup %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("metrics: salt: %w", err)
	}
	return hex.EncodeToString(b), nil
}
