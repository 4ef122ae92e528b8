// Package store keeps the activity history in SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sweeney/baby-doll/internal/logic"
)

// recordTimeout bounds a single insert from the event loop.
const recordTimeout = 5 * time.Second

// Store is an append-only event history.
type Store struct {
	db      *sql.DB
	session string
}

// Entry is one stored event.
type Entry struct {
	ID      int64
	Session string
	Event   logic.Event
}

// TendStat summarizes time to tend for one need.
type TendStat struct {
	Need  logic.NeedType
	Count int
	Avg   time.Duration
	Max   time.Duration
}

// Open opens (creating if needed) the database at path and applies
// migrations. Events recorded through this Store are tagged with session.
func Open(ctx context.Context, path, session string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := ApplyMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, session: session}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Record inserts the event. It satisfies engine.Sink.
func (s *Store) Record(e logic.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	return s.Insert(ctx, s.session, e)
}

// Insert stores an event under the given session.
func (s *Store) Insert(ctx context.Context, session string, e logic.Event) error {
	var tend, hold any
	if e.HasTimeToTend() {
		tend = e.TimeToTend.Milliseconds()
	}
	if e.HasHoldDuration() {
		hold = e.HoldDuration.Milliseconds()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO events(session, event_time, kind, state, need, time_to_tend_ms, channel, hold_ms, message)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`, session, ts(e.Timestamp), string(e.Kind), string(e.State), string(e.Need), tend, string(e.Channel), hold, e.Message)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// Recent returns up to n most recent events, newest first. An empty session
// covers every session in the database.
func (s *Store) Recent(ctx context.Context, session string, n int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, session, event_time, kind, state, need, time_to_tend_ms, channel, hold_ms, message
FROM events
WHERE (? = '' OR session = ?)
ORDER BY id DESC
LIMIT ?
`, session, session, n)
	if err != nil {
		return nil, fmt.Errorf("query recent events: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			en         Entry
			at         string
			kind       string
			state      string
			need       string
			channel    string
			tend, hold sql.NullInt64
		)
		if err := rows.Scan(&en.ID, &en.Session, &at, &kind, &state, &need, &tend, &channel, &hold, &en.Event.Message); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		t, err := parseTS(at)
		if err != nil {
			return nil, fmt.Errorf("parse event time %q: %w", at, err)
		}
		en.Event.Timestamp = t
		en.Event.Kind = logic.EventKind(kind)
		en.Event.State = logic.BabyState(state)
		en.Event.Need = logic.NeedType(need)
		en.Event.Channel = logic.Channel(channel)
		if tend.Valid {
			en.Event.TimeToTend = time.Duration(tend.Int64) * time.Millisecond
		}
		if hold.Valid {
			en.Event.HoldDuration = time.Duration(hold.Int64) * time.Millisecond
		}
		out = append(out, en)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}

// TendStats aggregates NEED_MET events per need. An empty session covers
// every session in the database.
func (s *Store) TendStats(ctx context.Context, session string) ([]TendStat, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT need, COUNT(*), CAST(AVG(time_to_tend_ms) AS INTEGER), MAX(time_to_tend_ms)
FROM events
WHERE kind = ? AND (? = '' OR session = ?)
GROUP BY need
ORDER BY need
`, string(logic.EventNeedMet), session, session)
	if err != nil {
		return nil, fmt.Errorf("query tend stats: %w", err)
	}
	defer rows.Close()

	var out []TendStat
	for rows.Next() {
		var (
			need     string
			count    int
			avg, peak sql.NullInt64
		)
		if err := rows.Scan(&need, &count, &avg, &peak); err != nil {
			return nil, fmt.Errorf("scan tend stat: %w", err)
		}
		out = append(out, TendStat{
			Need:  logic.NeedType(need),
			Count: count,
			Avg:   time.Duration(avg.Int64) * time.Millisecond,
			Max:   time.Duration(peak.Int64) * time.Millisecond,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tend stats: %w", err)
	}
	return out, nil
}

func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTS(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
