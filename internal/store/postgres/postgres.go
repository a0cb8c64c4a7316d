// Package postgres keeps the event log in a PostgreSQL table.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/lib/pq"

	"linkhub/internal/events"
)

const schema = `CREATE TABLE IF NOT EXISTS %s (
	id BIGSERIAL PRIMARY KEY,
	event_name TEXT NOT NULL,
	event_data JSONB NOT NULL DEFAULT '{}',
	timestamp TIMESTAMPTZ NOT NULL,
	url TEXT,
	path TEXT,
	referrer TEXT,
	user_agent TEXT,
	screen_resolution TEXT,
	viewport_size TEXT,
	language TEXT
)`

type Store struct {
	db     *sql.DB
	logger *slog.Logger
	table  string
}

var _ events.Store = (*Store)(nil)

// New wraps an open database handle.
func New(db *sql.DB, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger, table: pq.QuoteIdentifier(events.TableName)}
}

// Open connects to dsn, using password when the URL carries none.
func Open(dsn, password string, logger *slog.Logger) (*Store, error) {
	dsn, err := withPassword(dsn, password)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return New(db, logger), nil
}

func withPassword(dsn, password string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid postgres url: %w", err)
	}
	if u.User == nil {
		u.User = url.UserPassword("postgres", password)
	} else if _, set := u.User.Password(); !set {
		u.User = url.UserPassword(u.User.Username(), password)
	}
	if u.Scheme == "postgresql" {
		u.Scheme = "postgres"
	}
	return u.String(), nil
}

// Migrate creates the analytics table when missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(schema, s.table)); err != nil {
		return fmt.Errorf("failed to create analytics table: %w", err)
	}
	return nil
}

func (s *Store) Insert(ctx context.Context, e *events.Event) error {
	placeholders := make([]string, len(events.Columns))
	for i := range placeholders {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id",
		s.table, strings.Join(events.Columns, ", "), strings.Join(placeholders, ", "))

	data, err := e.Data.Value()
	if err != nil {
		return fmt.Errorf("failed to encode event data: %w", err)
	}

	var id int64
	err = s.db.QueryRowContext(ctx, query,
		string(e.Name), data, e.Timestamp.UTC(), e.URL, e.Path, e.Referrer,
		e.UserAgent, e.ScreenResolution, e.ViewportSize, e.Language,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", describe(err))
	}
	e.ID = uint(id)
	return nil
}

func (s *Store) Query(ctx context.Context, r events.DateRange) ([]events.Event, error) {
	r = r.Normalized()

	var (
		where []string
		args  []any
	)
	if r.Start != nil {
		args = append(args, r.Start.UTC())
		where = append(where, fmt.Sprintf("timestamp >= $%d", len(args)))
	}
	if r.End != nil {
		args = append(args, r.End.UTC())
		where = append(where, fmt.Sprintf("timestamp <= $%d", len(args)))
	}

	query := fmt.Sprintf("SELECT id, %s FROM %s", strings.Join(events.Columns, ", "), s.table)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY timestamp DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", describe(err))
	}
	defer rows.Close()

	var out []events.Event
	for rows.Next() {
		var (
			e        events.Event
			id       int64
			name     string
			referrer sql.NullString
			fields   [6]sql.NullString
		)
		if err := rows.Scan(&id, &name, &e.Data, &e.Timestamp,
			&fields[0], &fields[1], &referrer, &fields[2], &fields[3], &fields[4], &fields[5]); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.ID = uint(id)
		e.Name = events.EventName(name)
		e.Timestamp = e.Timestamp.UTC()
		e.URL, e.Path = fields[0].String, fields[1].String
		e.UserAgent, e.ScreenResolution = fields[2].String, fields[3].String
		e.ViewportSize, e.Language = fields[4].String, fields[5].String
		if referrer.Valid {
			ref := referrer.String
			e.Referrer = &ref
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return describe(s.db.PingContext(ctx))
}

func (s *Store) Close() error {
	return s.db.Close()
}

// describe adds the SQLSTATE name to server errors.
func describe(err error) error {
	if pqErr, ok := err.(*pq.Error); ok {
		return fmt.Errorf("%s (%s): %w", pqErr.Code.Name(), pqErr.Code, err)
	}
	return err
}
