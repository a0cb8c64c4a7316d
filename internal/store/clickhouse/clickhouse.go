// Package clickhouse keeps the event log in a ClickHouse MergeTree table.
package clickhouse

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/google/uuid"

	"linkhub/internal/events"
)

const schema = `CREATE TABLE IF NOT EXISTS analytics (
	event_id UUID,
	event_name LowCardinality(String),
	event_data String,
	timestamp DateTime64(3, 'UTC'),
	url String,
	path String,
	referrer Nullable(String),
	user_agent String,
	screen_resolution String,
	viewport_size String,
	language LowCardinality(String)
) ENGINE = MergeTree
ORDER BY (timestamp, event_name)`

// Rows is the part of a result set the store reads.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// Conn is the part of a ClickHouse connection the store uses.
type Conn interface {
	Exec(ctx context.Context, query string, args ...any) error
	Query(ctx context.Context, query string, args ...any) (Rows, error)
	Ping(ctx context.Context) error
	Close() error
}

type nativeConn struct {
	driver.Conn
}

func (c nativeConn) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	return c.Conn.Query(ctx, query, args...)
}

type Store struct {
	conn   Conn
	logger *slog.Logger
}

var _ events.Store = (*Store)(nil)

func New(conn Conn, logger *slog.Logger) *Store {
	return &Store{conn: conn, logger: logger}
}

// Open parses a clickhouse:// DSN and connects over the native protocol.
// password is used when the DSN has none.
func Open(dsn, password string, logger *slog.Logger) (*Store, error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid clickhouse url: %w", err)
	}
	if opts.Auth.Password == "" {
		opts.Auth.Password = password
	}
	opts.ClientInfo = clickhouse.ClientInfo{
		Products: []struct {
			Name    string
			Version string
		}{{Name: "linkhub", Version: "1.0.0"}},
	}
	opts.Compression = &clickhouse.Compression{Method: clickhouse.CompressionLZ4}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 5 * time.Second
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}
	return New(nativeConn{conn}, logger), nil
}

func (s *Store) Migrate(ctx context.Context) error {
	if err := s.conn.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create analytics table: %w", err)
	}
	return nil
}

func (s *Store) Insert(ctx context.Context, e *events.Event) error {
	data, err := e.Data.Value()
	if err != nil {
		return fmt.Errorf("failed to encode event data: %w", err)
	}
	query := fmt.Sprintf("INSERT INTO %s (event_id, %s) VALUES (?%s)",
		events.TableName, strings.Join(events.Columns, ", "),
		strings.Repeat(", ?", len(events.Columns)))

	err = s.conn.Exec(ctx, query,
		uuid.New(), string(e.Name), data, e.Timestamp.UTC(), e.URL, e.Path, e.Referrer,
		e.UserAgent, e.ScreenResolution, e.ViewportSize, e.Language)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// selectQuery builds the range query. Bounds are passed as parameters.
func selectQuery(r events.DateRange) (string, []any) {
	var (
		where []string
		args  []any
	)
	if r.Start != nil {
		where = append(where, "timestamp >= ?")
		args = append(args, r.Start.UTC())
	}
	if r.End != nil {
		where = append(where, "timestamp <= ?")
		args = append(args, r.End.UTC())
	}
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(events.Columns, ", "), events.TableName)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	return query + " ORDER BY timestamp DESC", args
}

func (s *Store) Query(ctx context.Context, r events.DateRange) ([]events.Event, error) {
	query, args := selectQuery(r.Normalized())
	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var out []events.Event
	for rows.Next() {
		var (
			e    events.Event
			name string
			data string
		)
		if err := rows.Scan(&name, &data, &e.Timestamp, &e.URL, &e.Path, &e.Referrer,
			&e.UserAgent, &e.ScreenResolution, &e.ViewportSize, &e.Language); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if err := e.Data.Scan(data); err != nil {
			s.logger.Warn("Skipping event data that is not JSON", slog.String("event_name", name), slog.Any("error", err))
		}
		e.Name = events.EventName(name)
		e.Timestamp = e.Timestamp.UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

func (s *Store) Close() error {
	return s.conn.Close()
}
