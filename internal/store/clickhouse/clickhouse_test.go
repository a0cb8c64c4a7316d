package clickhouse

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkhub/internal/events"
)

type fakeRows struct {
	rows [][]any
	pos  int
}

func (r *fakeRows) Next() bool {
	r.pos++
	return r.pos <= len(r.rows)
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.pos-1]
	if len(row) != len(dest) {
		return errors.New("column count mismatch")
	}
	for i, v := range row {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case **string:
			if v == nil {
				*d = nil
			} else {
				s := v.(string)
				*d = &s
			}
		case *time.Time:
			*d = v.(time.Time)
		default:
			return errors.New("unexpected scan target")
		}
	}
	return nil
}

func (r *fakeRows) Err() error   { return nil }
func (r *fakeRows) Close() error { return nil }

type fakeConn struct {
	execQuery string
	execArgs  []any
	query     string
	queryArgs []any
	rows      *fakeRows
	err       error
}

func (c *fakeConn) Exec(_ context.Context, query string, args ...any) error {
	c.execQuery, c.execArgs = query, args
	return c.err
}

func (c *fakeConn) Query(_ context.Context, query string, args ...any) (Rows, error) {
	c.query, c.queryArgs = query, args
	if c.err != nil {
		return nil, c.err
	}
	if c.rows == nil {
		return &fakeRows{}, nil
	}
	return c.rows, nil
}

func (c *fakeConn) Ping(context.Context) error { return c.err }
func (c *fakeConn) Close() error               { return nil }

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestInsert(t *testing.T) {
	conn := &fakeConn{}
	store := New(conn, discard())
	ts := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	err := store.Insert(context.Background(), &events.Event{
		Name:      events.EventLinkClick,
		Data:      events.Data{"link_title": "Shop"},
		Timestamp: ts,
		Path:      "/",
	})
	require.NoError(t, err)

	assert.Equal(t,
		"INSERT INTO analytics (event_id, event_name, event_data, timestamp, url, path, referrer, user_agent, screen_resolution, viewport_size, language) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		conn.execQuery)
	require.Len(t, conn.execArgs, 11)
	assert.IsType(t, uuid.UUID{}, conn.execArgs[0])
	assert.Equal(t, "link_click", conn.execArgs[1])
	assert.Equal(t, `{"link_title":"Shop"}`, conn.execArgs[2])
	assert.Equal(t, ts, conn.execArgs[3])
}

func TestInsertError(t *testing.T) {
	store := New(&fakeConn{err: errors.New("read only")}, discard())
	err := store.Insert(context.Background(), &events.Event{Name: events.EventPageView})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read only")
}

func TestSelectQuery(t *testing.T) {
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		r     events.DateRange
		where string
		args  int
	}{
		{"unbounded", events.DateRange{}, "", 0},
		{"start only", events.DateRange{Start: &start}, " WHERE timestamp >= ?", 1},
		{"end only", events.DateRange{End: &end}, " WHERE timestamp <= ?", 1},
		{"both", events.DateRange{Start: &start, End: &end}, " WHERE timestamp >= ? AND timestamp <= ?", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := selectQuery(tt.r)
			assert.Equal(t,
				"SELECT event_name, event_data, timestamp, url, path, referrer, user_agent, screen_resolution, viewport_size, language FROM analytics"+
					tt.where+" ORDER BY timestamp DESC",
				query)
			assert.Len(t, args, tt.args)
		})
	}
}

func TestQuery(t *testing.T) {
	ts := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	conn := &fakeConn{rows: &fakeRows{rows: [][]any{
		{"page_view", `{"title":"Home"}`, ts, "https://links.example.com/", "/", "https://t.co/", "ua", "1x1", "1x1", "ja"},
		{"modal_open", `not json`, ts.Add(-time.Minute), "https://links.example.com/", "/", nil, "ua", "1x1", "1x1", "ja"},
	}}}
	store := New(conn, discard())
	end := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)

	got, err := store.Query(context.Background(), events.DateRange{End: &end})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, []any{time.Date(2024, 6, 15, 23, 59, 59, int(999*time.Millisecond), time.UTC)}, conn.queryArgs)
	assert.Equal(t, events.EventPageView, got[0].Name)
	assert.Equal(t, "Home", got[0].Data.String(events.KeyTitle, ""))
	require.NotNil(t, got[0].Referrer)
	assert.Nil(t, got[1].Referrer)
	assert.Empty(t, got[1].Data)
}
