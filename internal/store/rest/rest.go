// Package rest reads and writes the event log through a PostgREST
// compatible HTTP API, such as the one Supabase exposes for a project.
package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/supabase-community/postgrest-go"

	"linkhub/internal/events"
)

// PageSize is the number of rows requested per page when reading.
const PageSize = 1000

type Client struct {
	baseURL   string
	key       string
	timeout   time.Duration
	transport http.RoundTripper
	logger    *slog.Logger
	pageSize  int
}

var _ events.Store = (*Client)(nil)

// New returns a client for the project at baseURL authenticating with key.
func New(baseURL, key string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		key:       key,
		timeout:   timeout,
		transport: http.DefaultTransport,
		logger:    logger,
		pageSize:  PageSize,
	}
}

// table returns a query builder on the analytics table whose requests are
// bound to ctx.
func (c *Client) table(ctx context.Context) (*postgrest.QueryBuilder, error) {
	pc := postgrest.NewClient(c.baseURL+"/rest/v1", "", nil)
	if pc.ClientError != nil {
		return nil, fmt.Errorf("invalid store URL: %w", pc.ClientError)
	}
	pc.SetApiKey(c.key).SetAuthToken(c.key)
	pc.Transport.Parent = boundTransport{ctx: ctx, base: c.transport}
	return pc.From(events.TableName), nil
}

// boundTransport carries the caller's context into the postgrest client and
// reports error statuses as *APIError.
type boundTransport struct {
	ctx  context.Context
	base http.RoundTripper
}

func (t boundTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req.WithContext(t.ctx))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		return nil, readError(resp)
	}
	return resp, nil
}

// row is the wire shape. The id is only read, as raw JSON, since projects
// may key the table by integer or uuid.
type row struct {
	ID               json.RawMessage  `json:"id,omitempty"`
	Name             events.EventName `json:"event_name"`
	Data             events.Data      `json:"event_data"`
	Timestamp        time.Time        `json:"timestamp"`
	URL              string           `json:"url"`
	Path             string           `json:"path"`
	Referrer         *string          `json:"referrer"`
	UserAgent        string           `json:"user_agent"`
	ScreenResolution string           `json:"screen_resolution"`
	ViewportSize     string           `json:"viewport_size"`
	Language         string           `json:"language"`
}

func toRow(e *events.Event) row {
	data := e.Data
	if data == nil {
		data = events.Data{}
	}
	return row{
		Name:             e.Name,
		Data:             data,
		Timestamp:        e.Timestamp.UTC(),
		URL:              e.URL,
		Path:             e.Path,
		Referrer:         e.Referrer,
		UserAgent:        e.UserAgent,
		ScreenResolution: e.ScreenResolution,
		ViewportSize:     e.ViewportSize,
		Language:         e.Language,
	}
}

func (r row) event() events.Event {
	return events.Event{
		Name:             r.Name,
		Data:             r.Data,
		Timestamp:        r.Timestamp.UTC(),
		URL:              r.URL,
		Path:             r.Path,
		Referrer:         r.Referrer,
		UserAgent:        r.UserAgent,
		ScreenResolution: r.ScreenResolution,
		ViewportSize:     r.ViewportSize,
		Language:         r.Language,
	}
}

// idValue returns the row id as a filter value, or "" when absent.
func (r row) idValue() string {
	if len(r.ID) == 0 || string(r.ID) == "null" {
		return ""
	}
	var id string
	if err := json.Unmarshal(r.ID, &id); err == nil {
		return id
	}
	return string(r.ID)
}

// Insert posts one row. It is not retried.
func (c *Client) Insert(ctx context.Context, e *events.Event) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	table, err := c.table(ctx)
	if err != nil {
		return err
	}
	if _, _, err := table.Insert(toRow(e), false, "", "minimal", "").Execute(); err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// Query reads every row in the range, newest first. Pages are keyed on the
// last row seen so rows written while paging neither repeat nor shift.
func (c *Client) Query(ctx context.Context, r events.DateRange) ([]events.Event, error) {
	r = r.Normalized()
	out := []events.Event{}
	var after *row
	for {
		page, err := c.queryPage(ctx, r, after)
		if err != nil {
			return nil, err
		}
		for _, row := range page {
			out = append(out, row.event())
		}
		if len(page) < c.pageSize {
			break
		}
		after = &page[len(page)-1]
	}
	return out, nil
}

// filters builds the PostgREST conditions for one page. Values are quoted
// since timestamps contain reserved characters.
func filters(r events.DateRange, after *row) []string {
	var conds []string
	if r.Start != nil {
		conds = append(conds, "timestamp.gte."+quote(formatTime(*r.Start)))
	}
	if r.End != nil {
		conds = append(conds, "timestamp.lte."+quote(formatTime(*r.End)))
	}
	if after != nil {
		ts := quote(formatTime(after.Timestamp))
		if id := after.idValue(); id != "" {
			conds = append(conds, fmt.Sprintf("or(timestamp.lt.%s,and(timestamp.eq.%s,id.lt.%s))", ts, ts, quote(id)))
		} else {
			conds = append(conds, "timestamp.lt."+ts)
		}
	}
	return conds
}

func (c *Client) queryPage(ctx context.Context, r events.DateRange, after *row) ([]row, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	table, err := c.table(ctx)
	if err != nil {
		return nil, err
	}
	q := table.Select("*", "", false)
	if conds := filters(r, after); len(conds) > 0 {
		q = q.And(strings.Join(conds, ","), "")
	}
	q = q.Order("timestamp", &postgrest.OrderOpts{Ascending: false}).
		Order("id", &postgrest.OrderOpts{Ascending: false}).
		Limit(c.pageSize, "")

	var rows []row
	if _, err := q.ExecuteTo(&rows); err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	return rows, nil
}

// Ping asks for zero rows, which checks the URL, the key and the table.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	table, err := c.table(ctx)
	if err != nil {
		return err
	}
	if _, _, err := table.Select("id", "", false).Limit(0, "").Execute(); err != nil {
		return fmt.Errorf("event store unreachable: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func quote(v string) string {
	return `"` + strings.ReplaceAll(v, `"`, `\"`) + `"`
}

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("status %d: %s (%s)", e.Status, e.Message, e.Code)
	}
	return fmt.Sprintf("status %d: %s", e.Status, e.Message)
}

func readError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
	}
	return apiErr
}
