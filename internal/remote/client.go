// ABOUTME: HTTP client for a Supabase/PostgREST REST endpoint
// ABOUTME: Maps collection queries to GET /rest/v1/<collection> with eq filters

package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Ensure Client implements Source.
var _ Source = (*Client)(nil)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 4096

// Client queries collections over the PostgREST API.
type Client struct {
	baseURL *url.URL
	apiKey  string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a Client for the project at rawURL.
func NewClient(rawURL, apiKey string, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	if rawURL == "" {
		return nil, errors.New("remote url is required")
	}
	if apiKey == "" {
		return nil, errors.New("remote api key is required")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing remote url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("remote url must use http or https scheme")
	}

	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL: u,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With("component", "remote"),
	}, nil
}

// collectionURL builds /rest/v1/<collection>?select=*&col=eq.value...
func (c *Client) collectionURL(collection string, filters Filters, limit int) string {
	u := *c.baseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + "/rest/v1/" + url.PathEscape(collection)

	q := url.Values{}
	q.Set("select", "*")
	for _, k := range slices.Sorted(maps.Keys(filters)) {
		q.Set(k, "eq."+filters[k])
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *Client) newRequest(ctx context.Context, method, target string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) fetch(ctx context.Context, collection string, filters Filters, limit int) ([]json.RawMessage, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.collectionURL(collection, filters, limit))
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", collection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, responseError(collection, resp)
	}

	var rows []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decoding %s rows: %w", collection, err)
	}
	if rows == nil {
		rows = []json.RawMessage{}
	}

	c.logger.Debug("remote query", "collection", collection, "filters", len(filters),
		"rows", len(rows), "duration", time.Since(start))
	return rows, nil
}

func responseError(collection string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var pgErr struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	}
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &pgErr) == nil && pgErr.Message != "" {
		msg = pgErr.Message
		if pgErr.Code != "" {
			msg = pgErr.Code + ": " + msg
		}
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &Error{Collection: collection, StatusCode: resp.StatusCode, Message: msg}
}

// QueryAll fetches every row of collection.
func (c *Client) QueryAll(ctx context.Context, collection string) ([]json.RawMessage, error) {
	return c.fetch(ctx, collection, nil, 0)
}

// QueryWhere fetches the rows of collection matching filters.
func (c *Client) QueryWhere(ctx context.Context, collection string, filters Filters) ([]json.RawMessage, error) {
	return c.fetch(ctx, collection, filters, 0)
}

// QuerySingle fetches the first row matching filters, or ErrNotFound.
func (c *Client) QuerySingle(ctx context.Context, collection string, filters Filters) (json.RawMessage, error) {
	rows, err := c.fetch(ctx, collection, filters, 1)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return rows[0], nil
}

// Count returns the exact number of rows in collection.
func (c *Client) Count(ctx context.Context, collection string) (int, error) {
	req, err := c.newRequest(ctx, http.MethodHead, c.collectionURL(collection, nil, 0))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Prefer", "count=exact")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("counting %s: %w", collection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return 0, responseError(collection, resp)
	}
	return parseContentRange(resp.Header.Get("Content-Range"))
}

// parseContentRange reads the total from "0-9/42" or "*/0".
func parseContentRange(v string) (int, error) {
	_, total, ok := strings.Cut(v, "/")
	if !ok || total == "*" {
		return 0, fmt.Errorf("no total in content range %q", v)
	}
	n, err := strconv.Atoi(total)
	if err != nil {
		return 0, fmt.Errorf("parsing content range %q: %w", v, err)
	}
	return n, nil
}
