// Package recordstore is a client for the hosted record service that backs the dashboard.
// The service exposes generic collections queried with equality filters and paginated results.
package recordstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultTimeout = 10 * time.Second
	defaultPerPage = 30
	maxPerPage     = 500
)

// ErrNotFound is returned by First when no record matches the filter.
var ErrNotFound = errors.New("recordstore: record not found")

// APIError is returned for non-2xx responses from the record service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("recordstore: request failed status=%d message=%s", e.StatusCode, e.Message)
}

// Record is a single row of a collection. Field values are kept as decoded JSON.
type Record map[string]any

// ID returns the record id, or "" if missing.
func (r Record) ID() string {
	return r.String("id")
}

// String returns the string value of field, or "" if missing or not a string.
func (r Record) String(field string) string {
	v, _ := r[field].(string)
	return v
}

// Float returns the numeric value of field, or 0 if missing or not a number.
func (r Record) Float(field string) float64 {
	switch v := r[field].(type) {
	case float64:
		return v
	case json.Number:
		f, _ := v.Float64()
		return f
	default:
		return 0
	}
}

// Time parses field as a record-service timestamp. Returns the zero time if missing or invalid.
func (r Record) Time(field string) time.Time {
	s := r.String(field)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{"2006-01-02 15:04:05.000Z", time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// ListOptions controls a List request. Zero values use the service defaults.
type ListOptions struct {
	Filter  Filter
	Page    int
	PerPage int
	Sort    string
}

// ListResult is one page of records.
type ListResult struct {
	Page       int      `json:"page"`
	PerPage    int      `json:"perPage"`
	TotalItems int      `json:"totalItems"`
	TotalPages int      `json:"totalPages"`
	Items      []Record `json:"items"`
}

// Client queries collections on the record service.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// NewClient returns a client for the record service at baseURL. token may be empty for public collections.
func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Token:      token,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

// List returns one page of records from collection matching opts.Filter.
func (c *Client) List(ctx context.Context, collection string, opts ListOptions) (*ListResult, error) {
	if collection == "" {
		return nil, errors.New("recordstore: collection is required")
	}
	q := url.Values{}
	if f := opts.Filter.String(); f != "" {
		q.Set("filter", f)
	}
	if opts.Page > 0 {
		q.Set("page", strconv.Itoa(opts.Page))
	}
	perPage := opts.PerPage
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	q.Set("perPage", strconv.Itoa(perPage))
	if opts.Sort != "" {
		q.Set("sort", opts.Sort)
	}
	endpoint := c.collectionURL(collection) + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	var out ListResult
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// First returns the first record matching filter, or ErrNotFound.
func (c *Client) First(ctx context.Context, collection string, filter Filter) (Record, error) {
	res, err := c.List(ctx, collection, ListOptions{Filter: filter, Page: 1, PerPage: 1})
	if err != nil {
		return nil, err
	}
	if len(res.Items) == 0 {
		return nil, ErrNotFound
	}
	return res.Items[0], nil
}

// ListAll follows pagination and returns every record matching filter. limit caps the number
// of records returned; limit <= 0 means no cap.
func (c *Client) ListAll(ctx context.Context, collection string, filter Filter, limit int) ([]Record, error) {
	var out []Record
	for page := 1; ; page++ {
		res, err := c.List(ctx, collection, ListOptions{Filter: filter, Page: page, PerPage: maxPerPage})
		if err != nil {
			return nil, err
		}
		out = append(out, res.Items...)
		if limit > 0 && len(out) >= limit {
			return out[:limit], nil
		}
		if len(res.Items) == 0 || page >= res.TotalPages {
			return out, nil
		}
	}
}

// Create inserts a record into collection and returns the stored record.
func (c *Client) Create(ctx context.Context, collection string, fields map[string]any) (Record, error) {
	return c.send(ctx, http.MethodPost, c.collectionURL(collection), fields)
}

// Update patches the record with id in collection and returns the stored record.
func (c *Client) Update(ctx context.Context, collection, id string, fields map[string]any) (Record, error) {
	return c.send(ctx, http.MethodPatch, c.collectionURL(collection)+"/"+url.PathEscape(id), fields)
}

// Delete removes the record with id from collection.
func (c *Client) Delete(ctx context.Context, collection, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.collectionURL(collection)+"/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

func (c *Client) send(ctx context.Context, method, endpoint string, fields map[string]any) (Record, error) {
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	var out Record
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) collectionURL(collection string) string {
	return c.BaseURL + "/api/collections/" + url.PathEscape(collection) + "/records"
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", c.Token)
	}
	hc := c.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(b)}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func errorMessage(body []byte) string {
	var e struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &e) == nil && e.Message != "" {
		return e.Message
	}
	return strings.TrimSpace(string(body))
}
