// Package limitless reads lifelogs from the Limitless developer API.
package limitless

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"lifelog-migrate/pkg/domain"
	"lifelog-migrate/pkg/httpclient"
	"lifelog-migrate/pkg/ratelimit"
)

const (
	// DefaultBaseURL is the public Limitless API endpoint.
	DefaultBaseURL = "https://api.limitless.ai"

	// DefaultTimezone is used for date-bounded queries when none is given.
	DefaultTimezone = "America/Los_Angeles"

	// PageSize is the number of lifelogs requested per page.
	PageSize = 10

	// PageDelay is the pause between consecutive page requests.
	PageDelay = 300 * time.Millisecond
)

var ErrEmptyAPIKey = errors.New("limitless API key is empty")

// Query selects one page of lifelogs.
type Query struct {
	// Date restricts results to one calendar day (YYYY-MM-DD). Empty means
	// most recent first across all days.
	Date            string
	Timezone        string
	Limit           int
	Cursor          string
	IncludeContents bool
}

// Page is one page of results.
type Page struct {
	Lifelogs   []domain.Lifelog
	NextCursor string
}

type listResponse struct {
	Data struct {
		Lifelogs []domain.Lifelog `json:"lifelogs"`
	} `json:"data"`
	Meta struct {
		Lifelogs struct {
			NextCursor *string `json:"nextCursor"`
			Count      int     `json:"count"`
		} `json:"lifelogs"`
	} `json:"meta"`
}

// Client is a Limitless API client.
type Client struct {
	http    *httpclient.HTTPClient
	baseURL string
	pacer   *ratelimit.Limiter
	logger  *slog.Logger
}

// Config wires the client.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	// PageDelay overrides the pause between pages; zero uses PageDelay.
	PageDelay time.Duration
	Logger    *slog.Logger
}

// NewClient creates a Limitless client.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrEmptyAPIKey
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	delay := cfg.PageDelay
	if delay == 0 {
		delay = PageDelay
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		http:    httpclient.NewClient(httpclient.APIKeyHeader, cfg.APIKey, cfg.Timeout),
		baseURL: baseURL,
		pacer:   ratelimit.New(delay),
		logger:  logger.With("component", "limitless"),
	}, nil
}

// List fetches a single page of lifelogs.
func (c *Client) List(ctx context.Context, q Query) (*Page, error) {
	var resp listResponse
	if err := c.http.GetJSON(ctx, c.listURL(q), &resp); err != nil {
		return nil, fmt.Errorf("list lifelogs: %w", err)
	}

	page := &Page{Lifelogs: resp.Data.Lifelogs}
	if resp.Meta.Lifelogs.NextCursor != nil {
		page.NextCursor = *resp.Meta.Lifelogs.NextCursor
	}
	return page, nil
}

// FetchAll follows cursors until every lifelog for date has been read.
//
// If a page fails, paging stops and the lifelogs gathered so far are
// returned together with the error.
func (c *Client) FetchAll(ctx context.Context, date, timezone string) ([]domain.Lifelog, error) {
	var (
		all    []domain.Lifelog
		cursor string
	)

	for page := 1; ; page++ {
		if err := c.pacer.Acquire(ctx); err != nil {
			return all, err
		}

		result, err := c.List(ctx, Query{
			Date:            date,
			Timezone:        timezone,
			Limit:           PageSize,
			Cursor:          cursor,
			IncludeContents: true,
		})
		if err != nil {
			return all, fmt.Errorf("fetch page %d for %q: %w", page, date, err)
		}

		all = append(all, result.Lifelogs...)
		c.logger.Debug("fetched page", "date", date, "page", page, "lifelogs", len(result.Lifelogs))

		if result.NextCursor == "" {
			return all, nil
		}
		cursor = result.NextCursor
	}
}

// Recent returns the limit most recent lifelogs with contents.
func (c *Client) Recent(ctx context.Context, limit int, timezone string) ([]domain.Lifelog, error) {
	page, err := c.List(ctx, Query{
		Timezone:        timezone,
		Limit:           limit,
		IncludeContents: true,
	})
	if err != nil {
		return nil, err
	}
	return page.Lifelogs, nil
}

// Latest returns the most recent lifelog without contents, or nil when the
// account has no lifelogs at all.
func (c *Client) Latest(ctx context.Context, timezone string) (*domain.Lifelog, error) {
	page, err := c.List(ctx, Query{Timezone: timezone, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(page.Lifelogs) == 0 {
		return nil, nil
	}
	return &page.Lifelogs[0], nil
}

// HasData reports whether at least one lifelog exists on date.
func (c *Client) HasData(ctx context.Context, date, timezone string) (bool, error) {
	page, err := c.List(ctx, Query{Date: date, Timezone: timezone, Limit: 1})
	if err != nil {
		return false, err
	}
	return len(page.Lifelogs) > 0, nil
}

func (c *Client) listURL(q Query) string {
	timezone := q.Timezone
	if timezone == "" {
		timezone = DefaultTimezone
	}
	limit := q.Limit
	if limit <= 0 {
		limit = PageSize
	}

	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("timezone", timezone)
	params.Set("includeContents", strconv.FormatBool(q.IncludeContents))
	if q.Date != "" {
		params.Set("date", q.Date)
	}
	if q.Cursor != "" {
		params.Set("cursor", q.Cursor)
	}
	return c.baseURL + "/v1/lifelogs?" + params.Encode()
}
