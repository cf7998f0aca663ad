// Package omi writes conversations to the Omi developer API.
package omi

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"lifelog-migrate/pkg/domain"
	"lifelog-migrate/pkg/httpclient"
)

// DefaultBaseURL is the public Omi developer API endpoint.
const DefaultBaseURL = "https://api.omi.me/v1/dev"

var ErrEmptyAPIKey = errors.New("omi API key is empty")

// CreatedConversation is the subset of the creation response we keep.
type CreatedConversation struct {
	ID     string `json:"id"`
	Status string `json:"status,omitempty"`
}

// ConversationSummary is one entry from the conversation listing.
type ConversationSummary struct {
	ID         string `json:"id"`
	CreatedAt  string `json:"created_at,omitempty"`
	StartedAt  string `json:"started_at,omitempty"`
	FinishedAt string `json:"finished_at,omitempty"`
	Source     string `json:"source,omitempty"`
	Structured struct {
		Title string `json:"title,omitempty"`
	} `json:"structured"`
}

// Config wires the client.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Client is an Omi API client. It performs no rate limiting of its own;
// callers share one ratelimit.Limiter across all uploads.
type Client struct {
	http    *httpclient.HTTPClient
	baseURL string
}

// NewClient creates an Omi client.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrEmptyAPIKey
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		http:    httpclient.NewClient(httpclient.BearerToken, cfg.APIKey, cfg.Timeout),
		baseURL: baseURL,
	}, nil
}

// CreateConversation uploads one conversation via the from-segments endpoint.
// Non-2xx responses are returned as *httpclient.StatusError.
func (c *Client) CreateConversation(ctx context.Context, conv domain.Conversation) (*CreatedConversation, error) {
	var created CreatedConversation
	if err := c.http.PostJSON(ctx, c.baseURL+"/user/conversations/from-segments", conv, &created); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return &created, nil
}

// ListConversations returns up to limit existing conversations.
func (c *Client) ListConversations(ctx context.Context, limit int) ([]ConversationSummary, error) {
	if limit <= 0 {
		limit = 100
	}
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))

	var out []ConversationSummary
	if err := c.http.GetJSON(ctx, c.baseURL+"/user/conversations?"+params.Encode(), &out); err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return out, nil
}
