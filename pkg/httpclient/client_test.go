package httpclient

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupHTTPMock(t *testing.T) {
	t.Helper()
	httpmock.Activate()
	t.Cleanup(httpmock.DeactivateAndReset)
}

func TestGetJSON_APIKeyHeader(t *testing.T) {
	setupHTTPMock(t)

	httpmock.RegisterResponder("GET", "https://api.example.com/v1/items",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "secret", req.Header.Get("X-API-Key"))
			assert.Empty(t, req.Header.Get("Authorization"))
			return httpmock.NewStringResponse(http.StatusOK, `{"name":"widget"}`), nil
		})

	c := NewClient(APIKeyHeader, "secret", 0)
	var out struct {
		Name string `json:"name"`
	}
	require.NoError(t, c.GetJSON(context.Background(), "https://api.example.com/v1/items", &out))
	assert.Equal(t, "widget", out.Name)
}

func TestPostJSON_BearerToken(t *testing.T) {
	setupHTTPMock(t)

	httpmock.RegisterResponder("POST", "https://api.example.com/v1/items",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "Bearer tok", req.Header.Get("Authorization"))
			assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
			return httpmock.NewStringResponse(http.StatusCreated, ""), nil
		})

	c := NewClient(BearerToken, "tok", 0)
	err := c.PostJSON(context.Background(), "https://api.example.com/v1/items", map[string]string{"a": "b"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestDoJSON_StatusError(t *testing.T) {
	setupHTTPMock(t)

	httpmock.RegisterResponder("GET", "https://api.example.com/v1/items",
		httpmock.NewStringResponder(http.StatusTooManyRequests, `{"error":"slow down"}`))

	c := NewClient(APIKeyHeader, "secret", 0)
	err := c.GetJSON(context.Background(), "https://api.example.com/v1/items", &struct{}{})
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
	assert.Contains(t, statusErr.Body, "slow down")
	assert.Contains(t, err.Error(), "429")
}

func TestDoJSON_TransportError(t *testing.T) {
	setupHTTPMock(t)

	httpmock.RegisterResponder("GET", "https://api.example.com/v1/items",
		httpmock.NewErrorResponder(errors.New("connection reset")))

	c := NewClient(APIKeyHeader, "secret", 0)
	err := c.GetJSON(context.Background(), "https://api.example.com/v1/items", &struct{}{})
	require.Error(t, err)

	var statusErr *StatusError
	assert.False(t, errors.As(err, &statusErr))
}
