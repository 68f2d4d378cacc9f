package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryConfig() RetryConfig {
	cfg := DefaultRetryConfig()
	cfg.BaseDelay = time.Millisecond
	return cfg
}

func buildGet(url string) func(context.Context) (*http.Request, error) {
	return func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	}
}

func TestDoWithRetryRecoversFromTransientStatus(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	resp, body, err := DoWithRetry(context.Background(), server.Client(), buildGet(server.URL), fastRetryConfig())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, 3, calls)
}

func TestDoWithRetryDoesNotRetryClientErrors(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid_token"}`))
	}))
	defer server.Close()

	_, _, err := DoWithRetry(context.Background(), server.Client(), buildGet(server.URL), fastRetryConfig())
	require.Error(t, err)
	assert.Equal(t, 1, calls)

	var herr *HTTPError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, http.StatusUnauthorized, herr.StatusCode)
	assert.Contains(t, string(herr.Body), "invalid_token")
}

func TestDoWithRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, _, err := DoWithRetry(context.Background(), server.Client(), buildGet(server.URL), fastRetryConfig())
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name":"value"}`))
	}))
	defer server.Close()

	var out struct {
		Name string `json:"name"`
	}
	err := DoJSON(context.Background(), server.Client(), buildGet(server.URL), &out, fastRetryConfig())
	require.NoError(t, err)
	assert.Equal(t, "value", out.Name)
}

func TestDoJSONDecodeFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	var out map[string]any
	err := DoJSON(context.Background(), server.Client(), buildGet(server.URL), &out, fastRetryConfig())
	assert.Error(t, err)
}

func TestDoWithRetryHonorsContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := fastRetryConfig()
	cfg.BaseDelay = time.Second
	_, _, err := DoWithRetry(ctx, server.Client(), buildGet(server.URL), cfg)
	assert.ErrorIs(t, err, context.Canceled)
}
