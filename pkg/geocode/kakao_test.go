package geocode

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("test-key",
		WithBaseURL(srv.URL),
		WithRateLimit(1000),
	)
}

func TestResolve_Match(t *testing.T) {
	var gotAuth, gotQuery string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.Query().Get("query")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"documents":[{"x":"127.0276","y":"37.4979"}]}`)
	})

	result, err := client.Resolve(context.Background(), "서울 강남구 테헤란로 152")
	require.NoError(t, err)
	assert.True(t, result.Matched)
	assert.InDelta(t, 37.4979, result.Lat, 1e-9)
	assert.InDelta(t, 127.0276, result.Lng, 1e-9)
	assert.Equal(t, "KakaoAK test-key", gotAuth)
	assert.Equal(t, "서울 강남구 테헤란로 152", gotQuery)
}

func TestResolve_NoResults(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"documents":[]}`)
	})

	result, err := client.Resolve(context.Background(), "nowhere at all")
	require.NoError(t, err, "no results is an expected outcome, not an error")
	assert.False(t, result.Matched)
}

func TestResolve_Unauthorized(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.Resolve(context.Background(), "서울역")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestResolve_ServerError(t *testing.T) {
	var attempts int
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.Resolve(context.Background(), "서울역")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnauthorized)
	assert.Contains(t, err.Error(), "502")
	assert.Equal(t, 1, attempts, "the client never retries on its own")
	assert.True(t, IsRetryable(err), "server errors are marked safe to repeat")
}

func TestResolve_Throttled(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.Resolve(context.Background(), "서울역")
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
}

func TestResolve_ClientErrorNotRetryable(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	_, err := client.Resolve(context.Background(), "서울역")
	require.Error(t, err)
	assert.False(t, IsRetryable(err))
}

func TestResolve_MalformedResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `not json`)
	})

	_, err := client.Resolve(context.Background(), "서울역")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse response")
	assert.True(t, IsRetryable(err), "a garbled body is worth repeating")
}

func TestResolve_BadCoordinateStrings(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"documents":[{"x":"east","y":"north"}]}`)
	})

	_, err := client.Resolve(context.Background(), "서울역")
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
}

func TestResolve_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // nothing listens on srv.URL anymore

	client := NewClient("test-key",
		WithBaseURL(srv.URL),
		WithRateLimit(1000),
	)

	_, err := client.Resolve(context.Background(), "서울역")
	require.Error(t, err)
	assert.True(t, IsRetryable(err), "connection failures are worth repeating")
}

func TestResolve_EmptyAddress(t *testing.T) {
	client := NewClient("test-key", WithRateLimit(1000))

	_, err := client.Resolve(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty address")
}
