// Package geocode resolves free-text addresses to coordinates via the Kakao
// local-search API.
package geocode

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// ErrUnauthorized signals a bad or missing Kakao credential. It is a
// configuration failure, never to be conflated with "no results".
var ErrUnauthorized = eris.New("geocode: unauthorized (check kakao api key)")

// Client resolves a single address to coordinates.
type Client interface {
	// Resolve geocodes one address. A no-match is reported as
	// Result{Matched: false} with a nil error; transport and
	// malformed-response failures are returned as errors. The client
	// performs no retries itself — check IsRetryable to decide whether
	// a failure is worth repeating.
	Resolve(ctx context.Context, address string) (*Result, error)
}

// Result holds the geocoding output for an address.
type Result struct {
	Lat     float64
	Lng     float64
	Matched bool
}

// Option configures the Kakao client.
type Option func(*kakaoClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(k *kakaoClient) {
		k.httpClient = hc
	}
}

// WithBaseURL overrides the Kakao API base URL (used by tests).
func WithBaseURL(u string) Option {
	return func(k *kakaoClient) {
		k.baseURL = u
	}
}

// WithRateLimit sets the requests-per-second limit for lookup calls.
func WithRateLimit(rps float64) Option {
	return func(k *kakaoClient) {
		if rps <= 0 {
			return
		}
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		k.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// NewClient creates a Kakao geocoding Client with the given credential.
func NewClient(apiKey string, opts ...Option) Client {
	k := &kakaoClient{
		apiKey:     apiKey,
		baseURL:    "https://dapi.kakao.com",
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(10, 10),
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}
