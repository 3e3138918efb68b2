package crawler

import (
	"context"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/smpapa/mentalmap-cli/pkg/geocode"
)

const (
	backoffMultiplier = 2.0
	backoffJitter     = 0.25
	maxBackoff        = 10 * time.Second
)

// resolveWithRetry geocodes one address, repeating throttled and server-side
// failures with exponential backoff and jitter. Credential and parse
// failures, and context cancellation, stop immediately.
func (e *Engine) resolveWithRetry(ctx context.Context, address string) (*geocode.Result, error) {
	var lastErr error
	for attempt := 0; attempt < e.geocodeAttempts; attempt++ {
		result, err := e.geocoder.Resolve(ctx, address)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil || !geocode.IsRetryable(err) {
			return nil, err
		}
		if attempt >= e.geocodeAttempts-1 {
			break
		}

		delay := backoffDelay(attempt, e.geocodeBackoff)
		zap.L().Warn("crawler: retrying geocode",
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, lastErr
		case <-timer.C:
		}
	}
	return nil, lastErr
}

func backoffDelay(attempt int, initial time.Duration) time.Duration {
	delay := float64(initial) * math.Pow(backoffMultiplier, float64(attempt))
	if delay > float64(maxBackoff) {
		delay = float64(maxBackoff)
	}
	delay += (rand.Float64()*2 - 1) * delay * backoffJitter
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}
