package geocode

import (
	"errors"
	"net"
)

// transientError marks a lookup failure that is safe to repeat: a transport
// failure, a throttled or server-side Kakao response, or a malformed body.
// Credential failures and bad input never carry this marker.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// IsRetryable reports whether a Resolve failure may be repeated. The client
// itself never retries; callers own the retry policy.
func IsRetryable(err error) bool {
	var te *transientError
	if errors.As(err, &te) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
