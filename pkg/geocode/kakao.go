package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const kakaoAddressPath = "/v2/local/search/address.json"

// kakaoAddressResponse is the JSON response from the Kakao address search API.
type kakaoAddressResponse struct {
	Documents []kakaoDocument `json:"documents"`
}

// kakaoDocument carries coordinates as decimal strings: x is longitude,
// y is latitude.
type kakaoDocument struct {
	X string `json:"x"`
	Y string `json:"y"`
}

type kakaoClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Resolve implements Client against the Kakao address search API, requesting
// the best match and taking the first document if any are returned.
func (k *kakaoClient) Resolve(ctx context.Context, address string) (*Result, error) {
	if address == "" {
		return nil, eris.New("geocode: empty address")
	}

	if err := k.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: rate limit")
	}

	params := url.Values{
		"query": {address},
		"size":  {"1"},
	}
	reqURL := k.baseURL + kakaoAddressPath + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: build request")
	}
	req.Header.Set("Authorization", "KakaoAK "+k.apiKey)

	resp, err := k.httpClient.Do(req)
	if err != nil {
		return nil, &transientError{err: eris.Wrap(err, "geocode: request")}
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrUnauthorized
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, &transientError{err: eris.Errorf("geocode: kakao returned status %d", resp.StatusCode)}
	case resp.StatusCode != http.StatusOK:
		return nil, eris.Errorf("geocode: kakao returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &transientError{err: eris.Wrap(err, "geocode: read body")}
	}

	var kakaoResp kakaoAddressResponse
	if err := json.Unmarshal(body, &kakaoResp); err != nil {
		return nil, &transientError{err: eris.Wrap(err, "geocode: parse response")}
	}

	if len(kakaoResp.Documents) == 0 {
		zap.L().Debug("geocode: no match", zap.String("address", address))
		return &Result{Matched: false}, nil
	}

	doc := kakaoResp.Documents[0]
	lat, err := strconv.ParseFloat(doc.Y, 64)
	if err != nil {
		return nil, &transientError{err: eris.Wrapf(err, "geocode: parse latitude %q", doc.Y)}
	}
	lng, err := strconv.ParseFloat(doc.X, 64)
	if err != nil {
		return nil, &transientError{err: eris.Wrapf(err, "geocode: parse longitude %q", doc.X)}
	}

	return &Result{Lat: lat, Lng: lng, Matched: true}, nil
}
