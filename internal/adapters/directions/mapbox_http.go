package directions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	userAgent     = "driver-dispatch-client"
	maxRetryAfter = 10 * time.Second
)

// httpStatusError is a non-2xx answer from the directions API. Message is
// Mapbox's JSON "message" when present, else the raw body.
type httpStatusError struct {
	Code       int
	Message    string
	RetryAfter time.Duration
}

func (e *httpStatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("Code %d", e.Code)
	}
	return fmt.Sprintf("Code %d: %s", e.Code, e.Message)
}

// newRequest builds a GET for path with the access token appended to query.
func (m *MapboxDirectionsProvider) newRequest(ctx context.Context, path string, query url.Values) (*http.Request, error) {
	q := make(url.Values, len(query)+1)
	for k, v := range query {
		q[k] = v
	}
	q.Set("access_token", m.token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", m.redact(err))
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	return req, nil
}

func (m *MapboxDirectionsProvider) do(req *http.Request) (*http.Response, error) {
	resp, err := m.session.Do(req)
	if err != nil {
		return nil, m.redact(err)
	}
	if resp.StatusCode < 400 {
		return resp, nil
	}
	defer resp.Body.Close()

	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	he := &httpStatusError{
		Code:       resp.StatusCode,
		Message:    strings.TrimSpace(string(b)),
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
	}

	var body struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(b, &body) == nil && body.Message != "" {
		he.Message = body.Message
	}
	return nil, he
}

// doWithRetry retries network errors, 429 and 5xx up to maxAttempts times.
// The wait doubles per attempt and honours Retry-After, capped at
// maxRetryAfter.
func (m *MapboxDirectionsProvider) doWithRetry(ctx context.Context, makeReq func() (*http.Request, error)) (*http.Response, error) {
	backoff := m.backoff

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := makeReq()
		if err != nil {
			return nil, err
		}

		resp, err := m.do(req)
		if err == nil {
			return resp, nil
		}
		if attempt >= m.maxAttempts || !retryable(err) {
			return nil, err
		}

		wait := backoff
		var he *httpStatusError
		if errors.As(err, &he) && he.RetryAfter > wait {
			wait = min(he.RetryAfter, maxRetryAfter)
		}
		m.log.Debug("retrying directions request", "attempt", attempt, "wait", wait, "error", err)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
	}
}

func retryable(err error) bool {
	var he *httpStatusError
	if errors.As(err, &he) {
		return he.Code == http.StatusTooManyRequests || he.Code >= 500
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

// redact masks the access token in url.Error, whose message carries the full
// request URL.
func (m *MapboxDirectionsProvider) redact(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		ue.URL = strings.ReplaceAll(ue.URL, url.QueryEscape(m.token), "redacted")
		ue.URL = strings.ReplaceAll(ue.URL, m.token, "redacted")
	}
	return err
}

// parseRetryAfter reads the delay-seconds form only.
func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
