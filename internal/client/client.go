package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kjstillabower/weather-favorites/internal/observability"
)

// API labels used in metrics and error messages.
const (
	APIWeather  = "weather"
	APIForecast = "forecast"
	APIOneCall  = "onecall"
	APICity     = "city"
)

var (
	ErrInvalidAPIKey    = errors.New("invalid API key")
	ErrLocationNotFound = errors.New("location not found")
	ErrUpstreamFailure  = errors.New("upstream failure")
	ErrRateLimited      = errors.New("rate limited")
	ErrTransport        = errors.New("transport failure")
	ErrDecode           = errors.New("malformed response")
	ErrAPIStatus        = errors.New("api reported error")
)

// httpDoer is the part of *http.Client the API clients need.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// transport performs one GET against an external API and returns the body of a 2xx response.
// No retries: every failure is returned to the caller as-is.
type transport struct {
	client httpDoer
}

func newTransport(timeout time.Duration) transport {
	return transport{client: &http.Client{Timeout: timeout}}
}

func (t transport) get(ctx context.Context, api string, req *http.Request) ([]byte, error) {
	start := time.Now()

	resp, err := t.client.Do(req.WithContext(ctx))
	if err != nil {
		duration := time.Since(start).Seconds()
		observability.UpstreamCallsTotal.WithLabelValues(api, "error").Inc()
		observability.UpstreamDuration.WithLabelValues(api, "error").Observe(duration)

		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%w: request timeout: %w", ErrTransport, err)
		}
		return nil, fmt.Errorf("%w: http request failed: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	duration := time.Since(start).Seconds()
	status := statusLabel(resp.StatusCode)
	observability.UpstreamCallsTotal.WithLabelValues(api, status).Inc()
	observability.UpstreamDuration.WithLabelValues(api, status).Observe(duration)

	if err := handleErrorResponse(resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response body: %w", ErrTransport, err)
	}
	return body, nil
}

func handleErrorResponse(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: HTTP %d", ErrInvalidAPIKey, resp.StatusCode)
	case http.StatusNotFound:
		return fmt.Errorf("%w", ErrLocationNotFound)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w", ErrRateLimited)
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	}

	return nil
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
