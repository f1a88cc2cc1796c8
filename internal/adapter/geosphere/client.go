// Package geosphere implements the HTTP client for the GeoSphere Austria
// Dataset API station historical endpoint.
package geosphere

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/couchcryptid/wetterarena/internal/config"
	"github.com/couchcryptid/wetterarena/internal/domain"
	"github.com/couchcryptid/wetterarena/internal/observability"
)

// parameters requested for every station. TL = air temperature, RR =
// precipitation, SO = sunshine duration.
const parameters = "TL,RR,SO"

// Client fetches raw readings from the GeoSphere Dataset API.
type Client struct {
	baseURL    string
	dataset    string
	httpClient *http.Client
	retries    int
	chunkSize  int
	breaker    *gobreaker.CircuitBreaker
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a GeoSphere client from pipeline configuration.
func NewClient(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		dataset:    cfg.Dataset,
		httpClient: &http.Client{Timeout: cfg.FetchTimeout},
		retries:    cfg.FetchRetries,
		chunkSize:  cfg.StationChunkSize,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name: "geosphere",
		}),
		metrics: metrics,
		logger:  logger,
	}
}

// FetchRange fetches all readings for the stations in the inclusive date
// range [start, end]. Station lists larger than the configured chunk size are
// split across multiple requests; results are concatenated in chunk order.
func (c *Client) FetchRange(ctx context.Context, start, end domain.Date, stationIDs []int) ([]domain.Reading, error) {
	if len(stationIDs) == 0 {
		return nil, nil
	}

	var readings []domain.Reading
	for i := 0; i < len(stationIDs); i += c.chunkSize {
		chunk := stationIDs[i:min(i+c.chunkSize, len(stationIDs))]

		payload, err := c.fetch(ctx, start, end, chunk)
		if err != nil {
			return nil, err
		}

		parsed, err := domain.ParseStationResponse(payload)
		if err != nil {
			return nil, err
		}
		readings = append(readings, parsed...)
	}

	return readings, nil
}

// fetch performs one request with bounded retries. Network errors, 5xx, and
// 429 responses are retried with exponential backoff; other non-200 statuses
// fail immediately. 429 honors the ratelimit-reset header when present.
func (c *Client) fetch(ctx context.Context, start, end domain.Date, stationIDs []int) ([]byte, error) {
	fullURL := c.buildURL(start, end, stationIDs)

	backoff := time.Second
	var lastErr error

	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			c.metrics.APIRequests.WithLabelValues("retry").Inc()
			c.logger.Warn("retrying geosphere request",
				"attempt", attempt, "backoff", backoff, "error", lastErr)
			if !sleepWithContext(ctx, backoff) {
				return nil, ctx.Err()
			}
			backoff = min(backoff*2, time.Minute)
		}

		body, retryable, err := c.doRequest(ctx, fullURL, &backoff)
		if err == nil {
			c.metrics.APIRequests.WithLabelValues("success").Inc()
			return body, nil
		}
		if !retryable {
			c.metrics.APIRequests.WithLabelValues("error").Inc()
			return nil, err
		}
		lastErr = err
	}

	c.metrics.APIRequests.WithLabelValues("error").Inc()
	return nil, fmt.Errorf("geosphere request failed after %d attempts: %w", c.retries+1, lastErr)
}

// doRequest executes a single request through the circuit breaker. The bool
// result reports whether the error is worth retrying. A 429 response may
// raise the caller's backoff to the server-requested reset interval.
func (c *Client) doRequest(ctx context.Context, fullURL string, backoff *time.Duration) ([]byte, bool, error) {
	result, err := c.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return nil, err
		}
		return c.httpClient.Do(req)
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		// Breaker-open and transport errors are both retryable.
		return nil, true, fmt.Errorf("geosphere request: %w", err)
	}

	resp := result.(*http.Response)
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, true, fmt.Errorf("read geosphere response: %w", err)
		}
		return body, false, nil

	case resp.StatusCode == http.StatusTooManyRequests:
		if reset := parseRatelimitReset(resp.Header); reset > *backoff {
			*backoff = reset
		}
		return nil, true, fmt.Errorf("geosphere API rate limited: status %d", resp.StatusCode)

	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("geosphere API error: status %d", resp.StatusCode)

	default:
		body, _ := io.ReadAll(resp.Body)
		return nil, false, fmt.Errorf("geosphere API error: status %d: %s", resp.StatusCode, body)
	}
}

func (c *Client) buildURL(start, end domain.Date, stationIDs []int) string {
	ids := make([]string, len(stationIDs))
	for i, id := range stationIDs {
		ids[i] = strconv.Itoa(id)
	}

	params := url.Values{
		"start":       {start.String()},
		"end":         {end.String()},
		"station_ids": {strings.Join(ids, ",")},
		"parameters":  {parameters},
	}
	return fmt.Sprintf("%s/station/historical/%s?%s", c.baseURL, c.dataset, params.Encode())
}

// parseRatelimitReset reads the ratelimit-reset header (seconds), capped at
// one minute so a misbehaving server cannot stall a scheduled run.
func parseRatelimitReset(h http.Header) time.Duration {
	s := h.Get("ratelimit-reset")
	if s == "" {
		return 0
	}
	secs, err := strconv.Atoi(s)
	if err != nil || secs <= 0 {
		return 0
	}
	return min(time.Duration(secs)*time.Second, time.Minute)
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
