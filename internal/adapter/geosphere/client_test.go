package geosphere

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/wetterarena/internal/domain"
	"github.com/couchcryptid/wetterarena/internal/observability"
)

const samplePayload = `{
	"timestamps": ["2024-04-26T00:00+00:00", "2024-04-26T00:10+00:00"],
	"features": [{
		"properties": {
			"station": 105,
			"parameters": {
				"tl": {"data": [11.3, 11.1]},
				"rr": {"data": [0, 0.2]},
				"so": {"data": [600, null]}
			}
		}
	}]
}`

func testClient(baseURL string, retries, chunkSize int) *Client {
	return &Client{
		baseURL:    baseURL,
		dataset:    "klima-v2-10min",
		httpClient: &http.Client{Timeout: 5 * time.Second},
		retries:    retries,
		chunkSize:  chunkSize,
		breaker:    gobreaker.NewCircuitBreaker(gobreaker.Settings{Name: "test"}),
		metrics:    observability.NewMetricsForTesting(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func dateRange(t *testing.T) (domain.Date, domain.Date) {
	t.Helper()
	start, err := domain.ParseDate("2024-04-26")
	require.NoError(t, err)
	end, err := domain.ParseDate("2024-04-26")
	require.NoError(t, err)
	return start, end
}

func TestClient_FetchRange_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/station/historical/klima-v2-10min", r.URL.Path)
		assert.Equal(t, "2024-04-26", r.URL.Query().Get("start"))
		assert.Equal(t, "2024-04-26", r.URL.Query().Get("end"))
		assert.Equal(t, "105,5925", r.URL.Query().Get("station_ids"))
		assert.Equal(t, "TL,RR,SO", r.URL.Query().Get("parameters"))
		fmt.Fprint(w, samplePayload)
	}))
	defer srv.Close()

	c := testClient(srv.URL, 0, 200)
	start, end := dateRange(t)

	readings, err := c.FetchRange(context.Background(), start, end, []int{105, 5925})
	require.NoError(t, err)
	require.Len(t, readings, 2)
	assert.Equal(t, 105, readings[0].Station)
	assert.Equal(t, 11.3, *readings[0].Temperature)
}

func TestClient_FetchRange_NoStations(t *testing.T) {
	c := testClient("http://unused.invalid", 0, 200)
	start, end := dateRange(t)

	readings, err := c.FetchRange(context.Background(), start, end, nil)
	require.NoError(t, err)
	assert.Empty(t, readings)
}

func TestClient_FetchRange_ChunksStationList(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		ids := strings.Split(r.URL.Query().Get("station_ids"), ",")
		assert.LessOrEqual(t, len(ids), 2)
		fmt.Fprint(w, `{"timestamps": [], "features": []}`)
	}))
	defer srv.Close()

	c := testClient(srv.URL, 0, 2)
	start, end := dateRange(t)

	_, err := c.FetchRange(context.Background(), start, end, []int{1, 2, 3, 4, 5})
	require.NoError(t, err)
	assert.Equal(t, int64(3), requests.Load())
}

func TestClient_FetchRange_RetriesServerError(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if requests.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, samplePayload)
	}))
	defer srv.Close()

	c := testClient(srv.URL, 2, 200)
	start, end := dateRange(t)

	readings, err := c.FetchRange(context.Background(), start, end, []int{105})
	require.NoError(t, err)
	assert.Len(t, readings, 2)
	assert.Equal(t, int64(2), requests.Load())
}

func TestClient_FetchRange_ClientErrorNotRetried(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		http.Error(w, "unknown dataset", http.StatusNotFound)
	}))
	defer srv.Close()

	c := testClient(srv.URL, 3, 200)
	start, end := dateRange(t)

	_, err := c.FetchRange(context.Background(), start, end, []int{105})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
	assert.Equal(t, int64(1), requests.Load())
}

func TestClient_FetchRange_RetriesExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := testClient(srv.URL, 1, 200)
	start, end := dateRange(t)

	_, err := c.FetchRange(context.Background(), start, end, []int{105})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
}

func TestClient_FetchRange_RateLimitHonorsResetHeader(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if requests.Add(1) == 1 {
			w.Header().Set("ratelimit-reset", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, samplePayload)
	}))
	defer srv.Close()

	c := testClient(srv.URL, 2, 200)
	start, end := dateRange(t)

	begin := time.Now()
	readings, err := c.FetchRange(context.Background(), start, end, []int{105})
	require.NoError(t, err)
	assert.Len(t, readings, 2)
	assert.GreaterOrEqual(t, time.Since(begin), time.Second)
}

func TestClient_FetchRange_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := testClient(srv.URL, 5, 200)
	start, end := dateRange(t)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := c.FetchRange(ctx, start, end, []int{105})
	require.Error(t, err)
}

func TestParseRatelimitReset(t *testing.T) {
	h := http.Header{}
	assert.Equal(t, time.Duration(0), parseRatelimitReset(h))

	h.Set("ratelimit-reset", "30")
	assert.Equal(t, 30*time.Second, parseRatelimitReset(h))

	h.Set("ratelimit-reset", "3600")
	assert.Equal(t, time.Minute, parseRatelimitReset(h))

	h.Set("ratelimit-reset", "soon")
	assert.Equal(t, time.Duration(0), parseRatelimitReset(h))
}
