package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testSource(endpoint string) SourceConfig {
	return SourceConfig{
		Endpoint:       endpoint,
		RequestTimeout: 5 * time.Second,
		RetryAttempts:  3,
		RetryDelay:     time.Millisecond,
	}
}

func TestExtractUnwrapsEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "secret", r.Header.Get("api_key"))
		fmt.Fprint(w, `{"Stops":[{"StopID":"1"},{"StopID":"2"}]}`)
	}))
	defer srv.Close()

	src := testSource(srv.URL)
	src.DataField = "Stops"
	src.Headers = map[string]string{"api_key": "secret"}

	records, stats, err := New(zap.NewNop()).Extract(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "1", records[0]["StopID"])
	require.Equal(t, "2", records[1]["StopID"])
	require.Equal(t, 1, stats.Pages)
	require.Equal(t, 2, stats.Records)
}

func TestExtractBareArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"id":1}]`)
	}))
	defer srv.Close()

	records, _, err := New(zap.NewNop()).Extract(context.Background(), testSource(srv.URL))
	require.NoError(t, err)
	require.Len(t, records, 1)
}

// pagedServer serves `total` numbered records through limit/offset paging
func pagedServer(t *testing.T, total int) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
		require.NoError(t, err)
		offset, err := strconv.Atoi(r.URL.Query().Get("offset"))
		require.NoError(t, err)

		var items []map[string]interface{}
		for i := offset; i < offset+limit && i < total; i++ {
			items = append(items, map[string]interface{}{"n": i})
		}
		require.NoError(t, json.NewEncoder(w).Encode(items))
	}))
}

func TestExtractPaginatesInOrder(t *testing.T) {
	srv := pagedServer(t, 5)
	defer srv.Close()

	src := testSource(srv.URL)
	src.PageSize = 2
	src.MaxPages = 10

	records, stats, err := New(zap.NewNop()).Extract(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, records, 5)
	require.Equal(t, 3, stats.Pages)
	for i, rec := range records {
		require.Equal(t, float64(i), rec["n"])
	}
}

func TestExtractConcurrentFetchKeepsOrder(t *testing.T) {
	srv := pagedServer(t, 9)
	defer srv.Close()

	src := testSource(srv.URL)
	src.PageSize = 2
	src.MaxPages = 10
	src.Workers = 3

	records, _, err := New(zap.NewNop()).Extract(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, records, 9)
	for i, rec := range records {
		require.Equal(t, float64(i), rec["n"])
	}
}

func TestExtractHonorsPageCeiling(t *testing.T) {
	srv := pagedServer(t, 100)
	defer srv.Close()

	src := testSource(srv.URL)
	src.PageSize = 10
	src.MaxPages = 3

	records, stats, err := New(zap.NewNop()).Extract(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, records, 30)
	require.Equal(t, 3, stats.Pages)
}

func TestExtractRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `[{"id":1}]`)
	}))
	defer srv.Close()

	records, _, err := New(zap.NewNop()).Extract(context.Background(), testSource(srv.URL))
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, int32(3), calls.Load())
}

func TestExtractFailsWhenRetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, _, err := New(zap.NewNop()).Extract(context.Background(), testSource(srv.URL))

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	require.Equal(t, http.StatusServiceUnavailable, transportErr.StatusCode)
	// First attempt plus the configured retries
	require.Equal(t, int32(4), calls.Load())
}

func TestExtractClientErrorNeverRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"message":"invalid api key"}`)
	}))
	defer srv.Close()

	_, _, err := New(zap.NewNop()).Extract(context.Background(), testSource(srv.URL))

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	require.Equal(t, http.StatusUnauthorized, transportErr.StatusCode)
	require.Contains(t, transportErr.Body, "invalid api key")
	require.False(t, transportErr.Retryable())
	require.Equal(t, int32(1), calls.Load())
}

func TestExtractMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html>not json</html>`)
	}))
	defer srv.Close()

	_, _, err := New(zap.NewNop()).Extract(context.Background(), testSource(srv.URL))

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
}

func TestExtractMissingEnvelopeField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"Other":[]}`)
	}))
	defer srv.Close()

	src := testSource(srv.URL)
	src.DataField = "Stops"

	_, _, err := New(zap.NewNop()).Extract(context.Background(), src)

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	require.Contains(t, parseErr.Error(), "Stops")
}

func TestExtractNonObjectRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"id":1}, 42]`)
	}))
	defer srv.Close()

	_, _, err := New(zap.NewNop()).Extract(context.Background(), testSource(srv.URL))

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
}

func TestExtractCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := testSource(srv.URL)
	src.RetryDelay = time.Minute

	_, _, err := New(zap.NewNop()).Extract(ctx, src)
	require.ErrorIs(t, err, context.Canceled)
}
