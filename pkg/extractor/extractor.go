// pkg/extractor/extractor.go
package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/transitops/wmata-ingress/pkg/contract"
)

const bodyExcerptLimit = 200

// SourceConfig describes a single paginated API source. All values arrive
// already resolved; the extractor never reads configuration itself.
type SourceConfig struct {
	Endpoint  string            // Full endpoint URL
	DataField string            // Envelope field holding the records; empty means a bare array
	Params    url.Values        // Extra query parameters
	Headers   map[string]string // Request headers (api_key auth lives here)

	PageSize int // Records per page; 0 disables pagination (single request)
	MaxPages int // Page-count ceiling; 0 means no ceiling

	RequestTimeout time.Duration
	RetryAttempts  int // Additional attempts after the first, per page
	RetryDelay     time.Duration
	Workers        int // Concurrent page fetches; <=1 means sequential
}

// Stats summarizes one extraction
type Stats struct {
	Pages   int
	Records int
}

// Extractor pulls raw records from a paginated HTTP API
type Extractor struct {
	client *http.Client
	logger *zap.Logger
}

// New creates an extractor with a default HTTP client
func New(logger *zap.Logger) *Extractor {
	return &Extractor{
		client: &http.Client{},
		logger: logger.Named("extractor"),
	}
}

// WithClient sets the HTTP client and returns the modified extractor
func (e *Extractor) WithClient(client *http.Client) *Extractor {
	e.client = client
	return e
}

// Extract fetches all pages from the source and returns the raw records in
// page order. It returns either the full sequence or a terminal error,
// never a silently truncated one.
func (e *Extractor) Extract(ctx context.Context, src SourceConfig) ([]contract.RawRecord, Stats, error) {
	start := time.Now()

	records, pages, err := e.extractAll(ctx, src)
	if err != nil {
		return nil, Stats{}, err
	}

	stats := Stats{Pages: pages, Records: len(records)}
	e.logger.Info("Extraction completed",
		zap.String("endpoint", src.Endpoint),
		zap.Int("pages", stats.Pages),
		zap.Int("records", stats.Records),
		zap.Duration("duration", time.Since(start)))

	return records, stats, nil
}

func (e *Extractor) extractAll(ctx context.Context, src SourceConfig) ([]contract.RawRecord, int, error) {
	// Unpaginated sources are a single request
	if src.PageSize <= 0 {
		records, err := e.fetchPageWithRetry(ctx, src, 0)
		if err != nil {
			return nil, 0, err
		}
		return records, 1, nil
	}

	workers := src.Workers
	if workers < 1 {
		workers = 1
	}

	var all []contract.RawRecord
	pages := 0

	// Pages are fetched in waves of at most `workers` and reassembled by
	// page index, so concurrent fetch cannot perturb extraction order.
	for next := 0; ; next += workers {
		if src.MaxPages > 0 && next >= src.MaxPages {
			break
		}

		wave := workers
		if src.MaxPages > 0 && next+wave > src.MaxPages {
			wave = src.MaxPages - next
		}

		results, err := e.fetchWave(ctx, src, next, wave)
		if err != nil {
			return nil, 0, err
		}

		done := false
		for _, page := range results {
			all = append(all, page...)
			pages++
			if len(page) < src.PageSize {
				// Short page signals the end of the feed
				done = true
				break
			}
		}
		if done {
			break
		}
	}

	return all, pages, nil
}

// fetchWave fetches pages first..first+count-1 concurrently and returns
// them ordered by page index. The lowest-indexed failure wins.
func (e *Extractor) fetchWave(ctx context.Context, src SourceConfig, first, count int) ([][]contract.RawRecord, error) {
	if count == 1 {
		page, err := e.fetchPageWithRetry(ctx, src, first)
		if err != nil {
			return nil, err
		}
		return [][]contract.RawRecord{page}, nil
	}

	results := make([][]contract.RawRecord, count)
	errs := make([]error, count)

	doneCh := make(chan int, count)
	for i := 0; i < count; i++ {
		go func(idx int) {
			results[idx], errs[idx] = e.fetchPageWithRetry(ctx, src, first+idx)
			doneCh <- idx
		}(i)
	}
	for i := 0; i < count; i++ {
		<-doneCh
	}

	for i := 0; i < count; i++ {
		if errs[i] != nil {
			return nil, errs[i]
		}
	}
	return results, nil
}

// fetchPageWithRetry retries transient transport failures with bounded
// exponential backoff. Parse errors and 4xx responses fail immediately.
func (e *Extractor) fetchPageWithRetry(ctx context.Context, src SourceConfig, page int) ([]contract.RawRecord, error) {
	var lastErr error

	for attempt := 0; attempt <= src.RetryAttempts; attempt++ {
		if attempt > 0 {
			delay := src.RetryDelay * time.Duration(1<<(attempt-1))
			e.logger.Warn("Retrying page fetch",
				zap.Int("page", page),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr))

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		records, err := e.fetchPage(ctx, src, page)
		if err == nil {
			return records, nil
		}

		var te *TransportError
		if errors.As(err, &te) && te.Retryable() {
			lastErr = err
			continue
		}
		return nil, err
	}

	return nil, lastErr
}

// fetchPage issues a single GET and parses the body into raw records
func (e *Extractor) fetchPage(ctx context.Context, src SourceConfig, page int) ([]contract.RawRecord, error) {
	reqURL, err := e.buildURL(src, page)
	if err != nil {
		return nil, fmt.Errorf("failed to build request URL: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, src.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	for k, v := range src.Headers {
		req.Header.Set(k, v)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, &TransportError{URL: reqURL, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{URL: reqURL, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &TransportError{
			URL:        reqURL,
			StatusCode: resp.StatusCode,
			Body:       excerpt(body),
		}
	}

	return parseRecords(reqURL, src.DataField, body)
}

func (e *Extractor) buildURL(src SourceConfig, page int) (string, error) {
	u, err := url.Parse(src.Endpoint)
	if err != nil {
		return "", err
	}

	q := u.Query()
	for k, vs := range src.Params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	if src.PageSize > 0 {
		q.Set("limit", fmt.Sprintf("%d", src.PageSize))
		q.Set("offset", fmt.Sprintf("%d", page*src.PageSize))
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// parseRecords decodes the payload into a sequence of raw records,
// unwrapping the envelope field when one is configured
func parseRecords(reqURL, dataField string, body []byte) ([]contract.RawRecord, error) {
	var payload interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &ParseError{URL: reqURL, Expected: "JSON document", Found: excerpt(body)}
	}

	if dataField != "" {
		envelope, ok := payload.(map[string]interface{})
		if !ok {
			return nil, &ParseError{URL: reqURL, Expected: "JSON object envelope", Found: describe(payload)}
		}
		payload, ok = envelope[dataField]
		if !ok {
			return nil, &ParseError{URL: reqURL, Expected: fmt.Sprintf("envelope field %q", dataField), Found: "missing field"}
		}
	}

	// APIs commonly encode an empty page as null
	if payload == nil {
		return []contract.RawRecord{}, nil
	}

	items, ok := payload.([]interface{})
	if !ok {
		return nil, &ParseError{URL: reqURL, Expected: "array of objects", Found: describe(payload)}
	}

	records := make([]contract.RawRecord, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			return nil, &ParseError{
				URL:      reqURL,
				Expected: "object record",
				Found:    fmt.Sprintf("%s at index %d", describe(item), i),
			}
		}
		records = append(records, contract.RawRecord(obj))
	}

	return records, nil
}

func describe(v interface{}) string {
	switch v.(type) {
	case map[string]interface{}:
		return "object"
	case []interface{}:
		return "array"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func excerpt(body []byte) string {
	if len(body) > bodyExcerptLimit {
		return string(body[:bodyExcerptLimit]) + "..."
	}
	return string(body)
}
