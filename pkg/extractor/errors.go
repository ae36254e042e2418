// pkg/extractor/errors.go
package extractor

import "fmt"

// TransportError reports a transport-level failure for a single page.
// Timeouts and 5xx responses are retryable; 4xx responses are not and
// fail the run immediately.
type TransportError struct {
	URL        string
	StatusCode int    // 0 for network-level failures
	Body       string // raw body excerpt, empty for network-level failures
	Err        error  // underlying error, if any
}

func (e *TransportError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("request to %s returned status %d: %s", e.URL, e.StatusCode, e.Body)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure is transient
func (e *TransportError) Retryable() bool {
	return e.StatusCode == 0 || e.StatusCode >= 500
}

// ParseError reports a response body that did not match the expected
// structured format. Fatal for the page, and therefore for the run.
type ParseError struct {
	URL      string
	Expected string
	Found    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unexpected payload from %s: expected %s, found %s", e.URL, e.Expected, e.Found)
}
