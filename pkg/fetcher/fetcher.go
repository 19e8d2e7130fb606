package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const defaultUserAgent = "writeup-rag-pipeline/1.0"

// FetchError carries enough context to decide whether an item should be
// retried in a later run: the URL, the last HTTP status seen and how many
// attempts were spent.
type FetchError struct {
	URL        string
	StatusCode int
	Attempts   int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s failed after %d attempts: %v", e.URL, e.Attempts, e.Err)
	}
	return fmt.Sprintf("fetch %s failed after %d attempts: status %d", e.URL, e.Attempts, e.StatusCode)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Fetcher downloads write-up pages with a shared rate limiter so a large run
// never hammers a single host, and bounded retries so one flaky page cannot
// stall the stage.
type Fetcher struct {
	client     *http.Client
	limiter    *rate.Limiter
	maxRetries int
	userAgent  string
}

func New(timeout time.Duration, requestsPerSecond float64, maxRetries int) *Fetcher {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Fetcher{
		client:     &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		maxRetries: maxRetries,
		userAgent:  defaultUserAgent,
	}
}

// Fetch downloads url and returns the raw body. Transport errors and
// 429/5xx responses are retried with a short backoff up to the configured
// limit; other non-200 statuses fail immediately since retrying a 404 only
// wastes the rate budget.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	var lastStatus int
	var lastErr error

	attempts := 0
	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * time.Second
			select {
			case <-ctx.Done():
				return nil, &FetchError{URL: url, StatusCode: lastStatus, Attempts: attempts, Err: ctx.Err()}
			case <-time.After(backoff):
			}
		}
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, &FetchError{URL: url, StatusCode: lastStatus, Attempts: attempts, Err: err}
		}
		attempts++

		body, status, err := f.once(ctx, url)
		if err == nil && status == http.StatusOK {
			return body, nil
		}
		lastStatus = status
		lastErr = err

		if err == nil && !retryableStatus(status) {
			break
		}
	}

	return nil, &FetchError{URL: url, StatusCode: lastStatus, Attempts: attempts, Err: lastErr}
}

func (f *Fetcher) once(ctx context.Context, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", f.userAgent)

	res, err := f.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, res.StatusCode, err
	}
	return body, res.StatusCode, nil
}

func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}
