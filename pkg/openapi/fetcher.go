package openapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
)

const (
	// fetchTimeout bounds a single document download. Fetching happens
	// before any tree transaction opens, so a slow remote never holds a
	// tree-level lock.
	fetchTimeout = 15 * time.Second

	// fetchMaxRetries bounds retries of transient fetch failures.
	fetchMaxRetries = 3

	// fetchMaxBytes caps the accepted document size.
	fetchMaxBytes = 16 << 20
)

// Fetch downloads an OpenAPI document by URL with a bounded retry on
// transient failures. Unreachable URLs and non-success responses are
// parse errors, per the import error taxonomy.
func Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("invalid document URL %q: %w", rawURL, ErrParse)
	}

	client := &http.Client{Timeout: fetchTimeout}

	var body []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}

		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("server error %d fetching %s", resp.StatusCode, rawURL)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(
				fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, rawURL))
		}

		body, err = io.ReadAll(io.LimitReader(resp.Body, fetchMaxBytes+1))
		if err != nil {
			return err
		}
		if len(body) > fetchMaxBytes {
			return backoff.Permanent(
				fmt.Errorf("document at %s exceeds %d bytes", rawURL, fetchMaxBytes))
		}
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), fetchMaxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, fmt.Errorf("fetching %s: %v: %w", rawURL, err, ErrParse)
	}

	return body, nil
}
