package assets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
)

var errRateLimited = errors.New("rate limited")

// getJSON performs a GET and decodes the JSON body into out. 5xx responses
// are retried; 429 is reported as errRateLimited without retrying.
func getJSON(ctx context.Context, client *http.Client, build func(ctx context.Context) (*http.Request, error), out interface{}) error {
	op := func() error {
		req, err := build(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return backoff.Permanent(errRateLimited)
		case resp.StatusCode >= 500:
			return fmt.Errorf("HTTP %d from %s", resp.StatusCode, req.URL.Host)
		case resp.StatusCode != http.StatusOK:
			return backoff.Permanent(fmt.Errorf("HTTP %d from %s", resp.StatusCode, req.URL.Host))
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode response: %w", err))
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 4 * time.Second
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, 2), ctx))
}
