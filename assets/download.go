package assets

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
)

// Downloader fetches remote candidates into the cache directory
type Downloader struct {
	httpClient *http.Client
	MinBytes   int64
	MaxRetries uint64
}

func NewDownloader(timeout time.Duration) *Downloader {
	return &Downloader{
		httpClient: &http.Client{Timeout: timeout},
		MinBytes:   100,
		MaxRetries: 2,
	}
}

// Fetch downloads url into dest, retrying transient failures. dest is
// truncated on every attempt.
func (d *Downloader) Fetch(ctx context.Context, url, dest string) error {
	op := func() error {
		return d.fetchOnce(ctx, url, dest)
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 5 * time.Second
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, d.MaxRetries), ctx))
}

func (d *Downloader) fetchOnce(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; FinancialVideoGenerator/1.0)")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("HTTP %d from %s", resp.StatusCode, req.URL.Host)
	}
	if resp.StatusCode != http.StatusOK {
		return backoff.Permanent(fmt.Errorf("HTTP %d from %s", resp.StatusCode, req.URL.Host))
	}

	f, err := os.Create(dest)
	if err != nil {
		return backoff.Permanent(err)
	}
	n, copyErr := io.Copy(f, resp.Body)
	closeErr := f.Close()
	if copyErr != nil {
		return copyErr
	}
	if closeErr != nil {
		return backoff.Permanent(closeErr)
	}

	// Validate it's actually media (not an error HTML page)
	if n < d.MinBytes {
		return backoff.Permanent(fmt.Errorf("response too small (%d bytes)", n))
	}
	return nil
}
