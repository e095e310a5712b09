package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	errFmtNonOKStatus    = "asset server returned non-OK status for %s: %s, body: %s"
	errReceivedEmptyBody = "received empty asset body"
	maxErrorBody         = 512
)

// HTTPDownloader fetches engine assets over HTTP.
type HTTPDownloader struct {
	httpClient *http.Client
}

// NewHTTPDownloader creates a downloader whose requests time out after timeout.
func NewHTTPDownloader(timeout time.Duration) *HTTPDownloader {
	return &HTTPDownloader{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Download performs a GET on url and returns the whole body.
func (d *HTTPDownloader) Download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", url, err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

		return nil, fmt.Errorf(errFmtNonOKStatus, url, resp.Status, string(body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body of %s: %w", url, err)
	}

	if len(data) == 0 {
		return nil, errors.New(errReceivedEmptyBody)
	}

	return data, nil
}
