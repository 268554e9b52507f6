// Package webhook performs the outbound HTTP legs of the delivery core: one
// bounded POST per outbox attempt, and retried manifest GETs on app install.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"teamchat/internal/application/entity"
	"teamchat/pkg/httpclient"

	"go.uber.org/zap"
)

// Deliverer makes exactly one delivery attempt per call. Retries belong to
// the outbox relay, so no retry logic lives here.
type Deliverer interface {
	Deliver(ctx context.Context, callbackURL string, payload []byte) error
}

// DeliveryError is the classified outcome of a failed attempt. Reason feeds
// OutboxEvent.LastError verbatim.
type DeliveryError struct {
	Reason string
	Status int // non-zero for http errors
}

func (e *DeliveryError) Error() string { return e.Reason }

func HTTPError(status int) *DeliveryError {
	return &DeliveryError{Reason: fmt.Sprintf("http_error:%d", status), Status: status}
}

func NetworkError(err error) *DeliveryError {
	return &DeliveryError{Reason: fmt.Sprintf("network_error:%s", err.Error())}
}

type Client struct {
	http    httpclient.HTTPClient
	fetcher httpclient.HTTPClient // retrying client, idempotent GETs only
	timeout time.Duration
	logger  *zap.SugaredLogger
}

func NewClient(plain httpclient.HTTPClient, fetcher httpclient.HTTPClient, timeout time.Duration, logger *zap.SugaredLogger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		http:    plain,
		fetcher: fetcher,
		timeout: timeout,
		logger:  logger,
	}
}

// Deliver POSTs payload to callbackURL with a hard deadline. Any non-2xx
// status or transport failure comes back as a *DeliveryError.
func (c *Client) Deliver(ctx context.Context, callbackURL string, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequest(http.MethodPost, callbackURL, bytes.NewReader(payload))
	if err != nil {
		return NetworkError(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return NetworkError(err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return HTTPError(resp.StatusCode)
	}

	return nil
}

// FetchManifest GETs an app manifest with the retrying client.
func (c *Client) FetchManifest(ctx context.Context, manifestURL string) (*entity.AppManifest, error) {
	req, err := http.NewRequest(http.MethodGet, manifestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("manifest request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.fetcher.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("manifest fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("manifest fetch: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("manifest read: %w", err)
	}

	var manifest entity.AppManifest
	if err := json.Unmarshal(body, &manifest); err != nil {
		return nil, fmt.Errorf("manifest decode: %w", err)
	}

	return &manifest, nil
}

// ManifestFetcher is the narrow surface the use-case layer needs.
type ManifestFetcher interface {
	FetchManifest(ctx context.Context, manifestURL string) (*entity.AppManifest, error)
}

var _ Deliverer = (*Client)(nil)
var _ ManifestFetcher = (*Client)(nil)
