package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	apperrors "github.com/timschmidt/bugbot9000/internal/errors"
)

// Client fetches per-crate metadata from a crates.io-style registry API.
//
// A blanket rate limit is enforced between the start of consecutive requests,
// regardless of per-request latency, per the registry's crawler policy. The
// limiter assumes a single caller issuing requests sequentially. There is no
// retry or backoff: a failure surfaces immediately and the caller records it.
type Client struct {
	client    *http.Client
	baseURL   string
	userAgent string
	limiter   *rate.Limiter
	logger    *logrus.Logger
}

// ClientOption allows configuring the registry client
type ClientOption func(*Client)

// WithBaseURL overrides the registry API base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient overrides the underlying HTTP client
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// NewClient creates a new registry client. The token is optional; when set it
// is attached to every request. delay is the minimum interval between the
// start of consecutive requests.
func NewClient(token, userAgent string, delay time.Duration, logger *logrus.Logger, opts ...ClientOption) *Client {
	httpClient := &http.Client{Timeout: 30 * time.Second}
	if token != "" {
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: token},
		)
		httpClient = oauth2.NewClient(context.Background(), ts)
		httpClient.Timeout = 30 * time.Second
	}

	client := &Client{
		client:    httpClient,
		baseURL:   "https://crates.io",
		userAgent: userAgent,
		limiter:   rate.NewLimiter(rate.Every(delay), 1),
		logger:    logger,
	}

	// Apply options
	for _, opt := range opts {
		opt(client)
	}

	return client
}

// FetchCrate performs one synchronous metadata request for the named crate.
func (c *Client) FetchCrate(ctx context.Context, name string) (*Metadata, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apperrors.NewFetchError("rate limiter interrupted", err)
	}

	reqURL := fmt.Sprintf("%s/api/v1/crates/%s", c.baseURL, url.PathEscape(name))
	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, apperrors.NewFetchError("failed to create request", err)
	}
	// The registry rejects anonymous crawlers; an identifying agent is
	// mandatory.
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, apperrors.NewFetchError(fmt.Sprintf("request for crate %s failed", name), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewFetchError("failed to read response body", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.WithFields(logrus.Fields{
			"crate":  name,
			"status": resp.StatusCode,
		}).Debug("Registry returned non-OK status")
		return nil, apperrors.NewFetchError(
			fmt.Sprintf("registry returned status %d for crate %s: %s", resp.StatusCode, name, string(body)), nil)
	}

	var decoded crateResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, apperrors.NewFetchError("failed to decode response", err)
	}

	return &decoded.Crate, nil
}
