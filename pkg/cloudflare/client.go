// Package cloudflare is a minimal client for the Cloudflare cache purge API.
package cloudflare

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"cachebuster/pkg/config"
	"cachebuster/pkg/logger"
)

// ServiceKeyHeader carries the user service key on every request.
const ServiceKeyHeader = "X-Auth-User-Service-Key"

// PurgeResult is the decoded purge response. Success is authoritative;
// Errors may be empty even when Success is false.
type PurgeResult struct {
	Success bool       `json:"success"`
	Errors  []APIError `json:"errors"`
}

// APIError is one entry of the response's errors array.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Purger purges cached files for a zone.
type Purger interface {
	PurgeFiles(ctx context.Context, zone, url string) (*PurgeResult, error)
}

// TransportError means no usable purge response was obtained: the request
// failed, or the body was not a purge response.
type TransportError struct {
	// StatusCode is 0 when no response was received.
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("cloudflare purge (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("cloudflare purge: %v", e.Err)
}

// Unwrap returns the underlying cause.
func (e *TransportError) Unwrap() error {
	return e.Err
}

var errMalformed = errors.New("response is not a purge result")

// Client calls the purge endpoint with resty. It never retries.
type Client struct {
	log   *logger.Logger
	token string
	http  *resty.Client
}

// NewClient creates a purge client. An empty apiBase selects the public API;
// a zero timeout leaves the request bounded only by ctx.
func NewClient(log *logger.Logger, token, apiBase string, timeout time.Duration) *Client {
	if strings.TrimSpace(apiBase) == "" {
		apiBase = config.DefaultCloudflareAPIBase
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(strings.TrimSpace(apiBase), "/")).
		SetLogger(log.Sugar())
	if timeout > 0 {
		httpClient.SetTimeout(timeout)
	}

	return &Client{
		log:   log,
		token: token,
		http:  httpClient,
	}
}

// NewFromConfig creates a purge client from the loaded configuration.
func NewFromConfig(log *logger.Logger, cfg *config.Config) *Client {
	timeout := time.Duration(cfg.Cloudflare.TimeoutSeconds) * time.Second
	return NewClient(log, cfg.CFServiceToken, cfg.Cloudflare.APIBase, timeout)
}

// PurgeFiles asks Cloudflare to drop url from the zone's cache.
// The response body is decoded whatever the status code; an error is
// always a *TransportError.
func (c *Client) PurgeFiles(ctx context.Context, zone, url string) (*PurgeResult, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader(ServiceKeyHeader, c.token).
		SetHeader("Content-Type", "application/json").
		SetPathParam("zone", zone).
		SetBody([]string{url}).
		Post("/zones/{zone}/purge_cache")
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	result, err := decodeResult(resp.Body())
	if err != nil {
		return nil, &TransportError{StatusCode: resp.StatusCode(), Err: err}
	}

	c.log.Debug("Purge API responded",
		zap.String("zone", zone),
		zap.String("url", url),
		zap.Int("status", resp.StatusCode()),
		zap.Bool("success", result.Success),
		zap.Int("errors", len(result.Errors)))

	return result, nil
}

// decodeResult requires the success flag; a missing errors array reads as empty.
func decodeResult(body []byte) (*PurgeResult, error) {
	var wire struct {
		Success *bool      `json:"success"`
		Errors  []APIError `json:"errors"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformed, err)
	}
	if wire.Success == nil {
		return nil, fmt.Errorf("%w: missing success flag", errMalformed)
	}
	if wire.Errors == nil {
		wire.Errors = []APIError{}
	}
	return &PurgeResult{Success: *wire.Success, Errors: wire.Errors}, nil
}
