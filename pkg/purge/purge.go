// Package purge implements the cache-purge action: validate the URL against
// the configured prefix, call the purge API, and classify the result.
package purge

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"cachebuster/pkg/cloudflare"
	"cachebuster/pkg/config"
	"cachebuster/pkg/logger"
)

// Outcome is the result of one purge attempt. It is one of Completed,
// ValidationFailed or TransportFailed.
type Outcome interface {
	outcome()
}

// Completed means the API answered. Result.Success tells whether the purge
// took effect.
type Completed struct {
	// URL is the argument as typed, before trimming.
	URL    string
	Result *cloudflare.PurgeResult
}

// ValidationFailed means the URL does not start with the allowed prefix.
// No request was made.
type ValidationFailed struct {
	URL    string
	Prefix string
}

// TransportFailed means no usable response was obtained.
type TransportFailed struct {
	URL string
	Err error
}

func (Completed) outcome()        {}
func (ValidationFailed) outcome() {}
func (TransportFailed) outcome()  {}

// Error implements the error interface so the failure can travel as a
// handler error.
func (t TransportFailed) Error() string {
	return "purge " + t.URL + ": " + t.Err.Error()
}

// Unwrap returns the transport error.
func (t TransportFailed) Unwrap() error {
	return t.Err
}

// Action purges single files from the configured zone.
type Action struct {
	log    *logger.Logger
	client cloudflare.Purger
	zone   string
	prefix string
}

// NewAction creates a purge action.
func NewAction(log *logger.Logger, cfg *config.Config, client cloudflare.Purger) *Action {
	return &Action{
		log:    log,
		client: client,
		zone:   cfg.ZoneIdentifier,
		prefix: cfg.URLPrefix,
	}
}

// Prefix returns the required URL prefix.
func (a *Action) Prefix() string {
	return a.prefix
}

// Purge validates url and, when it is allowed, purges it. Surrounding
// whitespace is ignored; the prefix comparison is exact and case-sensitive.
func (a *Action) Purge(ctx context.Context, url string) Outcome {
	trimmed := strings.TrimSpace(url)
	if !strings.HasPrefix(trimmed, a.prefix) {
		return ValidationFailed{URL: url, Prefix: a.prefix}
	}

	a.log.Debug("Purging file cache", zap.String("url", trimmed), zap.String("zone", a.zone))

	result, err := a.client.PurgeFiles(ctx, a.zone, trimmed)
	if err != nil {
		return TransportFailed{URL: url, Err: err}
	}
	return Completed{URL: url, Result: result}
}
