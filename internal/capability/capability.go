// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package capability adapts the external data collaborators (search,
// scrape, weather, stock, dictionary) behind one client.
//
// Each adapter speaks its endpoint's wire contract and normalizes the
// response into the model payload types. Failures split three ways:
// transport trouble is retryable, a missing subject (unknown city, symbol,
// word) is terminal, and a bad argument never leaves the process.
package capability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/seeka-ai/seeka-tui/internal/config"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotFound means the upstream looked and found nothing: unknown
	// city, unlisted symbol, word not in the dictionary. Terminal, not
	// retryable.
	ErrNotFound = errors.New("capability: not found")

	// ErrBadArgument means the capability argument was missing or
	// unparseable. Terminal; retrying the same argument cannot help.
	ErrBadArgument = errors.New("capability: bad argument")
)

// TransportError wraps network and upstream-availability failures.
// Retryable.
type TransportError struct {
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("capability: %s unreachable: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StageError marks which half of the two-stage search pipeline failed so a
// retry can resume at the failed stage instead of repeating the whole
// thing.
type StageError struct {
	Stage string // "search" or "scrape"
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("capability: %s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// =============================================================================
// CLIENT
// =============================================================================

// Client holds the shared HTTP transport and per-process rate limiter for
// all capability endpoints.
type Client struct {
	endpoints config.EndpointsConfig
	http      *http.Client
	limiter   *rate.Limiter
}

// NewClient creates a capability client. The limiter smooths bursts across
// all endpoints; scraping three pages back to back is the worst case.
func NewClient(endpoints config.EndpointsConfig) *Client {
	return &Client{
		endpoints: endpoints,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 5),
	}
}

// getJSON performs a rate-limited GET against base with the given query
// parameters and decodes the JSON response into out. A 404 maps to
// ErrNotFound; network failures and 5xx map to TransportError.
func (c *Client) getJSON(ctx context.Context, base string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &TransportError{Endpoint: base, Err: err}
	}

	u, err := url.Parse(base)
	if err != nil {
		return &TransportError{Endpoint: base, Err: err}
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return &TransportError{Endpoint: base, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Endpoint: base, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return &TransportError{
			Endpoint: base,
			Err:      fmt.Errorf("status %d: %s", resp.StatusCode, body),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransportError{Endpoint: base, Err: fmt.Errorf("decode: %w", err)}
	}
	return nil
}

// parseArg decodes a capability argument object and extracts one required
// string field.
func parseArg(raw, field string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("%w: empty argument", ErrBadArgument)
	}
	var args map[string]string
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadArgument, err)
	}
	v := args[field]
	if v == "" {
		return "", fmt.Errorf("%w: missing %q", ErrBadArgument, field)
	}
	return v, nil
}
