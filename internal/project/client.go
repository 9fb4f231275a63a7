// Package project is the client for the remote project resource that
// plan documents are loaded from and saved to.
package project

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/planstudio-ai/planstudio/pkg/types"
)

// Client fetches and stores project documents over HTTP. Transient
// failures (network errors, 5xx) are retried with exponential backoff;
// 4xx responses are permanent.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	// MaxElapsed bounds the total retry window per operation.
	MaxElapsed time.Duration
}

// NewClient creates a project resource client for baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		MaxElapsed: 15 * time.Second,
	}
}

func (c *Client) url(locator string) string {
	return fmt.Sprintf("%s/project/%s", c.BaseURL, locator)
}

func (c *Client) newBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxElapsedTime = c.MaxElapsed
	return backoff.WithContext(b, ctx)
}

// Fetch retrieves the document stored under locator. A project that
// exists but has no log yet comes back with a nil Messages slice.
func (c *Client) Fetch(ctx context.Context, locator string) (*types.ProjectDocument, error) {
	var doc *types.ProjectDocument

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(locator), nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			return fmt.Errorf("fetch project: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("fetch project: status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("fetch project: status %d", resp.StatusCode))
		}

		var d types.ProjectDocument
		if err := json.NewDecoder(resp.Body).Decode(&d); err != nil {
			return backoff.Permanent(fmt.Errorf("decode project: %w", err))
		}
		doc = &d
		return nil
	}

	if err := backoff.Retry(operation, c.newBackoff(ctx)); err != nil {
		return nil, err
	}
	return doc, nil
}

// Store writes the document under locator. The resource returns no
// meaningful body; only success or failure matters.
func (c *Client) Store(ctx context.Context, locator string, doc *types.ProjectDocument) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode project: %w", err)
	}

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(locator), bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			return fmt.Errorf("store project: %w", err)
		}
		defer func() {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("store project: status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
			return backoff.Permanent(fmt.Errorf("store project: status %d", resp.StatusCode))
		}
		return nil
	}

	return backoff.Retry(operation, c.newBackoff(ctx))
}
