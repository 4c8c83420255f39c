// Package plex is a typed HTTP client for the Plex Media Server API,
// covering the read and write surface the reconciliation engine needs.
package plex

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vmunix/plexmirror/internal/engine"
)

// Client talks to one Plex server.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        *slog.Logger

	machineID string // cached from the identity endpoint
}

// NewClient creates a client for the given server. With insecure set,
// certificate verification is skipped for self-signed endpoints.
func NewClient(baseURL, token string, insecure bool, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	httpClient := &http.Client{Timeout: 30 * time.Second}
	if insecure {
		httpClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		httpClient: httpClient,
		log:        log.With("component", "plex"),
	}
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status: %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// bulkRejected matches the server's "empty add" rejection of bulk-path
// requests, which the engine recovers from by degrading.
func (e *APIError) bulkRejected() bool {
	return e.StatusCode == http.StatusBadRequest &&
		strings.Contains(e.Body, "Must include items to add")
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string) (*http.Response, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Plex-Token", c.token)
	req.Header.Set("Accept", "application/xml")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		_ = resp.Body.Close()
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
		if apiErr.bulkRejected() {
			return nil, fmt.Errorf("%w: %v", engine.ErrBulkRejected, apiErr)
		}
		return nil, apiErr
	}
	return resp, nil
}

// getXML performs a GET and decodes the MediaContainer response.
func (c *Client) getXML(ctx context.Context, path string, query url.Values, out any) error {
	return c.callXML(ctx, http.MethodGet, path, query, out)
}

// callXML performs a request and decodes the MediaContainer response.
func (c *Client) callXML(ctx context.Context, method, path string, query url.Values, out any) error {
	resp, err := c.do(ctx, method, path, query, nil, "")
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := xml.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// call performs a request and discards the response body.
func (c *Client) call(ctx context.Context, method, path string, query url.Values) error {
	resp, err := c.do(ctx, method, path, query, nil, "")
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

// upload POSTs raw bytes, used for artwork.
func (c *Client) upload(ctx context.Context, path string, data []byte) error {
	resp, err := c.do(ctx, http.MethodPost, path, nil, bytes.NewReader(data), "image/jpeg")
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

// Identity holds server identity information.
type Identity struct {
	Name      string
	Version   string
	MachineID string
}

// Identity returns the server name, version, and machine identifier. Also
// serves as the connectivity/auth preflight: a failure here aborts the run
// before any mutation.
func (c *Client) Identity(ctx context.Context) (*Identity, error) {
	var result mediaContainer
	if err := c.getXML(ctx, "/", nil, &result); err != nil {
		return nil, err
	}
	c.machineID = result.MachineIdentifier
	return &Identity{
		Name:      result.FriendlyName,
		Version:   result.Version,
		MachineID: result.MachineIdentifier,
	}, nil
}

// machineIdentifier returns the cached machine ID, fetching it on first use.
// Item URIs in container writes must name the machine they refer to.
func (c *Client) machineIdentifier(ctx context.Context) (string, error) {
	if c.machineID != "" {
		return c.machineID, nil
	}
	id, err := c.Identity(ctx)
	if err != nil {
		return "", fmt.Errorf("fetch machine identifier: %w", err)
	}
	return id.MachineID, nil
}
