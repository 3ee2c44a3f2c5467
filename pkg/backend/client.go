// Package backend is the HTTP collaborator the store fetches and mutates
// through. It carries no domain logic: list/get reads, command posts, and
// batch deletes, with an opaque bearer token, client-side rate limiting,
// retry with jittered backoff on transient failures, and a span per call.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/kestrelhealth/claimdeck/pkg/logging"
)

// Config wires a Client.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	// RequestsPerSecond caps outbound calls; 0 disables limiting.
	RequestsPerSecond float64
	Retry             RetryPolicy
	Logger            *logging.Logger
	// HTTPClient is overridable for tests.
	HTTPClient *http.Client
}

// Client talks to the claims backend. Safe for concurrent use.
type Client struct {
	base    string
	token   string
	http    *http.Client
	limiter *rate.Limiter
	retry   RetryPolicy
	tracer  trace.Tracer
	log     *logging.Logger
}

// New creates a backend client.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		return nil, fmt.Errorf("backend: base URL required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("backend: bad base URL: %w", err)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), int(cfg.RequestsPerSecond)+1)
	}
	log := cfg.Logger
	if log == nil {
		log = logging.Discard()
	}
	return &Client{
		base:    base,
		token:   cfg.Token,
		http:    httpClient,
		limiter: limiter,
		retry:   cfg.Retry.withDefaults(),
		tracer:  otel.Tracer("claimdeck/backend"),
		log:     log,
	}, nil
}

// List fetches the full row set of one table as a raw JSON array.
func (c *Client) List(ctx context.Context, table string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, table, nil, "list")
}

// Get fetches one row.
func (c *Client) Get(ctx context.Context, table, id string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, table+"/"+id, nil, "get")
}

// Command issues a domain action against one row and returns the updated row.
func (c *Client) Command(ctx context.Context, table, id, action string, payload any) ([]byte, error) {
	return c.do(ctx, http.MethodPost, table+"/"+id+"/"+action, payload, "command")
}

// Delete removes one row.
func (c *Client) Delete(ctx context.Context, table, id string) error {
	_, err := c.do(ctx, http.MethodDelete, table+"/"+id, nil, "delete")
	return err
}

// BatchDelete removes a set of rows in one transaction; the backend applies
// all or none.
func (c *Client) BatchDelete(ctx context.Context, table string, ids []string) error {
	_, err := c.do(ctx, http.MethodPost, table+"/batch-delete", map[string]any{"ids": ids}, "batch_delete")
	return err
}

func (c *Client) do(ctx context.Context, method, path string, payload any, op string) ([]byte, error) {
	ctx, span := c.tracer.Start(ctx, "backend."+op,
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("backend.path", path),
		))
	defer span.End()

	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", path, err)
		}
	}

	var out []byte
	err := c.retry.Execute(ctx, func() error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.base+"/"+path, reader)
		if err != nil {
			return err
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return &transportError{err: err}
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
		if err != nil {
			return &transportError{err: err}
		}
		if resp.StatusCode >= 400 {
			return &statusError{status: resp.StatusCode, body: strings.TrimSpace(string(data))}
		}
		out = data
		return nil
	})
	if err != nil {
		span.RecordError(err)
		c.log.Warn("backend call failed", "method", method, "path", path, "error", err)
		return nil, err
	}
	return out, nil
}
