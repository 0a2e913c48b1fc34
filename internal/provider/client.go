package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	defaultTimeout   = 120 * time.Second
	defaultRetries   = 3
	defaultRetryWait = time.Second
	maxErrorBody     = 2048
)

// Options configures any HTTP-backed provider.
type Options struct {
	Name      string // reported by Name(); defaults per provider
	APIKey    string
	APIBase   string
	Model     string
	MaxTokens int
	Client    *http.Client
	Retries   *int          // extra attempts after the first; nil means 3
	RetryWait time.Duration // first backoff interval
	Logger    *slog.Logger
}

// APIError is a non-2xx response from a provider.
type APIError struct {
	Provider string
	Status   int
	Body     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %d: %s", e.Provider, e.Status, e.Body)
}

// Temporary reports whether the request may succeed if repeated.
func (e *APIError) Temporary() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// newHTTPClient returns a pooled client for long LLM completions.
func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
			MaxIdleConnsPerHost:   8,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: timeout,
		},
	}
}

// endpoint posts JSON to one provider API with retries on transient
// failures.
type endpoint struct {
	name    string
	base    string
	headers map[string]string
	client  *http.Client
	retries int
	wait    time.Duration
	logger  *slog.Logger
}

func newEndpoint(opts Options, defaultBase string, headers map[string]string) *endpoint {
	base := opts.APIBase
	if base == "" {
		base = defaultBase
	}
	client := opts.Client
	if client == nil {
		client = newHTTPClient(defaultTimeout)
	}
	retries := defaultRetries
	if opts.Retries != nil && *opts.Retries >= 0 {
		retries = *opts.Retries
	}
	wait := opts.RetryWait
	if wait <= 0 {
		wait = defaultRetryWait
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &endpoint{
		name:    opts.Name,
		base:    strings.TrimRight(base, "/"),
		headers: headers,
		client:  client,
		retries: retries,
		wait:    wait,
		logger:  logger,
	}
}

func (e *endpoint) policy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.wait
	b.MaxInterval = 30 * e.wait
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(e.retries)), ctx)
}

// post sends in as JSON to path and decodes a 2xx body into out.
func (e *endpoint) post(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", e.name, err)
	}

	var body []byte
	attempt := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.base+path, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range e.headers {
			req.Header.Set(k, v)
		}

		resp, err := e.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			if len(data) > maxErrorBody {
				data = data[:maxErrorBody]
			}
			apiErr := &APIError{Provider: e.name, Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
			if !apiErr.Temporary() {
				return backoff.Permanent(apiErr)
			}
			return apiErr
		}
		body = data
		return nil
	}
	notify := func(err error, wait time.Duration) {
		e.logger.Warn("llm request failed, retrying", "provider", e.name, "wait", wait, "err", err)
	}

	if err := backoff.RetryNotify(attempt, e.policy(ctx), notify); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return apiErr
		}
		return fmt.Errorf("%s: %w", e.name, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", e.name, err)
	}
	return nil
}
