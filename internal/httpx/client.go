package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"chat-sync/internal/observability"
)

var (
	// ErrOffline means the device had no network reachability, so the
	// request was never attempted.
	ErrOffline = errors.New("no network connectivity")
	// ErrUnauthorized means the server rejected the credential. The
	// stored credential is cleared before this is returned.
	ErrUnauthorized = errors.New("authentication failed")
	// ErrRetryBudget means every allowed attempt failed transiently.
	ErrRetryBudget = errors.New("retry budget exhausted")
)

// StatusError is a terminal non-retryable HTTP failure.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http status %d: %s", e.Code, e.Body)
}

// Options tunes the retry behavior of a Client.
type Options struct {
	MaxRetries    int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	OfflinePause  time.Duration
	Timeout       time.Duration
	UploadTimeout time.Duration
}

// Client issues REST requests with connectivity awareness and bounded
// exponential-backoff retry for transient failures.
type Client struct {
	base    string
	http    *http.Client
	creds   CredentialStore
	checker ConnectivityChecker
	opts    Options

	mu       sync.Mutex
	backoffs map[string]*backoff.ExponentialBackOff
}

// NewClient builds a Client. The notifier, when given, resets retry
// bookkeeping on every offline-to-online transition.
func NewClient(baseURL string, creds CredentialStore, checker ConnectivityChecker, notifier *Notifier, opts Options) *Client {
	c := &Client{
		base:     baseURL,
		http:     &http.Client{},
		creds:    creds,
		checker:  checker,
		opts:     opts,
		backoffs: make(map[string]*backoff.ExponentialBackOff),
	}
	if notifier != nil {
		notifier.mu.Lock()
		notifier.onRecover = append(notifier.onRecover, c.ResetBackoffs)
		notifier.mu.Unlock()
	}
	return c
}

// GetJSON issues a GET and decodes the JSON response into out.
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	body, err := c.do(ctx, http.MethodGet, path, nil, "", c.opts.Timeout)
	if err != nil {
		return err
	}
	return decode(body, out)
}

// PostJSON issues a POST with a JSON body and decodes the response.
func (c *Client) PostJSON(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}
	mkBody := func() io.Reader { return bytes.NewReader(payload) }
	body, err := c.do(ctx, http.MethodPost, path, mkBody, "application/json", c.opts.Timeout)
	if err != nil {
		return err
	}
	return decode(body, out)
}

// Upload issues a multipart POST carrying one file plus form fields and
// decodes the response. Uploads get a longer timeout than plain calls.
func (c *Client) Upload(ctx context.Context, path string, fields map[string]string, fileField, fileName string, file io.Reader, out any) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return err
		}
	}
	part, err := writer.CreateFormFile(fileField, fileName)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	payload := buf.Bytes()
	mkBody := func() io.Reader { return bytes.NewReader(payload) }
	timeout := c.opts.UploadTimeout
	if timeout == 0 {
		timeout = c.opts.Timeout
	}
	body, err := c.do(ctx, http.MethodPost, path, mkBody, writer.FormDataContentType(), timeout)
	if err != nil {
		return err
	}
	return decode(body, out)
}

// ResetBackoffs clears per-request retry bookkeeping. Called when
// connectivity comes back so the next failure starts from the base delay.
func (c *Client) ResetBackoffs() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.backoffs = make(map[string]*backoff.ExponentialBackOff)
}

func (c *Client) do(ctx context.Context, method, path string, mkBody func() io.Reader, contentType string, timeout time.Duration) ([]byte, error) {
	if !c.checker.Online() {
		observability.IncHTTPRequest(method, path, "offline")
		return nil, ErrOffline
	}

	key := method + " " + path
	var lastErr error
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			if attempt > c.opts.MaxRetries {
				// The next independent call to this route starts
				// from the base delay again.
				c.clearBackoff(key)
				observability.IncHTTPRequest(method, path, "exhausted")
				return nil, fmt.Errorf("%w: %v", ErrRetryBudget, lastErr)
			}
			observability.IncHTTPRetry(method, path)
			if err := c.sleep(ctx, c.nextDelay(key)); err != nil {
				return nil, err
			}
			// A tight loop while fully offline helps nobody; pause
			// extra before re-dialing.
			if !c.checker.Online() {
				if err := c.sleep(ctx, c.opts.OfflinePause); err != nil {
					return nil, err
				}
			}
		}

		body, retryable, err := c.attempt(ctx, method, path, mkBody, contentType, timeout)
		if err == nil {
			c.clearBackoff(key)
			observability.IncHTTPRequest(method, path, "ok")
			return body, nil
		}
		if !retryable {
			observability.IncHTTPRequest(method, path, "failed")
			return nil, err
		}
		log.Printf("http %s %s failed (attempt %d): %v", method, path, attempt+1, err)
		lastErr = err
	}
}

func (c *Client) attempt(ctx context.Context, method, path string, mkBody func() io.Reader, contentType string, timeout time.Duration) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if mkBody != nil {
		body = mkBody()
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, false, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	token := c.creds.Token()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// No response at all counts as transient.
		return nil, true, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, err
	}

	switch {
	case resp.StatusCode < 400:
		return data, false, nil
	case resp.StatusCode == http.StatusUnauthorized:
		if token != "" {
			log.Printf("http %s %s returned 401, clearing credential", method, path)
			c.creds.Clear()
		}
		return nil, false, ErrUnauthorized
	case isRetryableStatus(resp.StatusCode):
		return nil, true, &StatusError{Code: resp.StatusCode, Body: string(data)}
	default:
		return nil, false, &StatusError{Code: resp.StatusCode, Body: string(data)}
	}
}

func isRetryableStatus(code int) bool {
	if code >= 500 {
		return true
	}
	return code == http.StatusRequestTimeout || code == http.StatusTooManyRequests
}

func (c *Client) nextDelay(key string) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.backoffs[key]
	if !ok {
		b = backoff.NewExponentialBackOff()
		b.InitialInterval = c.opts.BaseDelay
		b.MaxInterval = c.opts.MaxDelay
		b.MaxElapsedTime = 0
		b.Reset()
		c.backoffs[key] = b
	}
	return b.NextBackOff()
}

func (c *Client) clearBackoff(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.backoffs, key)
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func decode(body []byte, out any) error {
	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}
