package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"tailtrail/internal/multipart"
	"tailtrail/internal/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrTokenExpired is returned when the API rejects the bearer token as expired.
var ErrTokenExpired = errors.New("token expired")

const tokenExpiredMarker = "Token expired!"

// TokenSource supplies the bearer token for outgoing requests. An empty
// token with a nil error means the request is sent unauthenticated.
type TokenSource interface {
	Token() (string, error)
}

// Client talks to the TailTrail API.
type Client struct {
	baseURL   string
	http      *http.Client
	timeout   time.Duration
	tokens    TokenSource
	log       *utils.Logger
	onExpired func()
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client. A nil hc is ignored.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the timeout of the default http.Client. It has no effect
// together with WithHTTPClient.
func WithTimeout(d time.Duration) Option { return func(c *Client) { c.timeout = d } }

// WithLogger sets the logger used for failed requests.
func WithLogger(l *utils.Logger) Option { return func(c *Client) { c.log = l } }

// WithExpiredHandler registers fn to run when the API reports an expired token.
func WithExpiredHandler(fn func()) Option { return func(c *Client) { c.onExpired = fn } }

// New returns a Client for baseURL. tokens may be nil.
func New(baseURL string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: 30 * time.Second,
		tokens:  tokens,
		log:     utils.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: c.timeout}
	}
	return c
}

// BaseURL returns the API root without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// Response is a completed 2xx response.
type Response struct {
	StatusCode int
	Body       []byte
}

// Do sends req with the bearer token attached. Non-2xx responses become
// *utils.APIError; an expired token also matches ErrTokenExpired.
func (c *Client) Do(req *http.Request) (*Response, error) {
	if c.tokens != nil {
		token, err := c.tokens.Token()
		if err != nil {
			return nil, fmt.Errorf("read token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := utils.NewAPIError(resp.StatusCode, errorMessage(body))
		c.log.Warnf("%s %s: %v", req.Method, req.URL.Path, apiErr)
		if resp.StatusCode == http.StatusUnauthorized && bytes.Contains(body, []byte(tokenExpiredMarker)) {
			if c.onExpired != nil {
				c.onExpired()
			}
			return nil, fmt.Errorf("%w: %w", ErrTokenExpired, apiErr)
		}
		return nil, apiErr
	}
	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}

// NewRequest builds a request for path relative to the base URL.
func (c *Client) NewRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	return http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
}

// GetJSON decodes the response of GET path into out.
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	req, err := c.NewRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return c.doJSON(req, out)
}

// PostJSON sends in as JSON and decodes the response into out. out may be nil.
func (c *Client) PostJSON(ctx context.Context, path string, in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := c.NewRequest(ctx, http.MethodPost, path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.doJSON(req, out)
}

// Delete sends DELETE path and discards the response body.
func (c *Client) Delete(ctx context.Context, path string) error {
	req, err := c.NewRequest(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	_, err = c.Do(req)
	return err
}

// Upload POSTs the multipart body built by enc to path and decodes the response into out.
func (c *Client) Upload(ctx context.Context, path string, enc *multipart.Encoder, out any) error {
	req, err := enc.NewRequest(ctx, http.MethodPost, c.baseURL+path)
	if err != nil {
		return fmt.Errorf("encode multipart body: %w", err)
	}
	return c.doJSON(req, out)
}

func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	if out == nil || len(resp.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("decode response from %s: %w", req.URL.Path, err)
	}
	return nil
}

// errorMessage pulls "error" or "detail" out of a JSON error body, falling
// back to the raw text.
func errorMessage(body []byte) string {
	var payload struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Detail != "" {
			return payload.Detail
		}
	}
	return strings.TrimSpace(string(body))
}
