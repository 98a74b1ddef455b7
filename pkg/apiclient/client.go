// Package apiclient is a typed client for the voluntrack REST API. Every
// non-2xx answer comes back as *Error.
package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultTimeout = 15 * time.Second

// Error is a failed API call. RemainingAttempts is set when a reset code was
// wrong and more attempts are allowed.
type Error struct {
	Status            int
	Message           string
	RemainingAttempts *int
}

func (e *Error) Error() string {
	if e.RemainingAttempts != nil {
		return fmt.Sprintf("api error (%d): %s (%d attempts remaining)", e.Status, e.Message, *e.RemainingAttempts)
	}
	return fmt.Sprintf("api error (%d): %s", e.Status, e.Message)
}

// StatusCode returns the HTTP status of err when it is an *Error, else 0.
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

type errorEnvelope struct {
	Success           bool   `json:"success"`
	Error             string `json:"error"`
	RemainingAttempts *int   `json:"remaining_attempts"`
}

type Client struct {
	http *resty.Client
}

type Option func(*resty.Client)

func WithTimeout(timeout time.Duration) Option {
	return func(c *resty.Client) {
		c.SetTimeout(timeout)
	}
}

func New(baseURL string, opts ...Option) *Client {
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "voluntrack-apiclient/1.0").
		SetTimeout(defaultTimeout)
	for _, opt := range opts {
		opt(httpClient)
	}
	return &Client{http: httpClient}
}

// SetToken attaches a bearer token to every later request. An empty token
// clears it.
func (c *Client) SetToken(token string) {
	c.http.SetAuthToken(token)
}

func (c *Client) Token() string {
	return c.http.Token
}

// request is a single call description.
type request struct {
	method string
	path   string
	query  map[string]string
	body   any
}

func (c *Client) do(ctx context.Context, r request, out any) error {
	var apiErr errorEnvelope
	req := c.http.R().
		SetContext(ctx).
		SetError(&apiErr)
	if r.query != nil {
		req.SetQueryParams(r.query)
	}
	if r.body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(r.body)
	}
	if out != nil {
		req.SetResult(out)
	}

	resp, err := req.Execute(r.method, r.path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", r.method, r.path, err)
	}
	if resp.IsError() {
		message := apiErr.Error
		if message == "" {
			message = strings.TrimSpace(resp.String())
		}
		if message == "" {
			message = http.StatusText(resp.StatusCode())
		}
		return &Error{
			Status:            resp.StatusCode(),
			Message:           message,
			RemainingAttempts: apiErr.RemainingAttempts,
		}
	}
	return nil
}
