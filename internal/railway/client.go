package railway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/MrWong99/railvox/internal/nlu"
)

var _ Service = (*Client)(nil)

// ActionsPath is the endpoint a remote train-data service serves.
const ActionsPath = "/v1/actions"

const defaultTimeout = 10 * time.Second

// ClientOption configures a [Client].
type ClientOption func(*Client)

// WithHTTPClient replaces the HTTP client. The default one traces every
// call with otelhttp.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) { cl.http = c }
}

// WithToken sends token as a bearer token on every request.
func WithToken(token string) ClientOption {
	return func(cl *Client) { cl.token = token }
}

// Client is a [Service] that posts requests to a remote train-data service.
// The body is the [nlu.MarshalRequest] encoding; the reply is a [Result].
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient returns a [Client] for the service at baseURL.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("railway: base URL must not be empty")
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Handle implements [Service].
func (c *Client) Handle(ctx context.Context, req nlu.Request) (Result, error) {
	body, err := nlu.MarshalRequest(req)
	if err != nil {
		return Result{}, fmt.Errorf("railway: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+ActionsPath, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("railway: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("railway: post %s: %w", req.Action(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Result{}, fmt.Errorf("railway: %s returned status %d: %s", req.Action(), resp.StatusCode, bytes.TrimSpace(msg))
	}

	var res Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return Result{}, fmt.Errorf("railway: decode result: %w", err)
	}
	if res.Type == "" {
		return Result{}, errors.New("railway: result without type")
	}
	return res, nil
}
