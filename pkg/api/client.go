package api

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

	"github.com/sirupsen/logrus"

	"julianmorley.ca/pasargad/storefront/pkg/global"
)

// Per-call timeouts for slow backend operations.
const (
	ShippingRatesTimeout = 20 * time.Second
	CheckoutTimeout      = 30 * time.Second
	OrderSuccessTimeout  = 15 * time.Second
)

// Credentials supplies the session token and is told when the backend rejects it.
type Credentials interface {
	Token() string
	Invalidate(ctx context.Context)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	creds      Credentials
	log        logrus.FieldLogger
}

type ClientOption func(*Client)

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(log logrus.FieldLogger) ClientOption {
	return func(c *Client) { c.log = log }
}

func WithCredentials(creds Credentials) ClientOption {
	return func(c *Client) { c.creds = creds }
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		log:        global.DiscardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithSession returns a copy of the client bound to different credentials.
// The transport is shared.
func (c *Client) WithSession(creds Credentials) *Client {
	cp := *c
	cp.creds = creds
	return &cp
}

type requestConfig struct {
	timeout time.Duration
	query   url.Values
}

type RequestOption func(*requestConfig)

// WithTimeout overrides the default 10 second timeout for one call.
func WithTimeout(d time.Duration) RequestOption {
	return func(rc *requestConfig) { rc.timeout = d }
}

func WithQuery(q url.Values) RequestOption {
	return func(rc *requestConfig) { rc.query = q }
}

// Send performs one request against the backend. Any failure is returned
// as an *Error; a 401 additionally invalidates the credentials.
func (c *Client) Send(ctx context.Context, method, path string, body interface{}, opts ...RequestOption) (*global.Response, error) {
	rc := requestConfig{}
	for _, opt := range opts {
		opt(&rc)
	}

	ctx, cancel := global.WithTimer(ctx, rc.timeout)
	defer cancel()

	target := c.baseURL + path
	if len(rc.query) > 0 {
		target += "?" + rc.query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s %s body: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s %s: %w", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.creds != nil {
		if token := c.creds.Token(); token != "" {
			req.Header.Set("Authorization", "Token "+token)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.WithFields(logrus.Fields{"method": method, "path": path}).WithError(err).Warn("backend unreachable")
		return nil, &Error{Kind: KindNetwork, Message: MsgNetwork, Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Message: MsgNetwork, Method: method, Path: path, Status: resp.StatusCode, Err: err}
	}

	log := c.log.WithFields(logrus.Fields{
		"method":   method,
		"path":     path,
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	})

	out := &global.Response{StatusCode: resp.StatusCode, Body: respBody, Headers: resp.Header}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		log.Debug("backend call")
		return out, nil
	}

	apiErr := classifyResponse(method, path, resp.StatusCode, respBody)
	switch apiErr.Kind {
	case KindSessionExpired:
		log.Info("session rejected by backend")
		if c.creds != nil {
			c.creds.Invalidate(context.WithoutCancel(ctx))
		}
	case KindServer:
		log.WithField("body", string(respBody)).Error("backend server error")
	default:
		log.WithField("kind", apiErr.Kind).Debug("backend call failed")
	}
	return out, apiErr
}

// do sends a request and decodes a successful body into out (when non-nil).
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}, opts ...RequestOption) error {
	resp, err := c.Send(ctx, method, path, body, opts...)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := resp.Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}
