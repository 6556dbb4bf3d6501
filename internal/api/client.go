// Package api is the HTTP client for the bullet journal server.
//
// Collections that are guarded by optimistic concurrency (tasks, notes, projects) are returned
// together with the ETag the server sent; writes send it back in If-Match. The client never
// compares tokens itself: a stale token comes back as a 412 StatusError.
package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	HeaderETag      = "ETag"
	HeaderIfMatch   = "If-Match"
	HeaderRequestID = "X-Request-Id"
)

type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     log.FieldLogger
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithLogger(l log.FieldLogger) Option {
	return func(c *Client) { c.log = l }
}

// New returns a client for the server at baseURL. token, when set, is sent as a bearer token.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:   strings.TrimSpace(token),
		http:    &http.Client{},
		log:     log.StandardLogger(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) BaseURL() string { return c.baseURL }

type request struct {
	method  string
	path    string
	query   url.Values
	body    any
	ifMatch string
}

// do performs one round trip. out may be nil. The response headers are returned on success.
func (c *Client) do(ctx context.Context, r request, out any) (http.Header, error) {
	u := c.baseURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		b, err := sonic.Marshal(r.body)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s: %w", r.method, r.path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if r.ifMatch != "" {
		req.Header.Set(HeaderIfMatch, r.ifMatch)
	}
	reqID := uuid.NewString()
	req.Header.Set(HeaderRequestID, reqID)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	c.log.WithFields(log.Fields{
		"method":    r.method,
		"path":      r.path,
		"status":    resp.StatusCode,
		"requestId": reqID,
		"elapsed":   time.Since(start).String(),
	}).Debug("api request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{
			Method: r.method,
			Path:   r.path,
			Code:   resp.StatusCode,
			Body:   strings.TrimSpace(string(b)),
		}
	}
	if out != nil {
		if err := sonic.ConfigStd.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
			return nil, fmt.Errorf("decode %s %s: %w", r.method, r.path, err)
		}
	}
	return resp.Header, nil
}

func itoa(v int64) string { return strconv.FormatInt(v, 10) }
