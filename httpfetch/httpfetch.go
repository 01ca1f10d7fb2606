// Package httpfetch builds querycache fetchers on top of net/http. Non-2xx
// responses come back as *querycache.StatusError so the default classifier
// sees the status code: 401 ends the session, 5xx and 429 are retried.
package httpfetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/tidwall/gjson"
	"github.com/unkn0wn-root/querycache"
)

const (
	defaultMaxBody = 8 << 20
	errSnippet     = 256
)

// ErrPathNotFound is returned by Path when the response lacks the JSON path.
var ErrPathNotFound = errors.New("httpfetch: json path not found")

// TokenSource supplies a bearer token per request. An empty token sends no
// Authorization header.
type TokenSource func(ctx context.Context) (string, error)

type Client struct {
	base    string
	http    *http.Client
	header  http.Header
	token   TokenSource
	maxBody int64
}

type Option func(*Client)

// WithHTTPClient replaces the pooled cleanhttp client.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

func WithHeader(k, v string) Option { return func(c *Client) { c.header.Add(k, v) } }

func WithToken(ts TokenSource) Option { return func(c *Client) { c.token = ts } }

// WithMaxBody caps how many response bytes are read; larger bodies fail
// permanently.
func WithMaxBody(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBody = n
		}
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base:    strings.TrimRight(baseURL, "/"),
		http:    cleanhttp.DefaultPooledClient(),
		header:  make(http.Header),
		maxBody: defaultMaxBody,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Do sends one request and returns the body of a 2xx response.
func (c *Client) Do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.url(path), rd)
	if err != nil {
		return nil, querycache.Permanent(err)
	}
	for k, vs := range c.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if c.token != nil {
		tok, err := c.token(ctx)
		if err != nil {
			return nil, fmt.Errorf("token: %w", err)
		}
		if tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &querycache.StatusError{
			Code:   resp.StatusCode,
			Status: strings.TrimSpace(strings.TrimPrefix(resp.Status, fmt.Sprint(resp.StatusCode))),
			Err:    bodyErr(data),
		}
	}
	if int64(len(data)) > c.maxBody {
		return nil, querycache.Permanent(fmt.Errorf("httpfetch: response exceeds %d bytes", c.maxBody))
	}
	return data, nil
}

func (c *Client) url(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if c.base == "" {
		return path
	}
	return c.base + "/" + strings.TrimLeft(path, "/")
}

func bodyErr(data []byte) error {
	msg := strings.TrimSpace(string(data))
	if msg == "" {
		return nil
	}
	if len(msg) > errSnippet {
		msg = msg[:errSnippet] + "..."
	}
	return errors.New(msg)
}

// JSON fetches path with GET and decodes the body into V.
func JSON[V any](c *Client, path string) querycache.Fetcher[V] {
	return func(ctx context.Context) (V, error) {
		var v V
		data, err := c.Do(ctx, http.MethodGet, path, nil)
		if err != nil {
			return v, err
		}
		if err := json.Unmarshal(data, &v); err != nil {
			return v, querycache.Permanent(fmt.Errorf("httpfetch: decode %s: %w", path, err))
		}
		return v, nil
	}
}

// Path fetches path with GET and returns the raw JSON found at the gjson
// path, e.g. "data.items.#.id". An empty path returns the whole body.
func Path(c *Client, path, jsonPath string) querycache.Fetcher[string] {
	return func(ctx context.Context) (string, error) {
		data, err := c.Do(ctx, http.MethodGet, path, nil)
		if err != nil {
			return "", err
		}
		if jsonPath == "" {
			return string(data), nil
		}
		if !gjson.ValidBytes(data) {
			return "", querycache.Permanent(fmt.Errorf("httpfetch: %s: body is not JSON", path))
		}
		res := gjson.GetBytes(data, jsonPath)
		if !res.Exists() {
			return "", querycache.Permanent(fmt.Errorf("%w: %q in %s", ErrPathNotFound, jsonPath, path))
		}
		return res.Raw, nil
	}
}

// Send encodes in as JSON, sends it with method and decodes the reply into
// Out. Use it with querycache.Mutate.
func Send[In, Out any](c *Client, method, path string, in In) querycache.Fetcher[Out] {
	return func(ctx context.Context) (Out, error) {
		var out Out
		body, err := json.Marshal(in)
		if err != nil {
			return out, querycache.Permanent(err)
		}
		data, err := c.Do(ctx, method, path, body)
		if err != nil {
			return out, err
		}
		if len(bytes.TrimSpace(data)) == 0 {
			return out, nil
		}
		if err := json.Unmarshal(data, &out); err != nil {
			return out, querycache.Permanent(fmt.Errorf("httpfetch: decode %s: %w", path, err))
		}
		return out, nil
	}
}
