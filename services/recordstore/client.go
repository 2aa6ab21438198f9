// Package recordstore is the JSON/HTTP client for the academic records
// service every engine in this repo reconciles against. It normalizes the
// server's duck-typed list shapes (bare arrays vs {data, total} envelopes) at
// this boundary so callers only ever see one canonical shape, and it puts an
// explicit timeout on every request.
package recordstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

type (
	Client struct {
		base    *url.URL
		http    *http.Client
		auth    *AuthContext
		logger  core.Logger
		timeout time.Duration
	}

	Option func(*Client)

	// APIError is a non-2xx server response.
	APIError struct {
		Status  int
		Message string
	}
)

func (err *APIError) Error() string {
	return fmt.Sprintf("recordstore: %d %s", err.Status, err.Message)
}

func WithBaseURL(raw string) Option {
	return func(c *Client) {
		if u, err := url.Parse(raw); err == nil {
			c.base = u
		}
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(logger core.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// NewClient returns a RecordStore client. The credential travels in an
// explicit AuthContext injected here, never via ambient lookup.
func NewClient(auth *AuthContext, opts ...Option) (*Client, error) {
	base, err := url.Parse(core.Conf.GetString("recordstore.baseURL"))
	if err != nil {
		return nil, pkgerrors.Wrap(err, "parsing recordstore.baseURL")
	}
	c := &Client{
		base:    base,
		http:    &http.Client{},
		auth:    auth,
		logger:  core.NopLogger{},
		timeout: core.Conf.GetDuration("recordstore.timeout"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Auth exposes the client's credential context.
func (c *Client) Auth() *AuthContext {
	return c.auth
}

// do performs one request and returns the raw response body.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body interface{}) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var (
		reqBody     io.Reader
		contentType string
	)
	switch b := body.(type) {
	case nil:
	case url.Values: // form-encoded (login)
		reqBody = strings.NewReader(b.Encode())
		contentType = "application/x-www-form-urlencoded"
	default:
		data, err := json.Marshal(body)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "encoding request body")
		}
		reqBody = bytes.NewReader(data)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "building request")
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.New().String())
	if token := c.auth.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "%s %s", method, path)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "reading %s %s response", method, path)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.auth.expire()
		return nil, core.ErrSessionExpired
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Status: resp.StatusCode, Message: errorMessage(data)}
	}
	return data, nil
}

// doJSON performs a request and decodes the response into out (if non-nil).
func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	data, err := c.do(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return pkgerrors.Wrapf(err, "decoding %s %s response", method, path)
	}
	return nil
}

// errorMessage extracts a human message from the server's error body; the
// service answers both {"message": ...} and FastAPI-style {"detail": ...}.
func errorMessage(data []byte) string {
	var body struct {
		Message string          `json:"message"`
		Detail  json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return strings.TrimSpace(string(data))
	}
	if body.Message != "" {
		return body.Message
	}
	if len(body.Detail) > 0 {
		var s string
		if err := json.Unmarshal(body.Detail, &s); err == nil {
			return s
		}
		return string(body.Detail)
	}
	return strings.TrimSpace(string(data))
}

// unmarshalList accepts both a bare JSON array and a {data, total} envelope.
// It returns the envelope total, or -1 when the shape carried none.
func unmarshalList(data []byte, out interface{}) (int, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		if err := json.Unmarshal(data, out); err != nil {
			return 0, err
		}
		return -1, nil
	}
	var env struct {
		Data  json.RawMessage `json:"data"`
		Total int             `json:"total"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return 0, err
	}
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return 0, err
		}
	}
	return env.Total, nil
}

// notFound maps a 404 APIError to the given sentinel.
func notFound(err, sentinel error) error {
	if apiErr, ok := pkgerrors.Cause(err).(*APIError); ok && apiErr.Status == http.StatusNotFound {
		return sentinel
	}
	return err
}
