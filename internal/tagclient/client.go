// Package tagclient is a Go client library for tagfdd's HTTP-over-UDS API,
// dialing the control socket with a custom http.Transport and exposing
// read/write/create/list operations over it.
package tagclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hmsnyder/tagfd/internal/daemonapi"
	"github.com/hmsnyder/tagfd/internal/tagtype"
)

// Client talks to a running tagfdd over its pair of Unix domain sockets: a
// world-accessible one for tag reads/writes, and an owner-only sibling for
// administrative creation.
type Client struct {
	baseURL      string
	client       *http.Client
	adminBaseURL string
	adminClient  *http.Client
	unaryTimeout time.Duration
}

const defaultUnaryTimeout = 10 * time.Second

// defaultAdminSocketPath derives the admin-only sibling socket path from a
// tag socket path, following the "<root>.master" convention: an owner-only
// socket that never shares a file descriptor with the world-accessible one.
func defaultAdminSocketPath(socketPath string) string {
	return socketPath + ".master"
}

// New constructs a Client dialing socketPath for tag reads/writes and its
// ".master" sibling for administrative creation.
func New(socketPath string) *Client {
	return NewWithSockets(socketPath, defaultAdminSocketPath(socketPath))
}

// NewWithSockets constructs a Client dialing two distinct Unix sockets: one
// for tag reads/writes, one for administrative creation.
func NewWithSockets(socketPath, adminSocketPath string) *Client {
	return NewWithClients(
		"http://unix", unixSocketClient(socketPath),
		"http://unix", unixSocketClient(adminSocketPath),
	)
}

func unixSocketClient(socketPath string) *http.Client {
	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socketPath)
		},
	}
	return &http.Client{Transport: transport}
}

// NewWithClient lets tests inject a single http.Client dialing some other
// transport (e.g. httptest) for both tag and admin operations.
func NewWithClient(baseURL string, client *http.Client) *Client {
	return NewWithClients(baseURL, client, baseURL, client)
}

// NewWithClients lets tests inject independent clients for tag operations
// and administrative operations, mirroring the two-socket split a real
// tagfdd serves.
func NewWithClients(baseURL string, client *http.Client, adminBaseURL string, adminClient *http.Client) *Client {
	if client == nil {
		client = &http.Client{}
	}
	if adminClient == nil {
		adminClient = client
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		client:       client,
		adminBaseURL: strings.TrimRight(adminBaseURL, "/"),
		adminClient:  adminClient,
		unaryTimeout: defaultUnaryTimeout,
	}
}

// WithUnaryTimeout returns a copy of c that bounds non-blocking requests
// (everything but a blocking read) to timeout.
func (c *Client) WithUnaryTimeout(timeout time.Duration) *Client {
	clone := *c
	clone.unaryTimeout = timeout
	return &clone
}

// RequestError is returned for any response with status 400 or above, and
// for 204 No Content (the daemon's EAGAIN: no new value). Code and Message
// come from the daemonapi.ErrorResponse body when it decodes; otherwise
// Code is empty and Message holds the raw body.
type RequestError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *RequestError) Error() string {
	if e.Code != "" && e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.Code != "" {
		return fmt.Sprintf("http %d: %s", e.StatusCode, e.Code)
	}
	return fmt.Sprintf("http %d", e.StatusCode)
}

// Create issues POST /v1/admin, over the admin-only socket, with a
// creation record for name/dtype.
func (c *Client) Create(ctx context.Context, dtype tagtype.DType, name string) error {
	req := tagtype.CreateRequest{Action: tagtype.CreateAction, DType: dtype, Name: name}
	record, err := tagtype.EncodeCreateRequest(req)
	if err != nil {
		return err
	}
	_, err = c.requestAdminBinary(ctx, http.MethodPost, "/v1/admin", record[:])
	return err
}

// Read issues GET /v1/tags/{name}. If nonblocking is false the request has
// no client-side timeout beyond ctx and relies on the daemon's own
// long-poll window.
func (c *Client) Read(ctx context.Context, name string, nonblocking bool) (tagtype.Value, error) {
	query := url.Values{}
	if nonblocking {
		query.Set("nonblocking", "1")
	}
	body, err := c.requestBinary(ctx, http.MethodGet, "/v1/tags/"+url.PathEscape(name), query, nil, !nonblocking)
	if err != nil {
		return tagtype.Value{}, err
	}
	if len(body) < tagtype.RecordSize {
		return tagtype.Value{}, fmt.Errorf("tagclient: short record in response (%d bytes)", len(body))
	}
	return tagtype.DecodeRecord(body), nil
}

// Write issues POST /v1/tags/{name} with one encoded value record.
func (c *Client) Write(ctx context.Context, name string, v tagtype.Value) error {
	record := tagtype.EncodeRecord(v)
	_, err := c.requestBinary(ctx, http.MethodPost, "/v1/tags/"+url.PathEscape(name), nil, record[:], false)
	return err
}

// List issues GET /v1/tags.
func (c *Client) List(ctx context.Context) ([]daemonapi.TagSummary, error) {
	body, err := c.requestJSON(ctx, http.MethodGet, "/v1/tags", nil)
	if err != nil {
		return nil, err
	}
	var envelope daemonapi.TagsEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("tagclient: decode tags envelope: %w", err)
	}
	return envelope.Tags, nil
}

// Health issues GET /v1/health.
func (c *Client) Health(ctx context.Context) (daemonapi.HealthResponse, error) {
	body, err := c.requestJSON(ctx, http.MethodGet, "/v1/health", nil)
	if err != nil {
		return daemonapi.HealthResponse{}, err
	}
	var health daemonapi.HealthResponse
	if err := json.Unmarshal(body, &health); err != nil {
		return daemonapi.HealthResponse{}, fmt.Errorf("tagclient: decode health: %w", err)
	}
	return health, nil
}

func (c *Client) requestJSON(ctx context.Context, method, path string, query url.Values) ([]byte, error) {
	return c.request(ctx, c.baseURL, c.client, method, path, query, nil, "application/json", false)
}

func (c *Client) requestBinary(ctx context.Context, method, path string, query url.Values, body []byte, longLived bool) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	return c.request(ctx, c.baseURL, c.client, method, path, query, reader, "application/octet-stream", longLived)
}

// requestAdminBinary is requestBinary's admin-socket counterpart: every
// administrative call dials adminBaseURL/adminClient instead of the
// world-accessible tag socket.
func (c *Client) requestAdminBinary(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	return c.request(ctx, c.adminBaseURL, c.adminClient, method, path, nil, reader, "application/octet-stream", false)
}

func (c *Client) request(ctx context.Context, baseURL string, httpClient *http.Client, method, path string, query url.Values, body io.Reader, contentType string, longLived bool) ([]byte, error) {
	u := baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	reqCtx := ctx
	if !longLived && c.unaryTimeout > 0 {
		if deadline, ok := ctx.Deadline(); !ok || time.Until(deadline) > c.unaryTimeout {
			var cancel context.CancelFunc
			reqCtx, cancel = context.WithTimeout(ctx, c.unaryTimeout)
			defer cancel()
		}
	}

	req, err := http.NewRequestWithContext(reqCtx, method, u, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 || resp.StatusCode == http.StatusNoContent {
		var er daemonapi.ErrorResponse
		if json.Unmarshal(payload, &er) == nil && er.Error.Code != "" {
			return nil, &RequestError{StatusCode: resp.StatusCode, Code: er.Error.Code, Message: er.Error.Message}
		}
		return nil, &RequestError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(payload))}
	}
	return payload, nil
}
