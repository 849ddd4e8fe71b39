// Package gateway is the single road to the coordination server's admin API.
// It attaches the credential, bounds every call with a timeout, validates
// response shapes, and maps every failure into a small classified taxonomy.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"meshadmin.org/internal/obs"
)

const defaultTimeout = 30 * time.Second

// Validator lets a response type veto a structurally decodable but
// semantically broken body. Decode success plus Validate success is what
// "matches the expected shape" means.
type Validator interface {
	Validate() error
}

// Config is the immutable connection configuration. It is constructed once
// and injected into every component that talks to the coordination server.
type Config struct {
	// BaseURL is the coordination server root, e.g. "https://mesh.example.com".
	BaseURL string
	// APIKey is the bearer credential attached to every outbound request.
	APIKey string
	// Timeout bounds each call; zero means the 30s default.
	Timeout time.Duration
}

// Client executes requests against the coordination server. Safe for
// concurrent use.
type Client struct {
	baseURL *url.URL
	apiKey  string
	timeout time.Duration
	http    *http.Client
}

// NewClient validates the configuration and builds a client.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("gateway: base url is required")
	}
	parsed, err := url.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("gateway: invalid base url %q", base)
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("gateway: api key is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: parsed,
		apiKey:  strings.TrimSpace(cfg.APIKey),
		timeout: timeout,
		http:    &http.Client{},
	}, nil
}

// Execute performs one request. body (may be nil) is sent as JSON; the
// response body is decoded into out (may be nil for fire-and-forget
// mutations). All failures come back as *Error. The gateway never retries:
// mutating endpoints are not assumed idempotent, so retrying is the caller's
// decision.
func (c *Client) Execute(ctx context.Context, method, path string, body any, out any) error {
	err := c.execute(ctx, method, path, body, out)
	kind := "ok"
	if err != nil {
		kind = string(KindOf(err))
	}
	obs.ObserveGateway(method, kind)
	return err
}

func (c *Client) execute(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return newError(KindInternal, "request encoding failed")
		}
		reader = bytes.NewReader(payload)
	}

	// The per-call timeout never extends a caller-supplied deadline; the
	// earlier of the two wins.
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return newError(KindInternal, "request construction failed")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyTransport(ctx, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return classifyTransport(ctx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return classifyStatus(resp.StatusCode, raw)
	}
	if out == nil {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(out); err != nil {
		return newError(KindInvalidResponse, "response did not match the expected shape")
	}
	if v, ok := out.(Validator); ok {
		if err := v.Validate(); err != nil {
			return newError(KindInvalidResponse, "response did not match the expected shape")
		}
	}
	return nil
}

// classifyTransport maps transport failures to Timeout/ConnectionError.
// Raw error text stays inside the gateway.
func classifyTransport(ctx context.Context, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return newError(KindTimeout, "coordination server did not respond in time")
	}
	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.Timeout() {
		return newError(KindTimeout, "coordination server did not respond in time")
	}
	return newError(KindConnectionError, "coordination server is unreachable")
}

func classifyStatus(status int, raw []byte) *Error {
	switch {
	case status == http.StatusNotFound:
		return newError(KindNotFound, "resource not found on coordination server")
	case status >= 400 && status < 500:
		msg := remoteMessage(raw)
		if msg == "" {
			msg = fmt.Sprintf("coordination server rejected the request (%d)", status)
		}
		return newError(KindRemoteRejected, msg)
	default:
		return newError(KindInternal, fmt.Sprintf("coordination server error (%d)", status))
	}
}

// remoteMessage pulls the remote's own error message when the body carries
// the documented {"message": ...} or {"error": ...} shape.
func remoteMessage(raw []byte) string {
	var parsed struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return ""
	}
	if msg := strings.TrimSpace(parsed.Message); msg != "" {
		return msg
	}
	return strings.TrimSpace(parsed.Error)
}
