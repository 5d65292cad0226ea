package remote

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

	"golang.org/x/oauth2"

	appLog "attendfill/internal/log"
	"attendfill/internal/model"
)

const maxErrorBody = 512

// Options configures a Client.
type Options struct {
	// BaseURL is the API root, e.g. "https://api.kenjo.io".
	BaseURL string
	// Origin is sent on every request; the platform rejects calls without it.
	Origin string
	// Timeout bounds each HTTP request. Zero means 30s.
	Timeout time.Duration
	// Transport overrides the underlying round tripper (tests).
	Transport http.RoundTripper
}

// Client talks to the attendance platform on behalf of a single user. It owns
// the session token and the user identity; calls are sequential and the
// token is never mutated between Login and Logout.
type Client struct {
	baseURL string

	// plain carries the Origin header but no credentials; it is used for
	// token issuance and as the base of the authorized client.
	plain *http.Client

	token  *oauth2.Token
	authed *http.Client
	userID model.UserID
}

// NewClient creates a Client. It does not perform any network I/O.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		plain: &http.Client{
			Timeout:   opts.Timeout,
			Transport: &originTransport{base: base, origin: opts.Origin},
		},
	}
}

// originTransport sets the Origin header on every outgoing request.
type originTransport struct {
	base   http.RoundTripper
	origin string
}

func (t *originTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.origin == "" {
		return t.base.RoundTrip(req)
	}
	r := req.Clone(req.Context())
	r.Header.Set("Origin", t.origin)
	return t.base.RoundTrip(r)
}

// LoggedIn reports whether a session is established.
func (c *Client) LoggedIn() bool {
	return c.token != nil
}

// UserID returns the identity of the logged-in user.
func (c *Client) UserID() (model.UserID, error) {
	if !c.LoggedIn() {
		return "", ErrNoSession
	}
	return c.userID, nil
}

// doJSON sends payload (GET when nil, POST otherwise) through the authorized
// client and decodes a 200/201 response into out.
func (c *Client) doJSON(ctx context.Context, endpoint string, payload, out any) error {
	if !c.LoggedIn() {
		return ErrNoSession
	}
	return c.send(ctx, c.authed, endpoint, payload, out)
}

func (c *Client) send(ctx context.Context, hc *http.Client, endpoint string, payload, out any) error {
	method := http.MethodGet
	var body io.Reader
	if payload != nil {
		method = http.MethodPost
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("remote: encode %s: %w", endpoint, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	appLog.Debug("remote request", "method", method, "endpoint", endpoint)

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("remote: %s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{
			Method:     method,
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			err = errors.New("empty body")
		}
		return &DataShapeError{Endpoint: endpoint, Field: "body", Err: err}
	}
	return nil
}
