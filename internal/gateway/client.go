// client.go -- HTTP client for the WhatsApp gateway service.
//
// Every endpoint answers with the same envelope:
//
//	{"success": bool, "message": string, "data": ...}
package gateway

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
)

// ErrNoBusinessAccounts is returned by FetchBusinessAccounts when the token
// can see no WhatsApp Business Account at all.
var ErrNoBusinessAccounts = errors.New("gateway: no business accounts")

// APIError is a gateway response that was not a usable success.
// StatusCode is the HTTP status; Message is the envelope message when one was decoded.
type APIError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("gateway: %s: status %d: %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("gateway: %s: status %d", e.Op, e.StatusCode)
}

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 1 << 20

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Client talks to the gateway. Safe for concurrent use.
// Satisfies connect.Directory, connect.PartnerVerifier, connect.TokenExchanger
// and connect.Subscriber.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

// NewClient returns a Client for baseURL (no trailing slash needed).
// timeout bounds each call; <= 0 means 15s.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		timeout:    timeout,
	}
}

// do sends one request and decodes the envelope.
// token, when set, is sent as a bearer credential through an oauth2 transport.
// A non-2xx status returns *APIError; a 2xx envelope is returned as is, whatever its success flag.
func (c *Client) do(ctx context.Context, op, method, path, token string, body any) (*envelope, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("gateway: %s: encoding request: %w", op, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("gateway: %s: building request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.clientFor(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway: %s: request failed: %w", op, err)
	}
	defer resp.Body.Close()

	var env envelope
	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Op: op, StatusCode: resp.StatusCode, Message: env.Message}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("gateway: %s: decoding response: %w", op, decodeErr)
	}
	return &env, nil
}

// clientFor returns the plain client, or one that adds "Authorization: Bearer <token>".
func (c *Client) clientFor(ctx context.Context, token string) *http.Client {
	if token == "" {
		return c.httpClient
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
	}))
}

// decodeData unmarshals env.Data into out.
func decodeData(op string, env *envelope, out any) error {
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return fmt.Errorf("gateway: %s: response has no data", op)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("gateway: %s: decoding data: %w", op, err)
	}
	return nil
}
