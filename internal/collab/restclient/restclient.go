package restclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"github.com/edcollab/edcollab/internal/platform/csrf"
)

const defaultTimeout = 30 * time.Second

// Client talks to the collaborator backend. It keeps the session cookie jar
// and performs the CSRF handshake before the first state-changing call.
type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.Mutex
	token string
}

// New builds a client for the given base URL (scheme://host[:port], no
// trailing slash required).
func New(baseURL string) *Client {
	jar, _ := cookiejar.New(nil)
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Jar:     jar,
			Timeout: defaultTimeout,
		},
	}
}

type csrfResponse struct {
	CSRFToken string `json:"csrfToken"`
}

// EnsureCSRF fetches a CSRF token if the client does not hold one yet. Writes
// call it implicitly; it is exported for callers that want to fail fast.
func (c *Client) EnsureCSRF(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" {
		return nil
	}

	var resp csrfResponse
	if err := c.getJSON(ctx, "/api/csrf", &resp); err != nil {
		return fmt.Errorf("csrf handshake: %w", err)
	}
	if resp.CSRFToken == "" {
		return &TransportError{StatusCode: http.StatusOK, Body: "empty csrf token"}
	}
	c.token = resp.CSRFToken
	return nil
}

func (c *Client) csrfToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// GetJSON performs a GET and decodes the 2xx response body into out.
func (c *Client) GetJSON(ctx context.Context, path string, out interface{}) error {
	return c.getJSON(ctx, path, out)
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return &TransportError{Err: err}
	}
	return c.do(req, out)
}

// PostJSON performs the CSRF handshake if needed, then POSTs body as JSON and
// decodes the 2xx response into out (out may be nil).
func (c *Client) PostJSON(ctx context.Context, path string, body, out interface{}) error {
	if err := c.EnsureCSRF(ctx); err != nil {
		return err
	}

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return &TransportError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(csrf.HeaderName, c.csrfToken())
	return c.do(req, out)
}

// PostMultipart performs the CSRF handshake if needed, then POSTs a prepared
// multipart body with the given content type and decodes the 2xx response.
func (c *Client) PostMultipart(ctx context.Context, path, contentType string, body io.Reader, out interface{}) error {
	if err := c.EnsureCSRF(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return &TransportError{Err: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(csrf.HeaderName, c.csrfToken())
	return c.do(req, out)
}

// Download performs a GET and returns the raw response body. The caller must
// close it.
func (c *Client) Download(ctx context.Context, path string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, errorFromResponse(resp)
	}
	return resp.Body, nil
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errorFromResponse(resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransportError{StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// errorFromResponse carries the server's error body verbatim so callers can
// show it to the user.
func errorFromResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &TransportError{
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}
}
