// Package speechtotext is a client for a session-based speech recognition
// service: one-shot HTTP recognition, chunked live upload against a session,
// and a duplex websocket stream with interim and final results.
package speechtotext

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

const (
	BaseURL      = "https://stream.watsonplatform.net/speech-to-text/api"
	PingInterval = 30 * time.Second
	PongTimeout  = 60 * time.Second

	// SessionCookie carries session affinity between calls.
	SessionCookie = "SESSIONID"
)

// Doer sends an HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Client struct {
	baseURL    string
	wsURL      string
	username   string
	password   string
	token      string
	httpClient Doer
	dialer     *websocket.Dialer
	logger     *log.Logger
}

type Option func(*Client)

func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: BaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		// No client timeout: observe_result is a long poll bounded by ctx.
		c.httpClient = &http.Client{}
	}
	if c.dialer == nil {
		c.dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 45 * time.Second,
			WriteBufferSize:  16 * 1024,
		}
	}
	if c.logger == nil {
		c.logger = log.Default()
	}
	if c.wsURL == "" {
		c.wsURL = websocketURL(c.baseURL)
	}
	return c
}

// WithBaseURL sets the HTTP API root, without the /v1 suffix.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(url, "/")
	}
}

// WithWebSocketURL overrides the socket root, which is otherwise derived
// from the base URL.
func WithWebSocketURL(url string) Option {
	return func(c *Client) {
		c.wsURL = strings.TrimSuffix(url, "/")
	}
}

func WithBasicAuth(username, password string) Option {
	return func(c *Client) {
		c.username = username
		c.password = password
	}
}

func WithBearerToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

func WithHTTPClient(client Doer) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

func WithDialer(dialer *websocket.Dialer) Option {
	return func(c *Client) {
		c.dialer = dialer
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func websocketURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base
}

func (c *Client) setAuthHeaders(header http.Header) {
	switch {
	case c.token != "":
		header.Set("Authorization", "Bearer "+c.token)
	case c.username != "":
		creds := base64.StdEncoding.EncodeToString([]byte(c.username + ":" + c.password))
		header.Set("Authorization", "Basic "+creds)
	}
}

func setSessionCookie(header http.Header, cookieSession string) {
	if cookieSession != "" {
		header.Set("Cookie", SessionCookie+"="+cookieSession)
	}
}

func (c *Client) newRequest(
	ctx context.Context,
	method, path string,
	body io.Reader,
) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	c.setAuthHeaders(req.Header)
	return req, nil
}

// send dispatches req and decodes a 2xx JSON body into out. The returned
// response has its body consumed; headers and cookies remain readable.
func (c *Client) send(req *http.Request, out any) (*http.Response, error) {
	c.logger.Debug("http", "method", req.Method, "url", req.URL.String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, parseAPIError(resp.StatusCode, body)
	}

	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return nil, fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return resp, nil
}
