// Package client はREST APIを呼び出すHTTPクライアントを提供する。
// 外部への通信はすべてClientを経由する。
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// userAgent はリクエストに付与するUser-Agent。
const userAgent = "rpgtable-client/1.0"

// ErrNotConfigured はConfigure前にリクエストしたことを示す。
var ErrNotConfigured = errors.New("client: base URL is not configured")

// Client はAPIサーバーへのHTTPリクエストを一元化する。
// ベースURLと現在のBearerクレデンシャルを保持し、goroutine安全に使用できる。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger

	mu         sync.RWMutex
	baseURL    *url.URL
	credential string
}

// New はClientを生成する。httpClientがnilの場合はhttp.DefaultClientを使用する。
func New(httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{httpClient: httpClient, logger: logger}
}

// Configure はAPIのベースURLを検証して設定する。
// http/httpsスキームとホストを必須とする。
func (c *Client) Configure(baseURL string) error {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return fmt.Errorf("client: invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("client: base URL scheme must be http or https: %q", baseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("client: base URL has no host: %q", baseURL)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawQuery = ""
	u.Fragment = ""

	c.mu.Lock()
	c.baseURL = u
	c.mu.Unlock()
	return nil
}

// BaseURL は設定済みのベースURLを返す。未設定の場合は空文字。
func (c *Client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.baseURL == nil {
		return ""
	}
	return c.baseURL.String()
}

// SetCredential はBearerクレデンシャルを設定する。空文字で解除する。
func (c *Client) SetCredential(credential string) {
	c.mu.Lock()
	c.credential = credential
	c.mu.Unlock()
}

// Credential は現在のクレデンシャルを返す。
func (c *Client) Credential() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.credential
}

// Response はサーバーの応答。ステータスとボディを加工せずに保持する。
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

type requestOptions struct {
	credential    string
	hasCredential bool
}

// RequestOption はリクエスト単位の設定を変更する。
type RequestOption func(*requestOptions)

// WithCredential はこのリクエストに限り、指定したクレデンシャルを使用する。
// 空文字を指定するとAuthorizationヘッダーを付与しない。
func WithCredential(credential string) RequestOption {
	return func(o *requestOptions) {
		o.credential = credential
		o.hasCredential = true
	}
}

// Request はリクエストを1回だけ送信する。リトライやキャッシュは行わない。
// bodyがnil以外の場合はJSONにエンコードして送信する。
// 通信に失敗した場合は*NetworkError、2xx以外の応答は*HTTPErrorを返す。
func (c *Client) Request(ctx context.Context, method, path string, body any, opts ...RequestOption) (*Response, error) {
	c.mu.RLock()
	base := c.baseURL
	credential := c.credential
	c.mu.RUnlock()

	if base == nil {
		return nil, ErrNotConfigured
	}

	var o requestOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.hasCredential {
		credential = o.credential
	}

	target := base.String() + "/" + strings.TrimLeft(path, "/")

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("client: failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("client: failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if credential != "" {
		req.Header.Set("Authorization", "Bearer "+credential)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return nil, &NetworkError{Method: method, URL: target, Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Method: method, URL: target, Err: err}
	}

	c.logger.Debug("request completed",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newHTTPError(resp.StatusCode, payload)
	}
	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: payload}, nil
}

// Do はリクエストを送信し、応答ボディをoutにデコードする。
// outがnilまたは応答ボディが空の場合はデコードしない。
func (c *Client) Do(ctx context.Context, method, path string, in, out any, opts ...RequestOption) error {
	resp, err := c.Request(ctx, method, path, in, opts...)
	if err != nil {
		return err
	}
	if out == nil || len(resp.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("client: failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}
