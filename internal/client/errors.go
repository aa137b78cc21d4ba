package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/hitoshi/rpgtable/internal/api"
)

// NetworkError はサーバーに到達できなかったことを示す。自動リトライは行わない。
type NetworkError struct {
	Method string
	URL    string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// HTTPError は2xx以外の応答。ステータスとボディをそのまま保持する。
// ボディが統一エラーフォーマットの場合はCodeとMessageを取り出す。
type HTTPError struct {
	Status  int
	Payload []byte
	Code    string
	Message string
}

func newHTTPError(status int, payload []byte) *HTTPError {
	e := &HTTPError{Status: status, Payload: payload}
	var body api.Error
	if err := json.Unmarshal(payload, &body); err == nil {
		e.Code = body.Code
		e.Message = body.Message
	}
	return e
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("http %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("http %d %s", e.Status, http.StatusText(e.Status))
}

// IsUnauthorized はerrが401応答かどうかを返す。
func IsUnauthorized(err error) bool {
	return StatusCode(err) == http.StatusUnauthorized
}

// StatusCode はerrに含まれるHTTPステータスを返す。HTTPErrorでない場合は0。
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status
	}
	return 0
}
