package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/rpgtable/internal/api"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c := New(server.Client(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := c.Configure(server.URL); err != nil {
		t.Fatalf("Configure error = %v", err)
	}
	return c, server
}

func TestConfigure(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		wantErr bool
		want    string
	}{
		{name: "http", baseURL: "http://localhost:8080", want: "http://localhost:8080"},
		{name: "末尾スラッシュを除去", baseURL: "https://api.example.com/v1/", want: "https://api.example.com/v1"},
		{name: "スキームなし", baseURL: "localhost:8080", wantErr: true},
		{name: "未対応スキーム", baseURL: "ftp://example.com", wantErr: true},
		{name: "ホストなし", baseURL: "http://", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(nil, nil)
			err := c.Configure(tt.baseURL)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Configure(%q) error = %v, wantErr %v", tt.baseURL, err, tt.wantErr)
			}
			if !tt.wantErr && c.BaseURL() != tt.want {
				t.Errorf("BaseURL = %q, want %q", c.BaseURL(), tt.want)
			}
		})
	}
}

func TestRequest_NotConfigured(t *testing.T) {
	c := New(nil, nil)
	_, err := c.Request(context.Background(), http.MethodGet, "/rpgs", nil)
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("error = %v, want ErrNotConfigured", err)
	}
}

func TestRequest_AttachesBearerCredential(t *testing.T) {
	var gotAuth []string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = append(gotAuth, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	}))
	ctx := context.Background()

	if _, err := c.Request(ctx, http.MethodGet, "/rpgs", nil); err != nil {
		t.Fatalf("Request error = %v", err)
	}
	c.SetCredential("T")
	if _, err := c.Request(ctx, http.MethodGet, "/rpgs", nil); err != nil {
		t.Fatalf("Request error = %v", err)
	}
	if _, err := c.Request(ctx, http.MethodPost, "/user/logout", nil, WithCredential("old")); err != nil {
		t.Fatalf("Request error = %v", err)
	}
	c.SetCredential("")
	if _, err := c.Request(ctx, http.MethodGet, "/rpgs", nil); err != nil {
		t.Fatalf("Request error = %v", err)
	}

	want := []string{"", "Bearer T", "Bearer old", ""}
	if len(gotAuth) != len(want) {
		t.Fatalf("requests = %d, want %d", len(gotAuth), len(want))
	}
	for i := range want {
		if gotAuth[i] != want[i] {
			t.Errorf("request %d Authorization = %q, want %q", i, gotAuth[i], want[i])
		}
	}
}

func TestRequest_SendsJSONBody(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type = %q", r.Header.Get("Content-Type"))
		}
		var req api.LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode error = %v", err)
		}
		if req.Email != "gm@example.com" {
			t.Errorf("email = %q", req.Email)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))

	resp, err := c.Request(context.Background(), http.MethodPost, "/login", api.LoginRequest{Email: "gm@example.com", Password: "pw"})
	if err != nil {
		t.Fatalf("Request error = %v", err)
	}
	if resp.Status != http.StatusOK || !bytes.Equal(resp.Body, []byte(`{"ok":true}`)) {
		t.Errorf("resp = %d %s", resp.Status, resp.Body)
	}
}

// TestRequest_HTTPErrorPreservesPayload はエラー応答のステータスとボディがそのまま伝わることを検証する。
func TestRequest_HTTPErrorPreservesPayload(t *testing.T) {
	payload := `{"code":"RPG_NOT_FOUND","message":"キャンペーンが見つかりません","category":"not_found","action":"IDを確認してください"}`
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(payload))
	}))

	_, err := c.Request(context.Background(), http.MethodGet, "/rpg/99", nil)
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("error = %v, want *HTTPError", err)
	}
	if httpErr.Status != http.StatusNotFound {
		t.Errorf("Status = %d, want 404", httpErr.Status)
	}
	if string(httpErr.Payload) != payload {
		t.Errorf("Payload = %s", httpErr.Payload)
	}
	if httpErr.Code != "RPG_NOT_FOUND" || httpErr.Message != "キャンペーンが見つかりません" {
		t.Errorf("Code/Message = %q/%q", httpErr.Code, httpErr.Message)
	}
	if StatusCode(err) != http.StatusNotFound || IsUnauthorized(err) {
		t.Errorf("StatusCode = %d, IsUnauthorized = %v", StatusCode(err), IsUnauthorized(err))
	}
}

func TestRequest_NonJSONErrorBody(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))

	_, err := c.Request(context.Background(), http.MethodGet, "/rpgs", nil)
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("error = %v, want *HTTPError", err)
	}
	if httpErr.Code != "" || httpErr.Error() != "http 502 Bad Gateway" {
		t.Errorf("Error() = %q", httpErr.Error())
	}
}

func TestRequest_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	c := New(nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := c.Configure(url); err != nil {
		t.Fatalf("Configure error = %v", err)
	}

	_, err := c.Request(context.Background(), http.MethodGet, "/rpgs", nil)
	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("error = %v, want *NetworkError", err)
	}
	if netErr.Method != http.MethodGet {
		t.Errorf("Method = %q", netErr.Method)
	}
}

func TestDo_DecodesAndSkipsEmptyBody(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		json.NewEncoder(w).Encode(api.RPG{ID: 3, Name: "Dragon Hunt"})
	}))
	ctx := context.Background()

	var got api.RPG
	if err := c.Do(ctx, http.MethodGet, "/rpg/3", nil, &got); err != nil {
		t.Fatalf("Do error = %v", err)
	}
	if got.ID != 3 || got.Name != "Dragon Hunt" {
		t.Errorf("rpg = %+v", got)
	}
	if err := c.Do(ctx, http.MethodDelete, "/rpg/3", nil, &got); err != nil {
		t.Errorf("Do(DELETE) error = %v", err)
	}
}
