package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hitoshi/rpgtable/internal/api"
)

// fakeAPI はrpgctlが使用するエンドポイントを返すテスト用サーバー。
// クレデンシャル"T"のみを有効とする。
type fakeAPI struct {
	logouts atomic.Int32
	created atomic.Value // 最後に受け取ったPOST /rpgsのボディ
	queries atomic.Value // 最後に受け取ったGET /charactersのクエリ
	meHold  atomic.Value // chan struct{}。設定されている場合、closeされるまで/user/meを保留する
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeErr := func(status int, code string) {
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(api.Error{Code: code, Message: strings.ToLower(code)})
	}

	if r.URL.Path == "/login" {
		var req api.LoginRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Password != "correct-pw" {
			writeErr(http.StatusUnauthorized, "INVALID_CREDENTIALS")
			return
		}
		json.NewEncoder(w).Encode(api.AuthResponse{Token: "T", User: api.User{ID: 1, Name: "GM", Email: req.Email, Type: "admin"}})
		return
	}
	if r.Header.Get("Authorization") != "Bearer T" {
		writeErr(http.StatusUnauthorized, "UNAUTHORIZED")
		return
	}

	updated := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	switch {
	case r.URL.Path == "/user/me":
		if hold, ok := f.meHold.Load().(chan struct{}); ok {
			<-hold
		}
		json.NewEncoder(w).Encode(api.User{ID: 1, Name: "GM", Email: "gm@example.com", Type: "admin"})
	case r.URL.Path == "/user/logout":
		f.logouts.Add(1)
		w.WriteHeader(http.StatusNoContent)
	case r.URL.Path == "/rpgs" && r.Method == http.MethodGet:
		json.NewEncoder(w).Encode(api.List[api.RPG]{
			Items: []api.RPG{{ID: 1, Name: "Dragon Hunt", OwnerID: 1, UpdatedAt: updated}},
			Page:  1, Limit: 20, Total: 1,
		})
	case r.URL.Path == "/rpgs" && r.Method == http.MethodPost:
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		f.created.Store(req)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(api.RPG{ID: 2, Name: req["name"].(string), OwnerID: 1})
	case r.URL.Path == "/rpg/99":
		writeErr(http.StatusNotFound, "RPG_NOT_FOUND")
	case r.URL.Path == "/rpg/2" && r.Method == http.MethodDelete:
		w.WriteHeader(http.StatusNoContent)
	case r.URL.Path == "/characters":
		f.queries.Store(r.URL.RawQuery)
		json.NewEncoder(w).Encode(api.List[api.Character]{
			Items: []api.Character{{ID: 4, RPGID: 1, UserID: 1, Name: "Aria", Class: "Mage", Level: 3}},
			Page:  1, Limit: 20, Total: 1,
		})
	case r.URL.Path == "/events":
		json.NewEncoder(w).Encode(api.List[api.Event]{
			Items: []api.Event{{ID: 9, CharacterID: 4, EventTypeID: 1, Title: "Met the king", OccurredAt: updated}},
			Page:  1, Limit: 20, Total: 1,
		})
	case r.URL.Path == "/eventTypes":
		json.NewEncoder(w).Encode(api.List[api.EventType]{Items: []api.EventType{{ID: 1, Name: "dialogue"}}, Page: 1, Limit: 1, Total: 1})
	default:
		writeErr(http.StatusNotFound, "NOT_FOUND")
	}
}

type cliEnv struct {
	api         *fakeAPI
	url         string
	sessionFile string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	f := &fakeAPI{}
	server := httptest.NewServer(f)
	t.Cleanup(server.Close)
	return &cliEnv{api: f, url: server.URL, sessionFile: filepath.Join(t.TempDir(), "session.yaml")}
}

func (e *cliEnv) run(t *testing.T, stdin string, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	return e.runContext(t, context.Background(), stdin, args...)
}

func (e *cliEnv) runContext(t *testing.T, ctx context.Context, stdin string, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	full := append([]string{"--api-url", e.url, "--session-file", e.sessionFile}, args...)
	code = Execute(ctx, full, strings.NewReader(stdin), &out, &errOut)
	return code, out.String(), errOut.String()
}

func (e *cliEnv) login(t *testing.T) {
	t.Helper()
	if code, _, stderr := e.run(t, "", "login", "--email", "gm@example.com", "--password", "correct-pw"); code != ExitSuccess {
		t.Fatalf("login exit = %d, stderr = %s", code, stderr)
	}
}

func TestRootCommand_Subcommands(t *testing.T) {
	cmd := NewRootCommand()
	for _, path := range [][]string{
		{"login"}, {"register"}, {"logout"}, {"whoami"},
		{"rpgs", "list"}, {"rpgs", "get"}, {"rpgs", "create"}, {"rpgs", "delete"},
		{"characters", "list"}, {"characters", "create"}, {"events", "list"},
	} {
		sub, _, err := cmd.Find(path)
		if err != nil || sub == nil || sub.Name() != path[len(path)-1] {
			t.Errorf("command %v not found: %v", path, err)
		}
	}
	if f := cmd.PersistentFlags().Lookup("format"); f == nil || f.DefValue != "text" {
		t.Error("--format flag should default to text")
	}
}

func TestRootCommand_EnvDefaults(t *testing.T) {
	t.Setenv(envAPIURL, "http://api.example.com")
	t.Setenv(envSessionFile, "/tmp/rpgctl-session.yaml")

	cmd := NewRootCommand()
	if got := cmd.PersistentFlags().Lookup("api-url").DefValue; got != "http://api.example.com" {
		t.Errorf("api-url default = %q", got)
	}
	if got := cmd.PersistentFlags().Lookup("session-file").DefValue; got != "/tmp/rpgctl-session.yaml" {
		t.Errorf("session-file default = %q", got)
	}
}

func TestCLI_InvalidFormat(t *testing.T) {
	e := newCLIEnv(t)
	code, _, stderr := e.run(t, "", "--format", "xml", "whoami")
	if code != ExitCommandError {
		t.Errorf("exit = %d, want %d", code, ExitCommandError)
	}
	if !strings.Contains(stderr, "invalid format") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestCLI_LoginWhoamiLogout(t *testing.T) {
	e := newCLIEnv(t)

	code, stdout, _ := e.run(t, "correct-pw\n", "login", "--email", "gm@example.com")
	if code != ExitSuccess {
		t.Fatalf("login exit = %d", code)
	}
	if !strings.Contains(stdout, "Signed in as GM") || !strings.Contains(stdout, "admin") {
		t.Errorf("login stdout = %q", stdout)
	}
	data, err := os.ReadFile(e.sessionFile)
	if err != nil || !strings.Contains(string(data), "rpg_auth_token: T") {
		t.Fatalf("session file = %q, err = %v", data, err)
	}

	code, stdout, _ = e.run(t, "", "whoami")
	if code != ExitSuccess || !strings.Contains(stdout, "GM <gm@example.com> (id 1, admin)") {
		t.Errorf("whoami exit = %d, stdout = %q", code, stdout)
	}

	code, stdout, _ = e.run(t, "", "logout")
	if code != ExitSuccess || !strings.Contains(stdout, "Signed out") {
		t.Errorf("logout exit = %d, stdout = %q", code, stdout)
	}
	if e.api.logouts.Load() != 1 {
		t.Errorf("server logout calls = %d, want 1", e.api.logouts.Load())
	}
	if _, err := os.Stat(e.sessionFile); !os.IsNotExist(err) {
		t.Errorf("session file should be removed, stat err = %v", err)
	}

	code, stdout, _ = e.run(t, "", "whoami")
	if code != ExitSuccess || !strings.Contains(stdout, "Not signed in") {
		t.Errorf("whoami after logout exit = %d, stdout = %q", code, stdout)
	}
}

// TestCLI_WhoamiInterruptedWhileResolving は解決中に中断されたwhoamiが未ログインと表示しないことを検証する。
func TestCLI_WhoamiInterruptedWhileResolving(t *testing.T) {
	e := newCLIEnv(t)
	e.login(t)

	hold := make(chan struct{})
	e.api.meHold.Store(hold)
	defer close(hold)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	code, stdout, stderr := e.runContext(t, ctx, "", "whoami")

	if code != ExitFailure {
		t.Errorf("exit = %d, want %d", code, ExitFailure)
	}
	if strings.Contains(stdout, "Not signed in") {
		t.Errorf("stdout = %q, must not report signed out", stdout)
	}
	if !strings.Contains(stderr, "still resolving") {
		t.Errorf("stderr = %q", stderr)
	}
	if _, err := os.Stat(e.sessionFile); err != nil {
		t.Errorf("session file should be kept, stat err = %v", err)
	}
}

func TestCLI_LoginFailure(t *testing.T) {
	e := newCLIEnv(t)

	code, _, stderr := e.run(t, "", "login", "--email", "gm@example.com", "--password", "wrong")
	if code != ExitUnauthorized {
		t.Errorf("exit = %d, want %d", code, ExitUnauthorized)
	}
	if !strings.Contains(stderr, "INVALID_CREDENTIALS") {
		t.Errorf("stderr = %q", stderr)
	}
	if _, err := os.Stat(e.sessionFile); !os.IsNotExist(err) {
		t.Error("failed login must not leave a session file")
	}
}

func TestCLI_InvalidStoredCredential(t *testing.T) {
	e := newCLIEnv(t)
	if err := os.WriteFile(e.sessionFile, []byte("rpg_auth_token: expired\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	code, _, stderr := e.run(t, "", "rpgs", "list")
	if code != ExitUnauthorized {
		t.Errorf("exit = %d, want %d", code, ExitUnauthorized)
	}
	if !strings.Contains(stderr, "not signed in") {
		t.Errorf("stderr = %q", stderr)
	}
	if _, err := os.Stat(e.sessionFile); !os.IsNotExist(err) {
		t.Error("rejected credential should be cleared from the session file")
	}
}

func TestCLI_RPGs(t *testing.T) {
	e := newCLIEnv(t)
	e.login(t)

	code, stdout, _ := e.run(t, "", "rpgs", "list")
	if code != ExitSuccess {
		t.Fatalf("list exit = %d", code)
	}
	for _, want := range []string{"ID", "NAME", "Dragon Hunt", "2024-05-01 12:00", "page 1 (limit 20), 1 total"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("list stdout missing %q:\n%s", want, stdout)
		}
	}

	code, stdout, _ = e.run(t, "", "rpgs", "create", "--name", "Lost Mines")
	if code != ExitSuccess || !strings.Contains(stdout, "#2 Lost Mines") {
		t.Errorf("create exit = %d, stdout = %q", code, stdout)
	}
	body := e.api.created.Load().(map[string]any)
	if _, ok := body["description"]; ok {
		t.Errorf("description should be omitted when flag is unset: %v", body)
	}

	code, stdout, _ = e.run(t, "", "rpgs", "delete", "2")
	if code != ExitSuccess || !strings.Contains(stdout, "Deleted campaign 2") {
		t.Errorf("delete exit = %d, stdout = %q", code, stdout)
	}

	code, _, stderr := e.run(t, "", "rpgs", "get", "99")
	if code != ExitFailure || !strings.Contains(stderr, "RPG_NOT_FOUND") {
		t.Errorf("get missing exit = %d, stderr = %q", code, stderr)
	}

	code, _, _ = e.run(t, "", "rpgs", "get", "abc")
	if code != ExitCommandError {
		t.Errorf("get invalid id exit = %d, want %d", code, ExitCommandError)
	}
}

func TestCLI_JSONOutput(t *testing.T) {
	e := newCLIEnv(t)
	e.login(t)

	code, stdout, _ := e.run(t, "", "--format", "json", "rpgs", "list")
	if code != ExitSuccess {
		t.Fatalf("exit = %d", code)
	}
	var resp struct {
		Status string            `json:"status"`
		Data   api.List[api.RPG] `json:"data"`
	}
	if err := json.Unmarshal([]byte(stdout), &resp); err != nil {
		t.Fatalf("stdout is not JSON: %v\n%s", err, stdout)
	}
	if resp.Status != "ok" || resp.Data.Total != 1 || resp.Data.Items[0].Name != "Dragon Hunt" {
		t.Errorf("resp = %+v", resp)
	}

	code, stdout, _ = e.run(t, "", "--format", "json", "rpgs", "get", "99")
	if code != ExitFailure {
		t.Errorf("exit = %d, want %d", code, ExitFailure)
	}
	var errResp Response
	if err := json.Unmarshal([]byte(stdout), &errResp); err != nil {
		t.Fatalf("error output is not JSON: %v\n%s", err, stdout)
	}
	if errResp.Status != "error" || errResp.Error.Code != "RPG_NOT_FOUND" || errResp.Error.Status != http.StatusNotFound {
		t.Errorf("error resp = %+v", errResp.Error)
	}
}

func TestCLI_CharactersAndEvents(t *testing.T) {
	e := newCLIEnv(t)
	e.login(t)

	code, stdout, _ := e.run(t, "", "characters", "list", "--rpg", "1", "--mine")
	if code != ExitSuccess || !strings.Contains(stdout, "Aria") || !strings.Contains(stdout, "Mage") {
		t.Errorf("characters exit = %d, stdout = %q", code, stdout)
	}
	if q := e.api.queries.Load().(string); q != "rpg_id=1&user_id=1" {
		t.Errorf("characters query = %q", q)
	}

	code, stdout, _ = e.run(t, "", "events", "list", "--character", "4")
	if code != ExitSuccess || !strings.Contains(stdout, "dialogue") || !strings.Contains(stdout, "Met the king") {
		t.Errorf("events exit = %d, stdout = %q", code, stdout)
	}

	code, _, _ = e.run(t, "", "events", "list")
	if code != ExitCommandError {
		t.Errorf("events without --character exit = %d, want %d", code, ExitCommandError)
	}
}
