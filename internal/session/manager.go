package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/hitoshi/rpgtable/internal/api"
)

// Status はセッションの状態。
type Status string

const (
	StatusIdle          Status = "idle"
	StatusResolving     Status = "resolving"
	StatusAuthenticated Status = "authenticated"
	StatusAnonymous     Status = "anonymous"
	StatusSigningOut    Status = "signing-out"
)

// Settled は解決が完了した状態（AuthenticatedまたはAnonymous）かどうかを返す。
func (s Status) Settled() bool {
	return s == StatusAuthenticated || s == StatusAnonymous
}

var (
	// ErrStaleAttempt は完了した試行が新しい試行に追い越されたため破棄されたことを示す。
	ErrStaleAttempt = errors.New("session: attempt superseded by a newer one")
	// ErrClosed はClose済みのManagerを操作したことを示す。
	ErrClosed = errors.New("session: manager is closed")
)

// Identity はクレデンシャルから解決した利用者。
type Identity struct {
	ID    int64
	Name  string
	Email string
	Type  string
}

// IsAdmin はロールがadminかどうかを返す。
func (i Identity) IsAdmin() bool {
	return i.Type == "admin"
}

func identityFromUser(u *api.User) *Identity {
	return &Identity{ID: u.ID, Name: u.Name, Email: u.Email, Type: u.Type}
}

// State はある時点のセッションの状態。Identityは認証済みの場合のみ設定される。
type State struct {
	Status   Status
	Identity *Identity
	Attempt  uint64
}

// Facade は送信リクエストにクレデンシャルを付与するHTTPクライアント。
// *client.Clientが実装する。
type Facade interface {
	SetCredential(credential string)
}

// AuthAPI はセッション管理に必要な認証API。*client.AuthServiceが実装する。
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (*api.AuthResponse, error)
	Register(ctx context.Context, name, email, password string) (*api.AuthResponse, error)
	Me(ctx context.Context, credential string) (*api.User, error)
	Logout(ctx context.Context, credential string) error
}

// Manager はログイン、ログアウト、起動時のユーザー解決を行い、状態を公開する。
//
// 状態遷移:
//
//	Idle → Resolving → {Authenticated, Anonymous}
//	Authenticated → SigningOut → Anonymous
//
// 試行ごとに単調増加する番号を振り、新しい試行が始まった後に完了した古い試行の結果は破棄する。
// 同じ試行に対する/user/meの呼び出しはsingleflightで1回にまとめる。
type Manager struct {
	store  Store
	facade Facade
	auth   AuthAPI
	logger *slog.Logger

	flights singleflight.Group

	mu         sync.Mutex
	state      State
	credential string // 解決中または認証済みのクレデンシャル
	closed     bool
	changed    chan struct{} // 状態が変わるたびにcloseして作り直す
	subs       map[chan State]struct{}
}

// NewManager はManagerを生成する。Mountを呼ぶまで状態はIdle。
func NewManager(store Store, facade Facade, auth AuthAPI, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:   store,
		facade:  facade,
		auth:    auth,
		logger:  logger,
		state:   State{Status: StatusIdle},
		changed: make(chan struct{}),
		subs:    make(map[chan State]struct{}),
	}
}

// Mount はStoreのクレデンシャルからユーザーを解決する。
// クレデンシャルがなければ通信せずにAnonymousになる。
// 解決に失敗した場合はStoreを空にしてAnonymousになり、原因のエラーを返す。
// ctxがキャンセルされた場合はStoreを変更せずにctxのエラーを返す。状態はResolvingのまま残り、
// 進行中の解決が完了した時点で反映される。破棄する場合はCloseを呼ぶ。
func (m *Manager) Mount(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	attempt, resolving := m.mountLocked()
	m.mu.Unlock()

	if !resolving {
		return nil
	}
	_, err := m.resolve(ctx, attempt)
	return err
}

// Resolve は現在のユーザーを返す。
// Resolving中であれば進行中の解決に相乗りし、/user/meを重複して呼ばない。
// Idleの場合はMountと同じ処理を開始する。Anonymousの場合はnilを返す。
func (m *Manager) Resolve(ctx context.Context) (*Identity, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	if m.state.Status == StatusIdle {
		m.mountLocked()
	}
	status, attempt := m.state.Status, m.state.Attempt
	identity := copyIdentity(m.state.Identity)
	loggingIn := status == StatusResolving && m.credential == ""
	m.mu.Unlock()

	switch {
	case loggingIn:
		// ログイン要求の応答待ち。クレデンシャルが確定するまで相乗りできない
		s, err := m.Wait(ctx)
		return s.Identity, err
	case status == StatusResolving:
		return m.resolve(ctx, attempt)
	default:
		return identity, nil
	}
}

// SignIn はログインしてクレデンシャルを保存し、Mountと同じ経路でユーザーを解決する。
// 失敗した場合はStoreを空にしてAnonymousになり、エラーを返す。
func (m *Manager) SignIn(ctx context.Context, email, password string) error {
	return m.signIn(ctx, func(ctx context.Context) (*api.AuthResponse, error) {
		return m.auth.Login(ctx, email, password)
	})
}

// Register はユーザーを登録し、SignInと同じ経路で認証済みになる。
func (m *Manager) Register(ctx context.Context, name, email, password string) error {
	return m.signIn(ctx, func(ctx context.Context) (*api.AuthResponse, error) {
		return m.auth.Register(ctx, name, email, password)
	})
}

func (m *Manager) signIn(ctx context.Context, call func(context.Context) (*api.AuthResponse, error)) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	attempt := m.beginLocked("")
	m.mu.Unlock()

	resp, err := call(ctx)

	m.mu.Lock()
	if m.staleLocked(attempt) {
		m.mu.Unlock()
		return ErrStaleAttempt
	}
	if err == nil && resp.Token == "" {
		err = errors.New("session: server returned an empty credential")
	}
	if err == nil {
		if saveErr := m.store.Save(resp.Token); saveErr != nil {
			err = fmt.Errorf("failed to save credential: %w", saveErr)
		}
	}
	if err != nil {
		m.clearStoreLocked()
		m.resetLocked()
		m.mu.Unlock()
		return fmt.Errorf("sign in: %w", err)
	}
	m.credential = resp.Token
	m.facade.SetCredential(resp.Token)
	m.mu.Unlock()

	_, err = m.resolve(ctx, attempt)
	return err
}

// SignOut はユーザー、Store、クレデンシャルを破棄してAnonymousにする。
// 失敗せず、何度呼んでも同じ結果になる。直前のクレデンシャルがあれば
// サーバー側の失効を試みるが、その結果は無視する。
func (m *Manager) SignOut(ctx context.Context) {
	m.mu.Lock()
	old := m.credential
	if old == "" {
		old, _, _ = m.store.Load()
	}
	m.state.Attempt++
	m.state.Identity = nil
	m.setStatusLocked(StatusSigningOut)
	m.clearStoreLocked()
	m.resetLocked()
	m.mu.Unlock()

	if old == "" {
		return
	}
	if err := m.auth.Logout(ctx, old); err != nil {
		m.logger.Debug("server-side logout failed", slog.String("error", err.Error()))
	}
}

// IsAdmin は認証済みかつロールがadminの場合のみtrueを返す。
func (m *Manager) IsAdmin() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Status == StatusAuthenticated && m.state.Identity != nil && m.state.Identity.IsAdmin()
}

// Snapshot は現在の状態のコピーを返す。
func (m *Manager) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Subscribe は状態の変化を受け取るチャネルを返す。
// チャネルは常に最新の状態のみを保持し、登録直後に現在の状態を1件受け取る。
// 返されたcancelを呼ぶかCloseするとチャネルは閉じられる。
func (m *Manager) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	m.subs[ch] = struct{}{}
	ch <- m.snapshotLocked()
	m.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if _, ok := m.subs[ch]; ok {
				delete(m.subs, ch)
				close(ch)
			}
		})
	}
	return ch, cancel
}

// Wait は状態がAuthenticatedまたはAnonymousになるまで待つ。
// アクセス制御の判断はWaitの結果で行い、Resolving中をAnonymousとみなさない。
func (m *Manager) Wait(ctx context.Context) (State, error) {
	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return State{}, ErrClosed
		}
		if m.state.Status.Settled() {
			s := m.snapshotLocked()
			m.mu.Unlock()
			return s, nil
		}
		changed := m.changed
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return m.Snapshot(), ctx.Err()
		case <-changed:
		}
	}
}

// Close はManagerを破棄する。進行中の試行の結果は以降すべて破棄される。
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.state.Attempt++
	close(m.changed)
	for ch := range m.subs {
		close(ch)
	}
	m.subs = nil
}

// resolve はattemptのクレデンシャルで/user/meを呼び、結果を状態に反映する。
// 同じattemptへの同時呼び出しは1回の通信と状態遷移を共有する。
// 共有する通信は呼び出し元のキャンセルを引き継がない。ctxがキャンセルされた呼び出し元だけが
// ctxのエラーで戻り、通信はそのまま続いて完了時に状態へ反映される。
func (m *Manager) resolve(ctx context.Context, attempt uint64) (*Identity, error) {
	shared := context.WithoutCancel(ctx)
	ch := m.flights.DoChan(strconv.FormatUint(attempt, 10), func() (any, error) {
		m.mu.Lock()
		if m.staleLocked(attempt) {
			m.mu.Unlock()
			return nil, ErrStaleAttempt
		}
		if m.state.Status != StatusResolving {
			// 先行する呼び出しが反映済み
			id := copyIdentity(m.state.Identity)
			m.mu.Unlock()
			return id, nil
		}
		credential := m.credential
		m.mu.Unlock()

		user, err := m.auth.Me(shared, credential)

		m.mu.Lock()
		defer m.mu.Unlock()
		if m.staleLocked(attempt) {
			return nil, ErrStaleAttempt
		}
		if err != nil {
			m.logger.Info("failed to resolve session", slog.String("error", err.Error()))
			m.clearStoreLocked()
			m.resetLocked()
			return nil, fmt.Errorf("resolve identity: %w", err)
		}

		m.facade.SetCredential(credential)
		m.state.Identity = identityFromUser(user)
		m.setStatusLocked(StatusAuthenticated)
		return copyIdentity(m.state.Identity), nil
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("resolve identity: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		identity, _ := res.Val.(*Identity)
		return copyIdentity(identity), nil
	}
}

// mountLocked はStoreを読み、クレデンシャルがあれば解決を開始する。
// 解決が必要な場合は試行番号とtrueを返す。
func (m *Manager) mountLocked() (uint64, bool) {
	credential, ok, err := m.store.Load()
	if err != nil {
		m.logger.Warn("failed to load session", slog.String("error", err.Error()))
	}
	if !ok {
		m.state.Attempt++
		m.resetLocked()
		return m.state.Attempt, false
	}
	return m.beginLocked(credential), true
}

// beginLocked は新しい試行を開始してResolvingに遷移し、その番号を返す。
// credentialが空の場合はログイン応答待ちを表す。
func (m *Manager) beginLocked(credential string) uint64 {
	m.state.Attempt++
	m.state.Identity = nil
	m.credential = credential
	if credential != "" {
		m.facade.SetCredential(credential)
	}
	m.setStatusLocked(StatusResolving)
	return m.state.Attempt
}

func (m *Manager) staleLocked(attempt uint64) bool {
	return m.closed || attempt != m.state.Attempt
}

// resetLocked はクレデンシャルとユーザーを破棄してAnonymousに遷移する。
func (m *Manager) resetLocked() {
	m.credential = ""
	m.state.Identity = nil
	m.facade.SetCredential("")
	m.setStatusLocked(StatusAnonymous)
}

func (m *Manager) clearStoreLocked() {
	if err := m.store.Clear(); err != nil {
		m.logger.Warn("failed to clear session", slog.String("error", err.Error()))
	}
}

// setStatusLocked は状態を更新して待機者と購読者に通知する。
func (m *Manager) setStatusLocked(status Status) {
	m.state.Status = status
	if m.closed {
		return
	}
	close(m.changed)
	m.changed = make(chan struct{})

	s := m.snapshotLocked()
	for ch := range m.subs {
		// 古い値を捨てて最新の状態のみ保持する
		select {
		case <-ch:
		default:
		}
		ch <- s
	}
}

func (m *Manager) snapshotLocked() State {
	return State{Status: m.state.Status, Identity: copyIdentity(m.state.Identity), Attempt: m.state.Attempt}
}

func copyIdentity(i *Identity) *Identity {
	if i == nil {
		return nil
	}
	c := *i
	return &c
}
