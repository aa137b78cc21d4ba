package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/hitoshi/rpgtable/internal/api"
)

// ListOptions は一覧取得のページング指定。0の場合はサーバーのデフォルトを使用する。
type ListOptions struct {
	Page  int
	Limit int
}

func (o ListOptions) values() url.Values {
	v := url.Values{}
	if o.Page > 0 {
		v.Set("page", strconv.Itoa(o.Page))
	}
	if o.Limit > 0 {
		v.Set("limit", strconv.Itoa(o.Limit))
	}
	return v
}

func withQuery(path string, v url.Values) string {
	if len(v) == 0 {
		return path
	}
	return path + "?" + v.Encode()
}

// --- 認証 ---

// AuthService は認証APIを呼び出す。
type AuthService struct{ c *Client }

// Auth は認証APIを返す。
func (c *Client) Auth() *AuthService { return &AuthService{c: c} }

// Login はメールアドレスとパスワードでログインする。
func (s *AuthService) Login(ctx context.Context, email, password string) (*api.AuthResponse, error) {
	var out api.AuthResponse
	// ログインは現在のクレデンシャルに依存しない
	err := s.c.Do(ctx, http.MethodPost, "/login", api.LoginRequest{Email: email, Password: password}, &out, WithCredential(""))
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Register はユーザーを登録してログインする。
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*api.AuthResponse, error) {
	var out api.AuthResponse
	err := s.c.Do(ctx, http.MethodPost, "/register", api.RegisterRequest{Name: name, Email: email, Password: password}, &out, WithCredential(""))
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Me はcredentialで認証したユーザーを返す。credentialが空の場合は現在のクレデンシャルを使用する。
func (s *AuthService) Me(ctx context.Context, credential string) (*api.User, error) {
	var opts []RequestOption
	if credential != "" {
		opts = append(opts, WithCredential(credential))
	}
	var out api.User
	if err := s.c.Do(ctx, http.MethodGet, "/user/me", nil, &out, opts...); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout はcredentialをサーバー側で失効させる。
func (s *AuthService) Logout(ctx context.Context, credential string) error {
	return s.c.Do(ctx, http.MethodPost, "/user/logout", nil, nil, WithCredential(credential))
}

// Health はヘルスチェックを実行する。
func (c *Client) Health(ctx context.Context) (*api.Health, error) {
	var out api.Health
	if err := c.Do(ctx, http.MethodGet, "/health", nil, &out, WithCredential("")); err != nil {
		return nil, err
	}
	return &out, nil
}

// --- ユーザー ---

// UserService はユーザーAPIを呼び出す。
type UserService struct{ c *Client }

// Users はユーザーAPIを返す。
func (c *Client) Users() *UserService { return &UserService{c: c} }

func (s *UserService) Get(ctx context.Context, id int64) (*api.User, error) {
	var out api.User
	if err := s.c.Do(ctx, http.MethodGet, fmt.Sprintf("/users/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *UserService) Update(ctx context.Context, id int64, req api.UpdateUserRequest) (*api.User, error) {
	var out api.User
	if err := s.c.Do(ctx, http.MethodPut, fmt.Sprintf("/users/%d", id), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *UserService) Delete(ctx context.Context, id int64) error {
	return s.c.Do(ctx, http.MethodDelete, fmt.Sprintf("/users/%d", id), nil, nil)
}

// AdminService は管理者APIを呼び出す。
type AdminService struct{ c *Client }

// Admin は管理者APIを返す。
func (c *Client) Admin() *AdminService { return &AdminService{c: c} }

func (s *AdminService) ListUsers(ctx context.Context, opts ListOptions) (*api.List[api.User], error) {
	var out api.List[api.User]
	if err := s.c.Do(ctx, http.MethodGet, withQuery("/admin/users", opts.values()), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *AdminService) SetUserType(ctx context.Context, id int64, userType string) (*api.User, error) {
	var out api.User
	if err := s.c.Do(ctx, http.MethodPatch, fmt.Sprintf("/admin/users/%d", id), api.SetUserTypeRequest{Type: userType}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *AdminService) DeleteUser(ctx context.Context, id int64) error {
	return s.c.Do(ctx, http.MethodDelete, fmt.Sprintf("/admin/users/%d", id), nil, nil)
}

// --- キャンペーン ---

// RPGService はキャンペーンAPIを呼び出す。
type RPGService struct{ c *Client }

// RPGs はキャンペーンAPIを返す。
func (c *Client) RPGs() *RPGService { return &RPGService{c: c} }

func (s *RPGService) List(ctx context.Context, opts ListOptions) (*api.List[api.RPG], error) {
	var out api.List[api.RPG]
	if err := s.c.Do(ctx, http.MethodGet, withQuery("/rpgs", opts.values()), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *RPGService) Get(ctx context.Context, id int64) (*api.RPG, error) {
	return s.do(ctx, http.MethodGet, id, nil)
}

func (s *RPGService) Create(ctx context.Context, req api.RPGRequest) (*api.RPG, error) {
	var out api.RPG
	if err := s.c.Do(ctx, http.MethodPost, "/rpgs", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Replace はキャンペーンを置き換える（PUT）。
func (s *RPGService) Replace(ctx context.Context, id int64, req api.RPGRequest) (*api.RPG, error) {
	return s.do(ctx, http.MethodPut, id, req)
}

// Patch は指定したフィールドのみ更新する（PATCH）。
func (s *RPGService) Patch(ctx context.Context, id int64, req api.RPGRequest) (*api.RPG, error) {
	return s.do(ctx, http.MethodPatch, id, req)
}

func (s *RPGService) Delete(ctx context.Context, id int64) error {
	return s.c.Do(ctx, http.MethodDelete, fmt.Sprintf("/rpg/%d", id), nil, nil)
}

// Characters はキャンペーンに所属するキャラクター一覧を返す。
func (s *RPGService) Characters(ctx context.Context, id int64, opts ListOptions) (*api.List[api.Character], error) {
	var out api.List[api.Character]
	if err := s.c.Do(ctx, http.MethodGet, withQuery(fmt.Sprintf("/rpg/%d/characters", id), opts.values()), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *RPGService) do(ctx context.Context, method string, id int64, in any) (*api.RPG, error) {
	var out api.RPG
	if err := s.c.Do(ctx, method, fmt.Sprintf("/rpg/%d", id), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// --- キャラクター ---

// CharacterQuery はキャラクター一覧の絞り込み条件。
type CharacterQuery struct {
	RPGID  int64
	UserID int64
	ListOptions
}

// CharacterService はキャラクターAPIを呼び出す。
type CharacterService struct{ c *Client }

// Characters はキャラクターAPIを返す。
func (c *Client) Characters() *CharacterService { return &CharacterService{c: c} }

func (s *CharacterService) List(ctx context.Context, q CharacterQuery) (*api.List[api.Character], error) {
	v := q.values()
	if q.RPGID > 0 {
		v.Set("rpg_id", strconv.FormatInt(q.RPGID, 10))
	}
	if q.UserID > 0 {
		v.Set("user_id", strconv.FormatInt(q.UserID, 10))
	}
	var out api.List[api.Character]
	if err := s.c.Do(ctx, http.MethodGet, withQuery("/characters", v), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *CharacterService) Get(ctx context.Context, id int64) (*api.Character, error) {
	var out api.Character
	if err := s.c.Do(ctx, http.MethodGet, fmt.Sprintf("/character/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *CharacterService) Create(ctx context.Context, req api.CharacterRequest) (*api.Character, error) {
	var out api.Character
	if err := s.c.Do(ctx, http.MethodPost, "/character", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *CharacterService) Update(ctx context.Context, id int64, req api.CharacterRequest) (*api.Character, error) {
	var out api.Character
	if err := s.c.Do(ctx, http.MethodPut, fmt.Sprintf("/character/%d", id), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *CharacterService) Delete(ctx context.Context, id int64) error {
	return s.c.Do(ctx, http.MethodDelete, fmt.Sprintf("/character/%d", id), nil, nil)
}

// Events はキャラクターのイベント一覧を返す。
func (s *CharacterService) Events(ctx context.Context, id int64, opts ListOptions) (*api.List[api.Event], error) {
	var out api.List[api.Event]
	if err := s.c.Do(ctx, http.MethodGet, withQuery(fmt.Sprintf("/character/%d/events", id), opts.values()), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// --- イベント ---

// EventService はイベントAPIを呼び出す。
type EventService struct{ c *Client }

// Events はイベントAPIを返す。
func (c *Client) Events() *EventService { return &EventService{c: c} }

func (s *EventService) List(ctx context.Context, characterID int64, opts ListOptions) (*api.List[api.Event], error) {
	v := opts.values()
	v.Set("character_id", strconv.FormatInt(characterID, 10))
	var out api.List[api.Event]
	if err := s.c.Do(ctx, http.MethodGet, withQuery("/events", v), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *EventService) Get(ctx context.Context, id int64) (*api.Event, error) {
	var out api.Event
	if err := s.c.Do(ctx, http.MethodGet, fmt.Sprintf("/event/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *EventService) Create(ctx context.Context, req api.EventRequest) (*api.Event, error) {
	var out api.Event
	if err := s.c.Do(ctx, http.MethodPost, "/event", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *EventService) Update(ctx context.Context, id int64, req api.EventRequest) (*api.Event, error) {
	var out api.Event
	if err := s.c.Do(ctx, http.MethodPut, fmt.Sprintf("/event/%d", id), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *EventService) Delete(ctx context.Context, id int64) error {
	return s.c.Do(ctx, http.MethodDelete, fmt.Sprintf("/event/%d", id), nil, nil)
}

// EventTypeService はイベント種別APIを呼び出す。
type EventTypeService struct{ c *Client }

// EventTypes はイベント種別APIを返す。
func (c *Client) EventTypes() *EventTypeService { return &EventTypeService{c: c} }

func (s *EventTypeService) List(ctx context.Context) (*api.List[api.EventType], error) {
	var out api.List[api.EventType]
	if err := s.c.Do(ctx, http.MethodGet, "/eventTypes", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *EventTypeService) Create(ctx context.Context, name string) (*api.EventType, error) {
	var out api.EventType
	if err := s.c.Do(ctx, http.MethodPost, "/eventType", api.EventTypeRequest{Name: name}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *EventTypeService) Delete(ctx context.Context, id int64) error {
	return s.c.Do(ctx, http.MethodDelete, fmt.Sprintf("/eventType/%d", id), nil, nil)
}
