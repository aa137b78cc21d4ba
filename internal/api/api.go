// Package api はREST APIのリクエスト・レスポンスのJSON表現を定義する。
// サーバー（handler）とクライアント（client）の双方が使用する。
package api

import (
	"time"

	"github.com/hitoshi/rpgtable/internal/model"
)

// Error は統一エラーフォーマット。
type Error struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// List はページング付き一覧レスポンス。
type List[T any] struct {
	Items []T `json:"items"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

// NewList はitemsをmodel.Pageの値と総件数で包む。itemsがnilの場合も空配列として出力する。
func NewList[T any](items []T, page model.Page, total int) List[T] {
	if items == nil {
		items = []T{}
	}
	return List[T]{Items: items, Page: page.Number, Limit: page.Limit, Total: total}
}

// Health はヘルスチェックのレスポンス。
type Health struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// --- 認証 ---

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse はログイン・登録成功時のレスポンス。
type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// --- ユーザー ---

// User は利用者のプロフィール。パスワードハッシュは含めない。
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UpdateUserRequest は未指定のフィールドを変更しない。
type UpdateUserRequest struct {
	Name     *string `json:"name,omitempty"`
	Email    *string `json:"email,omitempty"`
	Password *string `json:"password,omitempty"`
}

// SetUserTypeRequest は管理者によるユーザー種別の変更。
type SetUserTypeRequest struct {
	Type string `json:"type"`
}

func FromUser(u *model.User) User {
	return User{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Type:      string(u.Type),
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// --- キャンペーン ---

type RPG struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	OwnerID     int64     `json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RPGRequest はPOST/PUT/PATCHで共通のボディ。PATCHでは未指定のフィールドを変更しない。
type RPGRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

func FromRPG(r *model.RPG) RPG {
	return RPG{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		OwnerID:     r.OwnerID,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// --- キャラクター ---

type Character struct {
	ID          int64     `json:"id"`
	RPGID       int64     `json:"rpg_id"`
	UserID      int64     `json:"user_id"`
	Name        string    `json:"name"`
	Class       string    `json:"class"`
	Level       int       `json:"level"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CharacterRequest のRPGIDは作成時のみ使用する。
type CharacterRequest struct {
	RPGID       int64   `json:"rpg_id,omitempty"`
	Name        *string `json:"name,omitempty"`
	Class       *string `json:"class,omitempty"`
	Level       *int    `json:"level,omitempty"`
	Description *string `json:"description,omitempty"`
}

func FromCharacter(c *model.Character) Character {
	return Character{
		ID:          c.ID,
		RPGID:       c.RPGID,
		UserID:      c.UserID,
		Name:        c.Name,
		Class:       c.Class,
		Level:       c.Level,
		Description: c.Description,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

// --- イベント ---

type EventType struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type EventTypeRequest struct {
	Name string `json:"name"`
}

func FromEventType(et *model.EventType) EventType {
	return EventType{ID: et.ID, Name: et.Name, CreatedAt: et.CreatedAt}
}

type Event struct {
	ID          int64     `json:"id"`
	CharacterID int64     `json:"character_id"`
	EventTypeID int64     `json:"event_type_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	OccurredAt  time.Time `json:"occurred_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// EventRequest のCharacterIDは作成時のみ使用する。OccurredAtはRFC 3339。
type EventRequest struct {
	CharacterID int64      `json:"character_id,omitempty"`
	EventTypeID *int64     `json:"event_type_id,omitempty"`
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	OccurredAt  *time.Time `json:"occurred_at,omitempty"`
}

func FromEvent(e *model.Event) Event {
	return Event{
		ID:          e.ID,
		CharacterID: e.CharacterID,
		EventTypeID: e.EventTypeID,
		Title:       e.Title,
		Description: e.Description,
		OccurredAt:  e.OccurredAt,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

// Map はスライスの各要素をfで変換する。
func Map[M any, T any](items []*M, f func(*M) T) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		out = append(out, f(it))
	}
	return out
}
