// Package model はドメインモデルを定義する。
package model

import "time"

// UserType はユーザーのロール種別を表す。
type UserType string

const (
	// UserTypeUser は一般ユーザー。
	UserTypeUser UserType = "user"
	// UserTypeAdmin は管理者。/admin 配下のエンドポイントを利用できる。
	UserTypeAdmin UserType = "admin"
)

// Valid はロール種別が定義済みの値かどうかを返す。
func (t UserType) Valid() bool {
	return t == UserTypeUser || t == UserTypeAdmin
}

// User はサービス利用ユーザーを表す。
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Type         UserType
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsAdmin は管理者ユーザーかどうかを返す。
func (u *User) IsAdmin() bool {
	return u != nil && u.Type == UserTypeAdmin
}

// UserUpdate はユーザー情報の部分更新を表す。nilのフィールドは変更しない。
type UserUpdate struct {
	Name         *string
	Email        *string
	PasswordHash *string
	Type         *UserType
}

// Principal は検証済みのBearerトークンから得られる認証主体を表す。
type Principal struct {
	UserID    int64
	TokenID   string
	ExpiresAt time.Time
}

// Actor はリクエストを行っている認証済みユーザーとそのロールを表す。
// 認証ミドルウェアがリクエストごとにusersテーブルから読み込む。
type Actor struct {
	UserID int64
	Type   UserType
}

// IsAdmin は管理者かどうかを返す。
func (a Actor) IsAdmin() bool {
	return a.Type == UserTypeAdmin
}

// CanManage はownerIDが所有するリソースを変更できるかどうかを返す。
// 所有者本人か管理者のみ変更できる。
func (a Actor) CanManage(ownerID int64) bool {
	return a.IsAdmin() || (a.UserID != 0 && a.UserID == ownerID)
}
