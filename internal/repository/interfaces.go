// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/rpgtable/internal/model"
)

var (
	// ErrNotFound は更新・削除対象の行が存在しないことを示す。
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate はユニーク制約に違反したことを示す。
	ErrDuplicate = errors.New("duplicate record")
	// ErrReferenceMissing は外部キーの参照先が存在しないことを示す。
	ErrReferenceMissing = errors.New("referenced record does not exist")
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成し、採番されたIDとタイムスタンプをuserに設定する。
	// メールアドレスが重複する場合はErrDuplicateを返す。
	Create(ctx context.Context, user *model.User) error

	// Update はnilでないフィールドのみを更新し、更新後のユーザーを返す。
	// 見つからない場合はnilを返す。
	Update(ctx context.Context, id int64, upd model.UserUpdate) (*model.User, error)

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するrpgs、characters、eventsはCASCADE削除される。
	DeleteByID(ctx context.Context, id int64) error

	// List はユーザー一覧をID昇順で返す。第2戻り値は総件数。
	List(ctx context.Context, page model.Page) ([]*model.User, int, error)
}

// RPGRepository はキャンペーンデータの永続化インターフェース。
type RPGRepository interface {
	// FindByID は指定IDのキャンペーンを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.RPG, error)
	// Create はキャンペーンを作成し、採番されたIDとタイムスタンプを設定する。
	Create(ctx context.Context, rpg *model.RPG) error
	// Update はnilでないフィールドのみを更新する。見つからない場合はnilを返す。
	Update(ctx context.Context, id int64, upd model.RPGUpdate) (*model.RPG, error)
	// Delete は指定IDのキャンペーンを削除する。
	Delete(ctx context.Context, id int64) error
	// List はキャンペーン一覧を作成日時の新しい順で返す。第2戻り値は総件数。
	List(ctx context.Context, page model.Page) ([]*model.RPG, int, error)
}

// CharacterRepository はキャラクターデータの永続化インターフェース。
type CharacterRepository interface {
	FindByID(ctx context.Context, id int64) (*model.Character, error)
	// Create はキャラクターを作成する。rpg_idまたはuser_idの参照先が無い場合はErrReferenceMissingを返す。
	Create(ctx context.Context, character *model.Character) error
	Update(ctx context.Context, id int64, upd model.CharacterUpdate) (*model.Character, error)
	Delete(ctx context.Context, id int64) error
	// List はfilterに一致するキャラクターをID昇順で返す。
	List(ctx context.Context, filter model.CharacterFilter, page model.Page) ([]*model.Character, int, error)
}

// EventTypeRepository はイベント種別マスタの永続化インターフェース。
type EventTypeRepository interface {
	FindByID(ctx context.Context, id int64) (*model.EventType, error)
	// List は全イベント種別を名前順で返す。件数が少ないためページングしない。
	List(ctx context.Context) ([]*model.EventType, error)
	// Create は名前が重複する場合にErrDuplicateを返す。
	Create(ctx context.Context, eventType *model.EventType) error
	// Delete は種別を削除する。紐づくeventsはCASCADE削除される。
	Delete(ctx context.Context, id int64) error
}

// EventRepository はイベントデータの永続化インターフェース。
type EventRepository interface {
	FindByID(ctx context.Context, id int64) (*model.Event, error)
	Create(ctx context.Context, event *model.Event) error
	Update(ctx context.Context, id int64, upd model.EventUpdate) (*model.Event, error)
	Delete(ctx context.Context, id int64) error
	// ListByCharacter はキャラクターのイベントをoccurred_at降順で返す。
	ListByCharacter(ctx context.Context, characterID int64, page model.Page) ([]*model.Event, int, error)
}

// RevocationRepository はログアウト済みトークンID（jti）の失効リスト。
type RevocationRepository interface {
	// Revoke はtokenIDをexpiresAtまで失効扱いにする。
	// expiresAtを過ぎたトークンはTokenCodecが拒否するため、それ以降は保持しなくてよい。
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	// IsRevoked はtokenIDが失効済みかどうかを返す。
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}
