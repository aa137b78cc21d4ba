package model

import "time"

// Character はキャンペーンに参加するプレイヤーキャラクターを表す。
type Character struct {
	ID          int64
	RPGID       int64
	UserID      int64 // プレイヤーのユーザーID
	Name        string
	Class       string
	Level       int
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CharacterUpdate はキャラクターの部分更新を表す。nilのフィールドは変更しない。
type CharacterUpdate struct {
	Name        *string
	Class       *string
	Level       *int
	Description *string
}

// CharacterFilter はキャラクター一覧の絞り込み条件。
// RPGIDが0の場合は全キャンペーンを対象とする。
type CharacterFilter struct {
	RPGID  int64
	UserID int64
}
