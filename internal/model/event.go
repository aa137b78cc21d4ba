package model

import "time"

// EventType はイベントの種別（戦闘、レベルアップ、取引など）を表す。
type EventType struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// Event はキャラクターに起きた出来事の記録を表す。
type Event struct {
	ID          int64
	CharacterID int64
	EventTypeID int64
	Title       string
	Description string
	OccurredAt  time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// EventUpdate はイベントの部分更新を表す。nilのフィールドは変更しない。
type EventUpdate struct {
	EventTypeID *int64
	Title       *string
	Description *string
	OccurredAt  *time.Time
}
