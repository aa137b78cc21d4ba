package model

import "time"

// RPG はゲームマスターが主催するTRPGキャンペーンを表す。
type RPG struct {
	ID          int64
	Name        string
	Description string
	OwnerID     int64 // ゲームマスターのユーザーID
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RPGUpdate はキャンペーンの部分更新を表す。nilのフィールドは変更しない。
type RPGUpdate struct {
	Name        *string
	Description *string
}

// Page は一覧取得のページ指定を表す。Numberは1始まり。
type Page struct {
	Number int
	Limit  int
}

const (
	// DefaultPageLimit はlimit未指定時の件数。
	DefaultPageLimit = 20
	// MaxPageLimit はlimitの上限。
	MaxPageLimit = 100
	// MaxPageNumber はpageの上限。OFFSETがintに収まる範囲に抑える。
	MaxPageNumber = 1_000_000
)

// Offset はSQLのOFFSET値を返す。
func (p Page) Offset() int {
	if p.Number < 1 {
		return 0
	}
	return (p.Number - 1) * p.Limit
}

// Normalize は範囲外の値をデフォルトまたは上限に丸めたPageを返す。
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Number > MaxPageNumber {
		p.Number = MaxPageNumber
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}
