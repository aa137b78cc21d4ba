package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/rpgtable/internal/model"
)

const eventColumns = `id, character_id, event_type_id, title, description, occurred_at, created_at, updated_at`

// PostgresEventRepo はPostgreSQLを使用したイベントリポジトリ。
type PostgresEventRepo struct {
	db *sql.DB
}

// NewPostgresEventRepo はPostgresEventRepoを生成する。
func NewPostgresEventRepo(db *sql.DB) *PostgresEventRepo {
	return &PostgresEventRepo{db: db}
}

func scanEvent(row rowScanner) (*model.Event, error) {
	e := &model.Event{}
	err := row.Scan(&e.ID, &e.CharacterID, &e.EventTypeID, &e.Title, &e.Description, &e.OccurredAt, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// FindByID は指定IDのイベントを取得する。見つからない場合はnilを返す。
func (r *PostgresEventRepo) FindByID(ctx context.Context, id int64) (*model.Event, error) {
	e, err := scanEvent(r.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1`,
		id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("イベントの取得に失敗しました: %w", err)
	}
	return e, nil
}

// Create はイベントを作成する。OccurredAtがゼロ値の場合は現在時刻を使う。
func (r *PostgresEventRepo) Create(ctx context.Context, e *model.Event) error {
	var occurredAt any
	if !e.OccurredAt.IsZero() {
		occurredAt = e.OccurredAt
	}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO events (character_id, event_type_id, title, description, occurred_at)
		 VALUES ($1, $2, $3, $4, COALESCE($5, NOW()))
		 RETURNING id, occurred_at, created_at, updated_at`,
		e.CharacterID, e.EventTypeID, e.Title, e.Description, occurredAt,
	).Scan(&e.ID, &e.OccurredAt, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if mapped := translatePQError(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("イベントの作成に失敗しました: %w", err)
	}
	return nil
}

// Update はnilでないフィールドのみを更新する。
func (r *PostgresEventRepo) Update(ctx context.Context, id int64, upd model.EventUpdate) (*model.Event, error) {
	e, err := scanEvent(r.db.QueryRowContext(ctx,
		`UPDATE events SET
			event_type_id = COALESCE($2, event_type_id),
			title = COALESCE($3, title),
			description = COALESCE($4, description),
			occurred_at = COALESCE($5, occurred_at),
			updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+eventColumns,
		id, upd.EventTypeID, upd.Title, upd.Description, upd.OccurredAt,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		if mapped := translatePQError(err); mapped != nil {
			return nil, mapped
		}
		return nil, fmt.Errorf("イベントの更新に失敗しました: %w", err)
	}
	return e, nil
}

// Delete は指定IDのイベントを削除する。
func (r *PostgresEventRepo) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("イベントの削除に失敗しました: %w", err)
	}
	return expectAffected(result)
}

// ListByCharacter はキャラクターのイベントをoccurred_at降順で返す。
func (r *PostgresEventRepo) ListByCharacter(ctx context.Context, characterID int64, page model.Page) ([]*model.Event, int, error) {
	page = page.Normalize()

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM events WHERE character_id = $1`,
		characterID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("イベント数の取得に失敗しました: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events
		 WHERE character_id = $1
		 ORDER BY occurred_at DESC, id DESC
		 LIMIT $2 OFFSET $3`,
		characterID, page.Limit, page.Offset(),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("イベント一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	events := make([]*model.Event, 0, page.Limit)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("イベント行の読み取りに失敗しました: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("イベント一覧の走査に失敗しました: %w", err)
	}
	return events, total, nil
}

var _ EventRepository = (*PostgresEventRepo)(nil)
