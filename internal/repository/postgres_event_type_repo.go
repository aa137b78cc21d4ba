package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/rpgtable/internal/model"
)

// PostgresEventTypeRepo はPostgreSQLを使用したイベント種別リポジトリ。
type PostgresEventTypeRepo struct {
	db *sql.DB
}

// NewPostgresEventTypeRepo はPostgresEventTypeRepoを生成する。
func NewPostgresEventTypeRepo(db *sql.DB) *PostgresEventTypeRepo {
	return &PostgresEventTypeRepo{db: db}
}

// FindByID は指定IDのイベント種別を取得する。見つからない場合はnilを返す。
func (r *PostgresEventTypeRepo) FindByID(ctx context.Context, id int64) (*model.EventType, error) {
	et := &model.EventType{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM event_types WHERE id = $1`,
		id,
	).Scan(&et.ID, &et.Name, &et.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("イベント種別の取得に失敗しました: %w", err)
	}
	return et, nil
}

// List は全イベント種別を名前順で返す。
func (r *PostgresEventTypeRepo) List(ctx context.Context) ([]*model.EventType, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, created_at FROM event_types ORDER BY name ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("イベント種別一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var types []*model.EventType
	for rows.Next() {
		et := &model.EventType{}
		if err := rows.Scan(&et.ID, &et.Name, &et.CreatedAt); err != nil {
			return nil, fmt.Errorf("イベント種別行の読み取りに失敗しました: %w", err)
		}
		types = append(types, et)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("イベント種別一覧の走査に失敗しました: %w", err)
	}
	return types, nil
}

// Create はイベント種別を作成する。名前が重複する場合はErrDuplicateを返す。
func (r *PostgresEventTypeRepo) Create(ctx context.Context, et *model.EventType) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO event_types (name) VALUES ($1) RETURNING id, created_at`,
		et.Name,
	).Scan(&et.ID, &et.CreatedAt)
	if err != nil {
		if mapped := translatePQError(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("イベント種別の作成に失敗しました: %w", err)
	}
	return nil
}

// Delete は指定IDのイベント種別を削除する。
func (r *PostgresEventTypeRepo) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM event_types WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("イベント種別の削除に失敗しました: %w", err)
	}
	return expectAffected(result)
}

var _ EventTypeRepository = (*PostgresEventTypeRepo)(nil)
