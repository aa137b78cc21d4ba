package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/rpgtable/internal/model"
)

const rpgColumns = `id, name, description, owner_id, created_at, updated_at`

// PostgresRPGRepo はPostgreSQLを使用したキャンペーンリポジトリ。
type PostgresRPGRepo struct {
	db *sql.DB
}

// NewPostgresRPGRepo はPostgresRPGRepoを生成する。
func NewPostgresRPGRepo(db *sql.DB) *PostgresRPGRepo {
	return &PostgresRPGRepo{db: db}
}

func scanRPG(row rowScanner) (*model.RPG, error) {
	rpg := &model.RPG{}
	err := row.Scan(&rpg.ID, &rpg.Name, &rpg.Description, &rpg.OwnerID, &rpg.CreatedAt, &rpg.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return rpg, nil
}

// FindByID は指定IDのキャンペーンを取得する。見つからない場合はnilを返す。
func (r *PostgresRPGRepo) FindByID(ctx context.Context, id int64) (*model.RPG, error) {
	rpg, err := scanRPG(r.db.QueryRowContext(ctx,
		`SELECT `+rpgColumns+` FROM rpgs WHERE id = $1`,
		id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("キャンペーンの取得に失敗しました: %w", err)
	}
	return rpg, nil
}

// Create はキャンペーンを作成する。
func (r *PostgresRPGRepo) Create(ctx context.Context, rpg *model.RPG) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO rpgs (name, description, owner_id)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at, updated_at`,
		rpg.Name, rpg.Description, rpg.OwnerID,
	).Scan(&rpg.ID, &rpg.CreatedAt, &rpg.UpdatedAt)
	if err != nil {
		if mapped := translatePQError(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("キャンペーンの作成に失敗しました: %w", err)
	}
	return nil
}

// Update はnilでないフィールドのみを更新する。
func (r *PostgresRPGRepo) Update(ctx context.Context, id int64, upd model.RPGUpdate) (*model.RPG, error) {
	rpg, err := scanRPG(r.db.QueryRowContext(ctx,
		`UPDATE rpgs SET
			name = COALESCE($2, name),
			description = COALESCE($3, description),
			updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+rpgColumns,
		id, upd.Name, upd.Description,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("キャンペーンの更新に失敗しました: %w", err)
	}
	return rpg, nil
}

// Delete は指定IDのキャンペーンを削除する。characters、eventsはCASCADE削除される。
func (r *PostgresRPGRepo) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM rpgs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("キャンペーンの削除に失敗しました: %w", err)
	}
	return expectAffected(result)
}

// List はキャンペーン一覧を作成日時の新しい順で返す。
func (r *PostgresRPGRepo) List(ctx context.Context, page model.Page) ([]*model.RPG, int, error) {
	page = page.Normalize()

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rpgs`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("キャンペーン数の取得に失敗しました: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+rpgColumns+` FROM rpgs ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`,
		page.Limit, page.Offset(),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("キャンペーン一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	rpgs := make([]*model.RPG, 0, page.Limit)
	for rows.Next() {
		rpg, err := scanRPG(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("キャンペーン行の読み取りに失敗しました: %w", err)
		}
		rpgs = append(rpgs, rpg)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("キャンペーン一覧の走査に失敗しました: %w", err)
	}
	return rpgs, total, nil
}

var _ RPGRepository = (*PostgresRPGRepo)(nil)
