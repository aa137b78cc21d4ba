package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/rpgtable/internal/model"
)

const characterColumns = `id, rpg_id, user_id, name, class, level, description, created_at, updated_at`

// PostgresCharacterRepo はPostgreSQLを使用したキャラクターリポジトリ。
type PostgresCharacterRepo struct {
	db *sql.DB
}

// NewPostgresCharacterRepo はPostgresCharacterRepoを生成する。
func NewPostgresCharacterRepo(db *sql.DB) *PostgresCharacterRepo {
	return &PostgresCharacterRepo{db: db}
}

func scanCharacter(row rowScanner) (*model.Character, error) {
	c := &model.Character{}
	err := row.Scan(&c.ID, &c.RPGID, &c.UserID, &c.Name, &c.Class, &c.Level, &c.Description, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// FindByID は指定IDのキャラクターを取得する。見つからない場合はnilを返す。
func (r *PostgresCharacterRepo) FindByID(ctx context.Context, id int64) (*model.Character, error) {
	c, err := scanCharacter(r.db.QueryRowContext(ctx,
		`SELECT `+characterColumns+` FROM characters WHERE id = $1`,
		id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("キャラクターの取得に失敗しました: %w", err)
	}
	return c, nil
}

// Create はキャラクターを作成する。
func (r *PostgresCharacterRepo) Create(ctx context.Context, c *model.Character) error {
	if c.Level < 1 {
		c.Level = 1
	}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO characters (rpg_id, user_id, name, class, level, description)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		c.RPGID, c.UserID, c.Name, c.Class, c.Level, c.Description,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if mapped := translatePQError(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("キャラクターの作成に失敗しました: %w", err)
	}
	return nil
}

// Update はnilでないフィールドのみを更新する。
func (r *PostgresCharacterRepo) Update(ctx context.Context, id int64, upd model.CharacterUpdate) (*model.Character, error) {
	c, err := scanCharacter(r.db.QueryRowContext(ctx,
		`UPDATE characters SET
			name = COALESCE($2, name),
			class = COALESCE($3, class),
			level = COALESCE($4, level),
			description = COALESCE($5, description),
			updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+characterColumns,
		id, upd.Name, upd.Class, upd.Level, upd.Description,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("キャラクターの更新に失敗しました: %w", err)
	}
	return c, nil
}

// Delete は指定IDのキャラクターを削除する。eventsはCASCADE削除される。
func (r *PostgresCharacterRepo) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM characters WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("キャラクターの削除に失敗しました: %w", err)
	}
	return expectAffected(result)
}

// List はfilterに一致するキャラクターをID昇順で返す。
// filterのゼロ値フィールドは条件に含めない。
func (r *PostgresCharacterRepo) List(ctx context.Context, filter model.CharacterFilter, page model.Page) ([]*model.Character, int, error) {
	page = page.Normalize()

	const where = ` WHERE ($1::bigint = 0 OR rpg_id = $1) AND ($2::bigint = 0 OR user_id = $2)`

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM characters`+where,
		filter.RPGID, filter.UserID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("キャラクター数の取得に失敗しました: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+characterColumns+` FROM characters`+where+` ORDER BY id ASC LIMIT $3 OFFSET $4`,
		filter.RPGID, filter.UserID, page.Limit, page.Offset(),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("キャラクター一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	characters := make([]*model.Character, 0, page.Limit)
	for rows.Next() {
		c, err := scanCharacter(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("キャラクター行の読み取りに失敗しました: %w", err)
		}
		characters = append(characters, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("キャラクター一覧の走査に失敗しました: %w", err)
	}
	return characters, total, nil
}

var _ CharacterRepository = (*PostgresCharacterRepo)(nil)
