// Package character はキャラクター管理のドメインロジックを提供する。
package character

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/hitoshi/rpgtable/internal/model"
	"github.com/hitoshi/rpgtable/internal/repository"
	"github.com/hitoshi/rpgtable/internal/security"
)

const (
	MaxNameLength        = 100
	MaxClassLength       = 50
	MaxDescriptionLength = 10000
	MinLevel             = 1
	MaxLevel             = 100
)

// CreateInput はキャラクター作成の入力。
type CreateInput struct {
	RPGID       int64
	Name        string
	Class       string
	Level       int // 0の場合はMinLevel
	Description string
}

// UpdateInput はキャラクター更新の入力。nilのフィールドは変更しない。
type UpdateInput struct {
	Name        *string
	Class       *string
	Level       *int
	Description *string
}

// Service はキャラクター管理のサービス層。
type Service struct {
	repo      repository.CharacterRepository
	rpgRepo   repository.RPGRepository
	sanitizer security.ContentSanitizerService
}

// NewService はServiceを生成する。
func NewService(repo repository.CharacterRepository, rpgRepo repository.RPGRepository, sanitizer security.ContentSanitizerService) *Service {
	return &Service{repo: repo, rpgRepo: rpgRepo, sanitizer: sanitizer}
}

// List はfilterに一致するキャラクター一覧を返す。
// filter.RPGIDが指定されていてキャンペーンが存在しない場合はRPG_NOT_FOUNDを返す。
func (s *Service) List(ctx context.Context, filter model.CharacterFilter, page model.Page) ([]*model.Character, int, error) {
	if filter.RPGID != 0 {
		if _, err := s.findRPG(ctx, filter.RPGID); err != nil {
			return nil, 0, err
		}
	}
	chars, total, err := s.repo.List(ctx, filter, page)
	if err != nil {
		return nil, 0, fmt.Errorf("キャラクター一覧の取得に失敗しました: %w", err)
	}
	return chars, total, nil
}

// Get は指定IDのキャラクターを返す。
func (s *Service) Get(ctx context.Context, id int64) (*model.Character, error) {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("キャラクターの取得に失敗しました: %w", err)
	}
	if c == nil {
		return nil, model.NewCharacterNotFoundError(id)
	}
	return c, nil
}

// Create はactorをプレイヤーとしてキャンペーンにキャラクターを作成する。
func (s *Service) Create(ctx context.Context, actor model.Actor, in CreateInput) (*model.Character, error) {
	if in.RPGID <= 0 {
		return nil, model.NewValidationError("rpg_id", "必須です")
	}
	if in.Level == 0 {
		in.Level = MinLevel
	}
	upd, err := s.clean(UpdateInput{
		Name:        &in.Name,
		Class:       &in.Class,
		Level:       &in.Level,
		Description: &in.Description,
	})
	if err != nil {
		return nil, err
	}
	if _, err := s.findRPG(ctx, in.RPGID); err != nil {
		return nil, err
	}

	c := &model.Character{
		RPGID:       in.RPGID,
		UserID:      actor.UserID,
		Name:        *upd.Name,
		Class:       *upd.Class,
		Level:       *upd.Level,
		Description: *upd.Description,
	}
	err = s.repo.Create(ctx, c)
	if errors.Is(err, repository.ErrReferenceMissing) {
		// 確認後にキャンペーンが削除された
		return nil, model.NewRPGNotFoundError(in.RPGID)
	}
	if err != nil {
		return nil, fmt.Errorf("キャラクターの作成に失敗しました: %w", err)
	}

	slog.Info("キャラクターを作成しました",
		slog.Int64("character_id", c.ID),
		slog.Int64("rpg_id", c.RPGID),
		slog.Int64("user_id", c.UserID),
	)
	return c, nil
}

// Update はキャラクターを更新する。プレイヤー本人、ゲームマスター、管理者のみ。
func (s *Service) Update(ctx context.Context, actor model.Actor, id int64, in UpdateInput) (*model.Character, error) {
	if _, err := s.Authorize(ctx, actor, id); err != nil {
		return nil, err
	}
	upd, err := s.clean(in)
	if err != nil {
		return nil, err
	}

	c, err := s.repo.Update(ctx, id, upd)
	if err != nil {
		return nil, fmt.Errorf("キャラクターの更新に失敗しました: %w", err)
	}
	if c == nil {
		return nil, model.NewCharacterNotFoundError(id)
	}
	return c, nil
}

// Delete はキャラクターを削除する。イベントもCASCADE削除される。
func (s *Service) Delete(ctx context.Context, actor model.Actor, id int64) error {
	if _, err := s.Authorize(ctx, actor, id); err != nil {
		return err
	}

	err := s.repo.Delete(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.NewCharacterNotFoundError(id)
	}
	if err != nil {
		return fmt.Errorf("キャラクターの削除に失敗しました: %w", err)
	}

	slog.Info("キャラクターを削除しました",
		slog.Int64("character_id", id),
		slog.Int64("actor_id", actor.UserID),
	)
	return nil
}

// Authorize はキャラクターの存在とactorの変更権限を確認し、キャラクターを返す。
// プレイヤー本人、所属キャンペーンのゲームマスター、管理者が変更できる。
func (s *Service) Authorize(ctx context.Context, actor model.Actor, id int64) (*model.Character, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.CanManage(c.UserID) {
		return c, nil
	}

	rpg, err := s.rpgRepo.FindByID(ctx, c.RPGID)
	if err != nil {
		return nil, fmt.Errorf("キャンペーンの取得に失敗しました: %w", err)
	}
	if rpg != nil && actor.CanManage(rpg.OwnerID) {
		return c, nil
	}
	return nil, model.NewForbiddenError()
}

func (s *Service) findRPG(ctx context.Context, id int64) (*model.RPG, error) {
	rpg, err := s.rpgRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("キャンペーンの取得に失敗しました: %w", err)
	}
	if rpg == nil {
		return nil, model.NewRPGNotFoundError(id)
	}
	return rpg, nil
}

func (s *Service) clean(in UpdateInput) (model.CharacterUpdate, error) {
	var upd model.CharacterUpdate
	if in.Name != nil {
		name := s.sanitizer.PlainText(*in.Name)
		if name == "" {
			return upd, model.NewValidationError("name", "必須です")
		}
		if utf8.RuneCountInString(name) > MaxNameLength {
			return upd, model.NewValidationError("name", fmt.Sprintf("%d文字以内で入力してください", MaxNameLength))
		}
		upd.Name = &name
	}
	if in.Class != nil {
		class := s.sanitizer.PlainText(*in.Class)
		if utf8.RuneCountInString(class) > MaxClassLength {
			return upd, model.NewValidationError("class", fmt.Sprintf("%d文字以内で入力してください", MaxClassLength))
		}
		upd.Class = &class
	}
	if in.Level != nil {
		if *in.Level < MinLevel || *in.Level > MaxLevel {
			return upd, model.NewValidationError("level", fmt.Sprintf("%dから%dの範囲で指定してください", MinLevel, MaxLevel))
		}
		level := *in.Level
		upd.Level = &level
	}
	if in.Description != nil {
		desc := s.sanitizer.Sanitize(*in.Description)
		if utf8.RuneCountInString(desc) > MaxDescriptionLength {
			return upd, model.NewValidationError("description", fmt.Sprintf("%d文字以内で入力してください", MaxDescriptionLength))
		}
		upd.Description = &desc
	}
	return upd, nil
}
