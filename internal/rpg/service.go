// Package rpg はキャンペーン（RPG）管理のドメインロジックを提供する。
package rpg

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
	// MaxNameLength はキャンペーン名の最大文字数。
	MaxNameLength = 100
	// MaxDescriptionLength は説明文（サニタイズ後）の最大文字数。
	MaxDescriptionLength = 10000
)

// Input はキャンペーンの作成・更新入力。nilのフィールドは変更しない。
type Input struct {
	Name        *string
	Description *string
}

// Service はキャンペーン管理のサービス層。
type Service struct {
	repo      repository.RPGRepository
	sanitizer security.ContentSanitizerService
}

// NewService はServiceを生成する。
func NewService(repo repository.RPGRepository, sanitizer security.ContentSanitizerService) *Service {
	return &Service{repo: repo, sanitizer: sanitizer}
}

// List はキャンペーン一覧を返す。認証済みユーザーなら誰でも参照できる。
func (s *Service) List(ctx context.Context, page model.Page) ([]*model.RPG, int, error) {
	rpgs, total, err := s.repo.List(ctx, page)
	if err != nil {
		return nil, 0, fmt.Errorf("キャンペーン一覧の取得に失敗しました: %w", err)
	}
	return rpgs, total, nil
}

// Get は指定IDのキャンペーンを返す。存在しない場合はRPG_NOT_FOUNDを返す。
func (s *Service) Get(ctx context.Context, id int64) (*model.RPG, error) {
	rpg, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("キャンペーンの取得に失敗しました: %w", err)
	}
	if rpg == nil {
		return nil, model.NewRPGNotFoundError(id)
	}
	return rpg, nil
}

// Create はactorをゲームマスターとしてキャンペーンを作成する。
func (s *Service) Create(ctx context.Context, actor model.Actor, in Input) (*model.RPG, error) {
	if in.Name == nil {
		return nil, model.NewValidationError("name", "必須です")
	}
	upd, err := s.clean(in)
	if err != nil {
		return nil, err
	}

	rpg := &model.RPG{
		Name:    *upd.Name,
		OwnerID: actor.UserID,
	}
	if upd.Description != nil {
		rpg.Description = *upd.Description
	}
	if err := s.repo.Create(ctx, rpg); err != nil {
		return nil, fmt.Errorf("キャンペーンの作成に失敗しました: %w", err)
	}

	slog.Info("キャンペーンを作成しました",
		slog.Int64("rpg_id", rpg.ID),
		slog.Int64("owner_id", rpg.OwnerID),
	)
	return rpg, nil
}

// Update はキャンペーンを更新する。ゲームマスター本人または管理者のみ。
func (s *Service) Update(ctx context.Context, actor model.Actor, id int64, in Input) (*model.RPG, error) {
	if _, err := s.authorize(ctx, actor, id); err != nil {
		return nil, err
	}
	upd, err := s.clean(in)
	if err != nil {
		return nil, err
	}

	rpg, err := s.repo.Update(ctx, id, upd)
	if err != nil {
		return nil, fmt.Errorf("キャンペーンの更新に失敗しました: %w", err)
	}
	if rpg == nil {
		return nil, model.NewRPGNotFoundError(id)
	}
	return rpg, nil
}

// Delete はキャンペーンを削除する。ゲームマスター本人または管理者のみ。
// 所属するキャラクターとイベントもCASCADE削除される。
func (s *Service) Delete(ctx context.Context, actor model.Actor, id int64) error {
	if _, err := s.authorize(ctx, actor, id); err != nil {
		return err
	}

	err := s.repo.Delete(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.NewRPGNotFoundError(id)
	}
	if err != nil {
		return fmt.Errorf("キャンペーンの削除に失敗しました: %w", err)
	}

	slog.Info("キャンペーンを削除しました",
		slog.Int64("rpg_id", id),
		slog.Int64("actor_id", actor.UserID),
	)
	return nil
}

// authorize はキャンペーンの存在とactorの変更権限を確認する。
func (s *Service) authorize(ctx context.Context, actor model.Actor, id int64) (*model.RPG, error) {
	rpg, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanManage(rpg.OwnerID) {
		return nil, model.NewForbiddenError()
	}
	return rpg, nil
}

func (s *Service) clean(in Input) (model.RPGUpdate, error) {
	var upd model.RPGUpdate
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
	if in.Description != nil {
		desc := s.sanitizer.Sanitize(*in.Description)
		if utf8.RuneCountInString(desc) > MaxDescriptionLength {
			return upd, model.NewValidationError("description", fmt.Sprintf("%d文字以内で入力してください", MaxDescriptionLength))
		}
		upd.Description = &desc
	}
	return upd, nil
}
