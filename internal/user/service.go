// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/hitoshi/rpgtable/internal/auth"
	"github.com/hitoshi/rpgtable/internal/model"
	"github.com/hitoshi/rpgtable/internal/repository"
	"github.com/hitoshi/rpgtable/internal/security"
)

// UpdateInput はユーザー自身が変更できる項目。nilのフィールドは変更しない。
type UpdateInput struct {
	Name     *string
	Email    *string
	Password *string
}

// Service はユーザー管理のサービス層。
type Service struct {
	userRepo  repository.UserRepository
	hasher    auth.PasswordHasher
	sanitizer security.ContentSanitizerService
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	hasher auth.PasswordHasher,
	sanitizer security.ContentSanitizerService,
) *Service {
	return &Service{
		userRepo:  userRepo,
		hasher:    hasher,
		sanitizer: sanitizer,
	}
}

// Get はユーザーを取得する。本人または管理者のみ参照できる。
func (s *Service) Get(ctx context.Context, actor model.Actor, id int64) (*model.User, error) {
	if !actor.CanManage(id) {
		return nil, model.NewForbiddenError()
	}
	return s.find(ctx, id)
}

// Update はユーザー情報を更新する。本人または管理者のみ更新できる。
func (s *Service) Update(ctx context.Context, actor model.Actor, id int64, in UpdateInput) (*model.User, error) {
	if !actor.CanManage(id) {
		return nil, model.NewForbiddenError()
	}

	var upd model.UserUpdate
	if in.Name != nil {
		name := s.sanitizer.PlainText(*in.Name)
		if name == "" {
			return nil, model.NewValidationError("name", "必須です")
		}
		if utf8.RuneCountInString(name) > auth.MaxNameLength {
			return nil, model.NewValidationError("name", fmt.Sprintf("%d文字以内で入力してください", auth.MaxNameLength))
		}
		upd.Name = &name
	}
	if in.Email != nil {
		email := auth.NormalizeEmail(*in.Email)
		if err := auth.ValidateEmail(email); err != nil {
			return nil, err
		}
		upd.Email = &email
	}
	if in.Password != nil {
		if err := auth.ValidatePassword(*in.Password); err != nil {
			return nil, err
		}
		hash, err := s.hasher.Hash(*in.Password)
		if err != nil {
			return nil, fmt.Errorf("パスワードのハッシュ化に失敗しました: %w", err)
		}
		upd.PasswordHash = &hash
	}

	user, err := s.userRepo.Update(ctx, id, upd)
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, model.NewEmailTakenError()
	}
	if err != nil {
		return nil, fmt.Errorf("ユーザーの更新に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// Delete はユーザーを削除する。本人（退会）または管理者のみ削除できる。
// 所有するキャンペーン、キャラクター、イベントはCASCADE削除される。
func (s *Service) Delete(ctx context.Context, actor model.Actor, id int64) error {
	if !actor.CanManage(id) {
		return model.NewForbiddenError()
	}

	err := s.userRepo.DeleteByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.NewUserNotFoundError()
	}
	if err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	slog.Info("ユーザーを削除しました",
		slog.Int64("user_id", id),
		slog.Int64("actor_id", actor.UserID),
	)
	return nil
}

// List はユーザー一覧を返す。管理者のみ。
func (s *Service) List(ctx context.Context, actor model.Actor, page model.Page) ([]*model.User, int, error) {
	if !actor.IsAdmin() {
		return nil, 0, model.NewForbiddenError()
	}
	users, total, err := s.userRepo.List(ctx, page)
	if err != nil {
		return nil, 0, fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}
	return users, total, nil
}

// SetType はユーザーのロールを変更する。管理者のみ。
// 管理者が自分自身を一般ユーザーに降格することはできない。
func (s *Service) SetType(ctx context.Context, actor model.Actor, id int64, userType model.UserType) (*model.User, error) {
	if !actor.IsAdmin() {
		return nil, model.NewForbiddenError()
	}
	if !userType.Valid() {
		return nil, model.NewValidationError("type", "user または admin を指定してください")
	}
	if actor.UserID == id && userType != model.UserTypeAdmin {
		return nil, model.NewValidationError("type", "自分自身の管理者権限は解除できません")
	}

	user, err := s.userRepo.Update(ctx, id, model.UserUpdate{Type: &userType})
	if err != nil {
		return nil, fmt.Errorf("ロールの更新に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	slog.Info("ユーザーのロールを変更しました",
		slog.Int64("user_id", id),
		slog.String("type", string(userType)),
		slog.Int64("actor_id", actor.UserID),
	)
	return user, nil
}

func (s *Service) find(ctx context.Context, id int64) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}
