package event

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

// MaxTypeNameLength はイベント種別名の最大文字数。
const MaxTypeNameLength = 50

// TypeService はイベント種別マスタを管理する。参照は全員、変更は管理者のみ。
type TypeService struct {
	repo      repository.EventTypeRepository
	sanitizer security.ContentSanitizerService
}

// NewTypeService はTypeServiceを生成する。
func NewTypeService(repo repository.EventTypeRepository, sanitizer security.ContentSanitizerService) *TypeService {
	return &TypeService{repo: repo, sanitizer: sanitizer}
}

// List は全イベント種別を返す。
func (s *TypeService) List(ctx context.Context) ([]*model.EventType, error) {
	types, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("イベント種別一覧の取得に失敗しました: %w", err)
	}
	return types, nil
}

// Create はイベント種別を追加する。
func (s *TypeService) Create(ctx context.Context, actor model.Actor, name string) (*model.EventType, error) {
	if !actor.IsAdmin() {
		return nil, model.NewForbiddenError()
	}
	name = s.sanitizer.PlainText(name)
	if name == "" {
		return nil, model.NewValidationError("name", "必須です")
	}
	if utf8.RuneCountInString(name) > MaxTypeNameLength {
		return nil, model.NewValidationError("name", fmt.Sprintf("%d文字以内で入力してください", MaxTypeNameLength))
	}

	et := &model.EventType{Name: name}
	err := s.repo.Create(ctx, et)
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, model.NewEventTypeDuplicateError(name)
	}
	if err != nil {
		return nil, fmt.Errorf("イベント種別の作成に失敗しました: %w", err)
	}

	slog.Info("イベント種別を追加しました",
		slog.Int64("event_type_id", et.ID),
		slog.String("name", et.Name),
	)
	return et, nil
}

// Delete はイベント種別を削除する。その種別のイベントもCASCADE削除される。
func (s *TypeService) Delete(ctx context.Context, actor model.Actor, id int64) error {
	if !actor.IsAdmin() {
		return model.NewForbiddenError()
	}
	err := s.repo.Delete(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.NewEventTypeNotFoundError(id)
	}
	if err != nil {
		return fmt.Errorf("イベント種別の削除に失敗しました: %w", err)
	}

	slog.Info("イベント種別を削除しました", slog.Int64("event_type_id", id))
	return nil
}
