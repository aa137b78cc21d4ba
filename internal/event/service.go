// Package event はキャラクターに起きたイベント（戦闘、レベルアップなど）の記録を扱う。
package event

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/hitoshi/rpgtable/internal/model"
	"github.com/hitoshi/rpgtable/internal/repository"
	"github.com/hitoshi/rpgtable/internal/security"
)

const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 10000
)

// CharacterAuthorizer はキャラクターの参照と変更権限の確認を行う。
// character.Serviceが実装する。
type CharacterAuthorizer interface {
	Get(ctx context.Context, id int64) (*model.Character, error)
	Authorize(ctx context.Context, actor model.Actor, id int64) (*model.Character, error)
}

// CreateInput はイベント作成の入力。OccurredAtがnilの場合は現在時刻になる。
type CreateInput struct {
	CharacterID int64
	EventTypeID int64
	Title       string
	Description string
	OccurredAt  *time.Time
}

// UpdateInput はイベント更新の入力。nilのフィールドは変更しない。
type UpdateInput struct {
	EventTypeID *int64
	Title       *string
	Description *string
	OccurredAt  *time.Time
}

// Service はイベント管理のサービス層。
type Service struct {
	repo       repository.EventRepository
	typeRepo   repository.EventTypeRepository
	characters CharacterAuthorizer
	sanitizer  security.ContentSanitizerService
}

// NewService はServiceを生成する。
func NewService(
	repo repository.EventRepository,
	typeRepo repository.EventTypeRepository,
	characters CharacterAuthorizer,
	sanitizer security.ContentSanitizerService,
) *Service {
	return &Service{
		repo:       repo,
		typeRepo:   typeRepo,
		characters: characters,
		sanitizer:  sanitizer,
	}
}

// ListByCharacter はキャラクターのイベントを新しい順で返す。
func (s *Service) ListByCharacter(ctx context.Context, characterID int64, page model.Page) ([]*model.Event, int, error) {
	if _, err := s.characters.Get(ctx, characterID); err != nil {
		return nil, 0, err
	}
	events, total, err := s.repo.ListByCharacter(ctx, characterID, page)
	if err != nil {
		return nil, 0, fmt.Errorf("イベント一覧の取得に失敗しました: %w", err)
	}
	return events, total, nil
}

// Get は指定IDのイベントを返す。
func (s *Service) Get(ctx context.Context, id int64) (*model.Event, error) {
	e, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("イベントの取得に失敗しました: %w", err)
	}
	if e == nil {
		return nil, model.NewEventNotFoundError(id)
	}
	return e, nil
}

// Create はキャラクターにイベントを記録する。
// キャラクターを変更できるユーザー（プレイヤー本人、ゲームマスター、管理者）のみ。
func (s *Service) Create(ctx context.Context, actor model.Actor, in CreateInput) (*model.Event, error) {
	if in.CharacterID <= 0 {
		return nil, model.NewValidationError("character_id", "必須です")
	}
	if in.EventTypeID <= 0 {
		return nil, model.NewValidationError("event_type_id", "必須です")
	}
	upd, err := s.clean(UpdateInput{Title: &in.Title, Description: &in.Description})
	if err != nil {
		return nil, err
	}
	if _, err := s.characters.Authorize(ctx, actor, in.CharacterID); err != nil {
		return nil, err
	}
	if err := s.checkEventType(ctx, in.EventTypeID); err != nil {
		return nil, err
	}

	e := &model.Event{
		CharacterID: in.CharacterID,
		EventTypeID: in.EventTypeID,
		Title:       *upd.Title,
		Description: *upd.Description,
	}
	if in.OccurredAt != nil {
		e.OccurredAt = *in.OccurredAt
	}
	err = s.repo.Create(ctx, e)
	if errors.Is(err, repository.ErrReferenceMissing) {
		return nil, model.NewEventTypeNotFoundError(in.EventTypeID)
	}
	if err != nil {
		return nil, fmt.Errorf("イベントの作成に失敗しました: %w", err)
	}

	slog.Info("イベントを記録しました",
		slog.Int64("event_id", e.ID),
		slog.Int64("character_id", e.CharacterID),
		slog.Int64("event_type_id", e.EventTypeID),
	)
	return e, nil
}

// Update はイベントを更新する。
func (s *Service) Update(ctx context.Context, actor model.Actor, id int64, in UpdateInput) (*model.Event, error) {
	if _, err := s.authorize(ctx, actor, id); err != nil {
		return nil, err
	}
	upd, err := s.clean(in)
	if err != nil {
		return nil, err
	}
	if upd.EventTypeID != nil {
		if err := s.checkEventType(ctx, *upd.EventTypeID); err != nil {
			return nil, err
		}
	}

	e, err := s.repo.Update(ctx, id, upd)
	if errors.Is(err, repository.ErrReferenceMissing) && upd.EventTypeID != nil {
		return nil, model.NewEventTypeNotFoundError(*upd.EventTypeID)
	}
	if err != nil {
		return nil, fmt.Errorf("イベントの更新に失敗しました: %w", err)
	}
	if e == nil {
		return nil, model.NewEventNotFoundError(id)
	}
	return e, nil
}

// Delete はイベントを削除する。
func (s *Service) Delete(ctx context.Context, actor model.Actor, id int64) error {
	if _, err := s.authorize(ctx, actor, id); err != nil {
		return err
	}

	err := s.repo.Delete(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.NewEventNotFoundError(id)
	}
	if err != nil {
		return fmt.Errorf("イベントの削除に失敗しました: %w", err)
	}
	return nil
}

func (s *Service) authorize(ctx context.Context, actor model.Actor, id int64) (*model.Event, error) {
	e, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.characters.Authorize(ctx, actor, e.CharacterID); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Service) checkEventType(ctx context.Context, id int64) error {
	et, err := s.typeRepo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("イベント種別の取得に失敗しました: %w", err)
	}
	if et == nil {
		return model.NewEventTypeNotFoundError(id)
	}
	return nil
}

func (s *Service) clean(in UpdateInput) (model.EventUpdate, error) {
	upd := model.EventUpdate{
		EventTypeID: in.EventTypeID,
		OccurredAt:  in.OccurredAt,
	}
	if in.EventTypeID != nil && *in.EventTypeID <= 0 {
		return upd, model.NewValidationError("event_type_id", "正の整数を指定してください")
	}
	if in.Title != nil {
		title := s.sanitizer.PlainText(*in.Title)
		if title == "" {
			return upd, model.NewValidationError("title", "必須です")
		}
		if utf8.RuneCountInString(title) > MaxTitleLength {
			return upd, model.NewValidationError("title", fmt.Sprintf("%d文字以内で入力してください", MaxTitleLength))
		}
		upd.Title = &title
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
