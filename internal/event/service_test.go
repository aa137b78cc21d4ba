package event

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/rpgtable/internal/model"
	"github.com/hitoshi/rpgtable/internal/repository"
	"github.com/hitoshi/rpgtable/internal/security"
)

// --- モック ---

type mockEventRepo struct {
	events  map[int64]*model.Event
	nextID  int64
	deleted []int64
}

func newMockEventRepo(events ...*model.Event) *mockEventRepo {
	m := &mockEventRepo{events: map[int64]*model.Event{}, nextID: 100}
	for _, e := range events {
		m.events[e.ID] = e
	}
	return m
}

func (m *mockEventRepo) FindByID(_ context.Context, id int64) (*model.Event, error) {
	return m.events[id], nil
}
func (m *mockEventRepo) Create(_ context.Context, e *model.Event) error {
	m.nextID++
	e.ID = m.nextID
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}
	m.events[e.ID] = e
	return nil
}
func (m *mockEventRepo) Update(_ context.Context, id int64, upd model.EventUpdate) (*model.Event, error) {
	e, ok := m.events[id]
	if !ok {
		return nil, nil
	}
	if upd.EventTypeID != nil {
		e.EventTypeID = *upd.EventTypeID
	}
	if upd.Title != nil {
		e.Title = *upd.Title
	}
	if upd.Description != nil {
		e.Description = *upd.Description
	}
	if upd.OccurredAt != nil {
		e.OccurredAt = *upd.OccurredAt
	}
	return e, nil
}
func (m *mockEventRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.events[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.events, id)
	m.deleted = append(m.deleted, id)
	return nil
}
func (m *mockEventRepo) ListByCharacter(_ context.Context, characterID int64, _ model.Page) ([]*model.Event, int, error) {
	var out []*model.Event
	for _, e := range m.events {
		if e.CharacterID == characterID {
			out = append(out, e)
		}
	}
	return out, len(out), nil
}

type mockEventTypeRepo struct {
	types    map[int64]*model.EventType
	createFn func(ctx context.Context, et *model.EventType) error
	deleteFn func(ctx context.Context, id int64) error
}

func (m *mockEventTypeRepo) FindByID(_ context.Context, id int64) (*model.EventType, error) {
	return m.types[id], nil
}
func (m *mockEventTypeRepo) List(context.Context) ([]*model.EventType, error) {
	var out []*model.EventType
	for _, et := range m.types {
		out = append(out, et)
	}
	return out, nil
}
func (m *mockEventTypeRepo) Create(ctx context.Context, et *model.EventType) error {
	if m.createFn != nil {
		return m.createFn(ctx, et)
	}
	et.ID = 50
	return nil
}
func (m *mockEventTypeRepo) Delete(ctx context.Context, id int64) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

// mockCharacters はキャラクター1のプレイヤーをユーザー2とする。
type mockCharacters struct{}

func (mockCharacters) Get(_ context.Context, id int64) (*model.Character, error) {
	if id != 1 {
		return nil, model.NewCharacterNotFoundError(id)
	}
	return &model.Character{ID: 1, RPGID: 10, UserID: 2}, nil
}

func (m mockCharacters) Authorize(ctx context.Context, actor model.Actor, id int64) (*model.Character, error) {
	c, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanManage(c.UserID) {
		return nil, model.NewForbiddenError()
	}
	return c, nil
}

var (
	player = model.Actor{UserID: 2, Type: model.UserTypeUser}
	other  = model.Actor{UserID: 3, Type: model.UserTypeUser}
	admin  = model.Actor{UserID: 9, Type: model.UserTypeAdmin}
)

func newTypeRepo() *mockEventTypeRepo {
	return &mockEventTypeRepo{types: map[int64]*model.EventType{
		1: {ID: 1, Name: "combat"},
		2: {ID: 2, Name: "level_up"},
	}}
}

func ptr[T any](v T) *T { return &v }

func errorCode(err error) string {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}

// --- Service ---

func TestService_Create_Success(t *testing.T) {
	repo := newMockEventRepo()
	svc := NewService(repo, newTypeRepo(), mockCharacters{}, security.NewContentSanitizer())

	at := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	e, err := svc.Create(context.Background(), player, CreateInput{
		CharacterID: 1,
		EventTypeID: 1,
		Title:       "<i>Wolves</i> at the gate",
		Description: "<p>Three wolves</p>",
		OccurredAt:  &at,
	})
	if err != nil {
		t.Fatalf("Create error = %v", err)
	}
	if e.Title != "Wolves at the gate" {
		t.Errorf("Title = %q", e.Title)
	}
	if !e.OccurredAt.Equal(at) {
		t.Errorf("OccurredAt = %v, want %v", e.OccurredAt, at)
	}
}

func TestService_Create_Errors(t *testing.T) {
	tests := []struct {
		name     string
		actor    model.Actor
		in       CreateInput
		wantCode string
	}{
		{name: "character_id未指定", actor: player, in: CreateInput{EventTypeID: 1, Title: "t"}, wantCode: model.ErrCodeValidation},
		{name: "event_type_id未指定", actor: player, in: CreateInput{CharacterID: 1, Title: "t"}, wantCode: model.ErrCodeValidation},
		{name: "タイトルなし", actor: player, in: CreateInput{CharacterID: 1, EventTypeID: 1}, wantCode: model.ErrCodeValidation},
		{name: "存在しないキャラクター", actor: player, in: CreateInput{CharacterID: 5, EventTypeID: 1, Title: "t"}, wantCode: model.ErrCodeCharacterNotFound},
		{name: "存在しない種別", actor: player, in: CreateInput{CharacterID: 1, EventTypeID: 9, Title: "t"}, wantCode: model.ErrCodeEventTypeNotFound},
		{name: "権限なし", actor: other, in: CreateInput{CharacterID: 1, EventTypeID: 1, Title: "t"}, wantCode: model.ErrCodeForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockEventRepo()
			svc := NewService(repo, newTypeRepo(), mockCharacters{}, security.NewContentSanitizer())
			_, err := svc.Create(context.Background(), tt.actor, tt.in)
			if got := errorCode(err); got != tt.wantCode {
				t.Errorf("error = %v, want code %q", err, tt.wantCode)
			}
			if len(repo.events) != 0 {
				t.Error("event must not be created on error")
			}
		})
	}
}

func TestService_UpdateAndDelete(t *testing.T) {
	tests := []struct {
		name     string
		actor    model.Actor
		wantCode string
	}{
		{name: "プレイヤー本人", actor: player},
		{name: "管理者", actor: admin},
		{name: "無関係のユーザー", actor: other, wantCode: model.ErrCodeForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockEventRepo(&model.Event{ID: 7, CharacterID: 1, EventTypeID: 1, Title: "Old"})
			svc := NewService(repo, newTypeRepo(), mockCharacters{}, security.NewContentSanitizer())

			e, err := svc.Update(context.Background(), tt.actor, 7, UpdateInput{Title: ptr("New"), EventTypeID: ptr(int64(2))})
			if got := errorCode(err); got != tt.wantCode {
				t.Fatalf("Update error = %v, want code %q", err, tt.wantCode)
			}
			if tt.wantCode == "" && (e.Title != "New" || e.EventTypeID != 2) {
				t.Errorf("event = %+v", e)
			}

			err = svc.Delete(context.Background(), tt.actor, 7)
			if got := errorCode(err); got != tt.wantCode {
				t.Errorf("Delete error = %v, want code %q", err, tt.wantCode)
			}
		})
	}
}

func TestService_Update_UnknownEventType(t *testing.T) {
	repo := newMockEventRepo(&model.Event{ID: 7, CharacterID: 1, EventTypeID: 1, Title: "Old"})
	svc := NewService(repo, newTypeRepo(), mockCharacters{}, security.NewContentSanitizer())

	_, err := svc.Update(context.Background(), player, 7, UpdateInput{EventTypeID: ptr(int64(99))})
	if errorCode(err) != model.ErrCodeEventTypeNotFound {
		t.Errorf("error = %v, want EVENT_TYPE_NOT_FOUND", err)
	}
	if repo.events[7].EventTypeID != 1 {
		t.Error("event type must not change")
	}
}

func TestService_GetAndListByCharacter(t *testing.T) {
	repo := newMockEventRepo(
		&model.Event{ID: 1, CharacterID: 1, Title: "a"},
		&model.Event{ID: 2, CharacterID: 1, Title: "b"},
		&model.Event{ID: 3, CharacterID: 4, Title: "c"},
	)
	svc := NewService(repo, newTypeRepo(), mockCharacters{}, security.NewContentSanitizer())

	if _, err := svc.Get(context.Background(), 404); errorCode(err) != model.ErrCodeEventNotFound {
		t.Errorf("Get error = %v, want EVENT_NOT_FOUND", err)
	}

	events, total, err := svc.ListByCharacter(context.Background(), 1, model.Page{Number: 1, Limit: 20})
	if err != nil {
		t.Fatalf("ListByCharacter error = %v", err)
	}
	if total != 2 || len(events) != 2 {
		t.Errorf("got %d events (total %d), want 2", len(events), total)
	}

	if _, _, err := svc.ListByCharacter(context.Background(), 5, model.Page{}); errorCode(err) != model.ErrCodeCharacterNotFound {
		t.Errorf("error = %v, want CHARACTER_NOT_FOUND", err)
	}
}

// --- TypeService ---

func TestTypeService_Create(t *testing.T) {
	tests := []struct {
		name     string
		actor    model.Actor
		input    string
		createFn func(ctx context.Context, et *model.EventType) error
		wantCode string
	}{
		{name: "管理者が作成", actor: admin, input: "ritual"},
		{name: "一般ユーザーは不可", actor: player, input: "ritual", wantCode: model.ErrCodeForbidden},
		{name: "空の名前", actor: admin, input: "  ", wantCode: model.ErrCodeValidation},
		{
			name:  "重複",
			actor: admin,
			input: "combat",
			createFn: func(context.Context, *model.EventType) error {
				return repository.ErrDuplicate
			},
			wantCode: model.ErrCodeEventTypeDuplicate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewTypeService(&mockEventTypeRepo{createFn: tt.createFn}, security.NewContentSanitizer())
			et, err := svc.Create(context.Background(), tt.actor, tt.input)
			if got := errorCode(err); got != tt.wantCode {
				t.Fatalf("error = %v, want code %q", err, tt.wantCode)
			}
			if tt.wantCode == "" && et.Name != tt.input {
				t.Errorf("Name = %q, want %q", et.Name, tt.input)
			}
		})
	}
}

func TestTypeService_Delete(t *testing.T) {
	repo := &mockEventTypeRepo{
		deleteFn: func(_ context.Context, id int64) error {
			if id != 1 {
				return repository.ErrNotFound
			}
			return nil
		},
	}
	svc := NewTypeService(repo, security.NewContentSanitizer())

	if err := svc.Delete(context.Background(), player, 1); errorCode(err) != model.ErrCodeForbidden {
		t.Errorf("non-admin Delete error = %v, want FORBIDDEN", err)
	}
	if err := svc.Delete(context.Background(), admin, 1); err != nil {
		t.Errorf("admin Delete error = %v", err)
	}
	if err := svc.Delete(context.Background(), admin, 2); errorCode(err) != model.ErrCodeEventTypeNotFound {
		t.Errorf("Delete unknown error = %v, want EVENT_TYPE_NOT_FOUND", err)
	}
}
