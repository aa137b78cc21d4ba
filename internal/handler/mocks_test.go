package handler

import (
	"context"

	"github.com/hitoshi/rpgtable/internal/auth"
	"github.com/hitoshi/rpgtable/internal/character"
	"github.com/hitoshi/rpgtable/internal/event"
	"github.com/hitoshi/rpgtable/internal/model"
	"github.com/hitoshi/rpgtable/internal/rpg"
	"github.com/hitoshi/rpgtable/internal/user"
)

// --- モック定義 ---

type mockAuthService struct {
	loginFn        func(ctx context.Context, email, password string) (*auth.Result, error)
	registerFn     func(ctx context.Context, name, email, password string) (*auth.Result, error)
	authenticateFn func(ctx context.Context, credential string) (*model.Principal, error)
	currentUserFn  func(ctx context.Context, userID int64) (*model.User, error)
	logoutFn       func(ctx context.Context, principal *model.Principal) error
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*auth.Result, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return nil, model.NewInvalidCredentialsError()
}

func (m *mockAuthService) Register(ctx context.Context, name, email, password string) (*auth.Result, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, name, email, password)
	}
	return nil, model.NewEmailTakenError()
}

func (m *mockAuthService) Authenticate(ctx context.Context, credential string) (*model.Principal, error) {
	if m.authenticateFn != nil {
		return m.authenticateFn(ctx, credential)
	}
	return nil, model.NewUnauthorizedError()
}

func (m *mockAuthService) CurrentUser(ctx context.Context, userID int64) (*model.User, error) {
	if m.currentUserFn != nil {
		return m.currentUserFn(ctx, userID)
	}
	return &model.User{ID: userID, Name: "user", Type: model.UserTypeUser}, nil
}

func (m *mockAuthService) Logout(ctx context.Context, principal *model.Principal) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, principal)
	}
	return nil
}

type mockUserService struct {
	getFn     func(ctx context.Context, actor model.Actor, id int64) (*model.User, error)
	updateFn  func(ctx context.Context, actor model.Actor, id int64, in user.UpdateInput) (*model.User, error)
	deleteFn  func(ctx context.Context, actor model.Actor, id int64) error
	listFn    func(ctx context.Context, actor model.Actor, page model.Page) ([]*model.User, int, error)
	setTypeFn func(ctx context.Context, actor model.Actor, id int64, userType model.UserType) (*model.User, error)
}

func (m *mockUserService) Get(ctx context.Context, actor model.Actor, id int64) (*model.User, error) {
	if m.getFn != nil {
		return m.getFn(ctx, actor, id)
	}
	return &model.User{ID: id}, nil
}

func (m *mockUserService) Update(ctx context.Context, actor model.Actor, id int64, in user.UpdateInput) (*model.User, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, actor, id, in)
	}
	return &model.User{ID: id}, nil
}

func (m *mockUserService) Delete(ctx context.Context, actor model.Actor, id int64) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, actor, id)
	}
	return nil
}

func (m *mockUserService) List(ctx context.Context, actor model.Actor, page model.Page) ([]*model.User, int, error) {
	if m.listFn != nil {
		return m.listFn(ctx, actor, page)
	}
	return nil, 0, nil
}

func (m *mockUserService) SetType(ctx context.Context, actor model.Actor, id int64, userType model.UserType) (*model.User, error) {
	if m.setTypeFn != nil {
		return m.setTypeFn(ctx, actor, id, userType)
	}
	return &model.User{ID: id, Type: userType}, nil
}

type mockRPGService struct {
	listFn   func(ctx context.Context, page model.Page) ([]*model.RPG, int, error)
	getFn    func(ctx context.Context, id int64) (*model.RPG, error)
	createFn func(ctx context.Context, actor model.Actor, in rpg.Input) (*model.RPG, error)
	updateFn func(ctx context.Context, actor model.Actor, id int64, in rpg.Input) (*model.RPG, error)
	deleteFn func(ctx context.Context, actor model.Actor, id int64) error
}

func (m *mockRPGService) List(ctx context.Context, page model.Page) ([]*model.RPG, int, error) {
	if m.listFn != nil {
		return m.listFn(ctx, page)
	}
	return nil, 0, nil
}

func (m *mockRPGService) Get(ctx context.Context, id int64) (*model.RPG, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, model.NewRPGNotFoundError(id)
}

func (m *mockRPGService) Create(ctx context.Context, actor model.Actor, in rpg.Input) (*model.RPG, error) {
	if m.createFn != nil {
		return m.createFn(ctx, actor, in)
	}
	return &model.RPG{ID: 1, OwnerID: actor.UserID}, nil
}

func (m *mockRPGService) Update(ctx context.Context, actor model.Actor, id int64, in rpg.Input) (*model.RPG, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, actor, id, in)
	}
	return &model.RPG{ID: id}, nil
}

func (m *mockRPGService) Delete(ctx context.Context, actor model.Actor, id int64) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, actor, id)
	}
	return nil
}

type mockCharacterService struct {
	listFn   func(ctx context.Context, filter model.CharacterFilter, page model.Page) ([]*model.Character, int, error)
	getFn    func(ctx context.Context, id int64) (*model.Character, error)
	createFn func(ctx context.Context, actor model.Actor, in character.CreateInput) (*model.Character, error)
	updateFn func(ctx context.Context, actor model.Actor, id int64, in character.UpdateInput) (*model.Character, error)
	deleteFn func(ctx context.Context, actor model.Actor, id int64) error
}

func (m *mockCharacterService) List(ctx context.Context, filter model.CharacterFilter, page model.Page) ([]*model.Character, int, error) {
	if m.listFn != nil {
		return m.listFn(ctx, filter, page)
	}
	return nil, 0, nil
}

func (m *mockCharacterService) Get(ctx context.Context, id int64) (*model.Character, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, model.NewCharacterNotFoundError(id)
}

func (m *mockCharacterService) Create(ctx context.Context, actor model.Actor, in character.CreateInput) (*model.Character, error) {
	if m.createFn != nil {
		return m.createFn(ctx, actor, in)
	}
	return &model.Character{ID: 1, RPGID: in.RPGID, UserID: actor.UserID, Name: in.Name, Level: in.Level}, nil
}

func (m *mockCharacterService) Update(ctx context.Context, actor model.Actor, id int64, in character.UpdateInput) (*model.Character, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, actor, id, in)
	}
	return &model.Character{ID: id}, nil
}

func (m *mockCharacterService) Delete(ctx context.Context, actor model.Actor, id int64) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, actor, id)
	}
	return nil
}

type mockEventService struct {
	listFn   func(ctx context.Context, characterID int64, page model.Page) ([]*model.Event, int, error)
	getFn    func(ctx context.Context, id int64) (*model.Event, error)
	createFn func(ctx context.Context, actor model.Actor, in event.CreateInput) (*model.Event, error)
	updateFn func(ctx context.Context, actor model.Actor, id int64, in event.UpdateInput) (*model.Event, error)
	deleteFn func(ctx context.Context, actor model.Actor, id int64) error
}

func (m *mockEventService) ListByCharacter(ctx context.Context, characterID int64, page model.Page) ([]*model.Event, int, error) {
	if m.listFn != nil {
		return m.listFn(ctx, characterID, page)
	}
	return nil, 0, nil
}

func (m *mockEventService) Get(ctx context.Context, id int64) (*model.Event, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, model.NewEventNotFoundError(id)
}

func (m *mockEventService) Create(ctx context.Context, actor model.Actor, in event.CreateInput) (*model.Event, error) {
	if m.createFn != nil {
		return m.createFn(ctx, actor, in)
	}
	return &model.Event{ID: 1, CharacterID: in.CharacterID, EventTypeID: in.EventTypeID, Title: in.Title}, nil
}

func (m *mockEventService) Update(ctx context.Context, actor model.Actor, id int64, in event.UpdateInput) (*model.Event, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, actor, id, in)
	}
	return &model.Event{ID: id}, nil
}

func (m *mockEventService) Delete(ctx context.Context, actor model.Actor, id int64) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, actor, id)
	}
	return nil
}

type mockEventTypeService struct {
	listFn   func(ctx context.Context) ([]*model.EventType, error)
	createFn func(ctx context.Context, actor model.Actor, name string) (*model.EventType, error)
	deleteFn func(ctx context.Context, actor model.Actor, id int64) error
}

func (m *mockEventTypeService) List(ctx context.Context) ([]*model.EventType, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return []*model.EventType{{ID: 1, Name: "combat"}}, nil
}

func (m *mockEventTypeService) Create(ctx context.Context, actor model.Actor, name string) (*model.EventType, error) {
	if m.createFn != nil {
		return m.createFn(ctx, actor, name)
	}
	return &model.EventType{ID: 10, Name: name}, nil
}

func (m *mockEventTypeService) Delete(ctx context.Context, actor model.Actor, id int64) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, actor, id)
	}
	return nil
}
