package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/rpgtable/internal/api"
	"github.com/hitoshi/rpgtable/internal/model"
	"github.com/hitoshi/rpgtable/internal/user"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	Get(ctx context.Context, actor model.Actor, id int64) (*model.User, error)
	Update(ctx context.Context, actor model.Actor, id int64, in user.UpdateInput) (*model.User, error)
	// Delete はユーザーを削除する。所有するキャンペーンとキャラクターもCASCADE削除される。
	Delete(ctx context.Context, actor model.Actor, id int64) error
	List(ctx context.Context, actor model.Actor, page model.Page) ([]*model.User, int, error)
	SetType(ctx context.Context, actor model.Actor, id int64, userType model.UserType) (*model.User, error)
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{service: service}
}

// GetUser はユーザーを取得する。本人または管理者のみ。
// GET /users/{id}
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	u, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.FromUser(u))
}

// UpdateUser はプロフィールを更新する。未指定のフィールドは変更しない。
// PUT /users/{id}
func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req api.UpdateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	u, err := h.service.Update(r.Context(), actor, id, user.UpdateInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.FromUser(u))
}

// DeleteUser はユーザーを削除する。本人（退会）または管理者のみ。
// DELETE /users/{id}, DELETE /admin/users/{id}
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), actor, id); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListUsers はユーザー一覧を返す。
// GET /admin/users
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	page, ok := parsePage(w, r)
	if !ok {
		return
	}

	users, total, err := h.service.List(r.Context(), actor, page)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.NewList(api.Map(users, api.FromUser), page, total))
}

// SetUserType はユーザー種別（user / admin）を変更する。
// PATCH /admin/users/{id}
func (h *UserHandler) SetUserType(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req api.SetUserTypeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	u, err := h.service.SetType(r.Context(), actor, id, model.UserType(req.Type))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.FromUser(u))
}
