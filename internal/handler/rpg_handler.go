package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/rpgtable/internal/api"
	"github.com/hitoshi/rpgtable/internal/middleware"
	"github.com/hitoshi/rpgtable/internal/model"
	"github.com/hitoshi/rpgtable/internal/rpg"
)

// RPGServiceInterface はキャンペーンハンドラーが必要とするサービスインターフェース。
type RPGServiceInterface interface {
	List(ctx context.Context, page model.Page) ([]*model.RPG, int, error)
	Get(ctx context.Context, id int64) (*model.RPG, error)
	Create(ctx context.Context, actor model.Actor, in rpg.Input) (*model.RPG, error)
	Update(ctx context.Context, actor model.Actor, id int64, in rpg.Input) (*model.RPG, error)
	Delete(ctx context.Context, actor model.Actor, id int64) error
}

// RPGHandler はキャンペーン管理のHTTPハンドラー。
type RPGHandler struct {
	service RPGServiceInterface
}

// NewRPGHandler はRPGHandlerを生成する。
func NewRPGHandler(service RPGServiceInterface) *RPGHandler {
	return &RPGHandler{service: service}
}

// ListRPGs はキャンペーン一覧を返す。
// GET /rpgs
func (h *RPGHandler) ListRPGs(w http.ResponseWriter, r *http.Request) {
	page, ok := parsePage(w, r)
	if !ok {
		return
	}

	rpgs, total, err := h.service.List(r.Context(), page)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.NewList(api.Map(rpgs, api.FromRPG), page, total))
}

// CreateRPG はリクエストしたユーザーをゲームマスターとしてキャンペーンを作成する。
// POST /rpgs
func (h *RPGHandler) CreateRPG(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req api.RPGRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	created, err := h.service.Create(r.Context(), actor, rpg.Input{Name: req.Name, Description: req.Description})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, api.FromRPG(created))
}

// GetRPG はキャンペーン詳細を返す。
// GET /rpg/{id}
func (h *RPGHandler) GetRPG(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	found, err := h.service.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.FromRPG(found))
}

// ReplaceRPG はキャンペーンを置き換える。nameは必須で、descriptionの省略は空文字として扱う。
// PUT /rpg/{id}
func (h *RPGHandler) ReplaceRPG(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, true)
}

// PatchRPG は指定されたフィールドのみ更新する。
// PATCH /rpg/{id}
func (h *RPGHandler) PatchRPG(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, false)
}

func (h *RPGHandler) update(w http.ResponseWriter, r *http.Request, replace bool) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req api.RPGRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if replace {
		if req.Name == nil {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("name", "必須です"))
			return
		}
		if req.Description == nil {
			req.Description = new(string)
		}
	}

	updated, err := h.service.Update(r.Context(), actor, id, rpg.Input{Name: req.Name, Description: req.Description})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.FromRPG(updated))
}

// DeleteRPG はキャンペーンを削除する。
// DELETE /rpg/{id}
func (h *RPGHandler) DeleteRPG(w http.ResponseWriter, r *http.Request) {
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
