package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/rpgtable/internal/api"
	"github.com/hitoshi/rpgtable/internal/character"
	"github.com/hitoshi/rpgtable/internal/middleware"
	"github.com/hitoshi/rpgtable/internal/model"
)

// CharacterServiceInterface はキャラクターハンドラーが必要とするサービスインターフェース。
type CharacterServiceInterface interface {
	List(ctx context.Context, filter model.CharacterFilter, page model.Page) ([]*model.Character, int, error)
	Get(ctx context.Context, id int64) (*model.Character, error)
	Create(ctx context.Context, actor model.Actor, in character.CreateInput) (*model.Character, error)
	Update(ctx context.Context, actor model.Actor, id int64, in character.UpdateInput) (*model.Character, error)
	Delete(ctx context.Context, actor model.Actor, id int64) error
}

// CharacterHandler はキャラクター管理のHTTPハンドラー。
type CharacterHandler struct {
	service CharacterServiceInterface
}

// NewCharacterHandler はCharacterHandlerを生成する。
func NewCharacterHandler(service CharacterServiceInterface) *CharacterHandler {
	return &CharacterHandler{service: service}
}

// ListCharacters はキャラクター一覧を返す。rpg_id、user_idで絞り込める。
// GET /characters
func (h *CharacterHandler) ListCharacters(w http.ResponseWriter, r *http.Request) {
	rpgID, ok := queryID(w, r, "rpg_id")
	if !ok {
		return
	}
	userID, ok := queryID(w, r, "user_id")
	if !ok {
		return
	}
	h.list(w, r, model.CharacterFilter{RPGID: rpgID, UserID: userID})
}

// ListRPGCharacters はキャンペーンに所属するキャラクター一覧を返す。
// GET /rpg/{id}/characters
func (h *CharacterHandler) ListRPGCharacters(w http.ResponseWriter, r *http.Request) {
	rpgID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	h.list(w, r, model.CharacterFilter{RPGID: rpgID})
}

func (h *CharacterHandler) list(w http.ResponseWriter, r *http.Request, filter model.CharacterFilter) {
	page, ok := parsePage(w, r)
	if !ok {
		return
	}

	chars, total, err := h.service.List(r.Context(), filter, page)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.NewList(api.Map(chars, api.FromCharacter), page, total))
}

// CreateCharacter はリクエストしたユーザーをプレイヤーとしてキャラクターを作成する。
// POST /character
func (h *CharacterHandler) CreateCharacter(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req api.CharacterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	in := character.CreateInput{RPGID: req.RPGID}
	if req.Name != nil {
		in.Name = *req.Name
	}
	if req.Class != nil {
		in.Class = *req.Class
	}
	if req.Level != nil {
		in.Level = *req.Level
		if in.Level == 0 {
			// 明示的な0はデフォルト値と区別して検証エラーにする
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("level", "1以上を指定してください"))
			return
		}
	}
	if req.Description != nil {
		in.Description = *req.Description
	}

	created, err := h.service.Create(r.Context(), actor, in)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, api.FromCharacter(created))
}

// GetCharacter はキャラクター詳細を返す。
// GET /character/{id}
func (h *CharacterHandler) GetCharacter(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	c, err := h.service.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.FromCharacter(c))
}

// UpdateCharacter はキャラクターを置き換える。nameは必須で、
// 省略したclass、description、levelはデフォルト値に戻る。
// PUT /character/{id}
func (h *CharacterHandler) UpdateCharacter(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req api.CharacterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("name", "必須です"))
		return
	}

	in := character.UpdateInput{
		Name:        req.Name,
		Class:       req.Class,
		Level:       req.Level,
		Description: req.Description,
	}
	if in.Class == nil {
		in.Class = new(string)
	}
	if in.Description == nil {
		in.Description = new(string)
	}
	if in.Level == nil {
		level := character.MinLevel
		in.Level = &level
	}

	c, err := h.service.Update(r.Context(), actor, id, in)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.FromCharacter(c))
}

// DeleteCharacter はキャラクターを削除する。
// DELETE /character/{id}
func (h *CharacterHandler) DeleteCharacter(w http.ResponseWriter, r *http.Request) {
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
