package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/rpgtable/internal/api"
	"github.com/hitoshi/rpgtable/internal/event"
	"github.com/hitoshi/rpgtable/internal/middleware"
	"github.com/hitoshi/rpgtable/internal/model"
)

// EventServiceInterface はイベントハンドラーが必要とするサービスインターフェース。
type EventServiceInterface interface {
	ListByCharacter(ctx context.Context, characterID int64, page model.Page) ([]*model.Event, int, error)
	Get(ctx context.Context, id int64) (*model.Event, error)
	Create(ctx context.Context, actor model.Actor, in event.CreateInput) (*model.Event, error)
	Update(ctx context.Context, actor model.Actor, id int64, in event.UpdateInput) (*model.Event, error)
	Delete(ctx context.Context, actor model.Actor, id int64) error
}

// EventTypeServiceInterface はイベント種別マスタのサービスインターフェース。
type EventTypeServiceInterface interface {
	List(ctx context.Context) ([]*model.EventType, error)
	Create(ctx context.Context, actor model.Actor, name string) (*model.EventType, error)
	Delete(ctx context.Context, actor model.Actor, id int64) error
}

// EventHandler はイベントとイベント種別のHTTPハンドラー。
type EventHandler struct {
	service EventServiceInterface
	types   EventTypeServiceInterface
}

// NewEventHandler はEventHandlerを生成する。
func NewEventHandler(service EventServiceInterface, types EventTypeServiceInterface) *EventHandler {
	return &EventHandler{service: service, types: types}
}

// ListEvents はキャラクターのイベント一覧を返す。character_idは必須。
// GET /events?character_id=
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	characterID, ok := queryID(w, r, "character_id")
	if !ok {
		return
	}
	if characterID == 0 {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("character_id", "必須です"))
		return
	}
	h.list(w, r, characterID)
}

// ListCharacterEvents はキャラクターのイベント一覧を返す。
// GET /character/{id}/events
func (h *EventHandler) ListCharacterEvents(w http.ResponseWriter, r *http.Request) {
	characterID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	h.list(w, r, characterID)
}

func (h *EventHandler) list(w http.ResponseWriter, r *http.Request, characterID int64) {
	page, ok := parsePage(w, r)
	if !ok {
		return
	}

	events, total, err := h.service.ListByCharacter(r.Context(), characterID, page)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.NewList(api.Map(events, api.FromEvent), page, total))
}

// CreateEvent はキャラクターにイベントを記録する。
// POST /event
func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req api.EventRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	in := event.CreateInput{CharacterID: req.CharacterID, OccurredAt: req.OccurredAt}
	if req.EventTypeID != nil {
		in.EventTypeID = *req.EventTypeID
	}
	if req.Title != nil {
		in.Title = *req.Title
	}
	if req.Description != nil {
		in.Description = *req.Description
	}

	created, err := h.service.Create(r.Context(), actor, in)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, api.FromEvent(created))
}

// GetEvent はイベント詳細を返す。
// GET /event/{id}
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	e, err := h.service.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.FromEvent(e))
}

// UpdateEvent はイベントを置き換える。event_type_idとtitleは必須で、
// descriptionの省略は空文字、occurred_atの省略は現在の値を維持する。
// PUT /event/{id}
func (h *EventHandler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req api.EventRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.EventTypeID == nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("event_type_id", "必須です"))
		return
	}
	if req.Title == nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("title", "必須です"))
		return
	}
	if req.Description == nil {
		req.Description = new(string)
	}

	e, err := h.service.Update(r.Context(), actor, id, event.UpdateInput{
		EventTypeID: req.EventTypeID,
		Title:       req.Title,
		Description: req.Description,
		OccurredAt:  req.OccurredAt,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.FromEvent(e))
}

// DeleteEvent はイベントを削除する。
// DELETE /event/{id}
func (h *EventHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
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

// ListEventTypes はイベント種別一覧を返す。件数が少ないためページングしない。
// GET /eventTypes
func (h *EventHandler) ListEventTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.types.List(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	items := api.Map(types, api.FromEventType)
	writeJSON(w, http.StatusOK, api.NewList(items, model.Page{Number: 1, Limit: len(items)}, len(items)))
}

// CreateEventType はイベント種別を追加する。
// POST /eventType
func (h *EventHandler) CreateEventType(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req api.EventTypeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	et, err := h.types.Create(r.Context(), actor, req.Name)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, api.FromEventType(et))
}

// DeleteEventType はイベント種別を削除する。
// DELETE /eventType/{id}
func (h *EventHandler) DeleteEventType(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.types.Delete(r.Context(), actor, id); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
