package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/rpgtable/internal/api"
	"github.com/hitoshi/rpgtable/internal/auth"
	"github.com/hitoshi/rpgtable/internal/middleware"
	"github.com/hitoshi/rpgtable/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password string) (*auth.Result, error)
	Register(ctx context.Context, name, email, password string) (*auth.Result, error)
	CurrentUser(ctx context.Context, userID int64) (*model.User, error)
	Logout(ctx context.Context, principal *model.Principal) error
}

// AuthHandler はログイン・登録・ログアウトと本人情報のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface) *AuthHandler {
	return &AuthHandler{service: service}
}

// Login はメールアドレスとパスワードでクレデンシャルを発行する。
// POST /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAuthResponse(result))
}

// Register はユーザーを登録し、ログイン済みのクレデンシャルを発行する。
// POST /register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.service.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAuthResponse(result))
}

// Me は認証済みユーザーのプロフィールを返す。
// GET /user/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	user, err := h.service.CurrentUser(r.Context(), actor.UserID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, api.FromUser(user))
}

// Logout はリクエストのクレデンシャルを失効させる。
// POST /user/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	if err := h.service.Logout(r.Context(), principal); err != nil {
		handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func toAuthResponse(result *auth.Result) api.AuthResponse {
	return api.AuthResponse{Token: result.Token, User: api.FromUser(result.User)}
}
