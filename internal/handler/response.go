// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/rpgtable/internal/middleware"
	"github.com/hitoshi/rpgtable/internal/model"
)

// maxRequestBodyBytes はJSONリクエストボディの上限。
const maxRequestBodyBytes = 1 << 20

// writeJSON はvをJSONとして書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", slog.String("error", err.Error()))
	}
}

// decodeJSON はリクエストボディをdstにデコードする。
// 失敗した場合は400を書き込みfalseを返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		reason := "正しいJSON形式でリクエストしてください"
		if errors.Is(err, io.EOF) {
			reason = "リクエストボディが空です"
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			reason = "リクエストボディが大きすぎます"
		}
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("body", reason))
		return false
	}
	return true
}

// pathID はURLパラメータを正の整数IDとして取り出す。
// 不正な場合は400を書き込みfalseを返す。
func pathID(w http.ResponseWriter, r *http.Request, key string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, key), 10, 64)
	if err != nil || id <= 0 {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError(key, "正の整数を指定してください"))
		return 0, false
	}
	return id, true
}

// queryID は任意のクエリパラメータを整数IDとして取り出す。未指定は0。
func queryID(w http.ResponseWriter, r *http.Request, key string) (int64, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError(key, "正の整数を指定してください"))
		return 0, false
	}
	return id, true
}

// parsePage はpage（1始まり、デフォルト1、最大MaxPageNumber）とlimit（デフォルト20、最大100）を解析する。
// limitが最大値を超える場合は最大値に丸め、pageが最大値を超える場合はVALIDATION_ERRORを返す。
func parsePage(w http.ResponseWriter, r *http.Request) (model.Page, bool) {
	page := model.Page{Number: 1, Limit: model.DefaultPageLimit}
	q := r.URL.Query()

	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("page", "1以上の整数を指定してください"))
			return page, false
		}
		if n > model.MaxPageNumber {
			middleware.WriteErrorResponse(w, http.StatusBadRequest,
				model.NewValidationError("page", fmt.Sprintf("%d以下で指定してください", model.MaxPageNumber)))
			return page, false
		}
		page.Number = n
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("limit", "1以上の整数を指定してください"))
			return page, false
		}
		page.Limit = n
	}
	return page.Normalize(), true
}

// requireActor は認証済みの利用者を取り出す。未認証の場合は401を書き込みfalseを返す。
func requireActor(w http.ResponseWriter, r *http.Request) (model.Actor, bool) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
	}
	return actor, ok
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error",
		slog.String("error", err.Error()),
		slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
	)
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUnauthorized, model.ErrCodeInvalidCredentials:
		return http.StatusUnauthorized
	case model.ErrCodeForbidden:
		return http.StatusForbidden
	case model.ErrCodeValidation:
		return http.StatusBadRequest
	case model.ErrCodeEmailTaken, model.ErrCodeEventTypeDuplicate:
		return http.StatusConflict
	case model.ErrCodeUserNotFound,
		model.ErrCodeRPGNotFound,
		model.ErrCodeCharacterNotFound,
		model.ErrCodeEventNotFound,
		model.ErrCodeEventTypeNotFound:
		return http.StatusNotFound
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
