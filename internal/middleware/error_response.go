package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/rpgtable/internal/api"
	"github.com/hitoshi/rpgtable/internal/model"
)

// bearerChallenge は401応答に付けるWWW-Authenticateの値。
const bearerChallenge = `Bearer realm="rpgtable"`

// ErrorResponseBody はAPIエラーレスポンスのJSON形式。クライアントと共有する。
type ErrorResponseBody = api.Error

// WriteErrorResponse はapiErrをErrorResponseBodyとして書き込む。
// 401の場合はBearer方式のチャレンジヘッダーを付与する。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	if apiErr == nil {
		apiErr = model.NewInternalError()
		statusCode = http.StatusInternalServerError
	}
	if statusCode == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", bearerChallenge)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	body := ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Warn("failed to write error response",
			slog.String("code", apiErr.Code),
			slog.String("error", err.Error()),
		)
	}
}

// WriteInternalServerError は500を書き込む。詳細はログのみに残す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
}
