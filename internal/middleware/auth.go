// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/rpgtable/internal/auth"
	"github.com/hitoshi/rpgtable/internal/model"
	"github.com/hitoshi/rpgtable/internal/token"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	principalContextKey = contextKey("principal")
	actorContextKey     = contextKey("actor")
)

// Authenticator はBearerクレデンシャルの検証と利用者の解決を行う。
// auth.Serviceが実装する。
type Authenticator interface {
	Authenticate(ctx context.Context, credential string) (*model.Principal, error)
	CurrentUser(ctx context.Context, userID int64) (*model.User, error)
}

// NewAuthMiddleware はAuthorizationヘッダーのBearerクレデンシャルを検証するミドルウェアを返す。
// 検証後にユーザーを毎回読み込み、PrincipalとActorをコンテキストに注入する。
// 削除済みユーザーや失効済みトークンには401を返す。
func NewAuthMiddleware(authn Authenticator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			credential, ok := bearerCredential(r)
			if !ok {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			principal, err := authn.Authenticate(r.Context(), credential)
			if err != nil {
				writeAuthFailure(w, err)
				return
			}

			user, err := authn.CurrentUser(r.Context(), principal.UserID)
			if err != nil {
				writeAuthFailure(w, err)
				return
			}

			setLogUserID(r.Context(), user.ID)

			ctx := ContextWithPrincipal(r.Context(), principal)
			ctx = ContextWithActor(ctx, model.Actor{UserID: user.ID, Type: user.Type})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin は管理者以外のリクエストに403を返すミドルウェア。
// NewAuthMiddlewareの後に配置する。
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFromContext(r.Context())
		if !ok {
			WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
			return
		}
		if !actor.IsAdmin() {
			WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// bearerCredential は "Authorization: Bearer <token>" からトークンを取り出す。
// スキーム名は大文字小文字を区別しない。
func bearerCredential(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, credential, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	credential = strings.TrimSpace(credential)
	return credential, credential != ""
}

// writeAuthFailure は検証エラーを401に変換する。
// 不正・期限切れ・失効済みのトークンとドメインエラーは401、それ以外はログに記録し500を返す。
func writeAuthFailure(w http.ResponseWriter, err error) {
	if isCredentialRejection(err) {
		slog.Debug("bearer credential rejected", slog.String("error", err.Error()))
		WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		WriteErrorResponse(w, http.StatusUnauthorized, apiErr)
		return
	}
	slog.Error("failed to authenticate request",
		slog.String("error", err.Error()),
	)
	WriteInternalServerError(w)
}

func isCredentialRejection(err error) bool {
	return errors.Is(err, token.ErrInvalidCredential) ||
		errors.Is(err, token.ErrExpiredCredential) ||
		errors.Is(err, auth.ErrRevokedCredential)
}

// PrincipalFromContext は検証済みクレデンシャルの情報を取得する。
func PrincipalFromContext(ctx context.Context) (*model.Principal, bool) {
	p, ok := ctx.Value(principalContextKey).(*model.Principal)
	return p, ok && p != nil
}

// ActorFromContext はリクエストを行ったユーザーのIDと種別を取得する。
func ActorFromContext(ctx context.Context) (model.Actor, bool) {
	a, ok := ctx.Value(actorContextKey).(model.Actor)
	return a, ok && a.UserID != 0
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (int64, error) {
	a, ok := ActorFromContext(ctx)
	if !ok {
		return 0, fmt.Errorf("user ID not found in context")
	}
	return a.UserID, nil
}

// ContextWithPrincipal はコンテキストにPrincipalを注入する。
func ContextWithPrincipal(ctx context.Context, p *model.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

// ContextWithActor はコンテキストにActorを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithActor(ctx context.Context, a model.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey, a)
}
