package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/rpgtable/internal/metrics"
	"github.com/hitoshi/rpgtable/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Authenticator     middleware.Authenticator
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter // nilの場合はレート制限しない
	Logger            *slog.Logger
	Metrics           metrics.MetricsCollector
	MetricsHandler    http.Handler // nilの場合は/metricsを公開しない
	DB                Pinger

	AuthService      AuthServiceInterface
	UserService      UserServiceInterface
	RPGService       RPGServiceInterface
	CharacterService CharacterServiceInterface
	EventService     EventServiceInterface
	EventTypeService EventTypeServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Logging → Recovery → SecurityHeaders → CORS → Metrics
//	  → (認証ルート) Auth → RateLimit(General) → (管理者ルート) RequireAdmin
//
// /login と /register はIP単位のレート制限のみを適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	collector := deps.Metrics
	if collector == nil {
		collector = metrics.Nop{}
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewMetricsMiddleware(collector))

	authHandler := NewAuthHandler(deps.AuthService)
	userHandler := NewUserHandler(deps.UserService)
	rpgHandler := NewRPGHandler(deps.RPGService)
	charHandler := NewCharacterHandler(deps.CharacterService)
	eventHandler := NewEventHandler(deps.EventService, deps.EventTypeService)

	// --- 認証不要のルート ---

	r.Get("/health", NewHealthHandler(deps.DB))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Group(func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.AuthMiddleware())
		}
		r.Post("/login", authHandler.Login)
		r.Post("/register", authHandler.Register)
	})

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.Authenticator))
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.GeneralMiddleware())
		}

		// 本人
		r.Get("/user/me", authHandler.Me)
		r.Post("/user/logout", authHandler.Logout)

		r.Route("/users/{id}", func(r chi.Router) {
			r.Get("/", userHandler.GetUser)
			r.Put("/", userHandler.UpdateUser)
			r.Delete("/", userHandler.DeleteUser)
		})

		// キャンペーン
		r.Get("/rpgs", rpgHandler.ListRPGs)
		r.Post("/rpgs", rpgHandler.CreateRPG)
		r.Route("/rpg/{id}", func(r chi.Router) {
			r.Get("/", rpgHandler.GetRPG)
			r.Put("/", rpgHandler.ReplaceRPG)
			r.Patch("/", rpgHandler.PatchRPG)
			r.Delete("/", rpgHandler.DeleteRPG)
			r.Get("/characters", charHandler.ListRPGCharacters)
		})

		// キャラクター
		r.Get("/characters", charHandler.ListCharacters)
		r.Post("/character", charHandler.CreateCharacter)
		r.Route("/character/{id}", func(r chi.Router) {
			r.Get("/", charHandler.GetCharacter)
			r.Put("/", charHandler.UpdateCharacter)
			r.Delete("/", charHandler.DeleteCharacter)
			r.Get("/events", eventHandler.ListCharacterEvents)
		})

		// イベント
		r.Get("/events", eventHandler.ListEvents)
		r.Post("/event", eventHandler.CreateEvent)
		r.Route("/event/{id}", func(r chi.Router) {
			r.Get("/", eventHandler.GetEvent)
			r.Put("/", eventHandler.UpdateEvent)
			r.Delete("/", eventHandler.DeleteEvent)
		})

		// イベント種別（参照は全員、変更は管理者）
		r.Get("/eventTypes", eventHandler.ListEventTypes)
		r.With(middleware.RequireAdmin).Post("/eventType", eventHandler.CreateEventType)
		r.With(middleware.RequireAdmin).Delete("/eventType/{id}", eventHandler.DeleteEventType)

		// 管理者
		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin)
			r.Get("/users", userHandler.ListUsers)
			r.Patch("/users/{id}", userHandler.SetUserType)
			r.Delete("/users/{id}", userHandler.DeleteUser)
		})
	})

	return r
}
