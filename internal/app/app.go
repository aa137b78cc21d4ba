package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/rpgtable/internal/auth"
	"github.com/hitoshi/rpgtable/internal/character"
	"github.com/hitoshi/rpgtable/internal/config"
	"github.com/hitoshi/rpgtable/internal/database"
	"github.com/hitoshi/rpgtable/internal/event"
	"github.com/hitoshi/rpgtable/internal/handler"
	"github.com/hitoshi/rpgtable/internal/logger"
	"github.com/hitoshi/rpgtable/internal/metrics"
	"github.com/hitoshi/rpgtable/internal/middleware"
	"github.com/hitoshi/rpgtable/internal/repository"
	"github.com/hitoshi/rpgtable/internal/rpg"
	"github.com/hitoshi/rpgtable/internal/security"
	"github.com/hitoshi/rpgtable/internal/token"
	"github.com/hitoshi/rpgtable/internal/user"
)

const shutdownTimeout = 30 * time.Second

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger.SetLevel(cfg.LogLevel)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandMigrate:
		action, ok := ParseMigrateAction(args)
		if !ok {
			return fmt.Errorf("unknown migrate action %q (want up, down or version)", args[1])
		}
		return runMigrate(cfg, action)
	default:
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runServe(ctx, cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	slog.Info("database connection established")

	// 2. トークン失効リスト
	revocations, closeRevocations, err := openRevocations(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRevocations()

	// 3. メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	// 4. レート制限
	limiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitAuth))
	defer limiter.Stop()

	router := handler.NewRouter(buildRouterDeps(cfg, db, revocations, collector, reg, limiter))

	// 5. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// buildRouterDeps はリポジトリ・ドメインサービスを組み立ててRouterDepsを返す。
func buildRouterDeps(
	cfg *config.Config,
	db *sql.DB,
	revocations repository.RevocationRepository,
	collector *metrics.Collector,
	gatherer prometheus.Gatherer,
	limiter *middleware.RateLimiter,
) *handler.RouterDeps {
	userRepo := repository.NewPostgresUserRepo(db)
	rpgRepo := repository.NewPostgresRPGRepo(db)
	charRepo := repository.NewPostgresCharacterRepo(db)
	eventRepo := repository.NewPostgresEventRepo(db)
	eventTypeRepo := repository.NewPostgresEventTypeRepo(db)

	sanitizer := security.NewContentSanitizer()
	hasher := security.NewPasswordHasher(cfg.BcryptCost)
	codec := token.NewCodec(cfg.JWTSecret,
		token.WithTTL(cfg.TokenTTL),
		token.WithIssuer(cfg.JWTIssuer),
	)

	authService := auth.NewService(userRepo, revocations, codec, hasher, sanitizer, collector)
	characterService := character.NewService(charRepo, rpgRepo, sanitizer)

	return &handler.RouterDeps{
		Authenticator:     authService,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       limiter,
		Logger:            slog.Default(),
		Metrics:           collector,
		MetricsHandler:    metrics.Handler(gatherer),
		DB:                db,

		AuthService:      authService,
		UserService:      user.NewService(userRepo, hasher, sanitizer),
		RPGService:       rpg.NewService(rpgRepo, sanitizer),
		CharacterService: characterService,
		EventService:     event.NewService(eventRepo, eventTypeRepo, characterService, sanitizer),
		EventTypeService: event.NewTypeService(eventTypeRepo, sanitizer),
	}
}

// openRevocations はREDIS_ADDRが設定されていればRedis、無ければプロセス内メモリの失効リストを返す。
func openRevocations(ctx context.Context, cfg *config.Config) (repository.RevocationRepository, func(), error) {
	if cfg.RedisAddr == "" {
		slog.Warn("REDIS_ADDR is not set; revoked tokens are kept in memory only")
		return repository.NewMemoryRevocationRepo(), func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	slog.Info("redis connection established", slog.String("addr", cfg.RedisAddr))
	return repository.NewRedisRevocationRepo(rdb), func() { rdb.Close() }, nil
}

// runMigrate はデータベースマイグレーションを実行する。
// upは未適用分をすべて適用し、downは直近1件を取り消し、versionは現在のバージョンをログに出力する。
func runMigrate(cfg *config.Config, action MigrateAction) error {
	slog.Info("running database migrations",
		slog.String("action", string(action)),
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	switch action {
	case MigrateDown:
		if err := database.RollbackMigration(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migration rollback failed: %w", err)
		}
	case MigrateVersion:
		version, dirty, err := database.MigrationVersion(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("migration version failed: %w", err)
		}
		slog.Info("database migration version",
			slog.Uint64("version", uint64(version)),
			slog.Bool("dirty", dirty),
		)
		return nil
	default:
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	target := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(target)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
