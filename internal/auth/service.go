// Package auth はパスワード認証、Bearerトークンの発行・検証・失効を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/hitoshi/rpgtable/internal/metrics"
	"github.com/hitoshi/rpgtable/internal/model"
	"github.com/hitoshi/rpgtable/internal/repository"
	"github.com/hitoshi/rpgtable/internal/security"
	"github.com/hitoshi/rpgtable/internal/token"
)

// MaxNameLength は表示名の最大文字数。
const MaxNameLength = 100

// ErrRevokedCredential はログアウト済みのトークンであることを示す。
var ErrRevokedCredential = errors.New("auth: revoked credential")

// TokenCodec はBearerトークンの発行と解析のインターフェース。
type TokenCodec interface {
	Issue(subjectID string) (string, error)
	Parse(credential string) (*token.Claims, error)
}

// PasswordHasher はパスワードのハッシュ化と照合のインターフェース。
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// Result はログイン・登録成功時に返すトークンとユーザー。
type Result struct {
	Token string
	User  *model.User
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	revocations repository.RevocationRepository
	codec       TokenCodec
	hasher      PasswordHasher
	sanitizer   security.ContentSanitizerService
	metrics     metrics.MetricsCollector
}

// NewService はServiceを生成する。collectorがnilの場合はメトリクスを記録しない。
func NewService(
	userRepo repository.UserRepository,
	revocations repository.RevocationRepository,
	codec TokenCodec,
	hasher PasswordHasher,
	sanitizer security.ContentSanitizerService,
	collector metrics.MetricsCollector,
) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Service{
		userRepo:    userRepo,
		revocations: revocations,
		codec:       codec,
		hasher:      hasher,
		sanitizer:   sanitizer,
		metrics:     collector,
	}
}

// NormalizeEmail は前後の空白を除去し小文字化する。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail はメールアドレスの形式を検証する。
func ValidateEmail(email string) error {
	if email == "" {
		return model.NewValidationError("email", "必須です")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return model.NewValidationError("email", "形式が正しくありません")
	}
	return nil
}

// ValidatePassword はパスワードの長さを検証する。
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < security.MinPasswordLength {
		return model.NewValidationError("password", fmt.Sprintf("%d文字以上で入力してください", security.MinPasswordLength))
	}
	return nil
}

// Login はメールアドレスとパスワードで認証し、新しいトークンを発行する。
// ユーザーが存在しない場合とパスワード不一致は区別せずINVALID_CREDENTIALSを返す。
func (s *Service) Login(ctx context.Context, email, password string) (*Result, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		s.metrics.RecordLogin(metrics.ResultFailure)
		return nil, model.NewInvalidCredentialsError()
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		s.metrics.RecordLogin(metrics.ResultFailure)
		return nil, model.NewInvalidCredentialsError()
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		s.metrics.RecordLogin(metrics.ResultFailure)
		if errors.Is(err, security.ErrPasswordMismatch) {
			return nil, model.NewInvalidCredentialsError()
		}
		return nil, fmt.Errorf("failed to compare password: %w", err)
	}

	result, err := s.issue(user)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordLogin(metrics.ResultSuccess)
	slog.Info("user logged in", slog.Int64("user_id", user.ID))
	return result, nil
}

// Register は新規ユーザーを一般ユーザーとして作成し、トークンを発行する。
func (s *Service) Register(ctx context.Context, name, email, password string) (*Result, error) {
	name = s.sanitizer.PlainText(name)
	email = NormalizeEmail(email)

	if name == "" {
		return nil, model.NewValidationError("name", "必須です")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return nil, model.NewValidationError("name", fmt.Sprintf("%d文字以内で入力してください", MaxNameLength))
	}
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Type:         model.UserTypeUser,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		s.metrics.RecordRegistration(metrics.ResultFailure)
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewEmailTakenError()
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	result, err := s.issue(user)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordRegistration(metrics.ResultSuccess)
	slog.Info("new user registered", slog.Int64("user_id", user.ID))
	return result, nil
}

// Authenticate はBearerトークンを検証し、認証主体を返す。
// 失敗時はtoken.ErrInvalidCredential、token.ErrExpiredCredential、ErrRevokedCredentialのいずれかをラップして返す。
func (s *Service) Authenticate(ctx context.Context, credential string) (*model.Principal, error) {
	claims, err := s.codec.Parse(credential)
	if err != nil {
		s.metrics.RecordTokenRejected(rejectReason(err))
		return nil, err
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		s.metrics.RecordTokenRejected("invalid")
		return nil, fmt.Errorf("%w: malformed subject", token.ErrInvalidCredential)
	}

	if claims.TokenID != "" {
		revoked, err := s.revocations.IsRevoked(ctx, claims.TokenID)
		if err != nil {
			return nil, fmt.Errorf("failed to check revocation: %w", err)
		}
		if revoked {
			s.metrics.RecordTokenRejected("revoked")
			return nil, ErrRevokedCredential
		}
	}

	return &model.Principal{
		UserID:    userID,
		TokenID:   claims.TokenID,
		ExpiresAt: claims.ExpiresAt,
	}, nil
}

// CurrentUser は認証主体のユーザーを取得する。
// トークン発行後にユーザーが削除されていた場合はUNAUTHORIZEDを返す。
func (s *Service) CurrentUser(ctx context.Context, userID int64) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUnauthorizedError()
	}
	return user, nil
}

// Logout はトークンIDを有効期限まで失効させる。
func (s *Service) Logout(ctx context.Context, principal *model.Principal) error {
	if principal == nil || principal.TokenID == "" {
		return nil
	}
	if err := s.revocations.Revoke(ctx, principal.TokenID, principal.ExpiresAt); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	s.metrics.RecordLogout()
	slog.Info("user logged out",
		slog.Int64("user_id", principal.UserID),
		slog.String("token_id", principal.TokenID),
	)
	return nil
}

func (s *Service) issue(user *model.User) (*Result, error) {
	credential, err := s.codec.Issue(strconv.FormatInt(user.ID, 10))
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &Result{Token: credential, User: user}, nil
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, token.ErrExpiredCredential):
		return "expired"
	case errors.Is(err, ErrRevokedCredential):
		return "revoked"
	default:
		return "invalid"
	}
}
