// Package token はBearerトークン（HS256 JWT）の発行と検証を提供する。
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTTL はトークンの有効期間。発行から24時間で失効する。
const DefaultTTL = 24 * time.Hour

var (
	// ErrConfig は署名シークレットが未設定であることを示す。起動時の致命的エラーとして扱う。
	ErrConfig = errors.New("token: signing secret is not configured")
	// ErrInvalidCredential は署名不一致または形式不正のトークンであることを示す。
	ErrInvalidCredential = errors.New("token: invalid credential")
	// ErrExpiredCredential は有効期限切れのトークンであることを示す。
	ErrExpiredCredential = errors.New("token: expired credential")
)

// Claims は検証済みトークンから取り出した値を表す。
type Claims struct {
	Subject   string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Option はCodecの設定を変更する。
type Option func(*Codec)

// WithTTL はトークンの有効期間を指定する。0以下の場合はDefaultTTLのまま。
func WithTTL(ttl time.Duration) Option {
	return func(c *Codec) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithIssuer はissクレームに設定する発行者名を指定する。
func WithIssuer(issuer string) Option {
	return func(c *Codec) {
		c.issuer = issuer
	}
}

// WithClock は現在時刻の取得関数を差し替える。テスト用。
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// Codec は共有シークレットでトークンを署名・検証する。
// シークレット以外の状態を持たないため、複数goroutineから安全に使用できる。
type Codec struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// NewCodec はCodecを生成する。
// secretが空でも生成は成功し、Issue/Verify時にErrConfigを返す。
func NewCodec(secret string, opts ...Option) *Codec {
	c := &Codec{
		secret: []byte(secret),
		ttl:    DefaultTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL はトークンの有効期間を返す。
func (c *Codec) TTL() time.Duration {
	return c.ttl
}

// Issue はsubjectIDを埋め込んだトークンを発行する。
// 有効期限は発行時刻からちょうどTTL後に設定される。
func (c *Codec) Issue(subjectID string) (string, error) {
	if len(c.secret) == 0 {
		return "", ErrConfig
	}

	now := c.now().UTC()
	claims := jwt.RegisteredClaims{
		ID:        uuid.New().String(),
		Subject:   subjectID,
		Issuer:    c.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify はトークンの署名と有効期限を検証し、subjectIDを返す。
func (c *Codec) Verify(credential string) (string, error) {
	claims, err := c.Parse(credential)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// Parse はトークンを検証し、クレーム一式を返す。
// 署名不一致・形式不正はErrInvalidCredential、期限切れはErrExpiredCredentialを返す。
func (c *Codec) Parse(credential string) (*Claims, error) {
	if len(c.secret) == 0 {
		return nil, ErrConfig
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}

	var registered jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(credential, &registered, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredCredential
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	if registered.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidCredential)
	}

	claims := &Claims{
		Subject: registered.Subject,
		TokenID: registered.ID,
	}
	if registered.IssuedAt != nil {
		claims.IssuedAt = registered.IssuedAt.Time
	}
	if registered.ExpiresAt != nil {
		claims.ExpiresAt = registered.ExpiresAt.Time
	}
	return claims, nil
}
