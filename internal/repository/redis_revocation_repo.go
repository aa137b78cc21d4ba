package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedKeyPrefix = "rpgtable:revoked:"

// RedisRevocationRepo はRedisのTTL付きキーで失効済みトークンIDを保持する。
// キーはトークンの有効期限で自然に消えるため、掃除処理は不要。
type RedisRevocationRepo struct {
	client redis.Cmdable
	now    func() time.Time
}

// NewRedisRevocationRepo はRedisRevocationRepoを生成する。
func NewRedisRevocationRepo(client redis.Cmdable) *RedisRevocationRepo {
	return &RedisRevocationRepo{client: client, now: time.Now}
}

func revokedKey(tokenID string) string {
	return revokedKeyPrefix + tokenID
}

// Revoke はtokenIDをexpiresAtまで失効扱いにする。既に期限切れなら何もしない。
func (r *RedisRevocationRepo) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, revokedKey(tokenID), "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// IsRevoked はtokenIDが失効済みかどうかを返す。
func (r *RedisRevocationRepo) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.client.Exists(ctx, revokedKey(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token revocation: %w", err)
	}
	return n > 0, nil
}

var _ RevocationRepository = (*RedisRevocationRepo)(nil)
