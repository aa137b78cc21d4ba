package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func TestMemoryRevocationRepo_RevokeAndCheck(t *testing.T) {
	repo := NewMemoryRevocationRepo()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	ctx := context.Background()

	if err := repo.Revoke(ctx, "jti-1", now.Add(time.Hour)); err != nil {
		t.Fatalf("Revoke error = %v", err)
	}

	revoked, err := repo.IsRevoked(ctx, "jti-1")
	if err != nil || !revoked {
		t.Errorf("IsRevoked(jti-1) = %v, %v, want true, nil", revoked, err)
	}
	revoked, err = repo.IsRevoked(ctx, "jti-2")
	if err != nil || revoked {
		t.Errorf("IsRevoked(jti-2) = %v, %v, want false, nil", revoked, err)
	}
}

// TestMemoryRevocationRepo_ExpiredEntriesAreDropped は有効期限を過ぎたエントリが掃除されることを検証する。
func TestMemoryRevocationRepo_ExpiredEntriesAreDropped(t *testing.T) {
	repo := NewMemoryRevocationRepo()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	ctx := context.Background()

	_ = repo.Revoke(ctx, "short", now.Add(time.Minute))
	_ = repo.Revoke(ctx, "already-expired", now.Add(-time.Minute))
	if repo.Len() != 1 {
		t.Fatalf("Len = %d, want 1 (期限切れは保持しない)", repo.Len())
	}

	now = now.Add(2 * time.Minute)
	revoked, _ := repo.IsRevoked(ctx, "short")
	if revoked {
		t.Error("期限切れのエントリが失効扱いのままです")
	}

	_ = repo.Revoke(ctx, "long", now.Add(time.Hour))
	if repo.Len() != 1 {
		t.Errorf("Len = %d, want 1", repo.Len())
	}
}

// TestRedisRevocationRepo はTEST_REDIS_ADDRのRedisに接続できない場合スキップする。
func TestRedisRevocationRepo(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("テスト用Redisに接続できません（スキップ）: %v", err)
	}

	repo := NewRedisRevocationRepo(client)
	tokenID := uuid.NewString()
	defer client.Del(ctx, revokedKey(tokenID))

	if err := repo.Revoke(ctx, tokenID, time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("Revoke error = %v", err)
	}
	revoked, err := repo.IsRevoked(ctx, tokenID)
	if err != nil || !revoked {
		t.Errorf("IsRevoked = %v, %v, want true, nil", revoked, err)
	}

	ttl, err := client.TTL(ctx, revokedKey(tokenID)).Result()
	if err != nil {
		t.Fatalf("TTL error = %v", err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("TTL = %v, want (0, 1m]", ttl)
	}

	t.Run("期限切れトークンは書き込まない", func(t *testing.T) {
		other := uuid.NewString()
		if err := repo.Revoke(ctx, other, time.Now().Add(-time.Second)); err != nil {
			t.Fatalf("Revoke error = %v", err)
		}
		revoked, _ := repo.IsRevoked(ctx, other)
		if revoked {
			t.Error("期限切れトークンが失効リストに入っています")
		}
	})
}
