package repository

import (
	"context"
	"sync"
	"time"
)

// MemoryRevocationRepo はREDIS_ADDR未設定時に使うプロセス内の失効リスト。
// 複数インスタンス間では共有されない。
type MemoryRevocationRepo struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	now     func() time.Time
}

// NewMemoryRevocationRepo はMemoryRevocationRepoを生成する。
func NewMemoryRevocationRepo() *MemoryRevocationRepo {
	return &MemoryRevocationRepo{
		revoked: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Revoke はtokenIDをexpiresAtまで失効扱いにする。
// 書き込みのたびに期限切れのエントリを掃除する。
func (r *MemoryRevocationRepo) Revoke(_ context.Context, tokenID string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for id, exp := range r.revoked {
		if !exp.After(now) {
			delete(r.revoked, id)
		}
	}
	if expiresAt.After(now) {
		r.revoked[tokenID] = expiresAt
	}
	return nil
}

// IsRevoked はtokenIDが失効済みかどうかを返す。
func (r *MemoryRevocationRepo) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	exp, ok := r.revoked[tokenID]
	if !ok {
		return false, nil
	}
	if !exp.After(r.now()) {
		delete(r.revoked, tokenID)
		return false, nil
	}
	return true, nil
}

// Len は保持中のエントリ数を返す。
func (r *MemoryRevocationRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.revoked)
}

var _ RevocationRepository = (*MemoryRevocationRepo)(nil)
