package session

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// Registry はユーザー ID ごとの Session を保持します。
// 一定時間アクセスの無いセッションは破棄され、API キーも一緒に消えます。
type Registry struct {
	mu    sync.Mutex
	store *cache.Cache
	ttl   time.Duration
}

// NewRegistry は idleTTL で失効する Registry を生成します。
func NewRegistry(idleTTL, cleanupInterval time.Duration) *Registry {
	return &Registry{
		store: cache.New(idleTTL, cleanupInterval),
		ttl:   idleTTL,
	}
}

// Get はユーザーの Session を返します。存在しなければ新しく作ります。
// 取得するたびに有効期限が延長されます。
func (r *Registry) Get(userID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if v, ok := r.store.Get(userID); ok {
		if s, ok := v.(*Session); ok {
			r.store.Set(userID, s, r.ttl)
			return s
		}
	}
	s := New(userID)
	r.store.Set(userID, s, r.ttl)
	return s
}

// Drop はユーザーの Session を破棄します。
func (r *Registry) Drop(userID string) {
	r.store.Delete(userID)
}

// Len は保持しているセッション数を返します。
func (r *Registry) Len() int {
	return r.store.ItemCount()
}
