// Package memory はプロセス内で完結するストアです。開発とテストで使います。
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/shouni/gemini-creative-gateway/internal/storage"
	"github.com/shouni/gemini-creative-gateway/pkg/domain"
)

// Store は storage.Store のインメモリ実装です。
type Store struct {
	mu       sync.RWMutex
	logs     []domain.LogEntry
	webhooks map[string]string
	history  []domain.HistoryItem
}

var _ storage.Store = (*Store)(nil)

// New は空のストアを返します。
func New() *Store {
	return &Store{webhooks: make(map[string]string)}
}

func (s *Store) AppendLog(ctx context.Context, entry domain.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, entry)
	return nil
}

func (s *Store) ListLogs(ctx context.Context, userID string, limit int) ([]domain.LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.LogEntry
	for _, e := range s.logs {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return head(out, storage.NormalizeLimit(limit)), nil
}

func (s *Store) ClearLogs(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.logs[:0]
	removed := 0
	for _, e := range s.logs {
		if e.UserID == userID {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.logs = kept
	return removed, nil
}

func (s *Store) WebhookURL(ctx context.Context, userID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.webhooks[userID], nil
}

func (s *Store) SetWebhookURL(ctx context.Context, userID, webhookURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if webhookURL == "" {
		delete(s.webhooks, userID)
		return nil
	}
	s.webhooks[userID] = webhookURL
	return nil
}

func (s *Store) AddHistoryItem(ctx context.Context, item domain.HistoryItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, item)
	return nil
}

func (s *Store) ListHistory(ctx context.Context, userID string, limit int) ([]domain.HistoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.HistoryItem
	for _, h := range s.history {
		if h.UserID == userID {
			out = append(out, h)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return head(out, storage.NormalizeLimit(limit)), nil
}

// Close は何もしません。
func (s *Store) Close() error { return nil }

func head[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}
