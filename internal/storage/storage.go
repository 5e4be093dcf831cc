// Package storage は監査ログ、プロフィール、生成履歴の永続化ポートを定義します。
package storage

import (
	"context"

	"github.com/shouni/gemini-creative-gateway/pkg/domain"
	"github.com/shouni/gemini-creative-gateway/pkg/generator"
	"github.com/shouni/gemini-creative-gateway/pkg/webhook"
)

// DefaultListLimit は一覧取得で limit が 0 以下のときに使う件数です。
const DefaultListLimit = 100

// LogReader は監査ログの参照と削除を行います。
type LogReader interface {
	// ListLogs は新しい順に最大 limit 件を返します。
	ListLogs(ctx context.Context, userID string, limit int) ([]domain.LogEntry, error)
	// ClearLogs はユーザーのログをすべて削除し、削除件数を返します。
	ClearLogs(ctx context.Context, userID string) (int, error)
}

// HistoryStore は生成履歴を保存します。
type HistoryStore interface {
	AddHistoryItem(ctx context.Context, item domain.HistoryItem) error
	// ListHistory は新しい順に最大 limit 件を返します。
	ListHistory(ctx context.Context, userID string, limit int) ([]domain.HistoryItem, error)
}

// Store はサーバーが使うすべての永続化操作です。
type Store interface {
	generator.LogStore
	webhook.ProfileStore
	LogReader
	HistoryStore
	Close() error
}

// NormalizeLimit は limit が 0 以下なら DefaultListLimit を返します。
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}
