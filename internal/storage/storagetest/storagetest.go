// Package storagetest は storage.Store 実装が共通で満たすべき振る舞いを検証します。
package storagetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shouni/gemini-creative-gateway/internal/storage"
	"github.com/shouni/gemini-creative-gateway/pkg/domain"
)

// Run は newStore が返すストアに対して共通のテストを実行します。
func Run(t *testing.T, newStore func(t *testing.T) storage.Store) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("ログは新しい順にユーザーごとに返るのだ", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		for i := 0; i < 3; i++ {
			require.NoError(t, s.AppendLog(ctx, domain.LogEntry{
				ID:            fmt.Sprintf("log_%d", i),
				UserID:        "alice",
				Timestamp:     base.Add(time.Duration(i) * time.Minute),
				Modality:      domain.ModalityText,
				Model:         "gemini",
				PromptSummary: "hi",
				OutputSummary: "hello",
				TokenCount:    10 + i,
				Status:        domain.LogStatusSuccess,
			}))
		}
		require.NoError(t, s.AppendLog(ctx, domain.LogEntry{
			ID: "log_bob", UserID: "bob", Timestamp: base, Modality: domain.ModalityVideo,
			Status: domain.LogStatusError, ErrorMessage: "took too long",
		}))

		got, err := s.ListLogs(ctx, "alice", 0)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "log_2", got[0].ID)
		assert.Equal(t, 12, got[0].TokenCount)
		assert.True(t, got[0].Timestamp.Equal(base.Add(2*time.Minute)))

		limited, err := s.ListLogs(ctx, "alice", 2)
		require.NoError(t, err)
		assert.Len(t, limited, 2)

		bob, err := s.ListLogs(ctx, "bob", 0)
		require.NoError(t, err)
		require.Len(t, bob, 1)
		assert.Equal(t, domain.LogStatusError, bob[0].Status)
		assert.Equal(t, "took too long", bob[0].ErrorMessage)
	})

	t.Run("ログの削除は本人の分だけ", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.AppendLog(ctx, domain.LogEntry{ID: "a1", UserID: "alice", Timestamp: base}))
		require.NoError(t, s.AppendLog(ctx, domain.LogEntry{ID: "a2", UserID: "alice", Timestamp: base}))
		require.NoError(t, s.AppendLog(ctx, domain.LogEntry{ID: "b1", UserID: "bob", Timestamp: base}))

		n, err := s.ClearLogs(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		left, err := s.ListLogs(ctx, "alice", 0)
		require.NoError(t, err)
		assert.Empty(t, left)
		bob, err := s.ListLogs(ctx, "bob", 0)
		require.NoError(t, err)
		assert.Len(t, bob, 1)
	})

	t.Run("Webhook URL の設定と解除", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		got, err := s.WebhookURL(ctx, "alice")
		require.NoError(t, err)
		assert.Empty(t, got)

		require.NoError(t, s.SetWebhookURL(ctx, "alice", "https://hooks.example.com/a"))
		require.NoError(t, s.SetWebhookURL(ctx, "alice", "https://hooks.example.com/b"))
		got, err = s.WebhookURL(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, "https://hooks.example.com/b", got)

		require.NoError(t, s.SetWebhookURL(ctx, "alice", ""))
		got, err = s.WebhookURL(ctx, "alice")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("履歴は新しい順", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.AddHistoryItem(ctx, domain.HistoryItem{ID: "h1", UserID: "alice", Type: "image", Prompt: "mug", CreatedAt: base}))
		require.NoError(t, s.AddHistoryItem(ctx, domain.HistoryItem{ID: "h2", UserID: "alice", Type: "text", Prompt: "copy", Result: "Buy now", CreatedAt: base.Add(time.Hour)}))
		require.NoError(t, s.AddHistoryItem(ctx, domain.HistoryItem{ID: "h3", UserID: "bob", Type: "video", MediaURL: "http://minio/x.mp4", CreatedAt: base}))

		got, err := s.ListHistory(ctx, "alice", 0)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "h2", got[0].ID)
		assert.Equal(t, "Buy now", got[0].Result)

		bob, err := s.ListHistory(ctx, "bob", 1)
		require.NoError(t, err)
		require.Len(t, bob, 1)
		assert.Equal(t, "http://minio/x.mp4", bob[0].MediaURL)
	})
}
