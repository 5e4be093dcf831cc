// Package sqlite は SQLite を使った storage.Store の実装です。
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/shouni/gemini-creative-gateway/internal/storage"
	"github.com/shouni/gemini-creative-gateway/pkg/domain"
)

//go:embed schema.sql
var schemaSQL string

// Store は storage.Store の SQLite 実装です。
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ storage.Store = (*Store)(nil)

// New はデータベースを開き、スキーマを適用します。
func New(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite は書き込みを 1 接続に絞る
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) AppendLog(ctx context.Context, e domain.LogEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO api_logs (id, user_id, timestamp, modality, model, prompt_summary,
			output_summary, token_count, status, error_message, media_preview)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.Timestamp.UnixMilli(), string(e.Modality), e.Model, e.PromptSummary,
		e.OutputSummary, e.TokenCount, string(e.Status), e.ErrorMessage, e.MediaPreview,
	)
	if err != nil {
		return fmt.Errorf("failed to append log: %w", err)
	}
	return nil
}

func (s *Store) ListLogs(ctx context.Context, userID string, limit int) ([]domain.LogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, timestamp, modality, model, prompt_summary, output_summary,
			token_count, status, error_message, media_preview
		FROM api_logs
		WHERE user_id = ?
		ORDER BY timestamp DESC, rowid DESC
		LIMIT ?`, userID, storage.NormalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list logs: %w", err)
	}
	defer rows.Close()

	var out []domain.LogEntry
	for rows.Next() {
		var (
			e        domain.LogEntry
			ts       int64
			modality string
			status   string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &ts, &modality, &e.Model, &e.PromptSummary,
			&e.OutputSummary, &e.TokenCount, &status, &e.ErrorMessage, &e.MediaPreview); err != nil {
			return nil, fmt.Errorf("failed to scan log: %w", err)
		}
		e.Timestamp = time.UnixMilli(ts).UTC()
		e.Modality = domain.Modality(modality)
		e.Status = domain.LogStatus(status)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) ClearLogs(ctx context.Context, userID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM api_logs WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear logs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count cleared logs: %w", err)
	}
	return int(n), nil
}

func (s *Store) WebhookURL(ctx context.Context, userID string) (string, error) {
	var url string
	err := s.db.QueryRowContext(ctx, `SELECT webhook_url FROM profiles WHERE user_id = ?`, userID).Scan(&url)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get webhook url: %w", err)
	}
	return url, nil
}

func (s *Store) SetWebhookURL(ctx context.Context, userID, webhookURL string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (user_id, webhook_url, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET webhook_url = excluded.webhook_url, updated_at = excluded.updated_at`,
		userID, webhookURL, s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to set webhook url: %w", err)
	}
	return nil
}

func (s *Store) AddHistoryItem(ctx context.Context, h domain.HistoryItem) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO history (id, user_id, type, prompt, result, media_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		h.ID, h.UserID, h.Type, h.Prompt, h.Result, h.MediaURL, h.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to add history item: %w", err)
	}
	return nil
}

func (s *Store) ListHistory(ctx context.Context, userID string, limit int) ([]domain.HistoryItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, type, prompt, result, media_url, created_at
		FROM history
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, userID, storage.NormalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	var out []domain.HistoryItem
	for rows.Next() {
		var (
			h       domain.HistoryItem
			created int64
		)
		if err := rows.Scan(&h.ID, &h.UserID, &h.Type, &h.Prompt, &h.Result, &h.MediaURL, &created); err != nil {
			return nil, fmt.Errorf("failed to scan history item: %w", err)
		}
		h.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, h)
	}
	return out, rows.Err()
}
