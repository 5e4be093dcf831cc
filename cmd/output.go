package cmd

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/shouni/go-remote-io/pkg/gcsfactory"

	"github.com/shouni/gemini-creative-gateway/pkg/domain"
)

const gcsPrefix = "gs://"

// writeOutput は生成物を保存するのだ。gs:// なら GCS、それ以外はローカルに書き込みます。
func writeOutput(ctx context.Context, path string, m domain.Media) error {
	if strings.HasPrefix(path, gcsPrefix) {
		factory, err := gcsfactory.New(ctx)
		if err != nil {
			return fmt.Errorf("failed to create GCS client factory: %w", err)
		}
		defer func() {
			if err := factory.Close(); err != nil {
				slog.WarnContext(ctx, "GCS クライアントのクローズに失敗したのだ", "error", err)
			}
		}()
		writer, err := factory.OutputWriter()
		if err != nil {
			return fmt.Errorf("failed to create GCS output writer: %w", err)
		}
		if err := writer.Write(ctx, path, bytes.NewReader(m.Data), m.MIMEType); err != nil {
			return fmt.Errorf("GCS への保存に失敗したのだ: %w", err)
		}
	} else {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("出力ディレクトリの作成に失敗したのだ: %w", err)
			}
		}
		if err := os.WriteFile(path, m.Data, 0o644); err != nil {
			return fmt.Errorf("ファイルの保存に失敗したのだ: %w", err)
		}
	}
	slog.InfoContext(ctx, "生成物を保存したのだ", "path", path, "mime_type", m.MIMEType, "bytes", len(m.Data))
	return nil
}

// indexedPath は複数出力の場合に連番を付けたパスを返すのだ。
// 例: out.png -> out-2.png
func indexedPath(path string, i int) string {
	if i == 0 {
		return path
	}
	ext := filepath.Ext(path)
	return fmt.Sprintf("%s-%d%s", strings.TrimSuffix(path, ext), i+1, ext)
}

// readAttachment はローカルファイルか URL を添付に変換するのだ。
func readAttachment(ref string) (domain.Attachment, error) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") || strings.HasPrefix(ref, gcsPrefix) {
		return domain.Attachment{URL: ref}, nil
	}
	data, err := os.ReadFile(ref)
	if err != nil {
		return domain.Attachment{}, fmt.Errorf("添付ファイルの読み込みに失敗したのだ: %w", err)
	}
	return domain.Attachment{Data: data}, nil
}
