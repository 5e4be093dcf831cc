package generator

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shouni/go-http-kit/pkg/httpkit"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const verifyRequestBody = `{"contents":[{"parts":[{"text":"ping"}]}],"generationConfig":{"maxOutputTokens":1}}`

// HTTPVerifier は最小限のテキスト生成リクエストを直接送り、HTTP 200 なら有効と判定します。
type HTTPVerifier struct {
	client  *httpkit.Client
	baseURL string
	model   string
}

// NewHTTPVerifier は HTTPVerifier を生成します。
// 既定では内部ネットワーク宛ての接続を拒否するクライアントを使います。
func NewHTTPVerifier(baseURL, model string, timeout time.Duration, opts ...httpkit.ClientOption) (*HTTPVerifier, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("baseURL is required")
	}
	if model == "" {
		return nil, fmt.Errorf("model is required")
	}
	return &HTTPVerifier{
		client:  httpkit.New(timeout, opts...),
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
	}, nil
}

// Verify は API キーを検証します。ネットワーク障害も無効として扱い、再試行はしません。
func (v *HTTPVerifier) Verify(ctx context.Context, key string) (valid bool, err error) {
	ctx, span := tracer.Start(ctx, "verifier.check")
	defer func() {
		span.SetAttributes(attribute.Bool("credential.valid", valid))
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if strings.TrimSpace(key) == "" {
		return false, fmt.Errorf("empty API key")
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", v.baseURL, url.PathEscape(v.model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBufferString(verifyRequestBody))
	if err != nil {
		return false, fmt.Errorf("検証リクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", key)

	// Do は再試行しないので、1 回の検証で送るリクエストは 1 件だけになる
	resp, err := v.client.Do(req)
	if err != nil {
		slog.WarnContext(ctx, "API キー検証リクエストが失敗しました", "error", err)
		return false, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("verification returned status %d", resp.StatusCode)
	}
	return true, nil
}
