package adapters

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/shouni/gemini-creative-gateway/pkg/domain"
	"github.com/shouni/gemini-creative-gateway/pkg/imgutil"
)

const (
	cacheKeyReference = "reference:"
	gcsScheme         = "gs://"
)

// HTTPClient は、URL からデータを取得するためのインターフェースです。
// httpkit.ClientInterface がこれを満たします。
type HTTPClient interface {
	FetchBytes(ctx context.Context, url string) ([]byte, error)
	IsSafeURL(urlStr string) (bool, error)
}

// ObjectReader は gs:// などのリモートオブジェクトを読み込みます。
// remoteio.InputReader がこれを満たします。
type ObjectReader interface {
	Open(ctx context.Context, uri string) (io.ReadCloser, error)
}

// ImageCacher は、取得済みの参照画像をキャッシュするためのインターフェースです。
type ImageCacher interface {
	Get(key string) (any, bool)
	Set(key string, value any, d time.Duration)
}

// ReferenceResolver は添付を genai.Part に変換します。
// URL だけを持つ添付は取得し、アップロード向けに正規化してキャッシュします。
type ReferenceResolver struct {
	httpClient HTTPClient
	reader     ObjectReader
	cache      ImageCacher
	cacheTTL   time.Duration
	upload     imgutil.UploadOptions
	validate   func(rawURL string) (bool, error)
}

// ResolverOption は ReferenceResolver の任意設定です。
type ResolverOption func(*ReferenceResolver)

// WithObjectReader は gs:// の参照を読むリーダーを設定します。
func WithObjectReader(r ObjectReader) ResolverOption {
	return func(rr *ReferenceResolver) { rr.reader = r }
}

// WithImageCache は参照画像のキャッシュを設定します。
func WithImageCache(c ImageCacher, ttl time.Duration) ResolverOption {
	return func(rr *ReferenceResolver) {
		rr.cache = c
		rr.cacheTTL = ttl
	}
}

// WithUploadOptions は参照画像の再圧縮設定を変更します。
func WithUploadOptions(o imgutil.UploadOptions) ResolverOption {
	return func(rr *ReferenceResolver) { rr.upload = o }
}

// WithURLValidator は SSRF 対策の URL 検証を差し替えます。
func WithURLValidator(f func(rawURL string) (bool, error)) ResolverOption {
	return func(rr *ReferenceResolver) { rr.validate = f }
}

// NewReferenceResolver は依存関係を注入して ReferenceResolver を初期化します。
func NewReferenceResolver(httpClient HTTPClient, opts ...ResolverOption) (*ReferenceResolver, error) {
	if httpClient == nil {
		return nil, fmt.Errorf("httpClient is required")
	}
	rr := &ReferenceResolver{
		httpClient: httpClient,
		upload:     imgutil.DefaultUploadOptions(),
		validate:   httpClient.IsSafeURL,
	}
	for _, opt := range opts {
		opt(rr)
	}
	return rr, nil
}

// Parts は添付を順番どおりに genai.Part へ変換します。
// 取得に失敗した参照は警告を出してスキップし、残りで続行します。
func (r *ReferenceResolver) Parts(ctx context.Context, attachments []domain.Attachment) []*genai.Part {
	parts := make([]*genai.Part, 0, len(attachments))
	for _, a := range attachments {
		if p := r.Part(ctx, a); p != nil {
			parts = append(parts, p)
		}
	}
	return parts
}

// Part は添付 1 件を genai.Part に変換します。変換できない場合は nil を返します。
func (r *ReferenceResolver) Part(ctx context.Context, a domain.Attachment) *genai.Part {
	if len(a.Data) > 0 {
		mimeType := a.MIMEType
		if mimeType == "" {
			mimeType = http.DetectContentType(a.Data)
		}
		return &genai.Part{InlineData: &genai.Blob{MIMEType: mimeType, Data: a.Data}}
	}
	if a.URL == "" {
		return nil
	}

	data, err := r.Fetch(ctx, a.URL)
	if err != nil {
		slog.WarnContext(ctx, "参照画像の取得に失敗しました。参照なしで続行します", "url", a.URL, "error", err)
		return nil
	}
	return toPart(ctx, data)
}

// Fetch は参照 URL の画像を取得し、正規化済みのバイト列を返します。
func (r *ReferenceResolver) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	key := cacheKeyReference + rawURL
	if r.cache != nil {
		if cached, found := r.cache.Get(key); found {
			if data, ok := cached.([]byte); ok {
				return data, nil
			}
			slog.WarnContext(ctx, "キャッシュデータが不正な型です", "url", rawURL, "type", fmt.Sprintf("%T", cached))
		}
	}

	data, err := r.fetchRaw(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	normalized, err := imgutil.PrepareForUpload(data, r.upload)
	if err != nil {
		slog.DebugContext(ctx, "参照画像の正規化をスキップしました", "url", rawURL, "error", err)
		normalized = data
	}

	if r.cache != nil {
		r.cache.Set(key, normalized, r.cacheTTL)
	}
	return normalized, nil
}

func (r *ReferenceResolver) fetchRaw(ctx context.Context, rawURL string) ([]byte, error) {
	if strings.HasPrefix(rawURL, gcsScheme) {
		if r.reader == nil {
			return nil, fmt.Errorf("gs:// の参照を読むリーダーが設定されていません: %s", rawURL)
		}
		rc, err := r.reader.Open(ctx, rawURL)
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}

	if safe, err := r.validate(rawURL); err != nil || !safe {
		return nil, fmt.Errorf("安全ではないURLが指定されました: %w", err)
	}
	return r.httpClient.FetchBytes(ctx, rawURL)
}

// toPart はバイト列を genai.Part (InlineData) に変換します。
func toPart(ctx context.Context, data []byte) *genai.Part {
	mimeType := http.DetectContentType(data)
	if !strings.HasPrefix(mimeType, "image/") {
		slog.WarnContext(ctx, "MIMEタイプが画像ではないためPartに変換できませんでした", "detected_mime_type", mimeType)
		return nil
	}
	return &genai.Part{InlineData: &genai.Blob{MIMEType: mimeType, Data: data}}
}
