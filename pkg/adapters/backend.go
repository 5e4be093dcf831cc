package adapters

import (
	"context"
	"fmt"
	"time"

	"github.com/shouni/go-http-kit/pkg/httpkit"
	"google.golang.org/genai"

	"github.com/shouni/gemini-creative-gateway/pkg/generator"
)

// DefaultInlineLimit は、添付をインラインのまま送る 1 件あたりの上限サイズです。
// これを超える添付は File API にアップロードしてから URI で参照します。
const DefaultInlineLimit = 15 * 1024 * 1024

const defaultDownloadTimeout = 2 * time.Minute

// MediaModels は generateContent / Imagen / Veo / TTS を呼び出すクライアントです。
// *genai.Models がこれを満たします。
type MediaModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	GenerateImages(ctx context.Context, model string, prompt string, config *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error)
	GenerateVideos(ctx context.Context, model string, prompt string, image *genai.Image, config *genai.GenerateVideosConfig) (*genai.GenerateVideosOperation, error)
}

// OperationPoller は長時間オペレーションを再取得します。
// *genai.Operations がこれを満たします。
type OperationPoller interface {
	GetVideosOperation(ctx context.Context, operation *genai.GenerateVideosOperation, config *genai.GetOperationConfig) (*genai.GenerateVideosOperation, error)
}

// FileUploader は大きな添付を File API に預けます。
// *gemini.Client がこれを満たします。
type FileUploader interface {
	UploadFile(ctx context.Context, data []byte, mimeType, displayName string) (uri string, name string, err error)
	DeleteFile(ctx context.Context, fileName string) error
}

// GeminiBackend は generator.Backend の Gemini 実装です。
type GeminiBackend struct {
	media       MediaModels
	operations  OperationPoller
	resolver    *ReferenceResolver
	files       FileUploader
	inlineLimit int
	downloader  httpkit.Doer
	apiKey      string
}

var _ generator.Backend = (*GeminiBackend)(nil)

// BackendOption は GeminiBackend の任意設定です。
type BackendOption func(*GeminiBackend)

// WithDownloadClient は動画ダウンロードに使う HTTP クライアントを設定します。
func WithDownloadClient(c httpkit.Doer) BackendOption {
	return func(b *GeminiBackend) { b.downloader = c }
}

// WithDownloadKey は動画ダウンロード時に付与する API キーを設定します。
func WithDownloadKey(key string) BackendOption {
	return func(b *GeminiBackend) { b.apiKey = key }
}

// WithFileUploader は limit バイトを超える添付を File API 経由で送るようにします。
// limit が 0 以下なら DefaultInlineLimit を使います。
func WithFileUploader(u FileUploader, limit int) BackendOption {
	return func(b *GeminiBackend) {
		b.files = u
		if limit > 0 {
			b.inlineLimit = limit
		}
	}
}

// NewGeminiBackend は依存関係を注入して GeminiBackend を初期化します。
func NewGeminiBackend(media MediaModels, operations OperationPoller, resolver *ReferenceResolver, opts ...BackendOption) (*GeminiBackend, error) {
	if media == nil {
		return nil, fmt.Errorf("media models is required")
	}
	if operations == nil {
		return nil, fmt.Errorf("operation poller is required")
	}
	if resolver == nil {
		return nil, fmt.Errorf("reference resolver is required")
	}

	b := &GeminiBackend{
		media:       media,
		operations:  operations,
		resolver:    resolver,
		inlineLimit: DefaultInlineLimit,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.downloader == nil {
		b.downloader = httpkit.New(defaultDownloadTimeout)
	}
	return b, nil
}
