package adapters

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/shouni/go-gemini-client/pkg/gemini"
	"github.com/shouni/go-http-kit/pkg/httpkit"
	"golang.org/x/sync/singleflight"
	"google.golang.org/genai"

	"github.com/shouni/gemini-creative-gateway/pkg/generator"
)

// BackendBuilder は API キーから Backend を組み立てる関数です。
type BackendBuilder func(ctx context.Context, credential string) (generator.Backend, error)

// ClientFactory は API キーごとに Backend を生成し、キーのハッシュで再利用します。
// 同じキーへの同時要求ではクライアントを 1 度だけ生成するのだ。
type ClientFactory struct {
	cache *cache.Cache
	group singleflight.Group
	build BackendBuilder
}

var _ generator.BackendFactory = (*ClientFactory)(nil)

// FactoryConfig は Gemini クライアント生成の設定です。
type FactoryConfig struct {
	// BaseURL が空でなければ genai クライアントの接続先を差し替えます。
	// 差し替え中は File API を使わず、添付はすべてインラインで送ります。
	BaseURL    string
	Resolver   *ReferenceResolver
	Downloader httpkit.Doer
	CacheTTL   time.Duration
	// InlineLimit を超える添付は File API 経由で送ります。0 なら DefaultInlineLimit です。
	InlineLimit int
}

// NewClientFactory は Gemini クライアントを生成する ClientFactory を返します。
func NewClientFactory(cfg FactoryConfig) (*ClientFactory, error) {
	if cfg.Resolver == nil {
		return nil, fmt.Errorf("reference resolver is required")
	}

	build := func(ctx context.Context, credential string) (generator.Backend, error) {
		clientConfig := &genai.ClientConfig{
			APIKey:  credential,
			Backend: genai.BackendGeminiAPI,
		}
		if cfg.BaseURL != "" {
			clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
		}
		mediaClient, err := genai.NewClient(ctx, clientConfig)
		if err != nil {
			return nil, fmt.Errorf("genaiクライアントの初期化に失敗しました: %w", err)
		}

		opts := []BackendOption{WithDownloadKey(credential)}
		if cfg.Downloader != nil {
			opts = append(opts, WithDownloadClient(cfg.Downloader))
		}
		// gemini.Client は接続先を差し替えられないので、既定の接続先のときだけ使う
		if cfg.BaseURL == "" {
			fileClient, err := gemini.NewClient(ctx, gemini.Config{APIKey: credential})
			if err != nil {
				return nil, fmt.Errorf("AIクライアントの初期化に失敗しました: %w", err)
			}
			opts = append(opts, WithFileUploader(fileClient, cfg.InlineLimit))
		}

		return NewGeminiBackend(mediaClient.Models, mediaClient.Operations, cfg.Resolver, opts...)
	}
	return NewClientFactoryWithBuilder(build, cfg.CacheTTL), nil
}

// NewClientFactoryWithBuilder は任意の BackendBuilder を使う ClientFactory を返します。
func NewClientFactoryWithBuilder(build BackendBuilder, ttl time.Duration) *ClientFactory {
	return &ClientFactory{
		cache: cache.New(ttl, 2*ttl),
		build: build,
	}
}

// Backend は API キーに対応する Backend を返します。
func (f *ClientFactory) Backend(ctx context.Context, credential string) (generator.Backend, error) {
	key := credentialKey(credential)
	if cached, ok := f.cache.Get(key); ok {
		if backend, ok := cached.(generator.Backend); ok {
			return backend, nil
		}
	}

	val, err, _ := f.group.Do(key, func() (interface{}, error) {
		// 待機中に他のゴルーチンが生成を終えている可能性があるため再確認する
		if cached, ok := f.cache.Get(key); ok {
			return cached, nil
		}
		backend, err := f.build(ctx, credential)
		if err != nil {
			return nil, err
		}
		f.cache.SetDefault(key, backend)
		return backend, nil
	})
	if err != nil {
		return nil, err
	}

	backend, ok := val.(generator.Backend)
	if !ok {
		return nil, fmt.Errorf("unexpected return type from singleflight: %T", val)
	}
	return backend, nil
}

// Forget はキャッシュ済みのクライアントを破棄します。
func (f *ClientFactory) Forget(credential string) {
	f.cache.Delete(credentialKey(credential))
}

// credentialKey は API キーをそのまま保持しないようハッシュ化します。
func credentialKey(credential string) string {
	sum := sha256.Sum256([]byte(credential))
	return "backend:" + hex.EncodeToString(sum[:])
}
