package builder

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shouni/go-http-kit/pkg/httpkit"
	"github.com/shouni/go-remote-io/pkg/gcsfactory"

	"github.com/shouni/gemini-creative-gateway/internal/config"
	"github.com/shouni/gemini-creative-gateway/internal/mediastore"
	"github.com/shouni/gemini-creative-gateway/internal/server"
	"github.com/shouni/gemini-creative-gateway/internal/storage"
	"github.com/shouni/gemini-creative-gateway/internal/storage/memory"
	"github.com/shouni/gemini-creative-gateway/internal/storage/sqlite"
	"github.com/shouni/gemini-creative-gateway/pkg/adapters"
	gwconfig "github.com/shouni/gemini-creative-gateway/pkg/config"
	"github.com/shouni/gemini-creative-gateway/pkg/generator"
	"github.com/shouni/gemini-creative-gateway/pkg/metrics"
	"github.com/shouni/gemini-creative-gateway/pkg/prompts"
	"github.com/shouni/gemini-creative-gateway/pkg/session"
	"github.com/shouni/gemini-creative-gateway/pkg/webhook"
)

// MetricsNamespace は Prometheus 指標の名前空間です。
const MetricsNamespace = "creative"

// cliUserID は CLI から実行したときのユーザー ID です。
const cliUserID = "cli"

// Option は Build の任意設定です。
type Option func(*buildOptions)

type buildOptions struct {
	backends generator.BackendFactory
	verifier generator.Verifier
	store    storage.Store
}

// WithBackendFactory は Gemini クライアントの代わりに使う BackendFactory を設定します。
func WithBackendFactory(f generator.BackendFactory) Option {
	return func(o *buildOptions) { o.backends = f }
}

// WithVerifier は API キー検証の実装を差し替えます。
func WithVerifier(v generator.Verifier) Option {
	return func(o *buildOptions) { o.verifier = v }
}

// WithStore は設定から開く代わりに使うストアを設定します。
func WithStore(s storage.Store) Option {
	return func(o *buildOptions) { o.store = s }
}

// Build は設定からすべての共通コンポーネントを初期化します。
// 途中で失敗した場合は、開いたストアを閉じてからエラーを返すのだ。
func Build(ctx context.Context, cfg *config.Config, opts ...Option) (_ *AppContext, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}

	store := o.store
	if store == nil {
		store, err = OpenStore(cfg.DBPath)
		if err != nil {
			return nil, err
		}
	}
	defer func() {
		if err != nil {
			_ = store.Close()
		}
	}()

	registry := prometheus.NewRegistry()
	m := metrics.New(MetricsNamespace, registry)

	dispatcher, err := webhook.NewDispatcher(store, cfg.Gateway.WebhookTimeout, webhook.WithRecorder(m))
	if err != nil {
		return nil, fmt.Errorf("Webhookディスパッチャーの初期化に失敗したのだ: %w", err)
	}

	var remote io.Closer
	defer func() {
		if err != nil && remote != nil {
			_ = remote.Close()
		}
	}()

	downloader := httpkit.New(cfg.HTTPTimeout, apiClientOptions(cfg)...)
	backends := o.backends
	if backends == nil {
		var factory *adapters.ClientFactory
		factory, remote, err = InitializeBackendFactory(ctx, cfg, downloader)
		if err != nil {
			return nil, err
		}
		backends = factory
	}

	verifier := o.verifier
	if verifier == nil {
		verifier, err = generator.NewHTTPVerifier(cfg.Gateway.APIBaseURL, cfg.Gateway.Models.Verify, cfg.Gateway.VerifyTimeout, apiClientOptions(cfg)...)
		if err != nil {
			return nil, fmt.Errorf("APIキー検証の初期化に失敗したのだ: %w", err)
		}
	}

	promptBuilder, err := prompts.NewBuilder()
	if err != nil {
		return nil, fmt.Errorf("プロンプトビルダーの初期化に失敗したのだ: %w", err)
	}

	archive, err := InitializeArchive(ctx, cfg.Minio)
	if err != nil {
		return nil, err
	}

	return &AppContext{
		Config:     cfg,
		Store:      store,
		Sessions:   session.NewRegistry(cfg.SessionTTL, cfg.SessionTTL),
		Backends:   backends,
		Dispatcher: dispatcher,
		Verifier:   verifier,
		Metrics:    m,
		Registry:   registry,
		Prompts:    promptBuilder,
		Archive:    archive,
		Downloader: downloader,
		remote:     remote,
		limiters:   newLimiterCache(cfg.SessionTTL),
	}, nil
}

// OpenStore は DBPath に応じて SQLite かインメモリのストアを開きます。
func OpenStore(dbPath string) (storage.Store, error) {
	if dbPath == "" || dbPath == config.MemoryDBPath {
		slog.Info("インメモリストアを使うのだ。再起動するとログと履歴は消えます")
		return memory.New(), nil
	}
	store, err := sqlite.New(dbPath)
	if err != nil {
		return nil, fmt.Errorf("ストアの初期化に失敗したのだ: %w", err)
	}
	return store, nil
}

// InitializeBackendFactory は参照画像の取得系をまとめ、Gemini クライアントの工場を構築します。
// GCS を有効にした場合は、工場が使い終わったら閉じる io.Closer も返すのだ。
func InitializeBackendFactory(ctx context.Context, cfg *config.Config, downloader httpkit.Doer) (_ *adapters.ClientFactory, closer io.Closer, err error) {
	httpClient := httpkit.New(cfg.HTTPTimeout)

	resolverOpts := []adapters.ResolverOption{
		adapters.WithImageCache(cache.New(cfg.ReferenceCacheTTL, 2*cfg.ReferenceCacheTTL), cfg.ReferenceCacheTTL),
	}
	if cfg.EnableGCS {
		gcs, gcsErr := gcsfactory.New(ctx)
		if gcsErr != nil {
			return nil, nil, fmt.Errorf("failed to create GCS client factory: %w", gcsErr)
		}
		defer func() {
			if err != nil {
				_ = gcs.Close()
			}
		}()
		reader, readerErr := gcs.InputReader()
		if readerErr != nil {
			return nil, nil, fmt.Errorf("failed to create GCS input reader: %w", readerErr)
		}
		resolverOpts = append(resolverOpts, adapters.WithObjectReader(reader))
		closer = gcs
	}

	resolver, err := adapters.NewReferenceResolver(httpClient, resolverOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("参照画像リゾルバーの初期化に失敗したのだ: %w", err)
	}

	factory, err := adapters.NewClientFactory(adapters.FactoryConfig{
		BaseURL:     baseURLOverride(cfg.Gateway.APIBaseURL),
		Resolver:    resolver,
		Downloader:  downloader,
		CacheTTL:    cfg.ClientCacheTTL,
		InlineLimit: cfg.InlineLimit,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("Geminiクライアント工場の初期化に失敗したのだ: %w", err)
	}
	return factory, closer, nil
}

// InitializeArchive は MinIO の設定があれば履歴メディアの保存先を返します。
func InitializeArchive(ctx context.Context, mc config.MinioConfig) (*mediastore.Store, error) {
	if !mc.Enabled() {
		return nil, nil
	}
	archive, err := mediastore.New(mc.Endpoint, mc.AccessKey, mc.SecretKey, mc.Bucket, mc.UseSSL)
	if err != nil {
		return nil, fmt.Errorf("メディアストアの初期化に失敗したのだ: %w", err)
	}
	// 起動時に作れなくても、最初の保存時に再試行されるのだ。
	if err := archive.EnsureBucket(ctx); err != nil {
		slog.WarnContext(ctx, "バケットの準備に失敗しました。最初の保存時に再試行します", "bucket", mc.Bucket, "error", err)
	}
	return archive, nil
}

// BuildServer は AppContext から HTTP サーバーを構築します。
func BuildServer(appCtx *AppContext) (*fiber.App, error) {
	deps := server.Deps{
		Sessions: appCtx.Sessions,
		Gateways: appCtx.NewGateway,
		Store:    appCtx.Store,
		Webhooks: appCtx.Dispatcher,
		Prompts:  appCtx.Prompts,
		Metrics:  promhttp.HandlerFor(appCtx.Registry, promhttp.HandlerOpts{}),
	}
	// nil ポインタをインターフェースに入れると nil 判定できなくなるのだ。
	if appCtx.Archive != nil {
		deps.Archive = appCtx.Archive
	}

	app, err := server.New(deps)
	if err != nil {
		return nil, fmt.Errorf("HTTPサーバーの構築に失敗したのだ: %w", err)
	}
	return app, nil
}

// BuildCLIGateway は GEMINI_API_KEY を設定したセッションで Gateway を構築します。
func BuildCLIGateway(appCtx *AppContext) (*generator.Gateway, error) {
	if appCtx.Config.GeminiAPIKey == "" {
		return nil, errNoAPIKey
	}
	s := appCtx.Sessions.Get(cliUserID)
	s.SetActiveCredential(appCtx.Config.GeminiAPIKey)
	return appCtx.NewGateway(s)
}

// apiClientOptions は Gemini API 宛てのクライアント設定を返します。
// 接続先を差し替えた場合はローカルのプロキシやスタブを許可するため、アドレス検証を外すのだ。
func apiClientOptions(cfg *config.Config) []httpkit.ClientOption {
	if baseURLOverride(cfg.Gateway.APIBaseURL) == "" {
		return nil
	}
	return []httpkit.ClientOption{httpkit.WithSkipNetworkValidation(true)}
}

// baseURLOverride は既定の接続先なら空を返し、genai の既定設定に任せます。
func baseURLOverride(u string) string {
	if u == "" || u == gwconfig.DefaultAPIBaseURL {
		return ""
	}
	return u
}
