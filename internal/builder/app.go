package builder

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shouni/go-http-kit/pkg/httpkit"
	"golang.org/x/time/rate"

	"github.com/shouni/gemini-creative-gateway/internal/config"
	"github.com/shouni/gemini-creative-gateway/internal/mediastore"
	"github.com/shouni/gemini-creative-gateway/internal/storage"
	"github.com/shouni/gemini-creative-gateway/pkg/generator"
	"github.com/shouni/gemini-creative-gateway/pkg/metrics"
	"github.com/shouni/gemini-creative-gateway/pkg/prompts"
	"github.com/shouni/gemini-creative-gateway/pkg/session"
	"github.com/shouni/gemini-creative-gateway/pkg/webhook"
)

// AppContext は、アプリケーション実行に必要な共通コンポーネントを保持する
// サーバーと CLI の両方がこれを経由してゲートウェイを組み立てるのだ。
type AppContext struct {
	Config     *config.Config           // Configは、環境変数から読み込まれた設定です。
	Store      storage.Store            // Storeは、監査ログ・Webhook・履歴の永続化先です。
	Sessions   *session.Registry        // Sessionsは、ユーザーごとの API キーを保持します。
	Backends   generator.BackendFactory // Backendsは、API キーごとの Gemini クライアントを払い出します。
	Dispatcher *webhook.Dispatcher      // Dispatcherは、成功結果を Webhook へ通知します。
	Verifier   generator.Verifier       // Verifierは、API キーの有効性を確認します。
	Metrics    *metrics.Metrics         // Metricsは、呼び出しと配送の指標です。
	Registry   *prometheus.Registry     // Registryは、/metrics で公開するレジストリです。
	Prompts    *prompts.Builder         // Promptsは、機能ごとのプロンプトを組み立てます。
	Archive    *mediastore.Store        // Archiveは、履歴メディアの保存先です。MinIO 未設定なら nil なのだ。
	Downloader *httpkit.Client          // Downloaderは、動画のダウンロードに使うクライアントです。

	remote    io.Closer
	limiters  *cache.Cache
	limiterMu sync.Mutex
	closeOnce sync.Once
}

// NewGateway はセッションに紐づく Gateway を組み立てます。
// 設定値とレートリミッターはここで一括して注入するのだ。
func (a *AppContext) NewGateway(s *session.Session) (*generator.Gateway, error) {
	gw := a.Config.Gateway
	opts := []generator.Option{
		generator.WithModels(gw.Models),
		generator.WithVideoPolicy(generator.VideoPolicy{
			PollInterval: gw.VideoPollInterval,
			Timeout:      gw.VideoTimeout,
		}),
		generator.WithHDRSuffix(gw.HDRSuffix),
		generator.WithRecorder(a.Metrics),
		generator.WithNotifier(a.Dispatcher),
		generator.WithVerifier(a.Verifier),
	}
	if l := a.limiterFor(s.UserID()); l != nil {
		opts = append(opts, generator.WithLimiter(l))
	}
	return generator.NewGateway(s, a.Backends, a.Store, opts...)
}

// limiterFor はユーザーごとのレートリミッターを返します。間隔が 0 なら制限しません。
func (a *AppContext) limiterFor(userID string) *rate.Limiter {
	interval := a.Config.Gateway.RateInterval
	if interval <= 0 || a.limiters == nil {
		return nil
	}

	a.limiterMu.Lock()
	defer a.limiterMu.Unlock()
	if v, ok := a.limiters.Get(userID); ok {
		if l, ok := v.(*rate.Limiter); ok {
			a.limiters.SetDefault(userID, l)
			return l
		}
	}
	l := rate.NewLimiter(rate.Every(interval), 1)
	a.limiters.SetDefault(userID, l)
	return l
}

// Close は配送中の Webhook を待ってから、GCS クライアントとストアを閉じます。
func (a *AppContext) Close() error {
	var err error
	a.closeOnce.Do(func() {
		if a.Dispatcher != nil {
			a.Dispatcher.Wait()
		}
		if a.remote != nil {
			err = errors.Join(err, a.remote.Close())
		}
		if a.Store != nil {
			err = errors.Join(err, a.Store.Close())
		}
	})
	return err
}

func newLimiterCache(ttl time.Duration) *cache.Cache {
	if ttl <= 0 {
		return cache.New(cache.NoExpiration, 0)
	}
	return cache.New(ttl, 2*ttl)
}

var errNoAPIKey = errors.New("環境変数 GEMINI_API_KEY が設定されていません")
