package generator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/shouni/gemini-creative-gateway/pkg/apierror"
	"github.com/shouni/gemini-creative-gateway/pkg/config"
	"github.com/shouni/gemini-creative-gateway/pkg/domain"
)

// Gateway はモダリティごとの生成操作を提供する窓口です。
// セッションごとに生成し、呼び出し間で生成状態を共有しません。
type Gateway struct {
	creds     Credentials
	backends  BackendFactory
	logs      LogStore
	notifier  Notifier
	recorder  Recorder
	verifier  Verifier
	clock     Clock
	limiter   *rate.Limiter
	models    config.Models
	video     VideoPolicy
	hdrSuffix string
	newID     func() string
}

// Option は Gateway の任意設定です。
type Option func(*Gateway)

// WithNotifier は成功時の通知先を設定します。
func WithNotifier(n Notifier) Option {
	return func(g *Gateway) { g.notifier = n }
}

// WithRecorder はメトリクスの記録先を設定します。
func WithRecorder(r Recorder) Option {
	return func(g *Gateway) { g.recorder = r }
}

// WithVerifier は API キー検証の実装を設定します。
func WithVerifier(v Verifier) Option {
	return func(g *Gateway) { g.verifier = v }
}

// WithClock は動画ポーリングで使う時計を差し替えます。
func WithClock(c Clock) Option {
	return func(g *Gateway) { g.clock = c }
}

// WithModels はモダリティごとのモデル名を設定します。空の項目は既定値のままです。
func WithModels(m config.Models) Option {
	return func(g *Gateway) {
		override := func(dst *string, v string) {
			if v != "" {
				*dst = v
			}
		}
		override(&g.models.Text, m.Text)
		override(&g.models.Multimodal, m.Multimodal)
		override(&g.models.Image, m.Image)
		override(&g.models.Compose, m.Compose)
		override(&g.models.Video, m.Video)
		override(&g.models.Voice, m.Voice)
		override(&g.models.Verify, m.Verify)
	}
}

// WithVideoPolicy はポーリング間隔と制限時間を設定します。
func WithVideoPolicy(p VideoPolicy) Option {
	return func(g *Gateway) {
		if p.PollInterval > 0 {
			g.video.PollInterval = p.PollInterval
		}
		if p.Timeout > 0 {
			g.video.Timeout = p.Timeout
		}
	}
}

// WithLimiter はバックエンド呼び出し前に待機するレートリミッターを設定します。
func WithLimiter(l *rate.Limiter) Option {
	return func(g *Gateway) { g.limiter = l }
}

// WithHDRSuffix は HDR 指定時にプロンプトへ付け足す表現を設定します。
func WithHDRSuffix(s string) Option {
	return func(g *Gateway) { g.hdrSuffix = s }
}

// NewGateway は依存関係を注入して Gateway を初期化します。
func NewGateway(creds Credentials, backends BackendFactory, logs LogStore, opts ...Option) (*Gateway, error) {
	if creds == nil {
		return nil, fmt.Errorf("credentials is required")
	}
	if backends == nil {
		return nil, fmt.Errorf("backend factory is required")
	}
	if logs == nil {
		return nil, fmt.Errorf("log store is required")
	}

	g := &Gateway{
		creds:    creds,
		backends: backends,
		logs:     logs,
		clock:    systemClock{},
		models:   config.DefaultModels(),
		video: VideoPolicy{
			PollInterval: config.DefaultVideoPollInterval,
			Timeout:      config.DefaultVideoTimeout,
		},
		hdrSuffix: config.DefaultHDRSuffix,
		newID:     func() string { return logIDPrefix + uuid.NewString() },
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// run は 1 回のゲートウェイ呼び出しを実行し、ログと通知の副作用を保証します。
// API キーが未設定の場合はバックエンドにもログにも触れずに NoCredential を返します。
func (g *Gateway) run(ctx context.Context, modality domain.Modality, model, prompt string, fn func(context.Context, Backend) (*outcome, error)) error {
	credential, err := g.creds.ActiveCredential()
	if err != nil {
		return err
	}

	started := g.clock.Now()
	out, err := g.invoke(ctx, credential, fn)
	elapsed := g.clock.Now().Sub(started)

	entry := domain.LogEntry{
		ID:            g.newID(),
		UserID:        g.creds.UserID(),
		Timestamp:     g.clock.Now(),
		Modality:      modality,
		Model:         model,
		PromptSummary: truncate(prompt, summaryLimit),
	}

	if err != nil {
		classified := apierror.FromError(ctx, err)
		entry.Status = domain.LogStatusError
		entry.ErrorMessage = err.Error()
		g.appendLog(ctx, entry)
		g.observe(modality, domain.LogStatusError, elapsed)
		return classified
	}

	entry.Status = domain.LogStatusSuccess
	entry.OutputSummary = truncate(out.summary, summaryLimit)
	entry.TokenCount = out.tokens
	entry.MediaPreview = out.preview
	g.appendLog(ctx, entry)
	g.observe(modality, domain.LogStatusSuccess, elapsed)

	if out.notification != nil && g.notifier != nil {
		g.notifier.Notify(ctx, g.creds.UserID(), *out.notification)
	}
	return nil
}

func (g *Gateway) invoke(ctx context.Context, credential string, fn func(context.Context, Backend) (*outcome, error)) (*outcome, error) {
	backend, err := g.backends.Backend(ctx, credential)
	if err != nil {
		return nil, err
	}
	out, err := fn(ctx, backend)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = &outcome{}
	}
	return out, nil
}

// appendLog はログストアへ追記します。ストアのエラーは呼び出し元へ伝播させません。
// 呼び出し元がキャンセルした要求もログに残すため、キャンセルは引き継がないのだ。
func (g *Gateway) appendLog(ctx context.Context, entry domain.LogEntry) {
	ctx = context.WithoutCancel(ctx)
	if err := g.logs.AppendLog(ctx, entry); err != nil {
		slog.WarnContext(ctx, "監査ログの追記に失敗しました", "log_id", entry.ID, "modality", entry.Modality, "error", err)
	}
}

func (g *Gateway) observe(modality domain.Modality, status domain.LogStatus, elapsed time.Duration) {
	if g.recorder != nil {
		g.recorder.ObserveCall(modality, status, elapsed)
	}
}

// throttle はレートリミッターが設定されていれば待機します。
func (g *Gateway) throttle(ctx context.Context) error {
	if g.limiter == nil {
		return nil
	}
	return g.limiter.Wait(ctx)
}

// VerifyCredential は API キーが有効かを確認します。再試行はしません。
// 検証は設定中の API キーを必要としないため、未設定でも実行できます。
func (g *Gateway) VerifyCredential(ctx context.Context, key string) bool {
	if g.verifier == nil {
		slog.WarnContext(ctx, "Verifier が設定されていないため API キーを検証できません")
		return false
	}

	started := g.clock.Now()
	valid, err := g.verifier.Verify(ctx, key)
	elapsed := g.clock.Now().Sub(started)

	entry := domain.LogEntry{
		ID:            g.newID(),
		UserID:        g.creds.UserID(),
		Timestamp:     g.clock.Now(),
		Modality:      domain.ModalityVerify,
		Model:         g.models.Verify,
		PromptSummary: "API key verification",
	}
	status := domain.LogStatusSuccess
	if valid {
		entry.OutputSummary = "API key is valid"
	} else {
		status = domain.LogStatusError
		entry.ErrorMessage = "API key rejected"
		if err != nil {
			entry.ErrorMessage = err.Error()
		}
	}
	entry.Status = status
	g.appendLog(ctx, entry)
	g.observe(domain.ModalityVerify, status, elapsed)
	return valid
}
