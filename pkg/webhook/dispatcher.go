package webhook

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/shouni/go-http-kit/pkg/httpkit"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/shouni/gemini-creative-gateway/pkg/domain"
)

var tracer = otel.Tracer("gemini-creative-gateway/webhook")

const (
	testPrompt = "Webhook connectivity test"
	testResult = "This is a test payload from the creative gateway. If you can read this, your webhook is configured correctly."
)

// 配送結果のラベル
const (
	ResultDelivered = "delivered"
	ResultFailed    = "failed"
	ResultSkipped   = "skipped"
)

// ProfileStore はユーザーごとの Webhook URL を保持するプロフィールストアです。
type ProfileStore interface {
	// WebhookURL は未設定の場合に空文字を返します。
	WebhookURL(ctx context.Context, userID string) (string, error)
	SetWebhookURL(ctx context.Context, userID, webhookURL string) error
}

// DeliveryRecorder は配送結果を記録します。
type DeliveryRecorder interface {
	ObserveWebhook(result string)
}

// TestResult はテスト送信の結果です。UI にそのまま表示されます。
type TestResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Dispatcher は生成結果をユーザー設定の URL へベストエフォートで POST します。
// 配送は最大 1 回で、再試行もキューイングもしません。
// 送信先はプライベート・ループバック・リンクローカルのアドレスを拒否します。
type Dispatcher struct {
	profiles              ProfileStore
	client                *httpkit.Client
	doer                  httpkit.Doer
	skipNetworkValidation bool
	timeout               time.Duration
	recorder              DeliveryRecorder
	now                   func() time.Time
	wg                    sync.WaitGroup
}

// Option は Dispatcher の任意設定です。
type Option func(*Dispatcher)

// WithRecorder は配送結果の記録先を設定します。
func WithRecorder(r DeliveryRecorder) Option {
	return func(d *Dispatcher) { d.recorder = r }
}

// WithHTTPClient は POST に使うトランスポートを差し替えます。
func WithHTTPClient(c httpkit.Doer) Option {
	return func(d *Dispatcher) { d.doer = c }
}

// WithSkipNetworkValidation は送信先アドレスの検証を無効にします。
// ローカルの受信サーバーへ送る開発環境やテスト以外では使いません。
func WithSkipNetworkValidation(skip bool) Option {
	return func(d *Dispatcher) { d.skipNetworkValidation = skip }
}

// WithClock はペイロードのタイムスタンプに使う時計を差し替えます。
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// NewDispatcher は Dispatcher を生成します。timeout は 1 回の配送にかける上限です。
func NewDispatcher(profiles ProfileStore, timeout time.Duration, opts ...Option) (*Dispatcher, error) {
	if profiles == nil {
		return nil, fmt.Errorf("profile store is required")
	}
	d := &Dispatcher{
		profiles: profiles,
		timeout:  timeout,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}

	clientOpts := []httpkit.ClientOption{httpkit.WithSkipNetworkValidation(d.skipNetworkValidation)}
	if d.doer != nil {
		clientOpts = append(clientOpts, httpkit.WithHTTPClient(d.doer))
	}
	d.client = httpkit.New(timeout, clientOpts...)
	return d, nil
}

// Notify は結果の配送をバックグラウンドで開始し、すぐに戻ります。
// 呼び出し元のキャンセルには影響されず、失敗は診断ログにだけ残ります。
func (d *Dispatcher) Notify(ctx context.Context, userID string, n domain.Notification) {
	if n.Media != nil {
		n.Media = &domain.Media{Data: bytes.Clone(n.Media.Data), MIMEType: n.Media.MIMEType}
	}

	detached := context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.Deliver(detached, userID, n); err != nil {
			slog.WarnContext(detached, "Webhook の配送に失敗しました", "user_id", userID, "type", n.Type, "error", err)
		}
	}()
}

// Wait は配送中の Notify がすべて終わるまで待ちます。
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Deliver は結果を同期的に配送します。URL が未設定なら何もせず nil を返します。
func (d *Dispatcher) Deliver(ctx context.Context, userID string, n domain.Notification) error {
	target, err := d.lookup(ctx, userID)
	if err != nil {
		d.observe(ResultFailed)
		return err
	}
	if target == "" {
		d.observe(ResultSkipped)
		return nil
	}

	payload := BuildPayload(userID, n, d.now())
	status, err := d.post(ctx, target, payload)
	if err != nil {
		d.observe(ResultFailed)
		return err
	}
	if status < 200 || status > 299 {
		d.observe(ResultFailed)
		return fmt.Errorf("webhook returned status %d", status)
	}
	d.observe(ResultDelivered)
	return nil
}

// SendTest は固定の診断ペイロードを送信し、結果を返します。エラーは返しません。
func (d *Dispatcher) SendTest(ctx context.Context, userID string) TestResult {
	if userID == "" {
		return TestResult{Success: false, Message: "No signed-in user; cannot look up a webhook URL."}
	}
	target, err := d.lookup(ctx, userID)
	if err != nil {
		return TestResult{Success: false, Message: "Failed to load webhook settings: " + err.Error()}
	}
	if target == "" {
		return TestResult{Success: false, Message: "No webhook URL is configured."}
	}

	payload := domain.WebhookPayload{
		Type:      domain.PayloadTest,
		Prompt:    testPrompt,
		Result:    testResult,
		MimeType:  "text/plain",
		Timestamp: d.now(),
		UserID:    userID,
	}
	status, err := d.post(ctx, target, payload)
	if err != nil {
		slog.WarnContext(ctx, "Webhook のテスト送信に失敗しました", "user_id", userID, "error", err)
		return TestResult{Success: false, Message: "Failed to reach the webhook endpoint."}
	}
	if status < 200 || status > 299 {
		return TestResult{Success: false, Message: fmt.Sprintf("Webhook endpoint responded with HTTP %d.", status)}
	}
	return TestResult{Success: true, Message: fmt.Sprintf("Test payload delivered (HTTP %d).", status)}
}

// SetWebhookURL は URL を検証してからプロフィールストアへ保存します。空文字で解除します。
func (d *Dispatcher) SetWebhookURL(ctx context.Context, userID, webhookURL string) error {
	if userID == "" {
		return fmt.Errorf("userID is required")
	}
	webhookURL = strings.TrimSpace(webhookURL)
	if webhookURL != "" {
		if err := d.validateTarget(webhookURL); err != nil {
			return err
		}
	}
	return d.profiles.SetWebhookURL(ctx, userID, webhookURL)
}

// validateTarget は書式の確認に加えて、内部ネットワークを指していないかを確認します。
func (d *Dispatcher) validateTarget(raw string) error {
	if err := ValidateURL(raw); err != nil {
		return err
	}
	if d.skipNetworkValidation {
		return nil
	}
	if ok, err := d.client.IsSafeURL(raw); !ok {
		if err == nil {
			err = fmt.Errorf("blocked by network policy")
		}
		return fmt.Errorf("webhook URL is not allowed: %w", err)
	}
	return nil
}

// ValidateURL は Webhook として使える絶対 URL かどうかを確認します。
// 送信先アドレスの検証は Dispatcher 側で行います。
func ValidateURL(raw string) error {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return fmt.Errorf("invalid webhook URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid webhook URL scheme: %s", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid webhook URL: missing host")
	}
	return nil
}

// BuildPayload は結果を正規化したペイロードに変換します。
// バイナリは base64 に変換し、テキストは MIME タイプが無ければ text/plain にします。
func BuildPayload(userID string, n domain.Notification, now time.Time) domain.WebhookPayload {
	p := domain.WebhookPayload{
		Type:      n.Type,
		Prompt:    n.Prompt,
		Timestamp: now,
		UserID:    userID,
	}
	if n.Media != nil && len(n.Media.Data) > 0 {
		p.Result = base64.StdEncoding.EncodeToString(n.Media.Data)
		p.MimeType = n.Media.MIMEType
		if p.MimeType == "" {
			p.MimeType = http.DetectContentType(n.Media.Data)
		}
		return p
	}
	p.Result = n.Text
	p.MimeType = "text/plain"
	return p
}

func (d *Dispatcher) lookup(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", nil
	}
	target, err := d.profiles.WebhookURL(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to load webhook URL: %w", err)
	}
	return strings.TrimSpace(target), nil
}

func (d *Dispatcher) post(ctx context.Context, target string, payload domain.WebhookPayload) (status int, err error) {
	ctx, span := tracer.Start(ctx, "webhook.deliver")
	defer func() {
		span.SetAttributes(
			attribute.String("webhook.type", string(payload.Type)),
			attribute.Int("http.status_code", status),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	if err := d.validateTarget(target); err != nil {
		return 0, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", httpkit.UserAgent)

	// Do は再試行しないので、配送は最大 1 回になる
	resp, err := d.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}

func (d *Dispatcher) observe(result string) {
	if d.recorder != nil {
		d.recorder.ObserveWebhook(result)
	}
}
