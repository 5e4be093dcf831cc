package generator

import (
	"context"
	"time"

	"github.com/shouni/gemini-creative-gateway/pkg/domain"
)

// Credentials はセッションから有効な API キーとユーザー ID を取り出します。
type Credentials interface {
	// ActiveCredential は API キーを返します。未設定なら apierror.ErrNoCredential を返します。
	ActiveCredential() (string, error)
	UserID() string
}

// Backend は生成 AI バックエンドを抽象化したポートです。
// 返すエラーの文言は apierror.Classify で分類されます。
type Backend interface {
	GenerateContent(ctx context.Context, req ContentRequest) (*ContentResponse, error)
	GenerateImage(ctx context.Context, req ImageGenRequest) (*domain.Media, error)
	StartVideo(ctx context.Context, req VideoStartRequest) (*domain.VideoOperation, error)
	PollVideo(ctx context.Context, op *domain.VideoOperation) (*domain.VideoOperation, error)
	// DownloadVideo は 2xx 以外の応答に対して *HTTPStatusError を返します。
	DownloadVideo(ctx context.Context, uri string) ([]byte, error)
	SynthesizeSpeech(ctx context.Context, req SpeechRequest) (*domain.Media, error)
}

// BackendFactory は API キーに対応する Backend を返します。
type BackendFactory interface {
	Backend(ctx context.Context, credential string) (Backend, error)
}

// LogStore は監査ログの追記先です。ゲートウェイは追記だけを行います。
type LogStore interface {
	AppendLog(ctx context.Context, entry domain.LogEntry) error
}

// Notifier は成功した結果のベストエフォート通知ポートです。
// 実装は呼び出し元をブロックせず、失敗を呼び出し元に返してはいけません。
// 配送は最大 1 回で、再試行はしません。
type Notifier interface {
	Notify(ctx context.Context, userID string, n domain.Notification)
}

// Recorder は呼び出し結果のメトリクスを記録します。
type Recorder interface {
	ObserveCall(modality domain.Modality, status domain.LogStatus, elapsed time.Duration)
	ObserveVideoPoll()
}

// Verifier は API キーが有効かどうかを確認します。
type Verifier interface {
	// Verify は有効なら true を返します。無効の理由は error で返します。
	Verify(ctx context.Context, key string) (bool, error)
}

// Clock は動画ポーリングで使う時計です。テストでは経過時間を模擬できます。
type Clock interface {
	Now() time.Time
	// Sleep は d だけ待機します。ctx がキャンセルされた場合はそのエラーを返します。
	Sleep(ctx context.Context, d time.Duration) error
}
