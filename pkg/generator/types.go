package generator

import (
	"fmt"
	"time"

	"github.com/shouni/gemini-creative-gateway/pkg/domain"
)

const (
	summaryLimit    = 200
	previewMaxBytes = 256 * 1024
	logIDPrefix     = "log_"
)

// ContentRequest は generateContent 系の呼び出しに渡す要求です。
type ContentRequest struct {
	Model        string
	Prompt       string
	SystemPrompt string
	Attachments  []domain.Attachment
	// WantImage が true の場合は画像出力を許可するモデル設定で呼び出します。
	WantImage bool
}

// ContentResponse はすべての候補とパートを走査した結果です。
// インラインのバイナリは MIME タイプで Images と Audio に振り分けます。
type ContentResponse struct {
	Text       string
	Images     []domain.Media
	Audio      []domain.Media
	TokenCount int
}

// ImageGenRequest は画像 1 枚分の生成要求です。
type ImageGenRequest struct {
	Model          string
	Prompt         string
	AspectRatio    string
	NegativePrompt string
	Seed           *int64
	PersonPolicy   domain.PersonPolicy
}

// VideoStartRequest は動画生成オペレーションの開始要求です。
type VideoStartRequest struct {
	Model       string
	Prompt      string
	AspectRatio string
	Image       *domain.Attachment
}

// SpeechRequest は音声合成の要求です。
type SpeechRequest struct {
	Model     string
	Script    string
	VoiceName string
	Direction string
}

// ImageRequest は generateImages の入力です。
type ImageRequest struct {
	Prompt         string
	AspectRatio    string
	Count          int
	NegativePrompt string
	Seed           *int64
	HDR            bool
	PersonPolicy   domain.PersonPolicy
	// OnProgress は 1 枚生成されるごとに、それまでの結果を呼び出し順で受け取ります。
	OnProgress func(partial []domain.Media)
}

// VideoRequest は generateVideo の入力です。Model が空なら既定のモデルを使います。
type VideoRequest struct {
	Prompt      string
	Model       string
	AspectRatio string
	Image       *domain.Attachment
}

// VoiceRequest は generateVoice の入力です。
// Speed と Volume は 1.0、Pitch は 0 が標準です。
type VoiceRequest struct {
	Script  string
	ActorID string
	Speed   float64
	Pitch   float64
	Volume  float64
}

// VideoPolicy は動画ポーリングの間隔と全体の制限時間です。
type VideoPolicy struct {
	PollInterval time.Duration
	Timeout      time.Duration
}

// HTTPStatusError は動画ダウンロードが 2xx 以外で応答した場合のエラーです。
type HTTPStatusError struct {
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("download returned status %d", e.StatusCode)
}

// outcome は成功した呼び出しのログと通知に使う情報です。
type outcome struct {
	summary      string
	tokens       int
	preview      string
	notification *domain.Notification
}
