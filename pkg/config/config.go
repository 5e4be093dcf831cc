package config

import (
	"time"
)

// デフォルト値の定義
const (
	DefaultTextModel       = "gemini-3-flash-preview"
	DefaultMultimodalModel = "gemini-3-flash-preview"
	DefaultImageModel      = "imagen-4.0-generate-001"
	DefaultComposeModel    = "gemini-3-pro-image-preview"
	DefaultVideoModel      = "veo-3.0-generate-001"
	DefaultVoiceModel      = "gemini-2.5-flash-preview-tts"
	DefaultVerifyModel     = "gemini-2.5-flash"
	DefaultAPIBaseURL      = "https://generativelanguage.googleapis.com"

	DefaultVideoPollInterval = 10 * time.Second
	DefaultVideoTimeout      = 5 * time.Minute
	DefaultWebhookTimeout    = 15 * time.Second
	DefaultVerifyTimeout     = 15 * time.Second
	DefaultHTTPTimeout       = 30 * time.Second
	DefaultClientCacheTTL    = 30 * time.Minute
	DefaultReferenceCacheTTL = 10 * time.Minute
	DefaultSessionTTL        = 12 * time.Hour

	// DefaultHDRSuffix は HDR 指定時にプロンプトへ付け足す表現です。
	DefaultHDRSuffix = "HDR, high dynamic range, rich detail in highlights and shadows, vivid yet natural colors"
)

// Models はモダリティごとに使用するモデル名です。
type Models struct {
	Text       string
	Multimodal string
	Image      string
	Compose    string
	Video      string
	Voice      string
	Verify     string
}

// Config はゲートウェイ本体の基本設定です。
type Config struct {
	Models Models

	APIBaseURL string
	HDRSuffix  string

	// --- Video polling ---
	VideoPollInterval time.Duration
	VideoTimeout      time.Duration

	// --- Side effects ---
	WebhookTimeout time.Duration
	VerifyTimeout  time.Duration

	// RateInterval が 0 の場合はレート制限なし
	RateInterval time.Duration
}

// DefaultModels は推奨モデルの組み合わせを返します。
func DefaultModels() Models {
	return Models{
		Text:       DefaultTextModel,
		Multimodal: DefaultMultimodalModel,
		Image:      DefaultImageModel,
		Compose:    DefaultComposeModel,
		Video:      DefaultVideoModel,
		Voice:      DefaultVoiceModel,
		Verify:     DefaultVerifyModel,
	}
}

// DefaultConfig は推奨されるデフォルト設定を返すヘルパー関数です。
func DefaultConfig() Config {
	return Config{
		Models:            DefaultModels(),
		APIBaseURL:        DefaultAPIBaseURL,
		HDRSuffix:         DefaultHDRSuffix,
		VideoPollInterval: DefaultVideoPollInterval,
		VideoTimeout:      DefaultVideoTimeout,
		WebhookTimeout:    DefaultWebhookTimeout,
		VerifyTimeout:     DefaultVerifyTimeout,
	}
}
