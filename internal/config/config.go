package config

import (
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shouni/go-utils/envutil"

	gwconfig "github.com/shouni/gemini-creative-gateway/pkg/config"
)

// デフォルト値の定義なのだ
const (
	DefaultListenAddr  = ":8080"
	DefaultDBPath      = "data/gateway.db"
	DefaultMinioBucket = "creative-history"
	DefaultLogLevel    = "info"
	// MemoryDBPath を DBPath に指定するとインメモリストアを使います。
	MemoryDBPath = "memory"
)

// Config はサーバー全体の環境設定を保持する構造体なのだ。
type Config struct {
	ListenAddr string
	// DBPath が MemoryDBPath の場合は永続化しません。
	DBPath string

	// GeminiAPIKey は CLI から使う既定の API キーです。サーバーではセッションごとに設定します。
	GeminiAPIKey string

	Gateway gwconfig.Config

	HTTPTimeout       time.Duration
	SessionTTL        time.Duration
	ClientCacheTTL    time.Duration
	ReferenceCacheTTL time.Duration

	// InlineLimit を超える添付は File API にアップロードしてから参照します。0 なら既定値です。
	InlineLimit int

	// EnableGCS が true なら gs:// の参照画像を読み込めるようにします。
	EnableGCS bool

	Minio MinioConfig

	LogLevel string
}

// MinioConfig は履歴メディアの保存先です。Endpoint が空なら保存しません。
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Enabled は MinIO の設定が揃っているかを返します。
func (m MinioConfig) Enabled() bool {
	return m.Endpoint != "" && m.Bucket != ""
}

// LoadConfig は環境変数から設定を読み込み、構造体を返すのだ！
func LoadConfig() *Config {
	gw := gwconfig.DefaultConfig()
	gw.APIBaseURL = stringEnv("GEMINI_API_BASE_URL", gwconfig.DefaultAPIBaseURL)
	gw.Models.Text = stringEnv("GATEWAY_TEXT_MODEL", gwconfig.DefaultTextModel)
	gw.Models.Multimodal = stringEnv("GATEWAY_MULTIMODAL_MODEL", gw.Models.Text)
	gw.Models.Image = stringEnv("GATEWAY_IMAGE_MODEL", gwconfig.DefaultImageModel)
	gw.Models.Compose = stringEnv("GATEWAY_COMPOSE_MODEL", gwconfig.DefaultComposeModel)
	gw.Models.Video = stringEnv("GATEWAY_VIDEO_MODEL", gwconfig.DefaultVideoModel)
	gw.Models.Voice = stringEnv("GATEWAY_VOICE_MODEL", gwconfig.DefaultVoiceModel)
	gw.Models.Verify = stringEnv("GATEWAY_VERIFY_MODEL", gwconfig.DefaultVerifyModel)
	gw.HDRSuffix = stringEnv("GATEWAY_HDR_SUFFIX", gwconfig.DefaultHDRSuffix)
	gw.VideoPollInterval = durationEnv("GATEWAY_VIDEO_POLL_INTERVAL", gwconfig.DefaultVideoPollInterval)
	gw.VideoTimeout = durationEnv("GATEWAY_VIDEO_TIMEOUT", gwconfig.DefaultVideoTimeout)
	gw.WebhookTimeout = durationEnv("GATEWAY_WEBHOOK_TIMEOUT", gwconfig.DefaultWebhookTimeout)
	gw.VerifyTimeout = durationEnv("GATEWAY_VERIFY_TIMEOUT", gwconfig.DefaultVerifyTimeout)
	gw.RateInterval = durationEnv("GATEWAY_RATE_INTERVAL", 0)

	return &Config{
		ListenAddr:        stringEnv("GATEWAY_LISTEN_ADDR", DefaultListenAddr),
		DBPath:            stringEnv("GATEWAY_DB_PATH", DefaultDBPath),
		GeminiAPIKey:      envutil.GetEnv("GEMINI_API_KEY", ""),
		Gateway:           gw,
		HTTPTimeout:       durationEnv("GATEWAY_HTTP_TIMEOUT", gwconfig.DefaultHTTPTimeout),
		SessionTTL:        durationEnv("GATEWAY_SESSION_TTL", gwconfig.DefaultSessionTTL),
		ClientCacheTTL:    durationEnv("GATEWAY_CLIENT_CACHE_TTL", gwconfig.DefaultClientCacheTTL),
		ReferenceCacheTTL: durationEnv("GATEWAY_REFERENCE_CACHE_TTL", gwconfig.DefaultReferenceCacheTTL),
		InlineLimit:       intEnv("GATEWAY_INLINE_LIMIT", 0),
		EnableGCS:         boolEnv("GATEWAY_ENABLE_GCS", false),
		Minio: MinioConfig{
			Endpoint:  envutil.GetEnv("MINIO_ENDPOINT", ""),
			AccessKey: envutil.GetEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: envutil.GetEnv("MINIO_SECRET_KEY", ""),
			Bucket:    stringEnv("MINIO_BUCKET", DefaultMinioBucket),
			UseSSL:    boolEnv("MINIO_USE_SSL", false),
		},
		LogLevel: stringEnv("LOG_LEVEL", DefaultLogLevel),
	}
}

// stringEnv は空文字が設定されている場合も既定値を返します。
func stringEnv(key, def string) string {
	if v := strings.TrimSpace(envutil.GetEnv(key, def)); v != "" {
		return v
	}
	return def
}

// durationEnv は "10s" や "5m" 形式の環境変数を読み込みます。不正な値は既定値に戻すのだ。
func durationEnv(key string, def time.Duration) time.Duration {
	raw := envutil.GetEnv(key, "")
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		slog.Warn("環境変数の期間指定が不正なため既定値を使います", "key", key, "value", raw, "default", def)
		return def
	}
	return d
}

func boolEnv(key string, def bool) bool {
	raw := envutil.GetEnv(key, "")
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		slog.Warn("環境変数の真偽値が不正なため既定値を使います", "key", key, "value", raw, "default", def)
		return def
	}
	return b
}

// intEnv は負の値や数値でない値を既定値に戻すのだ。
func intEnv(key string, def int) int {
	raw := envutil.GetEnv(key, "")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		slog.Warn("環境変数の整数値が不正なため既定値を使います", "key", key, "value", raw, "default", def)
		return def
	}
	return n
}
