package domain

import "time"

// PayloadType は Webhook ペイロードの種別です。
type PayloadType string

const (
	PayloadText  PayloadType = "text"
	PayloadImage PayloadType = "image"
	PayloadVideo PayloadType = "video"
	PayloadAudio PayloadType = "audio"
	PayloadTest  PayloadType = "test"
)

// WebhookPayload は外部エンドポイントへ POST する JSON 本体です。
// バイナリの結果は base64 文字列として Result に入ります。
type WebhookPayload struct {
	Type      PayloadType `json:"type"`
	Prompt    string      `json:"prompt"`
	Result    string      `json:"result"`
	MimeType  string      `json:"mimeType,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	UserID    string      `json:"userId"`
}

// PayloadTypeFor はモダリティから Webhook の種別を決めます。
func PayloadTypeFor(m Modality) PayloadType {
	switch m {
	case ModalityImage, ModalityImageEdit:
		return PayloadImage
	case ModalityVideo:
		return PayloadVideo
	case ModalityVoice:
		return PayloadAudio
	default:
		return PayloadText
	}
}
