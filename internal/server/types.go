package server

import (
	"github.com/shouni/gemini-creative-gateway/pkg/domain"
)

// MediaJSON はバイナリを base64 で表現したメディアです。
type MediaJSON struct {
	Data     []byte `json:"data"`
	MIMEType string `json:"mimeType"`
}

func toMediaJSON(m *domain.Media) *MediaJSON {
	if m == nil {
		return nil
	}
	return &MediaJSON{Data: m.Data, MIMEType: m.MIMEType}
}

// AttachmentJSON は添付です。data か url のどちらかを指定します。
type AttachmentJSON struct {
	Data     []byte `json:"data,omitempty"`
	MIMEType string `json:"mimeType,omitempty"`
	URL      string `json:"url,omitempty"`
}

func toAttachments(in []AttachmentJSON) []domain.Attachment {
	out := make([]domain.Attachment, 0, len(in))
	for _, a := range in {
		out = append(out, domain.Attachment{Data: a.Data, MIMEType: a.MIMEType, URL: a.URL})
	}
	return out
}

type CredentialRequest struct {
	APIKey string `json:"apiKey"`
}

type VerifyResponse struct {
	Valid bool `json:"valid"`
}

type TextRequest struct {
	Prompt       string `json:"prompt"`
	SystemPrompt string `json:"systemPrompt,omitempty"`
}

type MultimodalRequest struct {
	Prompt      string           `json:"prompt"`
	Attachments []AttachmentJSON `json:"attachments"`
}

type TextResponse struct {
	Text string `json:"text"`
}

type ImagesRequest struct {
	Prompt         string `json:"prompt"`
	AspectRatio    string `json:"aspectRatio,omitempty"`
	Count          int    `json:"count,omitempty"`
	NegativePrompt string `json:"negativePrompt,omitempty"`
	Seed           *int64 `json:"seed,omitempty"`
	HDR            bool   `json:"hdr,omitempty"`
	PersonPolicy   string `json:"personPolicy,omitempty"`
}

type ImagesResponse struct {
	Images []MediaJSON `json:"images"`
}

type ComposeResponse struct {
	Text  string     `json:"text"`
	Image *MediaJSON `json:"image,omitempty"`
}

type VideoRequest struct {
	Prompt      string          `json:"prompt"`
	Model       string          `json:"model,omitempty"`
	AspectRatio string          `json:"aspectRatio,omitempty"`
	Image       *AttachmentJSON `json:"image,omitempty"`
}

type VideoResponse struct {
	Video *MediaJSON `json:"video"`
}

type VoiceRequest struct {
	Script  string   `json:"script"`
	ActorID string   `json:"actorId,omitempty"`
	Speed   *float64 `json:"speed,omitempty"`
	Pitch   *float64 `json:"pitch,omitempty"`
	Volume  *float64 `json:"volume,omitempty"`
}

type VoiceResponse struct {
	Audio *MediaJSON `json:"audio"`
}

type PromptResponse struct {
	Kind   string `json:"kind"`
	Prompt string `json:"prompt"`
}

type LogsResponse struct {
	Logs []domain.LogEntry `json:"logs"`
}

type ClearResponse struct {
	Deleted int `json:"deleted"`
}

type HistoryRequest struct {
	Type     string     `json:"type"`
	Prompt   string     `json:"prompt"`
	Result   string     `json:"result,omitempty"`
	MediaURL string     `json:"mediaUrl,omitempty"`
	Media    *MediaJSON `json:"media,omitempty"`
}

type HistoryResponse struct {
	Items []domain.HistoryItem `json:"items"`
}

type WebhookRequest struct {
	URL string `json:"url"`
}

type WebhookResponse struct {
	URL string `json:"url"`
}
