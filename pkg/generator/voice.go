package generator

import (
	"context"
	"fmt"
	"strings"

	"github.com/shouni/gemini-creative-gateway/pkg/domain"
)

// GenerateVoice は台本を指定の話者で読み上げた音声を生成します。
func (g *Gateway) GenerateVoice(ctx context.Context, req VoiceRequest) (*domain.Media, error) {
	model := g.models.Voice

	var audio *domain.Media
	err := g.run(ctx, domain.ModalityVoice, model, req.Script, func(ctx context.Context, b Backend) (*outcome, error) {
		if err := g.throttle(ctx); err != nil {
			return nil, err
		}
		media, err := b.SynthesizeSpeech(ctx, SpeechRequest{
			Model:     model,
			Script:    req.Script,
			VoiceName: domain.ResolveVoiceName(req.ActorID),
			Direction: deliveryDirection(req),
		})
		if err != nil {
			return nil, err
		}
		if media == nil || len(media.Data) == 0 {
			return nil, fmt.Errorf("speech synthesis returned no audio")
		}
		audio = media
		return &outcome{
			summary: mediaSummary("audio", media),
			notification: &domain.Notification{
				Type:   domain.PayloadAudio,
				Prompt: req.Script,
				Media:  media,
			},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return audio, nil
}

// deliveryDirection は速度・ピッチ・音量を読み上げ指示の文に変換します。
// 標準値のままなら空文字を返します。
func deliveryDirection(req VoiceRequest) string {
	var parts []string

	switch {
	case req.Speed > 0 && req.Speed < 0.9:
		parts = append(parts, "slowly")
	case req.Speed > 1.1:
		parts = append(parts, "quickly")
	}
	switch {
	case req.Pitch < -2:
		parts = append(parts, "in a lower pitch")
	case req.Pitch > 2:
		parts = append(parts, "in a higher pitch")
	}
	switch {
	case req.Volume > 0 && req.Volume < 0.8:
		parts = append(parts, "softly")
	case req.Volume > 1.2:
		parts = append(parts, "loudly")
	}

	if len(parts) == 0 {
		return ""
	}
	return "Read the following " + strings.Join(parts, ", ") + ":"
}
