package adapters

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"google.golang.org/genai"

	"github.com/shouni/gemini-creative-gateway/pkg/domain"
	"github.com/shouni/gemini-creative-gateway/pkg/generator"
)

const (
	mimeTypeWAV       = "audio/wav"
	defaultSampleRate = 24000
)

// SynthesizeSpeech は TTS モデルで台本を読み上げた音声を返します。
// 生の PCM が返された場合は再生できるよう WAV に包みます。
func (b *GeminiBackend) SynthesizeSpeech(ctx context.Context, req generator.SpeechRequest) (*domain.Media, error) {
	text := req.Script
	if req.Direction != "" {
		text = req.Direction + "\n" + req.Script
	}

	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{string(genai.ModalityAudio)},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: req.VoiceName},
			},
		},
	}

	resp, err := b.media.GenerateContent(ctx, req.Model, genai.Text(text), config)
	if err != nil {
		return nil, fmt.Errorf("speech synthesis failed: %w", err)
	}

	content, err := collectContent(resp)
	if err != nil {
		return nil, err
	}
	if len(content.Audio) == 0 {
		return nil, fmt.Errorf("speech synthesis returned no audio")
	}

	audio := content.Audio[0]
	if isRawPCM(audio.MIMEType) {
		return &domain.Media{
			Data:     wrapPCM(audio.Data, sampleRate(audio.MIMEType)),
			MIMEType: mimeTypeWAV,
		}, nil
	}
	return &audio, nil
}

func isRawPCM(mimeType string) bool {
	m := strings.ToLower(mimeType)
	return strings.HasPrefix(m, "audio/l16") || strings.HasPrefix(m, "audio/pcm")
}

// sampleRate は "audio/L16;codec=pcm;rate=24000" 形式からサンプルレートを取り出します。
func sampleRate(mimeType string) int {
	for _, param := range strings.Split(mimeType, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(param), "=")
		if !ok || !strings.EqualFold(k, "rate") {
			continue
		}
		if rate, err := strconv.Atoi(v); err == nil && rate > 0 {
			return rate
		}
	}
	return defaultSampleRate
}

// wrapPCM は 16bit モノラルの PCM に WAV ヘッダーを付けます。
func wrapPCM(pcm []byte, rate int) []byte {
	const (
		channels      = 1
		bitsPerSample = 16
	)
	blockAlign := channels * bitsPerSample / 8
	byteRate := rate * blockAlign

	buf := new(bytes.Buffer)
	buf.Grow(44 + len(pcm))
	buf.WriteString("RIFF")
	_ = binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(buf, binary.LittleEndian, uint16(1))
	_ = binary.Write(buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(buf, binary.LittleEndian, uint32(rate))
	_ = binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	_ = binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))
	buf.WriteString("data")
	_ = binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}
