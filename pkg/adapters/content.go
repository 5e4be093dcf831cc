package adapters

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/shouni/gemini-creative-gateway/pkg/domain"
	"github.com/shouni/gemini-creative-gateway/pkg/generator"
)

// safetyFinishReasons は安全フィルターによる打ち切りを表す FinishReason です。
var safetyFinishReasons = map[genai.FinishReason]bool{
	genai.FinishReasonSafety:            true,
	genai.FinishReasonProhibitedContent: true,
	genai.FinishReasonBlocklist:         true,
	genai.FinishReasonSPII:              true,
}

// GenerateContent はプロンプトと添付を送信し、すべての候補とパートを走査して結果をまとめます。
// WantImage が true の場合はテキストと画像の両方を返すよう指定します。
// 呼び出しは 1 回だけで、失敗してもここでは再試行しません。
func (b *GeminiBackend) GenerateContent(ctx context.Context, req generator.ContentRequest) (*generator.ContentResponse, error) {
	parts := []*genai.Part{{Text: req.Prompt}}
	parts = append(parts, b.resolver.Parts(ctx, req.Attachments)...)

	parts, cleanup := b.offloadLargeParts(ctx, parts)
	defer cleanup()

	config := &genai.GenerateContentConfig{}
	if req.SystemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if req.WantImage {
		config.ResponseModalities = []string{string(genai.ModalityText), string(genai.ModalityImage)}
	}

	resp, err := b.media.GenerateContent(ctx, req.Model, []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, config)
	if err != nil {
		if req.WantImage {
			return nil, fmt.Errorf("image composition failed: %w", err)
		}
		return nil, fmt.Errorf("content generation failed: %w", err)
	}
	return collectContent(resp)
}

// offloadLargeParts は上限を超えるインライン添付を File API に預け、URI 参照に置き換えます。
// アップロードに失敗した添付はインラインのまま送ります。
// 戻り値の cleanup は預けたファイルを削除するので、生成後に必ず呼ぶのだ。
func (b *GeminiBackend) offloadLargeParts(ctx context.Context, parts []*genai.Part) ([]*genai.Part, func()) {
	if b.files == nil {
		return parts, func() {}
	}

	var uploaded []string
	out := make([]*genai.Part, len(parts))
	for i, p := range parts {
		out[i] = p
		if p == nil || p.InlineData == nil || len(p.InlineData.Data) <= b.inlineLimit {
			continue
		}
		uri, name, err := b.files.UploadFile(ctx, p.InlineData.Data, p.InlineData.MIMEType, fmt.Sprintf("attachment-%d", i))
		if err != nil {
			slog.WarnContext(ctx, "添付のアップロードに失敗しました。インラインで送信します", "index", i, "bytes", len(p.InlineData.Data), "error", err)
			continue
		}
		out[i] = genai.NewPartFromURI(uri, p.InlineData.MIMEType)
		uploaded = append(uploaded, name)
	}

	cleanup := func() {
		detached := context.WithoutCancel(ctx)
		for _, name := range uploaded {
			if err := b.files.DeleteFile(detached, name); err != nil {
				slog.WarnContext(detached, "アップロードした添付の削除に失敗しました", "name", name, "error", err)
			}
		}
	}
	return out, cleanup
}

// collectContent はレスポンス全体からテキストと画像を集めます。
// 何も得られず、安全フィルターでブロックされていた場合はエラーを返すのだ。
func collectContent(resp *genai.GenerateContentResponse) (*generator.ContentResponse, error) {
	if resp == nil {
		return nil, fmt.Errorf("content generation returned no response")
	}

	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" {
		return nil, fmt.Errorf("prompt was blocked by safety settings (%s)", fb.BlockReason)
	}

	out := &generator.ContentResponse{}
	if resp.UsageMetadata != nil {
		out.TokenCount = int(resp.UsageMetadata.TotalTokenCount)
	}

	var text strings.Builder
	var finish genai.FinishReason
	for _, candidate := range resp.Candidates {
		if candidate == nil {
			continue
		}
		if finish == "" {
			finish = candidate.FinishReason
		}
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || part.Thought {
				continue
			}
			if part.Text != "" {
				text.WriteString(part.Text)
			}
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				m := domain.Media{
					Data:     part.InlineData.Data,
					MIMEType: part.InlineData.MIMEType,
				}
				if strings.HasPrefix(strings.ToLower(m.MIMEType), "audio/") {
					out.Audio = append(out.Audio, m)
				} else {
					out.Images = append(out.Images, m)
				}
			}
		}
	}
	out.Text = text.String()

	if out.Text == "" && len(out.Images) == 0 && len(out.Audio) == 0 {
		if safetyFinishReasons[finish] {
			return nil, fmt.Errorf("response was blocked by safety settings (FinishReason: %s)", finish)
		}
		if finish != "" && finish != genai.FinishReasonUnspecified && finish != genai.FinishReasonStop {
			return nil, fmt.Errorf("content generation ended abnormally (FinishReason: %s)", finish)
		}
	}
	return out, nil
}
