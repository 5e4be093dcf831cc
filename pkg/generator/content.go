package generator

import (
	"context"

	"github.com/shouni/gemini-creative-gateway/pkg/domain"
)

type textOptions struct {
	systemPrompt string
	model        string
}

// TextOption は generateText の任意設定です。
type TextOption func(*textOptions)

// WithSystemPrompt はシステムプロンプトを指定します。サポートエージェントのチャットで使います。
func WithSystemPrompt(p string) TextOption {
	return func(o *textOptions) { o.systemPrompt = p }
}

// WithTextModel は呼び出し単位でモデルを上書きします。
func WithTextModel(model string) TextOption {
	return func(o *textOptions) { o.model = model }
}

// GenerateText はテキストプロンプトから 1 回の同期呼び出しでテキストを生成します。
func (g *Gateway) GenerateText(ctx context.Context, prompt string, opts ...TextOption) (string, error) {
	o := textOptions{model: g.models.Text}
	for _, opt := range opts {
		opt(&o)
	}

	var text string
	err := g.run(ctx, domain.ModalityText, o.model, prompt, func(ctx context.Context, b Backend) (*outcome, error) {
		if err := g.throttle(ctx); err != nil {
			return nil, err
		}
		resp, err := b.GenerateContent(ctx, ContentRequest{
			Model:        o.model,
			Prompt:       prompt,
			SystemPrompt: o.systemPrompt,
		})
		if err != nil {
			return nil, err
		}
		text = resp.Text
		return textOutcome(prompt, resp), nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

// GenerateMultimodalText は添付画像付きでテキストを生成します。
// 添付が空でもそのままバックエンドを呼び出します。
func (g *Gateway) GenerateMultimodalText(ctx context.Context, prompt string, attachments []domain.Attachment) (string, error) {
	model := g.models.Multimodal

	var text string
	err := g.run(ctx, domain.ModalityMultimodal, model, prompt, func(ctx context.Context, b Backend) (*outcome, error) {
		if err := g.throttle(ctx); err != nil {
			return nil, err
		}
		resp, err := b.GenerateContent(ctx, ContentRequest{
			Model:       model,
			Prompt:      prompt,
			Attachments: attachments,
		})
		if err != nil {
			return nil, err
		}
		text = resp.Text
		return textOutcome(prompt, resp), nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

// ComposeImage は添付画像とプロンプトから画像の編集・合成を行います。
// 返されたすべてのパートを走査し、テキストと画像のうち存在するものだけを埋めます。
// 画像が含まれないことはエラーとして扱いません。
func (g *Gateway) ComposeImage(ctx context.Context, prompt string, attachments []domain.Attachment) (*domain.ComposeResult, error) {
	model := g.models.Compose

	result := &domain.ComposeResult{}
	err := g.run(ctx, domain.ModalityImageEdit, model, prompt, func(ctx context.Context, b Backend) (*outcome, error) {
		if err := g.throttle(ctx); err != nil {
			return nil, err
		}
		resp, err := b.GenerateContent(ctx, ContentRequest{
			Model:       model,
			Prompt:      prompt,
			Attachments: attachments,
			WantImage:   true,
		})
		if err != nil {
			return nil, err
		}

		result.Text = resp.Text
		if len(resp.Images) > 0 {
			img := resp.Images[0]
			result.Image = &img
		}

		out := &outcome{tokens: resp.TokenCount}
		switch {
		case result.Image != nil:
			out.summary = mediaSummary("image", result.Image)
			out.preview = mediaPreview(result.Image)
			out.notification = &domain.Notification{Type: domain.PayloadImage, Prompt: prompt, Media: result.Image}
		case result.Text != "":
			out.summary = "Text only: " + result.Text
			out.notification = &domain.Notification{Type: domain.PayloadText, Prompt: prompt, Text: result.Text}
		default:
			out.summary = "No image or text returned"
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func textOutcome(prompt string, resp *ContentResponse) *outcome {
	return &outcome{
		summary: resp.Text,
		tokens:  resp.TokenCount,
		notification: &domain.Notification{
			Type:   domain.PayloadText,
			Prompt: prompt,
			Text:   resp.Text,
		},
	}
}
