package generator

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/shouni/gemini-creative-gateway/pkg/apierror"
	"github.com/shouni/gemini-creative-gateway/pkg/domain"
	"github.com/shouni/gemini-creative-gateway/pkg/utils"
)

// GenerateImages はプロンプトから Count 枚の画像を 1 枚ずつ順番に生成します。
// 並列にはせず、OnProgress で途中経過を呼び出し順に受け取れるようにしています。
// アスペクト比はそのままバックエンドへ渡します。
func (g *Gateway) GenerateImages(ctx context.Context, req ImageRequest) ([]domain.Media, error) {
	model := g.models.Image
	count := max(req.Count, 1)

	prompt := req.Prompt
	if req.HDR && g.hdrSuffix != "" {
		prompt = strings.TrimRight(prompt, " .") + ". " + g.hdrSuffix
	}

	var images []domain.Media
	err := g.run(ctx, domain.ModalityImage, model, req.Prompt, func(ctx context.Context, b Backend) (*outcome, error) {
		if err := utils.ValidateSeed(req.Seed, count); err != nil {
			return nil, apierror.Wrap(apierror.KindBadRequest, err.Error(), err)
		}
		for i := 0; i < count; i++ {
			if err := g.throttle(ctx); err != nil {
				return nil, err
			}
			img, err := b.GenerateImage(ctx, ImageGenRequest{
				Model:          model,
				Prompt:         prompt,
				AspectRatio:    req.AspectRatio,
				NegativePrompt: req.NegativePrompt,
				Seed:           utils.SeedAt(req.Seed, i),
				PersonPolicy:   req.PersonPolicy,
			})
			if err != nil {
				slog.WarnContext(ctx, "画像の生成に失敗しました", "index", i+1, "count", count, "error", err)
				return nil, err
			}
			if img == nil || len(img.Data) == 0 {
				return nil, fmt.Errorf("image %d of %d was empty", i+1, count)
			}

			images = append(images, *img)
			if req.OnProgress != nil {
				req.OnProgress(slices.Clone(images))
			}
		}

		first := images[0]
		return &outcome{
			summary: fmt.Sprintf("Generated %d image(s)", len(images)),
			preview: mediaPreview(&first),
			notification: &domain.Notification{
				Type:   domain.PayloadImage,
				Prompt: req.Prompt,
				Media:  &first,
			},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return images, nil
}
