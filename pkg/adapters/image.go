package adapters

import (
	"context"
	"fmt"
	"net/http"

	"google.golang.org/genai"

	"github.com/shouni/gemini-creative-gateway/pkg/domain"
	"github.com/shouni/gemini-creative-gateway/pkg/generator"
	"github.com/shouni/gemini-creative-gateway/pkg/utils"
)

// GenerateImage は Imagen で画像を 1 枚生成します。
func (b *GeminiBackend) GenerateImage(ctx context.Context, req generator.ImageGenRequest) (*domain.Media, error) {
	seed, err := utils.SeedToInt32Ptr(req.Seed)
	if err != nil {
		return nil, fmt.Errorf("invalid argument: %w", err)
	}
	config := &genai.GenerateImagesConfig{
		NumberOfImages:   1,
		AspectRatio:      req.AspectRatio,
		NegativePrompt:   req.NegativePrompt,
		Seed:             seed,
		PersonGeneration: personGeneration(req.PersonPolicy),
		IncludeRAIReason: true,
	}

	resp, err := b.media.GenerateImages(ctx, req.Model, req.Prompt, config)
	if err != nil {
		return nil, fmt.Errorf("image generation failed: %w", err)
	}
	if resp == nil || len(resp.GeneratedImages) == 0 {
		return nil, fmt.Errorf("image generation returned no images")
	}

	generated := resp.GeneratedImages[0]
	if generated == nil || generated.Image == nil || len(generated.Image.ImageBytes) == 0 {
		if generated != nil && generated.RAIFilteredReason != "" {
			return nil, fmt.Errorf("image was filtered by safety policies: %s", generated.RAIFilteredReason)
		}
		return nil, fmt.Errorf("image generation returned an empty image")
	}

	mimeType := generated.Image.MIMEType
	if mimeType == "" {
		mimeType = http.DetectContentType(generated.Image.ImageBytes)
	}
	return &domain.Media{Data: generated.Image.ImageBytes, MIMEType: mimeType}, nil
}

// personGeneration は人物生成ポリシーを SDK の設定値に変換します。
func personGeneration(p domain.PersonPolicy) genai.PersonGeneration {
	switch p {
	case domain.PersonPolicyDontAllow:
		return genai.PersonGenerationDontAllow
	case domain.PersonPolicyAllowAdult:
		return genai.PersonGenerationAllowAdult
	case domain.PersonPolicyAllowAll:
		return genai.PersonGenerationAllowAll
	default:
		return ""
	}
}
