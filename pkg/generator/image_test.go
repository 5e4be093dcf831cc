package generator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shouni/gemini-creative-gateway/pkg/apierror"
	"github.com/shouni/gemini-creative-gateway/pkg/domain"
	"github.com/shouni/gemini-creative-gateway/pkg/utils"
)

func TestGateway_GenerateImages_Sequential(t *testing.T) {
	calls := 0
	b := &mockBackend{imageFunc: func(req ImageGenRequest) (*domain.Media, error) {
		calls++
		return &domain.Media{Data: []byte(fmt.Sprintf("img-%d", calls)), MIMEType: "image/png"}, nil
	}}
	g, logs, notifier, _ := newTestGateway(b)

	var partialLens []int
	var lastPartial []domain.Media
	seed := int64(100)

	images, err := g.GenerateImages(context.Background(), ImageRequest{
		Prompt:       "a red sneaker",
		AspectRatio:  "9:16",
		Count:        3,
		Seed:         &seed,
		PersonPolicy: domain.PersonPolicyAllowAdult,
		OnProgress: func(partial []domain.Media) {
			partialLens = append(partialLens, len(partial))
			lastPartial = partial
		},
	})

	require.NoError(t, err)
	require.Len(t, images, 3)
	assert.Equal(t, []int{1, 2, 3}, partialLens, "partial results of length 1 and 2 are observable before completion")
	assert.Equal(t, "img-1", string(images[0].Data))
	assert.Equal(t, "img-2", string(images[1].Data))
	assert.Equal(t, "img-3", string(images[2].Data))
	assert.Equal(t, images, lastPartial)

	require.Len(t, b.imageReqs, 3)
	for i, req := range b.imageReqs {
		assert.Equal(t, "9:16", req.AspectRatio, "aspect ratio is passed verbatim")
		assert.Equal(t, "a red sneaker", req.Prompt)
		assert.Equal(t, domain.PersonPolicyAllowAdult, req.PersonPolicy)
		require.NotNil(t, req.Seed)
		assert.Equal(t, int64(100+i), *req.Seed)
	}

	entries := logs.snapshot()
	require.Len(t, entries, 1)
	assert.Equal(t, "Generated 3 image(s)", entries[0].OutputSummary)
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "img-1", string(notifier.sent[0].Media.Data))
}

func TestGateway_GenerateImages_Options(t *testing.T) {
	ctx := context.Background()

	t.Run("Countが0以下なら1枚", func(t *testing.T) {
		b := &mockBackend{}
		g, _, _, _ := newTestGateway(b)

		images, err := g.GenerateImages(ctx, ImageRequest{Prompt: "x", Count: 0})
		require.NoError(t, err)
		assert.Len(t, images, 1)
		assert.Nil(t, b.imageReqs[0].Seed)
	})

	t.Run("HDR指定でプロンプトに表現を足すのだ", func(t *testing.T) {
		b := &mockBackend{}
		g, logs, _, _ := newTestGateway(b, WithHDRSuffix("HDR look"))

		_, err := g.GenerateImages(ctx, ImageRequest{Prompt: "sunset.", Count: 1, HDR: true})
		require.NoError(t, err)
		assert.Equal(t, "sunset. HDR look", b.imageReqs[0].Prompt)
		assert.Equal(t, "sunset.", logs.snapshot()[0].PromptSummary, "log keeps the user prompt")
	})

	t.Run("途中で失敗したら全体が失敗し、ログは1件", func(t *testing.T) {
		calls := 0
		b := &mockBackend{imageFunc: func(ImageGenRequest) (*domain.Media, error) {
			calls++
			if calls == 2 {
				return nil, errors.New("The image violates our safety policies")
			}
			return &domain.Media{Data: []byte("ok"), MIMEType: "image/png"}, nil
		}}
		g, logs, notifier, _ := newTestGateway(b)

		var seen []int
		images, err := g.GenerateImages(ctx, ImageRequest{Prompt: "x", Count: 3, OnProgress: func(p []domain.Media) { seen = append(seen, len(p)) }})
		require.Error(t, err)
		assert.Nil(t, images)
		assert.Equal(t, []int{1}, seen)
		assert.Equal(t, 2, calls, "stops after the failing image")
		assert.True(t, strings.Contains(err.Error(), "safety policies"))
		assert.Len(t, logs.snapshot(), 1)
		assert.Empty(t, notifier.sent)
	})

	t.Run("空の画像はエラー", func(t *testing.T) {
		b := &mockBackend{imageFunc: func(ImageGenRequest) (*domain.Media, error) {
			return &domain.Media{}, nil
		}}
		g, _, _, _ := newTestGateway(b)
		_, err := g.GenerateImages(ctx, ImageRequest{Prompt: "x", Count: 1})
		assert.Error(t, err)
	})
}

func TestGateway_GenerateImages_SeedOutOfRange(t *testing.T) {
	calls := 0
	b := &mockBackend{imageFunc: func(req ImageGenRequest) (*domain.Media, error) {
		calls++
		return &domain.Media{Data: []byte("img"), MIMEType: "image/png"}, nil
	}}
	g, logs, notifier, _ := newTestGateway(b)

	for _, seed := range []int64{math.MaxInt32 + 1, math.MinInt32 - 1, math.MaxInt32 - 1} {
		s := seed
		_, err := g.GenerateImages(context.Background(), ImageRequest{Prompt: "mug", Count: 3, Seed: &s})
		require.Error(t, err, "seed %d", seed)
		assert.Equal(t, apierror.KindBadRequest, apierror.KindOf(err))
		assert.ErrorIs(t, err, utils.ErrSeedOutOfRange)
	}

	assert.Zero(t, calls, "範囲外のシードはバックエンドに渡さないのだ")
	assert.Empty(t, notifier.sent)
	entries := logs.snapshot()
	require.Len(t, entries, 3)
	for _, e := range entries {
		assert.Equal(t, domain.LogStatusError, e.Status)
	}
}

func TestTruncateAndPreview(t *testing.T) {
	long := strings.Repeat("あ", 250)
	got := truncate(long, summaryLimit)
	assert.Equal(t, summaryLimit+3, len([]rune(got)))
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Equal(t, "short", truncate("  short ", summaryLimit))

	assert.Empty(t, mediaPreview(nil))
	assert.Empty(t, mediaPreview(&domain.Media{Data: []byte("x"), MIMEType: "video/mp4"}))
	assert.Empty(t, mediaPreview(&domain.Media{Data: make([]byte, previewMaxBytes+1), MIMEType: "image/png"}))
	assert.Equal(t, "data:image/png;base64,eA==", mediaPreview(&domain.Media{Data: []byte("x"), MIMEType: "image/png"}))
}
