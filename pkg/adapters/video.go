package adapters

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/shouni/go-http-kit/pkg/httpkit"
	"google.golang.org/genai"

	"github.com/shouni/gemini-creative-gateway/pkg/domain"
	"github.com/shouni/gemini-creative-gateway/pkg/generator"
)

// StartVideo は Veo の動画生成オペレーションを開始します。
// 参照画像は取得できなかった場合、テキストのみで開始します。
func (b *GeminiBackend) StartVideo(ctx context.Context, req generator.VideoStartRequest) (*domain.VideoOperation, error) {
	config := &genai.GenerateVideosConfig{
		NumberOfVideos: 1,
		AspectRatio:    req.AspectRatio,
	}

	var image *genai.Image
	if req.Image != nil && !req.Image.IsEmpty() {
		if part := b.resolver.Part(ctx, *req.Image); part != nil && part.InlineData != nil {
			image = &genai.Image{
				ImageBytes: part.InlineData.Data,
				MIMEType:   part.InlineData.MIMEType,
			}
		}
	}

	op, err := b.media.GenerateVideos(ctx, req.Model, req.Prompt, image, config)
	if err != nil {
		return nil, fmt.Errorf("video generation could not be started: %w", err)
	}
	if op == nil {
		return nil, fmt.Errorf("video generation returned no operation")
	}
	return toVideoOperation(op), nil
}

// PollVideo はオペレーションの最新状態を取得します。
func (b *GeminiBackend) PollVideo(ctx context.Context, op *domain.VideoOperation) (*domain.VideoOperation, error) {
	if op == nil || op.Name == "" {
		return nil, fmt.Errorf("video operation has no name")
	}
	latest, err := b.operations.GetVideosOperation(ctx, &genai.GenerateVideosOperation{Name: op.Name}, nil)
	if err != nil {
		return nil, fmt.Errorf("video operation poll failed: %w", err)
	}
	if latest == nil {
		return nil, fmt.Errorf("video operation poll returned nothing")
	}
	return toVideoOperation(latest), nil
}

// maxVideoBytes は 1 本の動画として受け取る最大サイズです。
const maxVideoBytes = 512 * 1024 * 1024

// DownloadVideo は完了した動画の URI から本体を取得します。
// 2xx 以外の応答は *generator.HTTPStatusError として返します。
func (b *GeminiBackend) DownloadVideo(ctx context.Context, uri string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build download request: %w", err)
	}
	req.Header.Set("User-Agent", httpkit.UserAgent)
	if b.apiKey != "" {
		req.Header.Set("x-goog-api-key", b.apiKey)
	}

	// 再試行は generator 側の FSM が判断するので、ここでは 1 回だけ送る
	resp, err := b.downloader.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &generator.HTTPStatusError{StatusCode: resp.StatusCode}
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxVideoBytes))
}

// toVideoOperation は SDK のオペレーションをドメインのハンドルに変換します。
func toVideoOperation(op *genai.GenerateVideosOperation) *domain.VideoOperation {
	out := &domain.VideoOperation{
		Name: op.Name,
		Done: op.Done,
	}
	if len(op.Error) > 0 {
		if msg, ok := op.Error["message"]; ok {
			out.ErrorMessage = fmt.Sprint(msg)
		} else {
			out.ErrorMessage = fmt.Sprint(op.Error)
		}
	}

	if op.Response == nil {
		return out
	}
	out.FilteredReasons = op.Response.RAIMediaFilteredReasons
	if len(op.Response.GeneratedVideos) > 0 {
		if v := op.Response.GeneratedVideos[0]; v != nil && v.Video != nil {
			out.VideoURI = v.Video.URI
			out.VideoData = v.Video.VideoBytes
			out.MIMEType = v.Video.MIMEType
		}
	}
	return out
}
