package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/shouni/gemini-creative-gateway/pkg/apierror"
	"github.com/shouni/gemini-creative-gateway/pkg/domain"
)

var tracer = otel.Tracer("gemini-creative-gateway/generator")

// VideoState は動画生成オペレーションの状態です。
type VideoState string

const (
	VideoSubmitted      VideoState = "Submitted"
	VideoPolling        VideoState = "Polling"
	VideoDone           VideoState = "Done"
	VideoTimedOut       VideoState = "TimedOut"
	VideoFailed         VideoState = "Failed"
	VideoDownloaded     VideoState = "Downloaded"
	VideoDownloadFailed VideoState = "DownloadFailed"
)

// 動画生成のユーザー向けメッセージ
const (
	MessageVideoTimeout = "Video generation took too long and was stopped. The service may be busy right now; please try again later or simplify your prompt."
	MessageVideoEmpty   = "Video generation finished, but no video was returned. This usually happens if the prompt or reference image was blocked by a safety filter, even though no specific error was reported. Please try modifying your prompt or using a different image."
	MessageVideoExpired = "Failed to download the generated video. The link may have expired or there was a network issue, please retry."
	messagePersonIntro  = "Video generation was blocked because the request involves person/face generation, which is restricted for this model. Try the following:"
)

// VideoPersonRemediation は人物・顔の生成がブロックされた場合に提示する対処法です。
var VideoPersonRemediation = []string{
	"Use a reference image that does not show a clear human face.",
	"Modify your prompt to avoid describing specific people or faces.",
	"Try generating from a text-only prompt without a reference image.",
}

var personBlockHints = []string{
	"person/face generation",
	"person generation",
	"face generation",
}

// GenerateVideo は動画生成オペレーションを開始し、完了するか制限時間を過ぎるまでポーリングします。
// 完了後は動画をダウンロードしてバイト列を返します。
func (g *Gateway) GenerateVideo(ctx context.Context, req VideoRequest) (*domain.Media, error) {
	model := req.Model
	if model == "" {
		model = g.models.Video
	}

	var video *domain.Media
	err := g.run(ctx, domain.ModalityVideo, model, req.Prompt, func(ctx context.Context, b Backend) (*outcome, error) {
		if err := g.throttle(ctx); err != nil {
			return nil, err
		}
		run := newVideoRun(b, g.clock, g.video, g.recorder)
		media, err := run.execute(ctx, VideoStartRequest{
			Model:       model,
			Prompt:      req.Prompt,
			AspectRatio: req.AspectRatio,
			Image:       req.Image,
		})
		if err != nil {
			return nil, err
		}
		video = media
		return &outcome{
			summary: mediaSummary("video", media),
			notification: &domain.Notification{
				Type:   domain.PayloadVideo,
				Prompt: req.Prompt,
				Media:  media,
			},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return video, nil
}

// videoRun は 1 回の動画生成の状態機械です。
type videoRun struct {
	backend     Backend
	clock       Clock
	policy      VideoPolicy
	recorder    Recorder
	state       VideoState
	transitions []VideoState
	polls       int
}

func newVideoRun(b Backend, clock Clock, policy VideoPolicy, recorder Recorder) *videoRun {
	return &videoRun{
		backend:  b,
		clock:    clock,
		policy:   policy,
		recorder: recorder,
	}
}

func (r *videoRun) transition(ctx context.Context, s VideoState) {
	slog.DebugContext(ctx, "動画生成の状態が遷移しました", "from", r.state, "to", s, "polls", r.polls)
	r.state = s
	r.transitions = append(r.transitions, s)
}

func (r *videoRun) execute(ctx context.Context, req VideoStartRequest) (media *domain.Media, err error) {
	ctx, span := tracer.Start(ctx, "generator.video")
	defer func() {
		span.SetAttributes(
			attribute.String("video.model", req.Model),
			attribute.Int("video.polls", r.polls),
			attribute.String("video.state", string(r.state)),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	r.transition(ctx, VideoSubmitted)
	op, err := r.backend.StartVideo(ctx, req)
	if err != nil {
		r.transition(ctx, VideoFailed)
		return nil, err
	}

	op, err = r.poll(ctx, op)
	if err != nil {
		return nil, err
	}

	if op.ErrorMessage != "" {
		r.transition(ctx, VideoFailed)
		return nil, operationError(op.ErrorMessage)
	}

	r.transition(ctx, VideoDone)
	if len(op.VideoData) > 0 {
		r.transition(ctx, VideoDownloaded)
		return &domain.Media{Data: op.VideoData, MIMEType: videoMIME(op.MIMEType)}, nil
	}
	if op.VideoURI == "" {
		r.transition(ctx, VideoFailed)
		return nil, emptyResultError(op)
	}

	data, err := r.backend.DownloadVideo(ctx, op.VideoURI)
	if err != nil {
		r.transition(ctx, VideoDownloadFailed)
		return nil, downloadError(err)
	}
	r.transition(ctx, VideoDownloaded)
	return &domain.Media{Data: data, MIMEType: videoMIME(op.MIMEType)}, nil
}

// poll は done になるまで一定間隔でオペレーションを再取得します。
// 経過時間が制限時間に達した時点で打ち切り、それ以降はポーリングしません。
func (r *videoRun) poll(ctx context.Context, op *domain.VideoOperation) (*domain.VideoOperation, error) {
	started := r.clock.Now()
	r.transition(ctx, VideoPolling)

	for op == nil || !op.Done {
		if op == nil {
			r.transition(ctx, VideoFailed)
			return nil, fmt.Errorf("video operation handle was empty")
		}
		if r.clock.Now().Sub(started) >= r.policy.Timeout {
			r.transition(ctx, VideoTimedOut)
			return nil, apierror.New(apierror.KindTimeout, MessageVideoTimeout)
		}
		if err := r.clock.Sleep(ctx, r.policy.PollInterval); err != nil {
			r.transition(ctx, VideoFailed)
			return nil, err
		}

		next, err := r.backend.PollVideo(ctx, op)
		r.polls++
		if r.recorder != nil {
			r.recorder.ObserveVideoPoll()
		}
		if err != nil {
			r.transition(ctx, VideoFailed)
			return nil, err
		}
		op = next
	}
	return op, nil
}

// operationError はオペレーションが報告したエラーをユーザー向けのエラーに変換します。
func operationError(raw string) *apierror.Error {
	lower := strings.ToLower(raw)
	for _, hint := range personBlockHints {
		if strings.Contains(lower, hint) {
			var sb strings.Builder
			sb.WriteString(messagePersonIntro)
			for _, s := range VideoPersonRemediation {
				sb.WriteString("\n• ")
				sb.WriteString(s)
			}
			return apierror.Wrap(apierror.KindSafetyBlocked, sb.String(), errors.New(raw))
		}
	}
	return apierror.Wrap(apierror.KindUnknown, "Video generation failed on the backend: "+raw, errors.New(raw))
}

func emptyResultError(op *domain.VideoOperation) *apierror.Error {
	msg := MessageVideoEmpty
	if len(op.FilteredReasons) > 0 {
		msg += " (Filter details: " + strings.Join(op.FilteredReasons, "; ") + ")"
	}
	return apierror.New(apierror.KindEmptyResult, msg)
}

func downloadError(err error) *apierror.Error {
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		msg := fmt.Sprintf("Failed to download the generated video (HTTP %d). Please try generating it again.", statusErr.StatusCode)
		return apierror.Wrap(apierror.KindDownloadFailed, msg, err)
	}
	return apierror.Wrap(apierror.KindDownloadFailed, MessageVideoExpired, err)
}

func videoMIME(m string) string {
	if m == "" {
		return "video/mp4"
	}
	return m
}
