package generator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shouni/gemini-creative-gateway/pkg/apierror"
	"github.com/shouni/gemini-creative-gateway/pkg/domain"
)

type gatewayOp struct {
	name     string
	modality domain.Modality
	call     func(ctx context.Context, g *Gateway) error
}

func allOps() []gatewayOp {
	return []gatewayOp{
		{"GenerateText", domain.ModalityText, func(ctx context.Context, g *Gateway) error {
			_, err := g.GenerateText(ctx, "write a slogan")
			return err
		}},
		{"GenerateMultimodalText", domain.ModalityMultimodal, func(ctx context.Context, g *Gateway) error {
			_, err := g.GenerateMultimodalText(ctx, "describe", []domain.Attachment{{Data: []byte("x"), MIMEType: "image/png"}})
			return err
		}},
		{"GenerateImages", domain.ModalityImage, func(ctx context.Context, g *Gateway) error {
			_, err := g.GenerateImages(ctx, ImageRequest{Prompt: "a cat", AspectRatio: "1:1", Count: 2})
			return err
		}},
		{"ComposeImage", domain.ModalityImageEdit, func(ctx context.Context, g *Gateway) error {
			_, err := g.ComposeImage(ctx, "add a hat", []domain.Attachment{{Data: []byte("cat"), MIMEType: "image/jpeg"}})
			return err
		}},
		{"GenerateVideo", domain.ModalityVideo, func(ctx context.Context, g *Gateway) error {
			_, err := g.GenerateVideo(ctx, VideoRequest{Prompt: "a drone shot", AspectRatio: "16:9"})
			return err
		}},
		{"GenerateVoice", domain.ModalityVoice, func(ctx context.Context, g *Gateway) error {
			_, err := g.GenerateVoice(ctx, VoiceRequest{Script: "hello", ActorID: "puck", Speed: 1, Volume: 1})
			return err
		}},
	}
}

func succeedingBackend() *mockBackend {
	return &mockBackend{
		contentFunc: func(req ContentRequest) (*ContentResponse, error) {
			if req.WantImage {
				return &ContentResponse{Images: []domain.Media{{Data: []byte("png"), MIMEType: "image/png"}}}, nil
			}
			return &ContentResponse{Text: "result text", TokenCount: 42}, nil
		},
		startFunc: func(req VideoStartRequest) (*domain.VideoOperation, error) {
			return &domain.VideoOperation{Name: "operations/v1", Done: true, VideoURI: "https://files.example.com/v.mp4"}, nil
		},
	}
}

func failingBackend(err error) *mockBackend {
	return &mockBackend{
		contentFunc: func(ContentRequest) (*ContentResponse, error) { return nil, err },
		imageFunc:   func(ImageGenRequest) (*domain.Media, error) { return nil, err },
		startFunc:   func(VideoStartRequest) (*domain.VideoOperation, error) { return nil, err },
		speechFunc:  func(SpeechRequest) (*domain.Media, error) { return nil, err },
	}
}

func TestGateway_ExactlyOneLogEntry(t *testing.T) {
	ctx := context.Background()

	for _, op := range allOps() {
		t.Run("成功: "+op.name+" はSuccessのログを1件だけ残すのだ", func(t *testing.T) {
			g, logs, notifier, _ := newTestGateway(succeedingBackend())

			require.NoError(t, op.call(ctx, g))

			entries := logs.snapshot()
			require.Len(t, entries, 1)
			assert.Equal(t, domain.LogStatusSuccess, entries[0].Status)
			assert.Equal(t, op.modality, entries[0].Modality)
			assert.Equal(t, "user-1", entries[0].UserID)
			assert.NotEmpty(t, entries[0].ID)
			assert.Len(t, notifier.sent, 1, "webhook must be attempted exactly once on success")
		})

		t.Run("失敗: "+op.name+" はErrorのログを1件だけ残すのだ", func(t *testing.T) {
			g, logs, notifier, _ := newTestGateway(failingBackend(errors.New("Error 500, Message: Internal error encountered.")))

			err := op.call(ctx, g)
			require.Error(t, err)
			assert.Equal(t, apierror.MessageServerError, err.Error())

			entries := logs.snapshot()
			require.Len(t, entries, 1)
			assert.Equal(t, domain.LogStatusError, entries[0].Status)
			assert.Contains(t, entries[0].ErrorMessage, "Internal error encountered", "raw error is recorded in the log")
			assert.Empty(t, notifier.sent, "no webhook on failure")
		})
	}
}

func TestGateway_CancelledRequestIsStillLogged(t *testing.T) {
	for _, op := range allOps() {
		t.Run(op.name+" は呼び出し元がキャンセルしてもログを残すのだ", func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			cancelling := func() error {
				cancel()
				return context.Canceled
			}
			backend := &mockBackend{
				contentFunc: func(ContentRequest) (*ContentResponse, error) { return nil, cancelling() },
				imageFunc:   func(ImageGenRequest) (*domain.Media, error) { return nil, cancelling() },
				startFunc:   func(VideoStartRequest) (*domain.VideoOperation, error) { return nil, cancelling() },
				speechFunc:  func(SpeechRequest) (*domain.Media, error) { return nil, cancelling() },
			}
			g, logs, notifier, _ := newTestGateway(backend)

			require.Error(t, op.call(ctx, g))
			require.Error(t, ctx.Err())

			entries := logs.snapshot()
			require.Len(t, entries, 1)
			assert.Equal(t, domain.LogStatusError, entries[0].Status)
			assert.Equal(t, op.modality, entries[0].Modality)
			assert.Empty(t, notifier.sent)
		})
	}

	t.Run("成功した直後にキャンセルされても Success が残る", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		backend := &mockBackend{contentFunc: func(ContentRequest) (*ContentResponse, error) {
			cancel()
			return &ContentResponse{Text: "done"}, nil
		}}
		g, logs, _, _ := newTestGateway(backend)

		text, err := g.GenerateText(ctx, "hi")
		require.NoError(t, err)
		assert.Equal(t, "done", text)
		entries := logs.snapshot()
		require.Len(t, entries, 1)
		assert.Equal(t, domain.LogStatusSuccess, entries[0].Status)
	})
}

func TestGateway_NoCredential(t *testing.T) {
	ctx := context.Background()

	for _, op := range allOps() {
		t.Run(op.name+" はネットワーク呼び出し前に NoCredential を返す", func(t *testing.T) {
			logs := &mockLogStore{}
			factory := &mockFactory{backend: succeedingBackend()}
			g, err := NewGateway(&mockCreds{}, factory, logs, WithClock(newFakeClock()))
			require.NoError(t, err)

			err = op.call(ctx, g)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apierror.ErrNoCredential))
			assert.Equal(t, 0, factory.calls, "backend must not be created")
			assert.Empty(t, logs.snapshot(), "log store must receive zero entries")
		})
	}
}

func TestGateway_QuotaMessageIsFixed(t *testing.T) {
	ctx := context.Background()
	raws := []string{
		"Error 429, Message: Resource has been exhausted (e.g. check quota)., Status: RESOURCE_EXHAUSTED",
		"You exceeded your current QUOTA, please check your plan",
		"upstream said 429 too many requests",
	}

	for _, op := range allOps() {
		for _, raw := range raws {
			g, logs, _, _ := newTestGateway(failingBackend(errors.New(raw)))
			err := op.call(ctx, g)
			require.Error(t, err)
			assert.Equal(t, apierror.MessageQuotaExceeded, err.Error(), "%s: %s", op.name, raw)
			assert.Equal(t, apierror.KindQuotaExceeded, apierror.KindOf(err))
			assert.Equal(t, raw, logs.snapshot()[0].ErrorMessage)
		}
	}
}

func TestGateway_BackendFactoryError(t *testing.T) {
	logs := &mockLogStore{}
	factory := &mockFactory{err: errors.New("API key not valid. Please pass a valid API key.")}
	g, err := NewGateway(&mockCreds{key: "bad"}, factory, logs, WithClock(newFakeClock()))
	require.NoError(t, err)

	_, err = g.GenerateText(context.Background(), "hi")
	require.Error(t, err)
	assert.Equal(t, apierror.KindInvalidCredential, apierror.KindOf(err))
	assert.Len(t, logs.snapshot(), 1)
	assert.Equal(t, "bad", factory.lastKey)
}

func TestGateway_LogStoreErrorDoesNotPropagate(t *testing.T) {
	g, logs, notifier, _ := newTestGateway(succeedingBackend())
	logs.err = errors.New("disk full")

	text, err := g.GenerateText(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "result text", text)
	assert.Len(t, notifier.sent, 1)
}

func TestGateway_GenerateText(t *testing.T) {
	b := succeedingBackend()
	g, logs, notifier, _ := newTestGateway(b)

	text, err := g.GenerateText(context.Background(), "write a tagline", WithSystemPrompt("be brief"))
	require.NoError(t, err)
	assert.Equal(t, "result text", text)

	require.Len(t, b.contentReqs, 1)
	assert.Equal(t, "be brief", b.contentReqs[0].SystemPrompt)
	assert.Equal(t, g.models.Text, b.contentReqs[0].Model)

	entry := logs.snapshot()[0]
	assert.Equal(t, 42, entry.TokenCount)
	assert.Equal(t, "write a tagline", entry.PromptSummary)
	assert.Equal(t, "result text", entry.OutputSummary)

	n := notifier.sent[0]
	assert.Equal(t, domain.PayloadText, n.Type)
	assert.Equal(t, "result text", n.Text)
	assert.Equal(t, "user-1", notifier.users[0])
}

func TestGateway_GenerateMultimodalText_NoAttachments(t *testing.T) {
	b := succeedingBackend()
	g, _, _, _ := newTestGateway(b)

	_, err := g.GenerateMultimodalText(context.Background(), "what is this?", nil)
	require.NoError(t, err)
	require.Len(t, b.contentReqs, 1, "backend is called even without attachments")
	assert.Empty(t, b.contentReqs[0].Attachments)
}

func TestGateway_ComposeImage(t *testing.T) {
	ctx := context.Background()

	t.Run("テキストだけが返ってもエラーにしないのだ", func(t *testing.T) {
		b := &mockBackend{contentFunc: func(req ContentRequest) (*ContentResponse, error) {
			assert.True(t, req.WantImage)
			return &ContentResponse{Text: "I cannot add a hat, but here is a description."}, nil
		}}
		g, logs, notifier, _ := newTestGateway(b)

		res, err := g.ComposeImage(ctx, "add a hat", []domain.Attachment{{Data: []byte("cat"), MIMEType: "image/jpeg"}})
		require.NoError(t, err)
		assert.Equal(t, "I cannot add a hat, but here is a description.", res.Text)
		assert.Nil(t, res.Image)
		assert.Equal(t, domain.LogStatusSuccess, logs.snapshot()[0].Status)
		assert.Equal(t, domain.PayloadText, notifier.sent[0].Type)
	})

	t.Run("テキストと画像の両方を埋める", func(t *testing.T) {
		b := &mockBackend{contentFunc: func(req ContentRequest) (*ContentResponse, error) {
			return &ContentResponse{
				Text:   "Here you go",
				Images: []domain.Media{{Data: []byte("png1"), MIMEType: "image/png"}, {Data: []byte("png2"), MIMEType: "image/png"}},
			}, nil
		}}
		g, logs, notifier, _ := newTestGateway(b)

		res, err := g.ComposeImage(ctx, "add a hat", nil)
		require.NoError(t, err)
		assert.Equal(t, "Here you go", res.Text)
		require.NotNil(t, res.Image)
		assert.Equal(t, []byte("png1"), res.Image.Data)
		assert.Equal(t, "data:image/png;base64,cG5nMQ==", logs.snapshot()[0].MediaPreview)
		assert.Equal(t, domain.PayloadImage, notifier.sent[0].Type)
	})

	t.Run("どちらも無い場合も成功として扱う", func(t *testing.T) {
		b := &mockBackend{contentFunc: func(req ContentRequest) (*ContentResponse, error) {
			return &ContentResponse{}, nil
		}}
		g, logs, notifier, _ := newTestGateway(b)

		res, err := g.ComposeImage(ctx, "add a hat", nil)
		require.NoError(t, err)
		assert.Empty(t, res.Text)
		assert.Nil(t, res.Image)
		assert.Len(t, logs.snapshot(), 1)
		assert.Empty(t, notifier.sent)
	})
}

func TestGateway_GenerateVoice(t *testing.T) {
	b := succeedingBackend()
	g, _, notifier, _ := newTestGateway(b)

	audio, err := g.GenerateVoice(context.Background(), VoiceRequest{Script: "Welcome!", ActorID: "charon", Speed: 0.7, Pitch: 0, Volume: 1.5})
	require.NoError(t, err)
	assert.Equal(t, []byte("pcm"), audio.Data)

	require.Len(t, b.speechReqs, 1)
	assert.Equal(t, "Charon", b.speechReqs[0].VoiceName)
	assert.Equal(t, "Read the following slowly, loudly:", b.speechReqs[0].Direction)
	assert.Equal(t, domain.PayloadAudio, notifier.sent[0].Type)
}

func TestGateway_VerifyCredential(t *testing.T) {
	ctx := context.Background()

	t.Run("有効なキーは true でログは Success", func(t *testing.T) {
		g, logs, notifier, factory := newTestGateway(succeedingBackend(), WithVerifier(&mockVerifier{valid: true}))
		assert.True(t, g.VerifyCredential(ctx, "AIza-good"))
		require.Len(t, logs.snapshot(), 1)
		assert.Equal(t, domain.LogStatusSuccess, logs.snapshot()[0].Status)
		assert.Equal(t, domain.ModalityVerify, logs.snapshot()[0].Modality)
		assert.Empty(t, notifier.sent, "verification never dispatches a webhook")
		assert.Equal(t, 0, factory.calls)
	})

	t.Run("無効なキーは false", func(t *testing.T) {
		g, logs, _, _ := newTestGateway(succeedingBackend(), WithVerifier(&mockVerifier{err: errors.New("verification returned status 400")}))
		assert.False(t, g.VerifyCredential(ctx, "AIza-bad"))
		assert.Equal(t, domain.LogStatusError, logs.snapshot()[0].Status)
		assert.Contains(t, logs.snapshot()[0].ErrorMessage, "400")
	})

	t.Run("Verifier 未設定なら false", func(t *testing.T) {
		g, logs, _, _ := newTestGateway(succeedingBackend())
		assert.False(t, g.VerifyCredential(ctx, "AIza"))
		assert.Empty(t, logs.snapshot())
	})
}

func TestGateway_Recorder(t *testing.T) {
	rec := &mockRecorder{}
	g, _, _, _ := newTestGateway(succeedingBackend(), WithRecorder(rec))

	_, _ = g.GenerateText(context.Background(), "a")
	g2, _, _, _ := newTestGateway(failingBackend(errBackend), WithRecorder(rec))
	_, _ = g2.GenerateText(context.Background(), "b")

	assert.Equal(t, 1, rec.calls[domain.LogStatusSuccess])
	assert.Equal(t, 1, rec.calls[domain.LogStatusError])
}

func TestNewGateway_RequiresDependencies(t *testing.T) {
	_, err := NewGateway(nil, &mockFactory{}, &mockLogStore{})
	assert.Error(t, err)
	_, err = NewGateway(&mockCreds{}, nil, &mockLogStore{})
	assert.Error(t, err)
	_, err = NewGateway(&mockCreds{}, &mockFactory{}, nil)
	assert.Error(t, err)
}
