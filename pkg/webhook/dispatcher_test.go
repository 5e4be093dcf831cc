package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shouni/gemini-creative-gateway/pkg/domain"
)

type mockProfiles struct {
	mu   sync.Mutex
	urls map[string]string
	err  error
}

func (m *mockProfiles) WebhookURL(ctx context.Context, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	return m.urls[userID], nil
}

func (m *mockProfiles) SetWebhookURL(ctx context.Context, userID, webhookURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.urls == nil {
		m.urls = map[string]string{}
	}
	m.urls[userID] = webhookURL
	return nil
}

type mockRecorder struct {
	mu      sync.Mutex
	results []string
}

func (m *mockRecorder) ObserveWebhook(result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, result)
}

type capture struct {
	mu       sync.Mutex
	hits     atomic.Int32
	payloads []domain.WebhookPayload
	headers  []http.Header
}

func newCaptureServer(t *testing.T, status int) (*httptest.Server, *capture) {
	t.Helper()
	c := &capture{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.hits.Add(1)
		body, _ := io.ReadAll(r.Body)
		var p domain.WebhookPayload
		_ = json.Unmarshal(body, &p)
		c.mu.Lock()
		c.payloads = append(c.payloads, p)
		c.headers = append(c.headers, r.Header.Clone())
		c.mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, c
}

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestDispatcher(t *testing.T, profiles ProfileStore, opts ...Option) *Dispatcher {
	t.Helper()
	base := []Option{WithClock(func() time.Time { return fixedNow }), WithSkipNetworkValidation(true)}
	d, err := NewDispatcher(profiles, time.Second, append(base, opts...)...)
	require.NoError(t, err)
	return d
}

func TestDispatcher_Notify_NoURL(t *testing.T) {
	srv, c := newCaptureServer(t, http.StatusOK)
	_ = srv
	rec := &mockRecorder{}
	d := newTestDispatcher(t, &mockProfiles{urls: map[string]string{}}, WithRecorder(rec))

	t.Run("URLが無ければリクエストしないのだ", func(t *testing.T) {
		assert.NotPanics(t, func() {
			d.Notify(context.Background(), "user-1", domain.Notification{Type: domain.PayloadText, Text: "hi"})
			d.Wait()
		})
		assert.Equal(t, int32(0), c.hits.Load())
		assert.Equal(t, []string{ResultSkipped}, rec.results)
	})

	t.Run("ユーザーが居なくてもリクエストしない", func(t *testing.T) {
		err := d.Deliver(context.Background(), "", domain.Notification{Type: domain.PayloadText, Text: "hi"})
		assert.NoError(t, err)
		assert.Equal(t, int32(0), c.hits.Load())
	})
}

func TestDispatcher_Notify_Text(t *testing.T) {
	srv, c := newCaptureServer(t, http.StatusOK)
	d := newTestDispatcher(t, &mockProfiles{urls: map[string]string{"user-1": srv.URL}})

	d.Notify(context.Background(), "user-1", domain.Notification{Type: domain.PayloadText, Prompt: "slogan", Text: "Just do it"})
	d.Wait()

	require.Equal(t, int32(1), c.hits.Load())
	p := c.payloads[0]
	assert.Equal(t, domain.PayloadText, p.Type)
	assert.Equal(t, "slogan", p.Prompt)
	assert.Equal(t, "Just do it", p.Result)
	assert.Equal(t, "text/plain", p.MimeType)
	assert.Equal(t, "user-1", p.UserID)
	assert.True(t, fixedNow.Equal(p.Timestamp))
	assert.Equal(t, "application/json", c.headers[0].Get("Content-Type"))
}

func TestDispatcher_Notify_BinaryIsBase64(t *testing.T) {
	srv, c := newCaptureServer(t, http.StatusOK)
	d := newTestDispatcher(t, &mockProfiles{urls: map[string]string{"user-1": srv.URL}})

	media := &domain.Media{Data: []byte("png-bytes"), MIMEType: "image/png"}
	d.Notify(context.Background(), "user-1", domain.Notification{Type: domain.PayloadImage, Prompt: "cat", Media: media})
	media.Data[0] = 'X' // 呼び出し元が後から書き換えても影響しない
	d.Wait()

	require.Len(t, c.payloads, 1)
	assert.Equal(t, "cG5nLWJ5dGVz", c.payloads[0].Result)
	assert.Equal(t, "image/png", c.payloads[0].MimeType)
}

func TestDispatcher_Notify_FailuresAreSwallowed(t *testing.T) {
	ctx := context.Background()

	t.Run("500でも呼び出し元には何も返らない", func(t *testing.T) {
		srv, c := newCaptureServer(t, http.StatusInternalServerError)
		rec := &mockRecorder{}
		d := newTestDispatcher(t, &mockProfiles{urls: map[string]string{"u": srv.URL}}, WithRecorder(rec))

		d.Notify(ctx, "u", domain.Notification{Type: domain.PayloadText, Text: "x"})
		d.Wait()
		assert.Equal(t, int32(1), c.hits.Load(), "no retry")
		assert.Equal(t, []string{ResultFailed}, rec.results)

		err := d.Deliver(ctx, "u", domain.Notification{Type: domain.PayloadText, Text: "x"})
		assert.ErrorContains(t, err, "500")
	})

	t.Run("接続できなくてもパニックしない", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		target := srv.URL
		srv.Close()
		d := newTestDispatcher(t, &mockProfiles{urls: map[string]string{"u": target}})

		assert.NotPanics(t, func() {
			d.Notify(ctx, "u", domain.Notification{Type: domain.PayloadText, Text: "x"})
			d.Wait()
		})
	})

	t.Run("プロフィール取得の失敗も飲み込む", func(t *testing.T) {
		d := newTestDispatcher(t, &mockProfiles{err: errors.New("db down")})
		assert.NotPanics(t, func() {
			d.Notify(ctx, "u", domain.Notification{Type: domain.PayloadText, Text: "x"})
			d.Wait()
		})
	})

	t.Run("呼び出し元のキャンセル後も配送される", func(t *testing.T) {
		srv, c := newCaptureServer(t, http.StatusOK)
		d := newTestDispatcher(t, &mockProfiles{urls: map[string]string{"u": srv.URL}})

		cctx, cancel := context.WithCancel(ctx)
		d.Notify(cctx, "u", domain.Notification{Type: domain.PayloadText, Text: "x"})
		cancel()
		d.Wait()
		assert.Equal(t, int32(1), c.hits.Load())
	})
}

func TestDispatcher_SendTest(t *testing.T) {
	ctx := context.Background()

	t.Run("HTTP 500 は success=false で 500 を含む", func(t *testing.T) {
		srv, c := newCaptureServer(t, http.StatusInternalServerError)
		d := newTestDispatcher(t, &mockProfiles{urls: map[string]string{"u": srv.URL}})

		res := d.SendTest(ctx, "u")
		assert.False(t, res.Success)
		assert.Contains(t, res.Message, "500")
		require.Len(t, c.payloads, 1)
		assert.Equal(t, domain.PayloadTest, c.payloads[0].Type)
		assert.Equal(t, "text/plain", c.payloads[0].MimeType)
	})

	t.Run("200 は success=true", func(t *testing.T) {
		srv, _ := newCaptureServer(t, http.StatusOK)
		d := newTestDispatcher(t, &mockProfiles{urls: map[string]string{"u": srv.URL}})

		res := d.SendTest(ctx, "u")
		assert.True(t, res.Success)
		assert.Contains(t, res.Message, "200")
	})

	t.Run("URL未設定", func(t *testing.T) {
		d := newTestDispatcher(t, &mockProfiles{})
		res := d.SendTest(ctx, "u")
		assert.False(t, res.Success)
		assert.Contains(t, res.Message, "No webhook URL")
	})

	t.Run("接続失敗", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		target := srv.URL
		srv.Close()
		d := newTestDispatcher(t, &mockProfiles{urls: map[string]string{"u": target}})

		res := d.SendTest(ctx, "u")
		assert.False(t, res.Success)
		assert.Contains(t, res.Message, "Failed to reach")
	})

	t.Run("ユーザー無し", func(t *testing.T) {
		d := newTestDispatcher(t, &mockProfiles{})
		assert.False(t, d.SendTest(ctx, "").Success)
	})
}

func TestDispatcher_SetWebhookURL(t *testing.T) {
	ctx := context.Background()
	profiles := &mockProfiles{}
	d, err := NewDispatcher(profiles, time.Second)
	require.NoError(t, err)

	require.NoError(t, d.SetWebhookURL(ctx, "u", " https://203.0.113.10/in "))
	assert.Equal(t, "https://203.0.113.10/in", profiles.urls["u"])

	require.NoError(t, d.SetWebhookURL(ctx, "u", ""))
	assert.Equal(t, "", profiles.urls["u"])

	assert.Error(t, d.SetWebhookURL(ctx, "u", "ftp://example.com"))
	assert.Error(t, d.SetWebhookURL(ctx, "u", "not a url"))
	assert.Error(t, d.SetWebhookURL(ctx, "", "https://example.com"))
}

func TestDispatcher_InternalTargetsAreRejected(t *testing.T) {
	ctx := context.Background()

	t.Run("内部アドレスは保存できないのだ", func(t *testing.T) {
		profiles := &mockProfiles{}
		d, err := NewDispatcher(profiles, time.Second)
		require.NoError(t, err)

		for _, target := range []string{
			"http://127.0.0.1:8080/hook",
			"http://localhost/hook",
			"http://10.0.0.5/hook",
			"http://192.168.1.20/hook",
			"http://169.254.169.254/latest/meta-data/",
			"http://[::1]/hook",
		} {
			assert.Error(t, d.SetWebhookURL(ctx, "u", target), target)
		}
		assert.Empty(t, profiles.urls["u"])
	})

	t.Run("保存済みの内部アドレスにも送らない", func(t *testing.T) {
		srv, c := newCaptureServer(t, http.StatusOK)
		rec := &mockRecorder{}
		d, err := NewDispatcher(&mockProfiles{urls: map[string]string{"u": srv.URL}}, time.Second, WithRecorder(rec))
		require.NoError(t, err)

		assert.Error(t, d.Deliver(ctx, "u", domain.Notification{Type: domain.PayloadText, Text: "x"}))

		res := d.SendTest(ctx, "u")
		assert.False(t, res.Success)
		assert.NotContains(t, res.Message, "HTTP")

		assert.Equal(t, int32(0), c.hits.Load())
		assert.Equal(t, []string{ResultFailed}, rec.results)
	})
}

func TestBuildPayload(t *testing.T) {
	t.Run("MIMEタイプが無いバイナリは推定する", func(t *testing.T) {
		png := []byte("\x89PNG\r\n\x1a\n0000")
		p := BuildPayload("u", domain.Notification{Type: domain.PayloadImage, Media: &domain.Media{Data: png}}, fixedNow)
		assert.Equal(t, "image/png", p.MimeType)
	})

	t.Run("JSONのキー名", func(t *testing.T) {
		p := BuildPayload("u", domain.Notification{Type: domain.PayloadText, Prompt: "p", Text: "r"}, fixedNow)
		raw, err := json.Marshal(p)
		require.NoError(t, err)
		var m map[string]any
		require.NoError(t, json.Unmarshal(raw, &m))
		for _, k := range []string{"type", "prompt", "result", "mimeType", "timestamp", "userId"} {
			assert.Contains(t, m, k)
		}
	})
}
