package generator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shouni/gemini-creative-gateway/pkg/apierror"
	"github.com/shouni/gemini-creative-gateway/pkg/domain"
)

// --- Mocks ---

type mockCreds struct {
	key    string
	userID string
}

func (m *mockCreds) ActiveCredential() (string, error) {
	if m.key == "" {
		return "", apierror.ErrNoCredential
	}
	return m.key, nil
}

func (m *mockCreds) UserID() string { return m.userID }

type mockBackend struct {
	mu sync.Mutex

	contentFunc  func(req ContentRequest) (*ContentResponse, error)
	imageFunc    func(req ImageGenRequest) (*domain.Media, error)
	startFunc    func(req VideoStartRequest) (*domain.VideoOperation, error)
	pollFunc     func(op *domain.VideoOperation) (*domain.VideoOperation, error)
	downloadFunc func(uri string) ([]byte, error)
	speechFunc   func(req SpeechRequest) (*domain.Media, error)

	contentReqs []ContentRequest
	imageReqs   []ImageGenRequest
	speechReqs  []SpeechRequest
	polls       int
	downloads   int
}

func (m *mockBackend) GenerateContent(ctx context.Context, req ContentRequest) (*ContentResponse, error) {
	m.mu.Lock()
	m.contentReqs = append(m.contentReqs, req)
	m.mu.Unlock()
	if m.contentFunc == nil {
		return &ContentResponse{Text: "ok"}, nil
	}
	return m.contentFunc(req)
}

func (m *mockBackend) GenerateImage(ctx context.Context, req ImageGenRequest) (*domain.Media, error) {
	m.mu.Lock()
	m.imageReqs = append(m.imageReqs, req)
	m.mu.Unlock()
	if m.imageFunc == nil {
		return &domain.Media{Data: []byte("img"), MIMEType: "image/png"}, nil
	}
	return m.imageFunc(req)
}

func (m *mockBackend) StartVideo(ctx context.Context, req VideoStartRequest) (*domain.VideoOperation, error) {
	if m.startFunc == nil {
		return &domain.VideoOperation{Name: "operations/1"}, nil
	}
	return m.startFunc(req)
}

func (m *mockBackend) PollVideo(ctx context.Context, op *domain.VideoOperation) (*domain.VideoOperation, error) {
	m.mu.Lock()
	m.polls++
	m.mu.Unlock()
	if m.pollFunc == nil {
		return op, nil
	}
	return m.pollFunc(op)
}

func (m *mockBackend) DownloadVideo(ctx context.Context, uri string) ([]byte, error) {
	m.mu.Lock()
	m.downloads++
	m.mu.Unlock()
	if m.downloadFunc == nil {
		return []byte("video-bytes"), nil
	}
	return m.downloadFunc(uri)
}

func (m *mockBackend) SynthesizeSpeech(ctx context.Context, req SpeechRequest) (*domain.Media, error) {
	m.mu.Lock()
	m.speechReqs = append(m.speechReqs, req)
	m.mu.Unlock()
	if m.speechFunc == nil {
		return &domain.Media{Data: []byte("pcm"), MIMEType: "audio/L16;rate=24000"}, nil
	}
	return m.speechFunc(req)
}

type mockFactory struct {
	backend *mockBackend
	err     error
	calls   int
	lastKey string
}

func (m *mockFactory) Backend(ctx context.Context, credential string) (Backend, error) {
	m.calls++
	m.lastKey = credential
	if m.err != nil {
		return nil, m.err
	}
	return m.backend, nil
}

type mockLogStore struct {
	mu      sync.Mutex
	entries []domain.LogEntry
	err     error
}

func (m *mockLogStore) AppendLog(ctx context.Context, entry domain.LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockLogStore) snapshot() []domain.LogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.LogEntry(nil), m.entries...)
}

type mockNotifier struct {
	mu    sync.Mutex
	sent  []domain.Notification
	users []string
}

func (m *mockNotifier) Notify(ctx context.Context, userID string, n domain.Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, n)
	m.users = append(m.users, userID)
}

type mockRecorder struct {
	calls map[domain.LogStatus]int
	polls int
}

func (m *mockRecorder) ObserveCall(modality domain.Modality, status domain.LogStatus, elapsed time.Duration) {
	if m.calls == nil {
		m.calls = map[domain.LogStatus]int{}
	}
	m.calls[status]++
}

func (m *mockRecorder) ObserveVideoPoll() { m.polls++ }

// fakeClock は Sleep で時刻を進めるだけの時計なのだ。
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps int
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	c.sleeps++
	return nil
}

type mockVerifier struct {
	valid bool
	err   error
}

func (m *mockVerifier) Verify(ctx context.Context, key string) (bool, error) {
	return m.valid, m.err
}

var errBackend = errors.New("backend exploded")

// newTestGateway はテスト用の依存関係一式で Gateway を組み立てるのだ。
func newTestGateway(b *mockBackend, opts ...Option) (*Gateway, *mockLogStore, *mockNotifier, *mockFactory) {
	logs := &mockLogStore{}
	notifier := &mockNotifier{}
	factory := &mockFactory{backend: b}
	base := []Option{WithNotifier(notifier), WithClock(newFakeClock())}
	g, err := NewGateway(&mockCreds{key: "test-key", userID: "user-1"}, factory, logs, append(base, opts...)...)
	if err != nil {
		panic(err)
	}
	return g, logs, notifier, factory
}
