package adapters

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/shouni/go-http-kit/pkg/httpkit"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

// --- Mocks ---

type mockMediaModels struct {
	contentCalls int

	contentFunc func(model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	imagesFunc  func(model, prompt string, config *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error)
	videosFunc  func(model, prompt string, image *genai.Image, config *genai.GenerateVideosConfig) (*genai.GenerateVideosOperation, error)
}

func (m *mockMediaModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	m.contentCalls++
	return m.contentFunc(model, contents, config)
}

func (m *mockMediaModels) GenerateImages(ctx context.Context, model string, prompt string, config *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error) {
	return m.imagesFunc(model, prompt, config)
}

func (m *mockMediaModels) GenerateVideos(ctx context.Context, model string, prompt string, image *genai.Image, config *genai.GenerateVideosConfig) (*genai.GenerateVideosOperation, error) {
	return m.videosFunc(model, prompt, image, config)
}

type mockPoller struct {
	lastName string
	resp     *genai.GenerateVideosOperation
	err      error
}

func (m *mockPoller) GetVideosOperation(ctx context.Context, op *genai.GenerateVideosOperation, config *genai.GetOperationConfig) (*genai.GenerateVideosOperation, error) {
	m.lastName = op.Name
	return m.resp, m.err
}

type mockHTTPClient struct {
	calls int
	data  []byte
	err   error
}

func (m *mockHTTPClient) FetchBytes(ctx context.Context, url string) ([]byte, error) {
	m.calls++
	return m.data, m.err
}

// IsSafeURL は本物の httpkit の判定をそのまま使うのだ。
func (m *mockHTTPClient) IsSafeURL(urlStr string) (bool, error) {
	return httpkit.New(time.Second).IsSafeURL(urlStr)
}

type mockUploader struct {
	mu        sync.Mutex
	uploads   [][]byte
	deleted   []string
	uploadErr error
}

func (m *mockUploader) UploadFile(ctx context.Context, data []byte, mimeType, displayName string) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.uploadErr != nil {
		return "", "", m.uploadErr
	}
	m.uploads = append(m.uploads, data)
	name := fmt.Sprintf("files/%d", len(m.uploads))
	return "https://generativelanguage.googleapis.com/v1beta/" + name, name, nil
}

func (m *mockUploader) DeleteFile(ctx context.Context, fileName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	m.deleted = append(m.deleted, fileName)
	return nil
}

type mockReader struct {
	data map[string][]byte
}

func (m *mockReader) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	d, ok := m.data[uri]
	if !ok {
		return nil, io.ErrUnexpectedEOF
	}
	return io.NopCloser(bytes.NewReader(d)), nil
}

type mockCache struct {
	data map[string]any
}

func (m *mockCache) Get(key string) (any, bool) {
	val, ok := m.data[key]
	return val, ok
}

func (m *mockCache) Set(key string, value any, d time.Duration) {
	m.data[key] = value
}

// --- Helpers ---

// pngHeader は http.DetectContentType が image/png と判定する最小のバイト列なのだ。
var pngHeader = []byte("\x89PNG\r\n\x1a\n0000")

func allowAll(string) (bool, error) { return true, nil }

func newTestResolver(t *testing.T, client HTTPClient, opts ...ResolverOption) *ReferenceResolver {
	t.Helper()
	opts = append([]ResolverOption{WithURLValidator(allowAll)}, opts...)
	r, err := NewReferenceResolver(client, opts...)
	require.NoError(t, err)
	return r
}

func newTestBackend(t *testing.T, media *mockMediaModels, ops *mockPoller, opts ...BackendOption) *GeminiBackend {
	t.Helper()
	if media == nil {
		media = &mockMediaModels{}
	}
	if ops == nil {
		ops = &mockPoller{}
	}
	b, err := NewGeminiBackend(media, ops, newTestResolver(t, &mockHTTPClient{data: pngHeader}), opts...)
	require.NoError(t, err)
	return b
}

func textResponse(parts ...*genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content:      &genai.Content{Parts: parts},
			FinishReason: genai.FinishReasonStop,
		}},
	}
}

func contentReturning(resp *genai.GenerateContentResponse, err error) *mockMediaModels {
	return &mockMediaModels{contentFunc: func(model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		return resp, err
	}}
}
