// Package mediastore は生成履歴のメディアを MinIO に保存します。
package mediastore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/shouni/gemini-creative-gateway/pkg/domain"
)

var tracer = otel.Tracer("gemini-creative-gateway/mediastore")

// ObjectAPI は MinIO クライアントのうち使用する操作です。*minio.Client がこれを満たします。
type ObjectAPI interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucket, object string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Store は履歴メディアをバケットに保存し、その URL を返します。
type Store struct {
	client  ObjectAPI
	bucket  string
	baseURL string

	mu      sync.Mutex
	ensured bool
}

// New は MinIO に接続する Store を返します。
func New(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*Store, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}
	scheme := "http"
	if useSSL {
		scheme = "https"
	}
	return NewWithClient(client, bucket, fmt.Sprintf("%s://%s", scheme, endpoint))
}

// NewWithClient は任意の ObjectAPI を使う Store を返します。
func NewWithClient(client ObjectAPI, bucket, baseURL string) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("object client is required")
	}
	if bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	return &Store{client: client, bucket: bucket, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// EnsureBucket はバケットが無ければ作成します。
func (s *Store) EnsureBucket(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "mediastore.ensure_bucket")
	defer span.End()
	span.SetAttributes(attribute.String("minio.bucket", s.bucket))

	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// Put はメディアを userID/itemID.ext に保存し、オブジェクトの URL を返します。
func (s *Store) Put(ctx context.Context, userID, itemID string, m domain.Media) (string, error) {
	if err := s.ensureBucketOnce(ctx); err != nil {
		return "", err
	}

	key := ObjectKey(userID, itemID, m.MIMEType)

	ctx, span := tracer.Start(ctx, "mediastore.put")
	defer span.End()
	span.SetAttributes(
		attribute.String("minio.bucket", s.bucket),
		attribute.String("minio.key", key),
		attribute.Int("minio.size", len(m.Data)),
	)

	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(m.Data), int64(len(m.Data)), minio.PutObjectOptions{
		ContentType: m.MIMEType,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("failed to upload to MinIO: %w", err)
	}
	return fmt.Sprintf("%s/%s/%s", s.baseURL, s.bucket, key), nil
}

// ensureBucketOnce は成功するまでバケットの確認を繰り返します。
func (s *Store) ensureBucketOnce(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ensured {
		return nil
	}
	if err := s.EnsureBucket(ctx); err != nil {
		return err
	}
	s.ensured = true
	return nil
}

var extensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
	"video/mp4":  ".mp4",
	"audio/wav":  ".wav",
	"audio/mpeg": ".mp3",
}

// ObjectKey はオブジェクトのキーを組み立てます。
func ObjectKey(userID, itemID, mimeType string) string {
	ext := extensions[strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0]))]
	if ext == "" {
		ext = ".bin"
	}
	if userID == "" {
		userID = "anonymous"
	}
	return path.Join(userID, itemID+ext)
}
