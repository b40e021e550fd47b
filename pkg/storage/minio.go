package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// MinIOConfig carries the S3-compatible endpoint settings.
type MinIOConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Region        string
	UseSSL        bool
	PublicBaseURL string
}

// MinIOStorage stores objects in S3-compatible buckets, creating buckets on first use.
type MinIOStorage struct {
	client        *minio.Client
	region        string
	publicBaseURL string
	logger        *zap.Logger

	ensureMu sync.Mutex
	ensured  map[string]bool
}

// NewMinIOStorage connects to the endpoint. Bucket creation is deferred to the first call.
func NewMinIOStorage(cfg MinIOConfig, logger *zap.Logger) (*MinIOStorage, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	publicBase := strings.TrimRight(cfg.PublicBaseURL, "/")
	if publicBase == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		publicBase = fmt.Sprintf("%s://%s", scheme, cfg.Endpoint)
	}

	return &MinIOStorage{
		client:        client,
		region:        cfg.Region,
		publicBaseURL: publicBase,
		logger:        logger,
		ensured:       make(map[string]bool),
	}, nil
}

func (s *MinIOStorage) ensureBucket(ctx context.Context, bucket string) error {
	s.ensureMu.Lock()
	defer s.ensureMu.Unlock()
	if s.ensured[bucket] {
		return nil
	}

	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return fmt.Errorf("create bucket %s: %w", bucket, err)
		}
		s.logger.Info("created storage bucket", zap.String("bucket", bucket))
	}
	s.ensured[bucket] = true
	return nil
}

// Put uploads an object, overwriting any existing one.
func (s *MinIOStorage) Put(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) error {
	key, err := CleanKey(key)
	if err != nil {
		return err
	}
	if err := s.ensureBucket(ctx, bucket); err != nil {
		return err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if size <= 0 {
		size = -1
	}
	info, err := s.client.PutObject(ctx, bucket, key, r, size, minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: "max-age=3600",
	})
	if err != nil {
		return fmt.Errorf("upload object: %w", err)
	}
	s.logger.Debug("object uploaded", zap.String("bucket", bucket), zap.String("key", key), zap.Int64("size", info.Size))
	return nil
}

// Get downloads an object.
func (s *MinIOStorage) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	key, err := CleanKey(key)
	if err != nil {
		return nil, err
	}
	if err := s.ensureBucket(ctx, bucket); err != nil {
		return nil, err
	}
	if _, err := s.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("stat object: %w", err)
	}
	object, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object: %w", err)
	}
	return object, nil
}

// Remove deletes the keys in one batch call.
func (s *MinIOStorage) Remove(ctx context.Context, bucket string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.ensureBucket(ctx, bucket); err != nil {
		return err
	}
	objects := make(chan minio.ObjectInfo, len(keys))
	for _, key := range keys {
		objects <- minio.ObjectInfo{Key: key}
	}
	close(objects)

	var failed []string
	for result := range s.client.RemoveObjects(ctx, bucket, objects, minio.RemoveObjectsOptions{}) {
		if result.Err != nil {
			failed = append(failed, result.ObjectName)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("delete objects %s", strings.Join(failed, ", "))
	}
	return nil
}

// List returns objects under prefix.
func (s *MinIOStorage) List(ctx context.Context, bucket, prefix string) ([]Object, error) {
	if err := s.ensureBucket(ctx, bucket); err != nil {
		return nil, err
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	objects := make([]Object, 0)
	for info := range s.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if info.Err != nil {
			return nil, fmt.Errorf("list objects: %w", info.Err)
		}
		objects = append(objects, Object{Key: info.Key, Name: BaseName(info.Key), Size: info.Size, ModTime: info.LastModified})
	}
	return objects, nil
}

// PublicURL returns the direct object URL; the bucket must carry a public read policy.
func (s *MinIOStorage) PublicURL(bucket, key string) string {
	return fmt.Sprintf("%s/%s/%s", s.publicBaseURL, url.PathEscape(bucket), escapeKey(key))
}

// SignedURL returns a presigned GET URL.
func (s *MinIOStorage) SignedURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	key, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	if err := s.ensureBucket(ctx, bucket); err != nil {
		return "", err
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	u, err := s.client.PresignedGetObject(ctx, bucket, key, ttl, nil)
	if err != nil {
		return "", fmt.Errorf("presign object: %w", err)
	}
	return u.String(), nil
}
