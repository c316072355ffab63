package s3

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/carvio/listing-service/internal/platform/logger"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// Config holds the connection settings for the object store.
type Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	UseSSL          bool
	DeleteTimeout   time.Duration
}

// Storage stores listing photos in an S3-compatible bucket via MinIO.
type Storage struct {
	client        *minio.Client
	bucketName    string
	endpoint      string
	useSSL        bool
	deleteTimeout time.Duration
	logger        *logger.Logger
}

// NewStorage connects to the object store and ensures the bucket exists.
func NewStorage(ctx context.Context, cfg Config, log *logger.Logger) (*Storage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.BucketName, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.BucketName, err)
		}
		log.Info("Created bucket", zap.String("bucket", cfg.BucketName))
	}

	deleteTimeout := cfg.DeleteTimeout
	if deleteTimeout <= 0 {
		deleteTimeout = 10 * time.Second
	}

	return &Storage{
		client:        client,
		bucketName:    cfg.BucketName,
		endpoint:      cfg.Endpoint,
		useSSL:        cfg.UseSSL,
		deleteTimeout: deleteTimeout,
		logger:        log.Named("S3Storage"),
	}, nil
}

// Upload stores one photo under a random object key and returns its public URL.
func (s *Storage) Upload(ctx context.Context, fileName string, data []byte) (string, error) {
	objectName := fmt.Sprintf("listings/%s%s", uuid.New().String(), filepath.Ext(fileName))
	contentType := http.DetectContentType(data)

	_, err := s.client.PutObject(ctx, s.bucketName, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		s.logger.Error("Failed to upload photo",
			zap.String("file", fileName), zap.String("object", objectName), zap.Error(err))
		return "", fmt.Errorf("s3 upload failed: %w", err)
	}

	scheme := "http"
	if s.useSSL {
		scheme = "https"
	}
	objectURL := fmt.Sprintf("%s://%s/%s/%s", scheme, s.endpoint, s.bucketName, objectName)
	s.logger.Debug("Photo uploaded", zap.String("url", objectURL))
	return objectURL, nil
}

// DeleteMany removes the given image URLs in parallel. It is best-effort by
// contract: each failure is logged and reported in the second return value,
// but the method itself never fails. Each removal gets its own timeout so a
// hung endpoint cannot stall the whole purge.
func (s *Storage) DeleteMany(ctx context.Context, urls []string) (deleted []string, failed []string) {
	if len(urls) == 0 {
		return nil, nil
	}

	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, imageURL := range urls {
		wg.Add(1)
		go func(imageURL string) {
			defer wg.Done()

			objectName, err := s.objectNameFromURL(imageURL)
			if err != nil {
				s.logger.Warn("Unparseable image URL, skipping purge", zap.String("url", imageURL), zap.Error(err))
				mu.Lock()
				failed = append(failed, imageURL)
				mu.Unlock()
				return
			}

			delCtx, cancel := context.WithTimeout(ctx, s.deleteTimeout)
			defer cancel()

			if err := s.client.RemoveObject(delCtx, s.bucketName, objectName, minio.RemoveObjectOptions{}); err != nil {
				s.logger.Warn("Failed to purge image",
					zap.String("url", imageURL), zap.String("object", objectName), zap.Error(err))
				mu.Lock()
				failed = append(failed, imageURL)
				mu.Unlock()
				return
			}

			mu.Lock()
			deleted = append(deleted, imageURL)
			mu.Unlock()
		}(imageURL)
	}

	wg.Wait()
	return deleted, failed
}

// objectNameFromURL extracts the object key from a URL produced by Upload.
func (s *Storage) objectNameFromURL(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid image URL: %w", err)
	}
	prefix := "/" + s.bucketName + "/"
	if !strings.HasPrefix(parsed.Path, prefix) {
		return "", fmt.Errorf("image URL %q does not point into bucket %s", rawURL, s.bucketName)
	}
	objectName := strings.TrimPrefix(parsed.Path, prefix)
	if objectName == "" {
		return "", fmt.Errorf("image URL %q has empty object key", rawURL)
	}
	return objectName, nil
}
