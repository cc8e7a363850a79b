// Package storage keeps debugging artifacts, such as screenshots of failed
// portal runs, in S3-compatible object storage.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/deliverysync/backend/internal/domain/delivery"
	infraconfig "github.com/deliverysync/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

var _ delivery.ArtifactStore = (*S3ArtifactStore)(nil)

// S3ArtifactStore implements delivery.ArtifactStore on any S3-compatible
// backend (AWS S3, MinIO, RustFS)
type S3ArtifactStore struct {
	client            *s3.Client
	presignClient     *s3.PresignClient
	bucket            string
	prefix            string
	presignExpiration time.Duration
	logger            *zap.Logger
}

// Option is a functional option for configuring S3ArtifactStore
type Option func(*S3ArtifactStore)

// WithLogger sets a custom logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *S3ArtifactStore) {
		s.logger = logger
	}
}

// WithPresignExpiration sets a custom presign expiration duration
func WithPresignExpiration(d time.Duration) Option {
	return func(s *S3ArtifactStore) {
		s.presignExpiration = d
	}
}

// NewS3ArtifactStore creates a store from configuration
func NewS3ArtifactStore(cfg *infraconfig.StorageConfig, opts ...Option) (*S3ArtifactStore, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	if cfg.AccessKey == "" {
		return nil, errors.New("storage access key is required")
	}
	if cfg.SecretKey == "" {
		return nil, errors.New("storage secret key is required")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "http://localhost:9000"
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		if cfg.UseSSL {
			endpoint = "https://" + endpoint
		} else {
			endpoint = "http://" + endpoint
		}
	}
	if _, err := url.Parse(endpoint); err != nil {
		return nil, fmt.Errorf("invalid storage endpoint: %w", err)
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		o.BaseEndpoint = aws.String(endpoint)
	})

	store := &S3ArtifactStore{
		client:            client,
		presignClient:     s3.NewPresignClient(client),
		bucket:            cfg.Bucket,
		prefix:            strings.Trim(cfg.Prefix, "/"),
		presignExpiration: cfg.PresignExpiration,
		logger:            zap.NewNop(),
	}
	for _, opt := range opts {
		opt(store)
	}
	if store.presignExpiration == 0 {
		store.presignExpiration = 15 * time.Minute
	}
	return store, nil
}

// EnsureBucket creates the bucket if it doesn't exist. Call it during startup.
func (s *S3ArtifactStore) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	s.logger.Info("Creating artifact bucket", zap.String("bucket", s.bucket))
	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		var alreadyOwned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &alreadyOwned) {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// Put uploads an artifact under the configured prefix
func (s *S3ArtifactStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if key == "" {
		return errors.New("artifact key is required")
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.objectKey(key)),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return fmt.Errorf("failed to upload artifact: %w", err)
	}

	s.logger.Debug("Artifact uploaded",
		zap.String("bucket", s.bucket),
		zap.String("key", s.objectKey(key)),
		zap.Int("size", len(data)),
	)
	return nil
}

// DownloadURL returns a presigned GET URL for an artifact
func (s *S3ArtifactStore) DownloadURL(ctx context.Context, key string) (string, time.Time, error) {
	if key == "" {
		return "", time.Time{}, errors.New("artifact key is required")
	}

	req, err := s.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	}, s3.WithPresignExpires(s.presignExpiration))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate download URL: %w", err)
	}
	return req.URL, time.Now().Add(s.presignExpiration), nil
}

// GetBucket returns the bucket name
func (s *S3ArtifactStore) GetBucket() string {
	return s.bucket
}

func (s *S3ArtifactStore) objectKey(key string) string {
	key = strings.TrimLeft(key, "/")
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}

// NopArtifactStore discards artifacts. It is used when storage is disabled.
type NopArtifactStore struct{}

// Put discards the artifact
func (NopArtifactStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	return nil
}

var _ delivery.ArtifactStore = NopArtifactStore{}

// ScreenshotKey returns the artifact key for a failed portal run
func ScreenshotKey(restaurantID string, platform delivery.Platform, operation string, at time.Time) string {
	return fmt.Sprintf("screenshots/%s/%s/%s-%s.png",
		restaurantID, platform, operation, at.UTC().Format("20060102T150405Z"))
}
