// Package storage provides the S3-compatible blob store used for raw
// document payloads that exceed the inline threshold.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/fx"

	"github.com/ragedhq/raged/internal/config"
	"github.com/ragedhq/raged/pkg/apperror"
	"github.com/ragedhq/raged/pkg/logger"
)

var Module = fx.Module("storage",
	fx.Provide(NewService),
)

// Service provides blob read/write for raw payloads. When the blob store
// is not configured every method reports it unavailable and ingestion
// keeps payloads inline.
type Service struct {
	client *s3.Client
	bucket string
	log    *slog.Logger
}

// NewService creates the blob store client from config
func NewService(cfg *config.Config, log *slog.Logger) (*Service, error) {
	log = log.With(logger.Scope("storage"))

	if !cfg.Blob.Enabled() {
		log.Info("blob store disabled - no configuration provided")
		return &Service{log: log}, nil
	}

	blob := cfg.Blob

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(blob.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			blob.AccessKey,
			blob.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("load blob store config: %w", err)
	}

	// Path-style addressing for MinIO-compatible endpoints.
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(blob.Endpoint)
		o.UsePathStyle = true
	})

	log.Info("blob store initialized",
		slog.String("endpoint", blob.Endpoint),
		slog.String("bucket", blob.Bucket),
	)

	return &Service{
		client: client,
		bucket: blob.Bucket,
		log:    log,
	}, nil
}

// Enabled returns true if the blob store is configured
func (s *Service) Enabled() bool {
	return s.client != nil
}

// Put writes a raw payload under the given key
func (s *Service) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if !s.Enabled() {
		return apperror.ErrBlobUnavailable
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		s.log.Error("blob upload failed",
			slog.String("key", key),
			logger.Error(err),
		)
		return apperror.ErrBlobUnavailable.WithInternal(err)
	}

	s.log.Debug("blob uploaded",
		slog.String("key", key),
		slog.Int("size", len(data)),
	)
	return nil
}

// Get reads a raw payload by key
func (s *Service) Get(ctx context.Context, key string) ([]byte, error) {
	if !s.Enabled() {
		return nil, apperror.ErrBlobUnavailable
	}

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		s.log.Error("blob download failed",
			slog.String("key", key),
			logger.Error(err),
		)
		return nil, apperror.ErrBlobUnavailable.WithInternal(err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, apperror.ErrBlobUnavailable.WithInternal(err)
	}
	return data, nil
}

// Delete removes a raw payload by key
func (s *Service) Delete(ctx context.Context, key string) error {
	if !s.Enabled() {
		return apperror.ErrBlobUnavailable
	}

	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return apperror.ErrBlobUnavailable.WithInternal(err)
	}
	return nil
}

// Exists checks if a payload exists under the key
func (s *Service) Exists(ctx context.Context, key string) (bool, error) {
	if !s.Enabled() {
		return false, apperror.ErrBlobUnavailable
	}

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "NotFound") || strings.Contains(errStr, "404") || strings.Contains(errStr, "NoSuchKey") {
			return false, nil
		}
		return false, apperror.ErrBlobUnavailable.WithInternal(err)
	}
	return true, nil
}

// RawKey builds the storage key for a document's raw payload
func RawKey(collection, documentID string) string {
	return fmt.Sprintf("%s/%s", collection, documentID)
}
