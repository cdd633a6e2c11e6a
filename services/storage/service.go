package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"

	"github.com/prodiguer/hermes/interfaces"
	hermeserrors "github.com/prodiguer/hermes/internal/errors"
	"github.com/prodiguer/hermes/internal/tracing"
	"github.com/prodiguer/hermes/services/storage/aws_client"
)

const (
	EmailPrefix      = "emails"
	EmailContentType = "message/rfc822"
)

// ObjectStorageService implements StorageService on one bucket.
type ObjectStorageService struct {
	client     aws_client.S3Client
	bucketName string
}

type StorageConfig struct {
	BucketName string
}

func NewStorageService(client aws_client.S3Client, config StorageConfig) interfaces.StorageService {
	return &ObjectStorageService{
		client:     client,
		bucketName: config.BucketName,
	}
}

// EmailKey is where the raw source email of a batch is archived.
func EmailKey(emailUID uint32) string {
	return path.Join(EmailPrefix, fmt.Sprintf("%d.eml", emailUID))
}

func (s *ObjectStorageService) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	span, ctx := tracing.StartTracerSpan(ctx, "ObjectStorageService.Upload")
	defer span.Finish()
	tracing.TagComponentService(span)
	span.LogKV("key", key, "size", len(data))

	err := s.client.Upload(ctx, s3manager.UploadInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return hermeserrors.NewCollaboratorError("storage", "upload "+key, err)
	}
	return nil
}

func (s *ObjectStorageService) Download(ctx context.Context, key string) ([]byte, error) {
	span, ctx := tracing.StartTracerSpan(ctx, "ObjectStorageService.Download")
	defer span.Finish()
	tracing.TagComponentService(span)

	content, err := s.client.Download(ctx, s.bucketName, key)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, hermeserrors.NewCollaboratorError("storage", "download "+key, err)
	}
	return content, nil
}

func (s *ObjectStorageService) Delete(ctx context.Context, key string) error {
	span, ctx := tracing.StartTracerSpan(ctx, "ObjectStorageService.Delete")
	defer span.Finish()
	tracing.TagComponentService(span)

	if err := s.client.Delete(ctx, s.bucketName, key); err != nil {
		tracing.TraceErr(span, err)
		return hermeserrors.NewCollaboratorError("storage", "delete "+key, err)
	}
	return nil
}
