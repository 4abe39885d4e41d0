package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

const s3KeyPrefix = "generations"

// putObjectAPI is the part of *s3.Client S3Storage needs.
type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// ── S3 Storage ────────────────────────────────────────────────────────────────

type S3Storage struct {
	Bucket string
	Region string
	// PublicBaseURL is prepended to object keys, e.g. a CloudFront domain.
	// Empty means the bucket's virtual-hosted URL.
	PublicBaseURL string

	client putObjectAPI
}

// NewS3Storage loads credentials from the default AWS chain (env, shared
// config, instance role).
func NewS3Storage(ctx context.Context, bucket, region, publicBaseURL string) (*S3Storage, error) {
	if bucket == "" || region == "" {
		return nil, errors.New("AWS_BUCKET and AWS_REGION are required for s3 storage")
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS SDK config: %w", err)
	}

	return &S3Storage{
		Bucket:        bucket,
		Region:        region,
		PublicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		client:        s3.NewFromConfig(cfg),
	}, nil
}

func (s *S3Storage) Upload(ctx context.Context, r io.Reader, filename string, contentType string) (string, error) {
	key := path.Join(s3KeyPrefix, uuid.NewString()+filepath.Ext(filepath.Base(filename)))

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.Bucket),
		Key:         aws.String(key),
		Body:        r,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload file to S3: %w", err)
	}

	return s.objectURL(key), nil
}

func (s *S3Storage) objectURL(key string) string {
	if s.PublicBaseURL != "" {
		return s.PublicBaseURL + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.Bucket, s.Region, key)
}
