package assets

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type s3Mirror struct {
	client *s3.Client
	bucket string
	prefix string
}

func NewS3Mirror(ctx context.Context) (Mirror, error) {
	bucket := os.Getenv("S3_BUCKET")
	if bucket == "" {
		return nil, fmt.Errorf("S3_BUCKET required when enabling s3 mirror")
	}
	prefix := os.Getenv("S3_PREFIX")
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	return &s3Mirror{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}, nil
}

func (s *s3Mirror) Name() string {
	return "s3"
}

func (s *s3Mirror) StoreAsset(ctx context.Context, filename string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(s.keyFor(filename)),
		Body:         bytes.NewReader(data),
		ACL:          types.ObjectCannedACLPrivate,
		ContentType:  aws.String("application/octet-stream"),
		CacheControl: aws.String("public, max-age=31536000, immutable"),
	})
	return err
}

func (s *s3Mirror) keyFor(filename string) string {
	if s.prefix == "" {
		return path.Join("assets", filename)
	}
	return path.Join(s.prefix, "assets", filename)
}
