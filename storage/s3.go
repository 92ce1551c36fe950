package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ImageUploader stores product images and returns their public URL.
type ImageUploader interface {
	Upload(ctx context.Context, name, contentType string, body io.Reader) (string, error)
}

type S3Uploader struct {
	uploader *manager.Uploader
	bucket   string
	prefix   string
	now      func() time.Time
}

// NewS3Uploader loads the default AWS configuration chain.
func NewS3Uploader(ctx context.Context, bucket, prefix string) (*S3Uploader, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("error loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg)
	return &S3Uploader{
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		prefix:   strings.Trim(prefix, "/"),
		now:      time.Now,
	}, nil
}

func (u *S3Uploader) Upload(ctx context.Context, name, contentType string, body io.Reader) (string, error) {
	result, err := u.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(ObjectKey(u.prefix, name, u.now())),
		Body:        body,
		ACL:         "public-read",
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", name, err)
	}
	return result.Location, nil
}

// ObjectKey prefixes the file name with a timestamp so uploads never overwrite.
func ObjectKey(prefix, name string, at time.Time) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	base = strings.ReplaceAll(base, " ", "-")
	if base == "." || base == "/" || base == "" {
		base = "image"
	}
	key := fmt.Sprintf("%s-%s", at.UTC().Format("20060102150405"), base)
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}
