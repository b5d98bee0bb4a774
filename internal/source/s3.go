// Package source fetches upstream data for the Extract stage from an
// S3-compatible bucket (AWS S3, MinIO, LocalStack).
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	appconfig "github.com/conveyor-etl/conveyor/internal/config"
)

// S3Fetcher reads raw objects from an upstream S3-compatible bucket.
type S3Fetcher struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Fetcher creates a fetcher. Works with both AWS S3 and MinIO.
func NewS3Fetcher(cfg appconfig.SourceS3Config) (*S3Fetcher, error) {
	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = &cfg.Endpoint
			o.UsePathStyle = true
		}
	})

	return &S3Fetcher{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// Fetch opens the referenced upstream object. The reference is joined onto
// the configured prefix. The caller closes the reader; size is -1 when the
// upstream does not report a content length.
func (f *S3Fetcher) Fetch(ctx context.Context, ref string) (io.ReadCloser, int64, error) {
	key := ref
	if f.prefix != "" {
		key = path.Join(f.prefix, ref)
	}

	resp, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &f.bucket,
		Key:    &key,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("get s3 object %s/%s: %w", f.bucket, key, err)
	}

	size := int64(-1)
	if resp.ContentLength != nil {
		size = *resp.ContentLength
	}
	return resp.Body, size, nil
}

// Exists reports whether the referenced upstream object is present.
func (f *S3Fetcher) Exists(ctx context.Context, ref string) (bool, error) {
	key := ref
	if f.prefix != "" {
		key = path.Join(f.prefix, ref)
	}

	_, err := f.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &f.bucket,
		Key:    &key,
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return false, nil
		}
		return false, fmt.Errorf("head s3 object %s/%s: %w", f.bucket, key, err)
	}
	return true, nil
}
