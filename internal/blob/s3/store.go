// Package s3 provides an S3-backed blob store, usable against AWS or any
// S3-compatible endpoint.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/yuimarudev/mox/internal/blob"
)

// Store implements blob.Store using AWS S3.
type Store struct {
	client *s3.Client
	bucket string
}

// Ensure Store implements blob.Store.
var _ blob.Store = (*Store)(nil)

// New creates a new S3 blob store. The context is used for AWS credential
// loading and configuration.
func New(ctx context.Context, opts ...Option) (*Store, error) {
	o := &options{
		region: "us-east-1",
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	optFns := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(o.region),
	}
	if o.accessKey != "" && o.secretKey != "" {
		creds := credentials.NewStaticCredentialsProvider(o.accessKey, o.secretKey, "")
		optFns = append(optFns, awsconfig.WithCredentialsProvider(creds))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(so *s3.Options) {
		if o.endpoint != "" {
			so.BaseEndpoint = aws.String(o.endpoint)
			so.UsePathStyle = o.usePathStyle
		}
	})

	return &Store{client: client, bucket: o.bucket}, nil
}

// Put uploads an object under key.
func (s *Store) Put(ctx context.Context, key string, body io.Reader, opts blob.PutOptions) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}
	if opts.ContentDisposition != "" {
		input.ContentDisposition = aws.String(opts.ContentDisposition)
	}
	if len(opts.Metadata) > 0 {
		input.Metadata = opts.Metadata
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// Get streams the object stored under key, or blob.ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, blob.ObjectInfo, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, blob.ObjectInfo{}, blob.ErrNotFound
		}
		return nil, blob.ObjectInfo{}, fmt.Errorf("get %s: %w", key, err)
	}

	info := blob.ObjectInfo{
		ContentType:        aws.ToString(out.ContentType),
		ContentDisposition: aws.ToString(out.ContentDisposition),
		Size:               aws.ToInt64(out.ContentLength),
	}
	return out.Body, info, nil
}
