// Package s3blob archives trade reports to S3 or an S3-compatible store
// (MinIO, R2) using AWS SDK v2.
package s3blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/TwiZzy841/solana-ai-trading-bot/internal/domain"
)

// partSize is the multipart chunk size. Bodies at or below it are sent as a
// single PutObject by the uploader.
const partSize int64 = 8 << 20

var _ domain.ObjectStore = (*Bucket)(nil)

// ClientConfig locates the bucket reports are written to.
type ClientConfig struct {
	Endpoint string // empty for AWS itself
	Region   string
	Bucket   string

	// Empty keys fall back to the default AWS credential chain.
	AccessKey string
	SecretKey string

	UseSSL         bool
	ForcePathStyle bool
}

// Bucket is a single S3 bucket with a shared multipart uploader.
type Bucket struct {
	api      *s3.Client
	uploader *manager.Uploader
	name     string
}

// Open resolves credentials and returns a handle on cfg.Bucket. It does not
// contact the store; use Health for that.
func Open(ctx context.Context, cfg ClientConfig) (*Bucket, error) {
	var missing []error
	if cfg.Bucket == "" {
		missing = append(missing, errors.New("bucket is required"))
	}
	if cfg.Region == "" {
		missing = append(missing, errors.New("region is required"))
	}
	if err := errors.Join(missing...); err != nil {
		return nil, fmt.Errorf("s3blob: %w", err)
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, configOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("s3blob: load aws config: %w", err)
	}

	api := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(withScheme(cfg.Endpoint, cfg.UseSSL))
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})
	return &Bucket{
		api:  api,
		name: cfg.Bucket,
		uploader: manager.NewUploader(api, func(u *manager.Uploader) {
			u.PartSize = partSize
			u.Concurrency = 2
		}),
	}, nil
}

func configOptions(cfg ClientConfig) []func(*config.LoadOptions) error {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	return opts
}

// Name is the bucket name.
func (b *Bucket) Name() string { return b.name }

// Health issues HeadBucket.
func (b *Bucket) Health(ctx context.Context) error {
	if _, err := b.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(b.name)}); err != nil {
		return fmt.Errorf("s3blob: head bucket %s: %w", b.name, err)
	}
	return nil
}

// PutObject uploads obj with server-side encryption.
func (b *Bucket) PutObject(ctx context.Context, obj domain.ReportObject) error {
	_, err := b.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(b.name),
		Key:                  aws.String(obj.Key),
		Body:                 bytes.NewReader(obj.Body),
		ContentType:          aws.String(obj.ContentType),
		Metadata:             obj.Metadata,
		ServerSideEncryption: types.ServerSideEncryptionAes256,
	})
	if err != nil {
		return fmt.Errorf("s3blob: put %s: %w", obj.Key, err)
	}
	return nil
}

// withScheme prefixes endpoint with http or https unless it already names
// a scheme.
func withScheme(endpoint string, useSSL bool) string {
	if u, err := url.Parse(endpoint); err == nil && u.Scheme != "" {
		return endpoint
	}
	if useSSL {
		return "https://" + endpoint
	}
	return "http://" + endpoint
}
