package fetch

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/hpungsan/claimstore/internal/config"
)

// S3API is the subset of the S3 client used for redemption.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Fetcher opens s3://bucket/key references.
type S3Fetcher struct {
	once   sync.Once
	client S3API
	err    error
	newAPI func(ctx context.Context) (S3API, error)
}

// NewS3Fetcher returns a fetcher over an existing client.
func NewS3Fetcher(client S3API) *S3Fetcher {
	f := &S3Fetcher{client: client}
	f.once.Do(func() {})
	return f
}

// NewLazyS3Fetcher returns a fetcher that builds its client from cfg on first
// use.
func NewLazyS3Fetcher(cfg config.S3Config) *S3Fetcher {
	return &S3Fetcher{newAPI: func(ctx context.Context) (S3API, error) {
		return NewS3Client(ctx, cfg)
	}}
}

// NewS3Client builds an S3 client from configuration.
func NewS3Client(ctx context.Context, cfg config.S3Config) (*s3.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

// Fetch implements Fetcher.
func (f *S3Fetcher) Fetch(ctx context.Context, u *url.URL) (io.ReadCloser, error) {
	f.once.Do(func() {
		f.client, f.err = f.newAPI(ctx)
	})
	if f.err != nil {
		return nil, f.err
	}

	bucket := u.Host
	key := strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return nil, fmt.Errorf("s3 reference %q needs a bucket and a key", u.String())
	}

	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	return out.Body, nil
}
