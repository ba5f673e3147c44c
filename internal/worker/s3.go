package worker

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/spigell/resume-fit/internal/document"
)

// Resume uploads larger than this are rejected.
const maxResumeBytes = 20 << 20

type S3Config struct {
	Bucket    string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
}

type objectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Fetcher downloads resumes from an S3 compatible bucket (AWS, R2, MinIO)
// and extracts their text.
type S3Fetcher struct {
	client objectGetter
	bucket string
}

func NewS3Fetcher(ctx context.Context, cfg S3Config) (*S3Fetcher, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKey != "" || cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Fetcher{client: client, bucket: cfg.Bucket}, nil
}

// Fetch downloads key and returns its text. An empty mimeType falls back to
// the object's content type and then to the key's extension.
func (f *S3Fetcher) Fetch(ctx context.Context, key, mimeType string) (string, error) {
	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get object: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(io.LimitReader(out.Body, maxResumeBytes+1))
	if err != nil {
		return "", fmt.Errorf("failed to read object body: %w", err)
	}
	if len(data) > maxResumeBytes {
		return "", fmt.Errorf("%w: object is larger than %d bytes", document.ErrUnsupported, maxResumeBytes)
	}

	if mimeType == "" {
		mimeType = aws.ToString(out.ContentType)
	}
	return document.Extract(path.Base(key), mimeType, data)
}
