package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// ObjectGetter is the part of *s3.Client used to fetch template overrides.
type ObjectGetter interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Options locates an S3-compatible endpoint.
type S3Options struct {
	Region       string
	BaseEndpoint string
	User         string
	Password     string
}

var loadDefaultAWSConfig = config.LoadDefaultConfig

// NewS3Client builds a path-style client, suitable for MinIO as well as AWS.
func NewS3Client(ctx context.Context, o S3Options) (*s3.Client, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(o.Region)}
	if o.User != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(o.User, o.Password, "")))
	}

	cfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(so *s3.Options) {
		if o.BaseEndpoint != "" {
			so.BaseEndpoint = aws.String(o.BaseEndpoint)
			so.UsePathStyle = true
		}
	}), nil
}

// LoadS3Templates replaces templates with objects named <prefix>/<kind>.html
// found in bucket. Missing objects keep the embedded default. It returns the
// kinds that were overridden.
func LoadS3Templates(ctx context.Context, client ObjectGetter, bucket, prefix string, t *Templates) ([]string, error) {
	var loaded []string
	for _, kind := range Kinds {
		key := path.Join(prefix, kind+".html")

		out, err := client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			var nsk *types.NoSuchKey
			if errors.As(err, &nsk) {
				continue
			}
			return loaded, fmt.Errorf("get s3://%s/%s: %w", bucket, key, err)
		}

		body, err := io.ReadAll(out.Body)
		_ = out.Body.Close()
		if err != nil {
			return loaded, fmt.Errorf("read s3://%s/%s: %w", bucket, key, err)
		}
		if err := t.Override(kind, string(body)); err != nil {
			return loaded, err
		}
		loaded = append(loaded, kind)
	}
	return loaded, nil
}
