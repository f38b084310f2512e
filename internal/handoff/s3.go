package handoff

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/MrWong99/voicerec/pkg/audio"
)

// uploader is the subset of [manager.Uploader] used by [S3].
type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Config locates the bucket. Credentials come from the default AWS chain
// unless a static key pair or AWSOptions supplies others.
type S3Config struct {
	Bucket string
	Prefix string
	Region string

	// Endpoint switches to an S3-compatible service (MinIO, R2, ...) and
	// path-style addressing.
	Endpoint string

	// AccessKeyID and SecretAccessKey, when both set, replace the default
	// credential chain.
	AccessKeyID     string
	SecretAccessKey string

	AWSOptions []func(*awsconfig.LoadOptions) error
}

// S3 uploads artifacts to <prefix><timestamp>-<name> in a bucket.
type S3 struct {
	bucket   string
	prefix   string
	uploader uploader
	now      func() time.Time
}

var _ Handoff = (*S3)(nil)

// NewS3 loads the AWS configuration and returns an S3 handoff.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	opts := append([]func(*awsconfig.LoadOptions) error(nil), cfg.AWSOptions...)
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("handoff: s3: load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3{
		bucket:   cfg.Bucket,
		prefix:   cfg.Prefix,
		uploader: manager.NewUploader(client),
		now:      time.Now,
	}, nil
}

// Name implements [Handoff].
func (s *S3) Name() string { return "s3" }

// Key returns the first object key tried for an artifact named name at time t.
func (s *S3) Key(t time.Time, name string) string {
	return s.prefix + stampedName(t, name)
}

// Deliver implements [Handoff]. Uploads are conditional on the key being
// absent; a taken key is retried with a numbered variant of the name.
func (s *S3) Deliver(ctx context.Context, a audio.Artifact) error {
	stamped := stampedName(s.now(), a.Name)
	for n := range maxNameAttempts {
		key := s.prefix + numberedName(stamped, n)
		out, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(s.bucket),
			Key:           aws.String(key),
			Body:          bytes.NewReader(a.Data),
			ContentType:   aws.String(a.ContentType),
			ContentLength: aws.Int64(int64(a.Size())),
			IfNoneMatch:   aws.String("*"),
		})
		if isKeyTaken(err) {
			continue
		}
		if err != nil {
			return fmt.Errorf("handoff: s3: upload s3://%s/%s: %w", s.bucket, key, err)
		}
		slog.InfoContext(ctx, "recording uploaded", "bucket", s.bucket, "key", key, "location", out.Location, "bytes", a.Size())
		return nil
	}
	return fmt.Errorf("handoff: s3: %d keys for %q already taken in %s", maxNameAttempts, s.prefix+stamped, s.bucket)
}

// isKeyTaken reports whether err is the precondition failure S3 returns for
// an If-None-Match upload onto an existing key.
func isKeyTaken(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "PreconditionFailed"
}
