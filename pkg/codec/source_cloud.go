package codec

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"google.golang.org/api/option"
)

// ── s3 ───────────────────────────────────────────────────────────────────────

// s3Source downloads s3://bucket/key using the default AWS credential chain.
// An optional ?region= query parameter overrides the configured region.
type s3Source struct {
	bucket string
	key    string
	region string
	env    Env
}

func newS3Source(u *url.URL, env Env) (Source, error) {
	key := strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return nil, fmt.Errorf("%w: s3 source needs s3://bucket/key, got %q", ErrUnsupportedSource, u.String())
	}
	return s3Source{bucket: u.Host, key: key, region: u.Query().Get("region"), env: env}, nil
}

func (s s3Source) Name() string { return "s3://" + s.bucket + "/" + s.key }

func (s s3Source) Fetch(ctx context.Context) (Codec, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if s.region != "" {
		opts = append(opts, awsconfig.WithRegion(s.region))
	}
	opts = append(opts, s.env.AWSOptions...)
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("codec: load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if ep := s.env.Endpoints.S3; ep != "" {
			o.BaseEndpoint = aws.String(ep)
			o.UsePathStyle = true
		}
	})
	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		return nil, fmt.Errorf("codec: s3 get %s: %w", s.Name(), err)
	}
	defer out.Body.Close()
	return s.env.install(out.Body)
}

// ── gcs ──────────────────────────────────────────────────────────────────────

// gcsSource downloads gs://bucket/object with application default credentials.
type gcsSource struct {
	bucket string
	object string
	env    Env
}

func newGCSSource(u *url.URL, env Env) (Source, error) {
	obj := strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || obj == "" {
		return nil, fmt.Errorf("%w: gcs source needs gs://bucket/object, got %q", ErrUnsupportedSource, u.String())
	}
	return gcsSource{bucket: u.Host, object: obj, env: env}, nil
}

func (s gcsSource) Name() string { return "gs://" + s.bucket + "/" + s.object }

func (s gcsSource) Fetch(ctx context.Context) (Codec, error) {
	var opts []option.ClientOption
	if ep := s.env.Endpoints.GCS; ep != "" {
		opts = append(opts, option.WithEndpoint(ep), option.WithoutAuthentication())
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("codec: gcs client: %w", err)
	}
	defer client.Close()

	r, err := client.Bucket(s.bucket).Object(s.object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("codec: gcs read %s: %w", s.Name(), err)
	}
	defer r.Close()
	return s.env.install(r)
}

// ── azure ────────────────────────────────────────────────────────────────────

// azureSource downloads az://account/container/blob from a public container.
type azureSource struct {
	account   string
	container string
	blob      string
	env       Env
}

func newAzureSource(u *url.URL, env Env) (Source, error) {
	container, blob, _ := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
	if u.Host == "" || container == "" || blob == "" {
		return nil, fmt.Errorf("%w: azure source needs az://account/container/blob, got %q", ErrUnsupportedSource, u.String())
	}
	return azureSource{account: u.Host, container: container, blob: blob, env: env}, nil
}

func (s azureSource) Name() string {
	return "az://" + s.account + "/" + s.container + "/" + s.blob
}

func (s azureSource) Fetch(ctx context.Context) (Codec, error) {
	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", s.account)
	if ep := s.env.Endpoints.Azure; ep != "" {
		serviceURL = strings.TrimSuffix(ep, "/") + "/" + s.account + "/"
	}
	client, err := azblob.NewClientWithNoCredential(serviceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("codec: azure client: %w", err)
	}
	resp, err := client.DownloadStream(ctx, s.container, s.blob, nil)
	if err != nil {
		return nil, fmt.Errorf("codec: azure download %s: %w", s.Name(), err)
	}
	defer resp.Body.Close()
	return s.env.install(resp.Body)
}
