package journal

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"gopkg.in/yaml.v3"
)

// objectPutter is the part of the S3 client the sink uses.
type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink writes each plan's entries as one YAML object under
// <prefix>/<yyyy-mm-dd>/<plan id>.yaml.
type S3Sink struct {
	client objectPutter
	bucket string
	prefix string
}

// NewS3Sink loads the default AWS configuration for region.
func NewS3Sink(ctx context.Context, region, bucket, prefix string) (*S3Sink, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return &S3Sink{client: s3.NewFromConfig(cfg), bucket: bucket, prefix: prefix}, nil
}

func (s *S3Sink) key(e Entry) string {
	return path.Join(s.prefix, e.Time.UTC().Format("2006-01-02"), e.PlanID+".yaml")
}

func (s *S3Sink) Write(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			return fmt.Errorf("encoding journal entry: %w", err)
		}
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encoding journal entry: %w", err)
	}

	key := s.key(entries[len(entries)-1])
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/yaml"),
	})
	if err != nil {
		return fmt.Errorf("uploading s3://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}

func (s *S3Sink) Close(context.Context) error { return nil }
