package manifest

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// S3Source fetches a manifest from Amazon S3 or a compatible object store.
// Without credentials the source works for publicly readable objects.
type S3Source struct {
	client *s3.S3
	bucket string
	key    string
	log    *slog.Logger
	uri    string
}

// NewS3Source creates an S3 manifest source. When accessKey and secretKey
// are empty the client is anonymous, which is enough for public buckets.
func NewS3Source(bucket, key, region, endpoint, accessKey, secretKey string, log *slog.Logger) (*S3Source, error) {
	cfg := aws.Config{
		Region: aws.String(region),
	}
	if endpoint != "" {
		cfg.Endpoint = aws.String(endpoint)
	}
	if accessKey != "" && secretKey != "" {
		cfg.Credentials = credentials.NewStaticCredentials(accessKey, secretKey, "")
	}

	sess, err := session.NewSession(&cfg)
	if err != nil {
		return nil, fmt.Errorf("could not create AWS session: %w", err)
	}

	return &S3Source{
		client: s3.New(sess),
		bucket: bucket,
		key:    key,
		log:    log,
		uri:    fmt.Sprintf("s3://%s/%s?region=%s", bucket, key, region),
	}, nil
}

// Fetch downloads the manifest object.
func (s *S3Source) Fetch(ctx context.Context) (string, error) {
	result, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		return "", fmt.Errorf("could not fetch manifest from s3://%s/%s: %w", s.bucket, s.key, err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return "", fmt.Errorf("could not read manifest object: %w", err)
	}

	s.log.Debug("loaded manifest from s3",
		slog.String("bucket", s.bucket),
		slog.String("key", s.key),
		slog.Int("size", len(data)))
	return string(data), nil
}

// LocationURI returns the source location with credentials elided.
func (s *S3Source) LocationURI() string {
	return s.uri
}
