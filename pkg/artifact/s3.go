// Package artifact stores generated pipeline artifacts (specs, glue code)
// in object storage, addressed by s3:// path.
package artifact

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/datamorph/datamorph/pkg/config"
)

type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Store struct {
	client s3API
}

func NewStore(ctx context.Context, cfg *config.ArtifactsConfig) (*Store, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	awsConfig, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &Store{client: s3.NewFromConfig(awsConfig)}, nil
}

// NewStoreWithClient is used by tests to substitute the S3 API.
func NewStoreWithClient(client s3API) *Store {
	return &Store{client: client}
}

// Put uploads content under the given s3://bucket/key path and returns the
// path back for logging.
func (s *Store) Put(ctx context.Context, path, content string) (string, error) {
	bucket, key, err := ParsePath(path)
	if err != nil {
		return "", err
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   strings.NewReader(content),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", path, err)
	}

	return path, nil
}

// ParsePath splits s3://bucket/key into bucket and key.
func ParsePath(path string) (bucket, key string, err error) {
	if !strings.HasPrefix(path, "s3://") {
		return "", "", fmt.Errorf("invalid s3 path format: %s", path)
	}

	rest := strings.TrimPrefix(path, "s3://")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid s3 path format: %s", path)
	}

	return parts[0], parts[1], nil
}
