package filestorage

import (
	"context"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"

	"github.com/geclass/geclass/internal/pkg/apperrors"
	"github.com/geclass/geclass/internal/pkg/logger"
)

// S3Config configures the report publisher.
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	Prefix    string
	AccessKey string
	SecretKey string
}

// S3Publisher uploads finished report directories to a bucket.
type S3Publisher struct {
	client s3iface.S3API
	bucket string
	prefix string
}

// NewS3Publisher creates a publisher from static credentials.
func NewS3Publisher(cfg S3Config) (*S3Publisher, error) {
	awsConfig := &aws.Config{
		Region:           aws.String(cfg.Region),
		S3ForcePathStyle: aws.Bool(cfg.Endpoint != ""),
	}
	if cfg.Endpoint != "" {
		awsConfig.Endpoint = aws.String(cfg.Endpoint)
	}
	if cfg.AccessKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, "")
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create aws session: %w", err)
	}
	return NewS3PublisherWithClient(s3.New(sess), cfg.Bucket, cfg.Prefix), nil
}

// NewS3PublisherWithClient creates a publisher on an existing client.
func NewS3PublisherWithClient(client s3iface.S3API, bucket, prefix string) *S3Publisher {
	return &S3Publisher{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}
}

// Key returns the object key of a file of a course report.
func (p *S3Publisher) Key(identifier, rel string) string {
	return path.Join(p.prefix, identifier, filepath.ToSlash(rel))
}

// Publish uploads every regular file below dir.
func (p *S3Publisher) Publish(ctx context.Context, dir, identifier string) error {
	return filepath.WalkDir(dir, func(name string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dir, name)
		if err != nil {
			return err
		}
		return p.upload(ctx, name, p.Key(identifier, rel))
	})
}

func (p *S3Publisher) upload(ctx context.Context, name, key string) error {
	f, err := os.Open(name)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer f.Close()

	input := &s3.PutObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
		Body:   f,
	}
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		input.ContentType = aws.String(ct)
	}
	if _, err := p.client.PutObjectWithContext(ctx, input); err != nil {
		return fmt.Errorf("%w: %s: %v", apperrors.ErrPublish, key, err)
	}
	logger.Debug().Str("bucket", p.bucket).Str("key", key).Msg("Report file uploaded")
	return nil
}
