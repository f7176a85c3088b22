package imagesource

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// S3Storage implements ObjectStorage against any S3-compatible endpoint.
type S3Storage struct {
	client *s3.Client
	bucket string
	prefix string
}

// S3Options configures an S3Storage.
type S3Options struct {
	Endpoint string // empty for AWS proper
	Region   string
	Key      string
	Secret   string
	Bucket   string
	Prefix   string
}

// NewS3Storage creates an S3-backed object storage.
func NewS3Storage(opts S3Options) (*S3Storage, error) {
	if opts.Key == "" || opts.Secret == "" {
		return nil, fmt.Errorf("key and secret are required")
	}
	if opts.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	region := opts.Region
	if region == "" {
		region = "auto"
	}

	clientOpts := s3.Options{
		Region:       region,
		Credentials:  credentials.NewStaticCredentialsProvider(opts.Key, opts.Secret, ""),
		UsePathStyle: true,
	}
	if opts.Endpoint != "" {
		endpoint := strings.TrimSuffix(opts.Endpoint, "/"+opts.Bucket)
		clientOpts.BaseEndpoint = aws.String(endpoint)
	}

	return &S3Storage{
		client: s3.New(clientOpts),
		bucket: opts.Bucket,
		prefix: opts.Prefix,
	}, nil
}

func (s *S3Storage) key(p string) string {
	return path.Join(s.prefix, p)
}

// Exists implements ObjectStorage.
func (s *S3Storage) Exists(ctx context.Context, p string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(p)),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NotFound" || apiErr.ErrorCode() == "NoSuchKey") {
			return false, nil
		}
		return false, fmt.Errorf("head object: %w", err)
	}
	return true, nil
}

// SignedURL implements ObjectStorage.
func (s *S3Storage) SignedURL(ctx context.Context, p string, expires time.Duration) (string, error) {
	presignClient := s3.NewPresignClient(s.client)
	request, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(p)),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return "", fmt.Errorf("presign get object: %w", err)
	}
	return request.URL, nil
}
