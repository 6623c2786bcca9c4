// Package upload publishes exported reports to S3-compatible storage.
package upload

import (
	"bytes"
	"context"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"bidsconv/internal/errors"
	"bidsconv/internal/log"
)

// DefaultPrefix is the key prefix exports are uploaded under.
const DefaultPrefix = "processed_data"

// S3Config holds connection settings for the bucket.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

// objectAPI is the subset of *minio.Client used here.
type objectAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64,
		opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// S3Uploader puts files into one bucket, creating it on first use.
type S3Uploader struct {
	client     objectAPI
	bucketName string
	region     string
	prefix     string
	logger     log.Logging
	initOnce   sync.Once
	initErr    error
}

// NewS3Uploader validates cfg and creates the client.
func NewS3Uploader(cfg S3Config, logger log.Logging) (*S3Uploader, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, errors.NewConfigError("s3 endpoint is required", "s3.endpoint", errors.InvalidConfig, nil)
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, errors.NewConfigError("s3 access key and secret key are required", "s3.access_key", errors.InvalidConfig, nil)
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, errors.NewConfigError("s3 bucket is required", "s3.bucket", errors.InvalidConfig, nil)
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, errors.Wrap(err, "init s3 client")
	}
	return newUploader(client, bucket, region, cfg.Prefix, logger), nil
}

func newUploader(client objectAPI, bucket, region, prefix string, logger log.Logging) *S3Uploader {
	if logger == nil {
		logger = log.Nop()
	}
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &S3Uploader{
		client:     client,
		bucketName: bucket,
		region:     region,
		prefix:     prefix,
		logger:     logger,
	}
}

func (s *S3Uploader) ensureBucket(ctx context.Context) error {
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucketName)
		if err != nil {
			s.initErr = err
			return
		}
		if exists {
			return
		}
		s.logger.With(log.F("bucket", s.bucketName)).Info("Creating bucket")
		s.initErr = s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{Region: s.region})
	})
	return s.initErr
}

// Key returns the object key name is stored under.
func (s *S3Uploader) Key(name string) string {
	return path.Join(s.prefix, strings.TrimLeft(strings.TrimSpace(name), "/"))
}

// Put uploads content as name and returns the object key.
func (s *S3Uploader) Put(ctx context.Context, name string, content []byte, contentType string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", errors.NewUploadError("object name is required", "", nil)
	}
	key := s.Key(name)
	if err := s.ensureBucket(ctx); err != nil {
		return key, errors.NewUploadError("ensure bucket", key, err)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := s.client.PutObject(ctx, s.bucketName, key, bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return key, errors.NewUploadError("put object", key, err)
	}

	s.logger.With(log.F("bucket", s.bucketName), log.F("object_key", key), log.F("bytes", len(content))).
		Info("Uploaded object")
	return key, nil
}

// PutCSV uploads a CSV export.
func (s *S3Uploader) PutCSV(ctx context.Context, name string, content []byte) (string, error) {
	return s.Put(ctx, name, content, "text/csv")
}
