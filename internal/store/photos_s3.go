package store

import (
	"bytes"
	"context"
	"fmt"
	"time"

	commoncfg "remediation-engine/common/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3PhotoStorage 基于 S3 的照片存储；downloadURL 为预签名 GET 地址
type S3PhotoStorage struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	prefix  string
	expiry  time.Duration
}

// NewS3PhotoStorage 创建 S3 照片存储（Endpoint 可指向 MinIO / LocalStack）
func NewS3PhotoStorage(ctx context.Context, cfg commoncfg.S3Config) (*S3PhotoStorage, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	expiry := cfg.PresignExpiry
	if expiry <= 0 {
		expiry = 7 * 24 * time.Hour
	}

	return &S3PhotoStorage{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.Bucket,
		prefix:  cfg.Prefix,
		expiry:  expiry,
	}, nil
}

func (s *S3PhotoStorage) Upload(ctx context.Context, key, contentType string, data []byte) (StoredObject, error) {
	fullKey := s.prefix + key
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(fullKey),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return StoredObject{}, fmt.Errorf("s3 put failed for %s: %w", fullKey, err)
	}

	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(fullKey),
	}, s3.WithPresignExpires(s.expiry))
	if err != nil {
		return StoredObject{}, fmt.Errorf("s3 presign failed for %s: %w", fullKey, err)
	}

	return StoredObject{StoragePath: fullKey, DownloadURL: req.URL}, nil
}
