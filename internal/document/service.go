// Package document hands out presigned upload URLs for identity documents.
package document

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// UploadTTL is how long a presigned upload URL stays valid.
const UploadTTL = 15 * time.Minute

var (
	ErrNotConfigured   = errors.New("document storage not configured")
	ErrInvalidFileName = errors.New("invalid file name")
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
)

type Config struct {
	Region    string
	Bucket    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

type Upload struct {
	Key       string    `json:"key"`
	UploadURL string    `json:"uploadUrl"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type Service struct {
	bucket  string
	presign *s3.PresignClient
	now     func() time.Time
}

// NewService builds the presign client. An empty bucket yields a service
// whose every call fails with ErrNotConfigured.
func NewService(ctx context.Context, cfg Config) (*Service, error) {
	s := &Service{bucket: cfg.Bucket, now: func() time.Time { return time.Now().UTC() }}
	if cfg.Bucket == "" {
		return s, nil
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	s.presign = s3.NewPresignClient(client)
	return s, nil
}

// StorageKey is users/<userID>/<yyyy>/<mm>/<dd>/<uuid>-<fileName>.
func StorageKey(userID, fileName string, at time.Time) string {
	return fmt.Sprintf("users/%s/%04d/%02d/%02d/%s-%s", userID, at.Year(), at.Month(), at.Day(), uuid.NewString(), fileName)
}

func cleanFileName(name string) (string, error) {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	name = path.Base(name)
	if name == "" || name == "." || name == "/" || len(name) > 200 {
		return "", ErrInvalidFileName
	}
	return name, nil
}

// PresignUpload returns a PUT URL for one document of userID.
func (s *Service) PresignUpload(ctx context.Context, userID, fileName string) (*Upload, error) {
	if s.presign == nil {
		return nil, ErrNotConfigured
	}
	name, err := cleanFileName(fileName)
	if err != nil {
		return nil, err
	}
	now := s.now()
	key := StorageKey(userID, name, now)
	req, err := presignPutObject(s.presign, ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(UploadTTL))
	if err != nil {
		return nil, fmt.Errorf("presign upload: %w", err)
	}
	return &Upload{Key: key, UploadURL: req.URL, ExpiresAt: now.Add(UploadTTL)}, nil
}
