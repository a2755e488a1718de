// Package storage uploads vendor photos to an S3-compatible object store.
// Each photo kind has its own bucket; object keys are scoped by the uploading
// user.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	e "github.com/gartstein/onboard/internal/onboarding/errors"
	"github.com/gartstein/onboard/internal/onboarding/models"
	"go.uber.org/zap"
)

const (
	DefaultVerifiedBucket = "verified-photos"
	DefaultBusinessBucket = "business-photos"
)

type Config struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	VerifiedBucket  string
	BusinessBucket  string
}

// ObjectPutter is the subset of the S3 client used for uploads.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Uploader stores photos and returns their object paths.
type Uploader struct {
	client  ObjectPutter
	buckets map[models.PhotoKind]string
	logger  *zap.Logger
	now     func() time.Time
}

// NewS3Uploader builds an S3 client from cfg. Static credentials are used when
// given, otherwise the default AWS credential chain applies.
func NewS3Uploader(ctx context.Context, cfg Config, logger *zap.Logger) (*Uploader, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load storage config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return NewUploader(client, cfg, logger), nil
}

// NewUploader wraps an existing client.
func NewUploader(client ObjectPutter, cfg Config, logger *zap.Logger) *Uploader {
	return &Uploader{
		client: client,
		buckets: map[models.PhotoKind]string{
			models.VerifiedPhoto: cfg.VerifiedBucket,
			models.BusinessPhoto: cfg.BusinessBucket,
		},
		logger: logger.Named("photo_storage"),
		now:    time.Now,
	}
}

// Upload stores photo under <owner>/<unix millis>.<ext> in the bucket of kind
// and returns the object path. Errors are StoreErrors: a missing or unset
// bucket is KindNotConfigured.
func (u *Uploader) Upload(ctx context.Context, kind models.PhotoKind, ownerID string, photo *models.Photo) (string, error) {
	bucket := u.buckets[kind]
	if bucket == "" {
		return "", e.NewStoreError(e.KindNotConfigured, "upload photo", fmt.Errorf("no bucket configured for %s photos", kind))
	}

	key := ObjectKey(ownerID, photo.Filename, u.now())
	contentType := photo.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(photo.Data),
		ContentLength: aws.Int64(int64(len(photo.Data))),
		ContentType:   aws.String(contentType),
		CacheControl:  aws.String("max-age=3600"),
	})
	if err != nil {
		errKind := classify(err)
		u.logger.Warn("photo upload failed",
			zap.String("bucket", bucket),
			zap.String("key", key),
			zap.Stringer("kind", errKind),
			zap.Error(err),
		)
		return "", e.NewStoreError(errKind, "upload photo", err)
	}

	u.logger.Debug("photo uploaded", zap.String("bucket", bucket), zap.String("key", key))
	return key, nil
}

// Bucket returns the bucket configured for kind.
func (u *Uploader) Bucket(kind models.PhotoKind) string {
	return u.buckets[kind]
}

// ObjectKey builds the object path for a file uploaded by owner at t.
func ObjectKey(ownerID, filename string, t time.Time) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
	if ext == "" {
		return fmt.Sprintf("%s/%d", ownerID, t.UnixMilli())
	}
	return fmt.Sprintf("%s/%d.%s", ownerID, t.UnixMilli(), ext)
}

func classify(err error) e.Kind {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchBucket":
			return e.KindNotConfigured
		case "EntityTooLarge":
			return e.KindTooLarge
		case "AccessDenied", "Forbidden":
			return e.KindPolicyDenied
		}
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "bucket not found"):
		return e.KindNotConfigured
	case strings.Contains(msg, "exceeded"):
		return e.KindTooLarge
	case strings.Contains(msg, "policy"):
		return e.KindPolicyDenied
	}
	return e.KindUnknown
}
