package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

// KeyPrefix is the folder every course archive is stored under.
const KeyPrefix = "courses"

var ErrInvalidTTL = errors.New("storage: signed URL lifetime must be positive")

// Store is the object storage the catalog and download flows depend on.
type Store interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) error
	// Delete is best effort: failures are logged, never returned.
	Delete(ctx context.Context, key string)
	SignedURL(key string, ttl time.Duration, downloadName string) (string, error)
	PresignedUpload(key, contentType string, ttl time.Duration) (string, error)
	Bucket() string
}

// S3Config holds configuration for the S3 client. Endpoint is optional and
// lets the same code target S3 compatible services such as MinIO or Spaces.
type S3Config struct {
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	Endpoint  string
}

// S3Store handles course archive operations against S3
type S3Store struct {
	s3Client *s3.S3
	uploader *s3manager.Uploader
	bucket   string
}

func NewS3Store(config S3Config) (*S3Store, error) {
	if config.Bucket == "" {
		return nil, fmt.Errorf("AWS_S3_BUCKET_NAME must be configured")
	}

	awsConfig := &aws.Config{
		Region: aws.String(config.Region),
	}
	if config.AccessKey != "" && config.SecretKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(config.AccessKey, config.SecretKey, "")
	}
	if config.Endpoint != "" {
		awsConfig.Endpoint = aws.String(config.Endpoint)
		awsConfig.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 session: %w", err)
	}

	client := s3.New(sess)
	return &S3Store{
		s3Client: client,
		uploader: s3manager.NewUploaderWithClient(client),
		bucket:   config.Bucket,
	}, nil
}

func (s *S3Store) Bucket() string {
	return s.bucket
}

// Upload streams body to key. Archives can be large so the multipart uploader is used.
func (s *S3Store) Upload(ctx context.Context, key string, body io.Reader, contentType string) error {
	_, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

func (s *S3Store) Delete(ctx context.Context, key string) {
	if key == "" {
		return
	}
	_, err := s.s3Client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		log.Printf("[STORAGE] Failed to delete %s: %v", key, err)
	}
}

// SignedURL presigns a GET that makes browsers save the object as downloadName.
func (s *S3Store) SignedURL(key string, ttl time.Duration, downloadName string) (string, error) {
	if ttl <= 0 {
		return "", ErrInvalidTTL
	}

	input := &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}
	if downloadName != "" {
		input.ResponseContentDisposition = aws.String(fmt.Sprintf(`attachment; filename="%s"`, downloadName))
	}

	req, _ := s.s3Client.GetObjectRequest(input)
	url, err := req.Presign(ttl)
	if err != nil {
		return "", fmt.Errorf("failed to presign URL: %w", err)
	}
	return url, nil
}

// PresignedUpload presigns a PUT so an admin client can upload an archive
// straight to the bucket.
func (s *S3Store) PresignedUpload(key, contentType string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", ErrInvalidTTL
	}

	req, _ := s.s3Client.PutObjectRequest(&s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	})
	url, err := req.Presign(ttl)
	if err != nil {
		return "", fmt.Errorf("failed to presign upload: %w", err)
	}
	return url, nil
}

var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// GenerateKey builds courses/<unix>-<sanitized name>.
func GenerateKey(filename string, now time.Time) string {
	name := unsafeKeyChars.ReplaceAllString(filepath.Base(filename), "-")
	name = strings.Trim(name, "-.")
	if name == "" {
		name = "archive.zip"
	}
	return fmt.Sprintf("%s/%d-%s", KeyPrefix, now.Unix(), name)
}

// ContentType guesses the archive MIME type from the file extension.
func ContentType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".zip":
		return "application/zip"
	case ".gz", ".tgz":
		return "application/gzip"
	case ".tar":
		return "application/x-tar"
	case ".7z":
		return "application/x-7z-compressed"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}
