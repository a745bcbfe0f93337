package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog/log"

	"release-registry/blob"
	"release-registry/config"
	"release-registry/storage"
)

// ErrIncompleteS3Config is returned when the S3 configuration is incomplete
var ErrIncompleteS3Config = errors.New("incomplete S3 configuration")

// S3Store implements the blob store interface using an s3-backed storage.
// Blobs resolve to presigned GetObject URLs.
type S3Store struct {
	S3Client  *s3.Client
	Presigner *s3.PresignClient
	Timeout   time.Duration
	URLExpiry time.Duration
	Bucket    string
}

var _ blob.Store = (*S3Store)(nil)

// New creates a new s3-based blob store from the process configuration. With
// a configured key pair the client uses static credentials; otherwise it
// falls back to the ambient credential chain (environment, shared config,
// instance role).
func New() (*S3Store, error) {
	// check for required S3 configuration
	if strings.TrimSpace(config.Cfg.Blob.S3.Endpoint) == "" ||
		strings.TrimSpace(config.Cfg.Blob.S3.Region) == "" ||
		strings.TrimSpace(config.Cfg.Blob.S3.Bucket) == "" ||
		strings.TrimSpace(config.Cfg.Blob.S3.Timeout) == "" {
		return nil, fmt.Errorf("%w", ErrIncompleteS3Config)
	}

	options := s3.Options{
		UsePathStyle: true,
		BaseEndpoint: aws.String(config.Cfg.Blob.S3.Endpoint),
		Region:       config.Cfg.Blob.S3.Region,
	}
	if strings.TrimSpace(config.Cfg.Blob.S3.KeyID) != "" &&
		strings.TrimSpace(config.Cfg.Blob.S3.AccessKey) != "" {
		options.Credentials = aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(
				config.Cfg.Blob.S3.KeyID,
				config.Cfg.Blob.S3.AccessKey,
				"",
			),
		)
	} else {
		ambient, err := awsconfig.LoadDefaultConfig(
			context.Background(),
			awsconfig.WithRegion(config.Cfg.Blob.S3.Region),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to load ambient aws credentials: %w", err)
		}
		options.Credentials = ambient.Credentials
	}
	s3Client := s3.New(options)

	timeoutDuration, err := time.ParseDuration(config.Cfg.Blob.S3.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid S3 timeout value: %w", err)
	}

	urlExpiry, err := time.ParseDuration(config.Cfg.Blob.S3.URLExpiry)
	if err != nil {
		return nil, fmt.Errorf("invalid S3 url expiry value: %w", err)
	}

	return &S3Store{
		S3Client:  s3Client,
		Presigner: s3.NewPresignClient(s3Client),
		Timeout:   timeoutDuration,
		URLExpiry: urlExpiry,
		Bucket:    config.Cfg.Blob.S3.Bucket,
	}, nil
}

// Put uploads a blob to the bucket, bounded by maxSizeBytes.
func (s *S3Store) Put(ctx context.Context, id string, stream io.Reader, maxSizeBytes int64) error {
	content, err := blob.ReadBounded(stream, maxSizeBytes)
	if err != nil {
		return err
	}

	uploader := manager.NewUploader(s.S3Client)

	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()
	result, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.blobKey(id)),
		Body:   bytes.NewReader(content),
	})
	if err != nil {
		var mu manager.MultiUploadFailure
		if errors.As(err, &mu) {
			log.Error().
				Msg(fmt.Sprintf("multi-upload failure (upload_id: %s): %v", mu.UploadID(), mu))

			return storage.WrapError(storage.ErrConnectionFailed, "blob upload failed", mu)
		}

		log.Error().Err(err).Msg("upload failure")

		return storage.WrapError(storage.ErrConnectionFailed, "blob upload failed", err)
	}
	log.Info().
		Str("location", result.Location).
		Msg("successfully uploaded blob to s3 bucket")

	return nil
}

// URL resolves a blob id to a presigned retrieval URL.
func (s *S3Store) URL(ctx context.Context, id string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	// check existence first so missing blobs fail NotFound, not on fetch
	_, err := s.S3Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.blobKey(id)),
	})
	if err != nil {
		var notFoundErr *types.NotFound
		if errors.As(err, &notFoundErr) {
			return "", storage.NewError(storage.ErrNotFound, "Blob %q does not exist", id)
		}

		return "", storage.WrapError(storage.ErrConnectionFailed, "failed to stat blob", err)
	}

	presigned, err := s.Presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.blobKey(id)),
	}, s3.WithPresignExpires(s.URLExpiry))
	if err != nil {
		return "", storage.WrapError(storage.ErrConnectionFailed, "failed to presign blob url", err)
	}

	return presigned.URL, nil
}

// Remove deletes a blob by id.
func (s *S3Store) Remove(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	_, err := s.S3Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.blobKey(id)),
	})
	if err != nil {
		var notFoundErr *types.NotFound
		if errors.As(err, &notFoundErr) {
			return storage.NewError(storage.ErrNotFound, "Blob %q does not exist", id)
		}

		return storage.WrapError(storage.ErrConnectionFailed, "failed to stat blob", err)
	}

	_, err = s.S3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.blobKey(id)),
	})
	if err != nil {
		return storage.WrapError(storage.ErrConnectionFailed, "failed to delete blob", err)
	}

	return nil
}

// Close is a no-op; the client holds no local resources.
func (s *S3Store) Close(context.Context) error {
	return nil
}

// blobKey returns the object key for a blob.
func (s *S3Store) blobKey(id string) string {
	return path.Join("blobs", id)
}
