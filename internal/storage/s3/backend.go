// Package s3 implements the S3 storage backend. It works against AWS and
// S3-compatible endpoints such as MinIO, and can route uploads through the
// CargoShip optimized transporter.
package s3

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	awsconfig "github.com/scttfrdmn/cargoship/pkg/aws/config"
	cargoships3 "github.com/scttfrdmn/cargoship/pkg/aws/s3"
	"golang.org/x/sync/errgroup"

	"github.com/objprof/objprof/pkg/errors"
	"github.com/objprof/objprof/pkg/types"
)

// Config represents S3 backend configuration.
type Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`
	ForcePathStyle  bool   `yaml:"force_path_style"`

	// Performance settings
	MaxRetries  int `yaml:"max_retries"`
	Concurrency int `yaml:"concurrency"`

	// CargoShip optimized upload path
	EnableOptimizedUpload bool   `yaml:"enable_optimized_upload"`
	MultipartThreshold    int64  `yaml:"multipart_threshold"`
	MultipartChunkSize    int64  `yaml:"multipart_chunk_size"`
	StorageClass          string `yaml:"storage_class"`
}

// DefaultConfig returns a Config suitable for a standard AWS endpoint.
func DefaultConfig() *Config {
	return &Config{
		Region:             "us-east-1",
		MaxRetries:         3,
		Concurrency:        8,
		MultipartThreshold: 32 * 1024 * 1024,
		MultipartChunkSize: 16 * 1024 * 1024,
		StorageClass:       "STANDARD",
	}
}

// Backend implements types.Backend against an S3-compatible object store.
type Backend struct {
	client      *s3.Client
	bucket      string
	config      *Config
	transporter *cargoships3.Transporter
	logger      *slog.Logger
}

var _ types.Backend = (*Backend)(nil)

// NewBackend creates an S3 backend and verifies bucket access.
func NewBackend(ctx context.Context, cfg *Config) (*Backend, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Bucket == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "bucket name cannot be empty").
			WithComponent("s3-backend")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}

	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
		config.WithRetryMaxAttempts(cfg.MaxRetries),
	}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.New(errors.ErrCodeConfigLoad, "failed to load AWS config").
			WithComponent("s3-backend").WithCause(err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.ForcePathStyle {
			o.UsePathStyle = true
		}
	})

	logger := slog.Default().With("component", "s3-backend", "bucket", cfg.Bucket)

	var transporter *cargoships3.Transporter
	if cfg.EnableOptimizedUpload {
		cargoCfg := awsconfig.S3Config{
			Bucket:             cfg.Bucket,
			StorageClass:       convertStorageClass(cfg.StorageClass),
			MultipartThreshold: cfg.MultipartThreshold,
			MultipartChunkSize: cfg.MultipartChunkSize,
			Concurrency:        cfg.Concurrency,
		}
		transporter = cargoships3.NewTransporter(client, cargoCfg)
		logger.Info("optimized upload path enabled",
			"chunk_size", cfg.MultipartChunkSize, "concurrency", cfg.Concurrency)
	}

	backend := &Backend{
		client:      client,
		bucket:      cfg.Bucket,
		config:      cfg,
		transporter: transporter,
		logger:      logger,
	}

	if err := backend.HealthCheck(ctx); err != nil {
		return nil, err
	}
	return backend, nil
}

// GetObject retrieves an object or a byte range of it. offset <= 0 with
// size <= 0 reads the whole object.
func (b *Backend) GetObject(ctx context.Context, key string, offset, size int64) ([]byte, error) {
	var rangeHeader *string
	if offset > 0 || size > 0 {
		if size > 0 {
			rangeHeader = aws.String(fmt.Sprintf("bytes=%d-%d", offset, offset+size-1))
		} else {
			rangeHeader = aws.String(fmt.Sprintf("bytes=%d-", offset))
		}
	}

	result, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
		Range:  rangeHeader,
	})
	if err != nil {
		return nil, b.translateError(err, "get", key)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, errors.Newf(errors.ErrCodeStorageRead, "failed to read body of %s", key).
			WithComponent("s3-backend").WithOperation("get").WithCause(err)
	}
	return data, nil
}

// PutObject stores an object, routing through the optimized transporter
// when enabled and falling back to the plain client on failure.
func (b *Backend) PutObject(ctx context.Context, key string, data []byte) error {
	if b.transporter != nil {
		archive := cargoships3.Archive{
			Key:          key,
			Reader:       bytes.NewReader(data),
			Size:         int64(len(data)),
			StorageClass: convertStorageClass(b.config.StorageClass),
			Metadata: map[string]string{
				"content-type": detectContentType(key),
			},
		}
		result, uploadErr := b.transporter.Upload(ctx, archive)
		if uploadErr == nil {
			b.logger.Debug("optimized upload completed",
				"key", key, "size", len(data), "duration", result.Duration)
			return nil
		}
		b.logger.Warn("optimized upload failed, falling back to standard client",
			"key", key, "error", uploadErr)
	}

	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(detectContentType(key)),
	})
	if err != nil {
		return b.translateError(err, "put", key)
	}
	return nil
}

// DeleteObject removes an object. Deleting a missing key succeeds.
func (b *Backend) DeleteObject(ctx context.Context, key string) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return b.translateError(err, "delete", key)
	}
	return nil
}

// HeadObject retrieves object metadata.
func (b *Backend) HeadObject(ctx context.Context, key string) (*types.ObjectInfo, error) {
	result, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, b.translateError(err, "head", key)
	}

	info := &types.ObjectInfo{
		Key:          key,
		Size:         aws.ToInt64(result.ContentLength),
		LastModified: aws.ToTime(result.LastModified),
		ETag:         aws.ToString(result.ETag),
		ContentType:  aws.ToString(result.ContentType),
		Metadata:     make(map[string]string, len(result.Metadata)),
	}
	for k, v := range result.Metadata {
		info.Metadata[k] = v
	}
	return info, nil
}

// GetObjects retrieves multiple objects with bounded parallelism. The first
// failure cancels the remaining fetches.
func (b *Backend) GetObjects(ctx context.Context, keys []string) (map[string][]byte, error) {
	if len(keys) == 0 {
		return make(map[string][]byte), nil
	}

	results := make([][]byte, len(keys))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.config.Concurrency)

	for i, key := range keys {
		g.Go(func() error {
			data, err := b.GetObject(ctx, key, 0, 0)
			if err != nil {
				return err
			}
			results[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string][]byte, len(keys))
	for i, key := range keys {
		out[key] = results[i]
	}
	return out, nil
}

// PutObjects stores multiple objects with bounded parallelism.
func (b *Backend) PutObjects(ctx context.Context, objects map[string][]byte) error {
	if len(objects) == 0 {
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.config.Concurrency)

	for key, data := range objects {
		g.Go(func() error {
			return b.PutObject(ctx, key, data)
		})
	}
	return g.Wait()
}

// ListObjects lists objects under prefix, at most limit entries when
// limit > 0.
func (b *Backend) ListObjects(ctx context.Context, prefix string, limit int) ([]types.ObjectInfo, error) {
	var maxKeys *int32
	if limit > 0 {
		if limit > 0x7FFFFFFF {
			limit = 0x7FFFFFFF
		}
		maxKeys = aws.Int32(int32(limit))
	}

	result, err := b.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(b.bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: maxKeys,
	})
	if err != nil {
		return nil, b.translateError(err, "list", prefix)
	}

	objects := make([]types.ObjectInfo, 0, len(result.Contents))
	for _, obj := range result.Contents {
		objects = append(objects, types.ObjectInfo{
			Key:          aws.ToString(obj.Key),
			Size:         aws.ToInt64(obj.Size),
			LastModified: aws.ToTime(obj.LastModified),
			ETag:         aws.ToString(obj.ETag),
		})
	}
	return objects, nil
}

// HealthCheck heads the bucket to verify connectivity and permissions.
func (b *Backend) HealthCheck(ctx context.Context) error {
	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(b.bucket),
	})
	if err != nil {
		return errors.Newf(errors.ErrCodeBucketNotFound, "bucket %s is not accessible", b.bucket).
			WithComponent("s3-backend").WithOperation("health").WithCause(err)
	}
	return nil
}

func (b *Backend) translateError(err error, operation, key string) error {
	switch {
	case isErrorType[*s3types.NoSuchKey](err), isErrorType[*s3types.NotFound](err):
		return errors.Newf(errors.ErrCodeObjectNotFound, "object not found: %s", key).
			WithComponent("s3-backend").WithOperation(operation).WithCause(err)
	case isErrorType[*s3types.NoSuchBucket](err):
		return errors.Newf(errors.ErrCodeBucketNotFound, "bucket not found: %s", b.bucket).
			WithComponent("s3-backend").WithOperation(operation).WithCause(err)
	case operation == "put":
		return errors.Newf(errors.ErrCodeStorageWrite, "%s failed for %s", operation, key).
			WithComponent("s3-backend").WithOperation(operation).WithCause(err)
	default:
		return errors.Newf(errors.ErrCodeStorageRead, "%s failed for %s", operation, key).
			WithComponent("s3-backend").WithOperation(operation).WithCause(err)
	}
}

func convertStorageClass(class string) awsconfig.StorageClass {
	switch class {
	case "STANDARD_IA":
		return awsconfig.StorageClassStandardIA
	case "ONEZONE_IA":
		return awsconfig.StorageClassOneZoneIA
	case "GLACIER":
		return awsconfig.StorageClassGlacier
	case "DEEP_ARCHIVE":
		return awsconfig.StorageClassDeepArchive
	case "INTELLIGENT_TIERING":
		return awsconfig.StorageClassIntelligentTiering
	default:
		return awsconfig.StorageClassStandard
	}
}

func detectContentType(key string) string {
	switch {
	case strings.HasSuffix(key, ".json"):
		return "application/json"
	case strings.HasSuffix(key, ".pb"):
		return "application/octet-stream"
	case strings.HasSuffix(key, ".txt"):
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}

// isErrorType reports whether err wraps an error of type T.
func isErrorType[T error](err error) bool {
	var target T
	return stderrors.As(err, &target)
}
