// Package s3 implements an S3-backed article spool.
//
// Spooling to S3 lets several uploader hosts share one staging area and
// survives local disk loss. Envelopes are small (one sealed segment plus
// an XDR header, well under a megabyte), so every operation is a single
// PutObject/GetObject; there is no multipart path.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/nntpvault/nntpvault/internal/logger"
	"github.com/nntpvault/nntpvault/pkg/spool"
)

// Config contains configuration for the S3 spool.
type Config struct {
	// Client is the configured S3 client.
	Client *awss3.Client

	// Bucket is the S3 bucket name. The bucket must already exist.
	Bucket string

	// KeyPrefix is an optional prefix for all object keys.
	// Example: "spool/" results in keys like "spool/<folder>/ab/<ref>.art".
	KeyPrefix string

	// MaxRetries is the maximum number of retry attempts for transient
	// errors (default: 3).
	MaxRetries uint

	// InitialBackoff is the backoff before the first retry (default: 100ms).
	InitialBackoff time.Duration

	// MaxBackoff caps the backoff between retries (default: 2s).
	MaxBackoff time.Duration

	// BackoffMultiplier is the exponential backoff multiplier (default: 2.0).
	BackoffMultiplier float64
}

// retryConfig holds retry settings for S3 operations.
type retryConfig struct {
	maxRetries        uint
	initialBackoff    time.Duration
	maxBackoff        time.Duration
	backoffMultiplier float64
}

// Store is the S3-backed spool.
type Store struct {
	client    *awss3.Client
	bucket    string
	keyPrefix string
	retry     retryConfig
}

// NewClientFromConfig creates an S3 client from configuration parameters.
// This is a helper for wiring the spool from YAML configuration, including
// S3-compatible endpoints such as MinIO.
func NewClientFromConfig(
	ctx context.Context,
	endpoint,
	region,
	accessKeyID,
	secretAccessKey string,
	forcePathStyle bool,
) (*awss3.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKeyID,
			secretAccessKey,
			"", // session token (empty for static credentials)
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := awss3.NewFromConfig(cfg, func(o *awss3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = &endpoint
		}
		o.UsePathStyle = forcePathStyle
	})

	return client, nil
}

// New creates an S3 spool and verifies bucket access.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if cfg.Client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}
	initialBackoff := cfg.InitialBackoff
	if initialBackoff == 0 {
		initialBackoff = 100 * time.Millisecond
	}
	maxBackoff := cfg.MaxBackoff
	if maxBackoff == 0 {
		maxBackoff = 2 * time.Second
	}
	backoffMultiplier := cfg.BackoffMultiplier
	if backoffMultiplier == 0 {
		backoffMultiplier = 2.0
	}

	_, err := cfg.Client.HeadBucket(ctx, &awss3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w", cfg.Bucket, err)
	}

	return &Store{
		client:    cfg.Client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
		retry: retryConfig{
			maxRetries:        maxRetries,
			initialBackoff:    initialBackoff,
			maxBackoff:        maxBackoff,
			backoffMultiplier: backoffMultiplier,
		},
	}, nil
}

// objectKey returns the full S3 object key for one envelope. The layout
// matches the filesystem spool so an operator can move staging areas
// between backends with a plain sync.
func (s *Store) objectKey(folderID, ref string) string {
	fanout := ref
	if len(fanout) > 2 {
		fanout = fanout[:2]
	}
	return s.keyPrefix + folderID + "/" + fanout + "/" + ref + ".art"
}

// folderPrefix returns the key prefix covering one folder's envelopes.
func (s *Store) folderPrefix(folderID string) string {
	return s.keyPrefix + folderID + "/"
}

// Put stages one envelope, overwriting any previous object under the same
// ref.
func (s *Store) Put(ctx context.Context, env *spool.Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := env.Validate(); err != nil {
		return err
	}

	data, err := env.Encode()
	if err != nil {
		return err
	}

	key := s.objectKey(env.FolderID, env.Ref())
	return s.withRetry(ctx, "Put", key, func() error {
		_, err := s.client.PutObject(ctx, &awss3.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
			Body:   bytes.NewReader(data),
		})
		return err
	})
}

// Get loads an envelope by ref.
func (s *Store) Get(ctx context.Context, folderID, ref string) (*spool.Envelope, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := s.objectKey(folderID, ref)

	var data []byte
	err := s.withRetry(ctx, "Get", key, func() error {
		out, err := s.client.GetObject(ctx, &awss3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return err
		}
		defer out.Body.Close()

		data, err = io.ReadAll(out.Body)
		return err
	})
	if err != nil {
		if isNotFoundError(err) {
			return nil, spool.ErrNotFound
		}
		return nil, err
	}

	return spool.DecodeEnvelope(data)
}

// Delete drops an envelope. Missing refs are ignored.
func (s *Store) Delete(ctx context.Context, folderID, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key := s.objectKey(folderID, ref)
	err := s.withRetry(ctx, "Delete", key, func() error {
		_, err := s.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		return err
	})
	if err != nil && !isNotFoundError(err) {
		return err
	}
	return nil
}

// List returns every staged ref of one folder, sorted.
func (s *Store) List(ctx context.Context, folderID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var refs []string
	paginator := awss3.NewListObjectsV2Paginator(s.client, &awss3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.folderPrefix(folderID)),
	})

	for paginator.HasMorePages() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list spool objects: %w", err)
		}

		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			key := *obj.Key
			base := key[strings.LastIndex(key, "/")+1:]
			if !strings.HasSuffix(base, ".art") {
				continue
			}
			refs = append(refs, strings.TrimSuffix(base, ".art"))
		}
	}

	sort.Strings(refs)
	return refs, nil
}

// DeleteFolder drops everything staged for one folder using batched
// DeleteObjects calls.
func (s *Store) DeleteFolder(ctx context.Context, folderID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	paginator := awss3.NewListObjectsV2Paginator(s.client, &awss3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.folderPrefix(folderID)),
	})

	for paginator.HasMorePages() {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("failed to list spool objects: %w", err)
		}
		if len(page.Contents) == 0 {
			continue
		}

		objects := make([]types.ObjectIdentifier, 0, len(page.Contents))
		for _, obj := range page.Contents {
			if obj.Key != nil {
				objects = append(objects, types.ObjectIdentifier{Key: obj.Key})
			}
		}

		_, err = s.client.DeleteObjects(ctx, &awss3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{
				Objects: objects,
				Quiet:   aws.Bool(true),
			},
		})
		if err != nil {
			return fmt.Errorf("failed to delete spool objects: %w", err)
		}
	}

	return nil
}

// Healthcheck verifies the bucket is still reachable.
func (s *Store) Healthcheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := s.client.HeadBucket(ctx, &awss3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return fmt.Errorf("failed to access bucket %q: %w", s.bucket, err)
	}
	return nil
}

// Close releases the spool. The underlying S3 client is shared and stays
// open.
func (s *Store) Close() error {
	return nil
}

// withRetry runs op, retrying transient errors with exponential backoff.
func (s *Store) withRetry(ctx context.Context, name, key string, op func() error) error {
	var lastErr error

	for attempt := 0; attempt <= int(s.retry.maxRetries); attempt++ {
		if attempt > 0 {
			backoff := s.calculateBackoff(attempt - 1)
			logger.Debug("s3 spool retrying",
				logger.KeyOperation, name,
				logger.KeyKey, key,
				logger.KeyAttempt, attempt,
				logger.KeyBackoff, backoff.String())

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isRetryableError(lastErr) {
			return lastErr
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", name, s.retry.maxRetries+1, lastErr)
}

// calculateBackoff returns the backoff duration for a given attempt.
func (s *Store) calculateBackoff(attempt int) time.Duration {
	backoff := float64(s.retry.initialBackoff)
	for i := 0; i < attempt; i++ {
		backoff *= s.retry.backoffMultiplier
	}
	if backoff > float64(s.retry.maxBackoff) {
		return s.retry.maxBackoff
	}
	return time.Duration(backoff)
}

// isRetryableError returns true if the error is transient and the
// operation should be retried.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	// Context errors are not retryable
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// Network errors are retryable
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()

		// Throttling errors - retryable
		if code == "Throttling" || code == "ThrottlingException" ||
			code == "RequestThrottled" || code == "SlowDown" {
			return true
		}

		// Server errors (5xx) - retryable
		if code == "InternalError" || code == "ServiceUnavailable" {
			return true
		}

		// Not found, access denied, invalid request - not retryable
		if code == "NoSuchKey" || code == "NotFound" ||
			code == "AccessDenied" || code == "Forbidden" ||
			code == "InvalidRequest" {
			return false
		}
	}

	// Check error message for common patterns
	errStr := err.Error()
	return strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "i/o timeout") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "500")
}

// isNotFoundError returns true if the error indicates the object doesn't
// exist.
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}

	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		if code == "NoSuchKey" || code == "NotFound" || code == "404" {
			return true
		}
	}

	errStr := err.Error()
	return strings.Contains(errStr, "StatusCode: 404") ||
		strings.Contains(errStr, "NotFound") ||
		strings.Contains(errStr, "NoSuchKey")
}

// Ensure Store implements spool.Spool.
var _ spool.Spool = (*Store)(nil)
