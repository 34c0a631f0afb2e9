package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the subset of the S3 client used by S3Storage. *s3.Client
// satisfies it directly; tests supply a fake.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Storage is an S3-backed Storage implementation. S3 has no per-object
// TTL, so values are persisted as CBOR envelopes carrying their own expiry
// and expired objects are deleted lazily on read.
type S3Storage struct {
	client S3API
	bucket string
	prefix string
	closed bool
}

// S3Option configures S3Storage behavior.
type S3Option func(*s3Config)

type s3Config struct {
	prefix string
}

// WithS3Prefix sets the object key prefix. Default: "gantry/storage/".
func WithS3Prefix(prefix string) S3Option {
	return func(c *s3Config) {
		c.prefix = prefix
	}
}

// NewS3Storage creates an S3-backed storage backend.
func NewS3Storage(client S3API, bucket string, opts ...S3Option) *S3Storage {
	cfg := &s3Config{prefix: "gantry/storage/"}
	for _, opt := range opts {
		opt(cfg)
	}

	return &S3Storage{
		client: client,
		bucket: bucket,
		prefix: cfg.prefix,
	}
}

func (s *S3Storage) key(key string) string {
	return s.prefix + key
}

func isS3NotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	return errors.As(err, &noSuchKey)
}

func (s *S3Storage) getEnvelope(ctx context.Context, key string) (Envelope, bool, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(key)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return Envelope{}, false, nil
		}
		return Envelope{}, false, err
	}
	defer out.Body.Close()

	raw, err := io.ReadAll(out.Body)
	if err != nil {
		return Envelope{}, false, err
	}

	env, err := DecodeEnvelope(raw)
	if err != nil {
		return Envelope{}, false, fmt.Errorf("storage: decoding s3 envelope for %q: %w", key, err)
	}
	return env, true, nil
}

func (s *S3Storage) putEnvelope(ctx context.Context, key string, env Envelope) error {
	raw, err := env.Encode()
	if err != nil {
		return err
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(key)),
		Body:   bytes.NewReader(raw),
	})
	return err
}

// Set stores value under key.
func (s *S3Storage) Set(ctx context.Context, key string, value []byte, expiresIn time.Duration) error {
	if s.closed {
		return ErrClosed
	}

	return s.putEnvelope(ctx, key, NewEnvelope(value, expiresIn))
}

// Get returns the value for key, deleting the object when found expired and
// rewriting the envelope when renewal is requested.
func (s *S3Storage) Get(ctx context.Context, key string, renewFor time.Duration) ([]byte, error) {
	if s.closed {
		return nil, ErrClosed
	}

	env, ok, err := s.getEnvelope(ctx, key)
	if err != nil || !ok {
		return nil, err
	}

	now := time.Now()
	if env.Expired(now) {
		if err := s.Delete(ctx, key); err != nil {
			return nil, err
		}
		return nil, nil
	}

	if renewFor > 0 && env.ExpiresAt != nil {
		env.Renew(now, renewFor)
		if err := s.putEnvelope(ctx, key, env); err != nil {
			return nil, err
		}
	}

	return env.Data, nil
}

// Delete removes key.
func (s *S3Storage) Delete(ctx context.Context, key string) error {
	if s.closed {
		return ErrClosed
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(key)),
	})
	return err
}

// DeleteAll removes every object under the backend's prefix.
func (s *S3Storage) DeleteAll(ctx context.Context) error {
	if s.closed {
		return ErrClosed
	}

	var continuation *string
	for {
		page, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(s.prefix),
			ContinuationToken: continuation,
		})
		if err != nil {
			return err
		}

		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: aws.String(s.bucket),
				Key:    obj.Key,
			}); err != nil {
				return err
			}
		}

		if page.IsTruncated == nil || !*page.IsTruncated {
			return nil
		}
		continuation = page.NextContinuationToken
	}
}

// Exists reports whether key exists and has not expired.
func (s *S3Storage) Exists(ctx context.Context, key string) (bool, error) {
	if s.closed {
		return false, ErrClosed
	}

	env, ok, err := s.getEnvelope(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	return !env.Expired(time.Now()), nil
}

// ExpiresIn returns the remaining lifetime of key.
func (s *S3Storage) ExpiresIn(ctx context.Context, key string) (time.Duration, bool, error) {
	if s.closed {
		return 0, false, ErrClosed
	}

	env, ok, err := s.getEnvelope(ctx, key)
	if err != nil || !ok {
		return 0, false, err
	}
	if env.Expired(time.Now()) {
		return 0, false, nil
	}
	d, has := env.ExpiresIn(time.Now())
	return d, has, nil
}

// Close marks the backend as closed.
func (s *S3Storage) Close() error {
	s.closed = true
	return nil
}
