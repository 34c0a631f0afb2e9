package storage

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// fakeS3 is an in-memory bucket implementing S3API.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[*params.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[*params.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, *params.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for key := range f.objects {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(key)})
	}
	return out, nil
}

func TestS3Storage(t *testing.T) {
	bucket := newFakeS3()
	s := NewS3Storage(bucket, "test-bucket")
	ctx := context.Background()

	t.Run("SetGet", func(t *testing.T) {
		if err := s.Set(ctx, "foo", []byte("bar"), 0); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		got, err := s.Get(ctx, "foo", 0)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(got) != "bar" {
			t.Errorf("Get = %q, want %q", got, "bar")
		}
		// Payload is stored as an envelope under the prefix.
		if _, ok := bucket.objects["gantry/storage/foo"]; !ok {
			t.Error("object not stored under prefixed key")
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		got, err := s.Get(ctx, "nope", 0)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got != nil {
			t.Errorf("Get = %q for missing key", got)
		}
	})

	t.Run("Expiry", func(t *testing.T) {
		if err := s.Set(ctx, "short", []byte("v"), 10*time.Millisecond); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		time.Sleep(20 * time.Millisecond)

		got, err := s.Get(ctx, "short", 0)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got != nil {
			t.Errorf("Get = %q for expired key", got)
		}
		// Expired object was deleted lazily.
		if _, ok := bucket.objects["gantry/storage/short"]; ok {
			t.Error("expired object still present after read")
		}
	})

	t.Run("Renewal", func(t *testing.T) {
		if err := s.Set(ctx, "sliding", []byte("v"), time.Second); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		if _, err := s.Get(ctx, "sliding", 10*time.Second); err != nil {
			t.Fatalf("Get failed: %v", err)
		}

		d, has, err := s.ExpiresIn(ctx, "sliding")
		if err != nil || !has {
			t.Fatalf("ExpiresIn = (%v, %v, %v)", d, has, err)
		}
		if d < 9*time.Second || d > 10*time.Second {
			t.Errorf("ExpiresIn = %v after renewal, want ~10s", d)
		}
	})

	t.Run("DeleteAll", func(t *testing.T) {
		_ = s.Set(ctx, "a", []byte("v"), 0)
		_ = s.Set(ctx, "b", []byte("v"), 0)
		if err := s.DeleteAll(ctx); err != nil {
			t.Fatalf("DeleteAll failed: %v", err)
		}
		if len(bucket.objects) != 0 {
			t.Errorf("%d objects remain after DeleteAll", len(bucket.objects))
		}
	})

	t.Run("Exists", func(t *testing.T) {
		_ = s.Set(ctx, "here", []byte("v"), 0)
		ok, err := s.Exists(ctx, "here")
		if err != nil || !ok {
			t.Errorf("Exists(here) = (%v, %v), want (true, nil)", ok, err)
		}
		ok, err = s.Exists(ctx, "gone")
		if err != nil || ok {
			t.Errorf("Exists(gone) = (%v, %v), want (false, nil)", ok, err)
		}
	})
}
