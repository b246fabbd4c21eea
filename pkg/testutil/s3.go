package testutil

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/scality/scan-sentinel/pkg/s3"
)

// UploadedObject is an object received by a MemoryUploader
type UploadedObject struct {
	Bucket  string
	Key     string
	Content []byte
}

// MemoryUploader keeps uploaded objects in memory
type MemoryUploader struct {
	objects map[string]UploadedObject
	mu      sync.Mutex
}

// NewMemoryUploader creates an empty in-memory uploader
func NewMemoryUploader() *MemoryUploader {
	return &MemoryUploader{objects: make(map[string]UploadedObject)}
}

// Upload stores a copy of the content
func (m *MemoryUploader) Upload(_ context.Context, bucket, key string, content []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.objects[bucket+"/"+key] = UploadedObject{
		Bucket:  bucket,
		Key:     key,
		Content: append([]byte(nil), content...),
	}
	return nil
}

// Objects returns the uploaded objects sorted by bucket and key
func (m *MemoryUploader) Objects() []UploadedObject {
	m.mu.Lock()
	defer m.mu.Unlock()

	objects := make([]UploadedObject, 0, len(m.objects))
	for _, obj := range m.objects {
		objects = append(objects, obj)
	}
	sort.Slice(objects, func(i, j int) bool {
		if objects[i].Bucket != objects[j].Bucket {
			return objects[i].Bucket < objects[j].Bucket
		}
		return objects[i].Key < objects[j].Key
	})
	return objects
}

// FailingUploader fails its first Failures uploads with Err, then delegates
type FailingUploader struct {
	Next     s3.UploaderInterface
	Err      error
	Failures int64

	calls atomic.Int64
}

// Upload implements s3.UploaderInterface
func (f *FailingUploader) Upload(ctx context.Context, bucket, key string, content []byte) error {
	if f.calls.Add(1) <= f.Failures {
		err := f.Err
		if err == nil {
			err = errors.New("injected upload failure")
		}
		return fmt.Errorf("failed to upload to S3: bucket=%s, key=%s: %w", bucket, key, err)
	}
	if f.Next == nil {
		return nil
	}
	return f.Next.Upload(ctx, bucket, key, content)
}

// CountingUploader wraps an S3 uploader and counts upload attempts
type CountingUploader struct {
	uploader     s3.UploaderInterface
	uploadCount  atomic.Int64
	successCount atomic.Int64
	failureCount atomic.Int64
}

// NewCountingUploader creates a new counting uploader wrapper
func NewCountingUploader(uploader s3.UploaderInterface) *CountingUploader {
	return &CountingUploader{
		uploader: uploader,
	}
}

// Upload wraps the underlying uploader's Upload method and counts attempts
func (c *CountingUploader) Upload(ctx context.Context, bucket, key string, content []byte) error {
	c.uploadCount.Add(1)
	err := c.uploader.Upload(ctx, bucket, key, content)
	if err != nil {
		c.failureCount.Add(1)
		return err
	}
	c.successCount.Add(1)
	return nil
}

// GetUploadCount returns the total number of upload attempts
func (c *CountingUploader) GetUploadCount() int64 {
	return c.uploadCount.Load()
}

// GetSuccessCount returns the number of successful uploads
func (c *CountingUploader) GetSuccessCount() int64 {
	return c.successCount.Load()
}

// GetFailureCount returns the number of failed uploads
func (c *CountingUploader) GetFailureCount() int64 {
	return c.failureCount.Load()
}
