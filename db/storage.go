package db

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"cloud.google.com/go/storage"
	firebase "firebase.google.com/go"
)

// BlobStore holds document and image bytes. Rows only keep the object path and URL.
type BlobStore interface {
	Upload(ctx context.Context, path, contentType string, data []byte) (url string, err error)
	Remove(ctx context.Context, path string) error
}

// FirebaseBlobStore stores objects in the project's Firebase Storage bucket.
type FirebaseBlobStore struct {
	bucket *storage.BucketHandle
	name   string
}

func NewFirebaseBlobStore(ctx context.Context, app *firebase.App, bucketName string) (*FirebaseBlobStore, error) {
	client, err := app.Storage(ctx)
	if err != nil {
		return nil, fmt.Errorf("error initializing Firebase storage: %w", err)
	}

	var bucket *storage.BucketHandle
	if bucketName == "" {
		bucket, err = client.DefaultBucket()
	} else {
		bucket, err = client.Bucket(bucketName)
	}
	if err != nil {
		return nil, fmt.Errorf("error opening storage bucket: %w", err)
	}

	log.Printf("✅ Storage bucket ready: %s", bucketName)
	return &FirebaseBlobStore{bucket: bucket, name: bucketName}, nil
}

func (b *FirebaseBlobStore) Upload(ctx context.Context, path, contentType string, data []byte) (string, error) {
	w := b.bucket.Object(path).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		w.Close()
		return "", fmt.Errorf("failed to upload %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", path, err)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", b.name, path), nil
}

// Remove deletes an object. A missing object is not an error.
func (b *FirebaseBlobStore) Remove(ctx context.Context, path string) error {
	err := b.bucket.Object(path).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}

// MemoryBlobStore keeps objects in memory.
type MemoryBlobStore struct {
	mu       sync.Mutex
	objects  map[string][]byte
	failNext error
}

func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{objects: make(map[string][]byte)}
}

// FailNext makes the next Upload or Remove return err.
func (b *MemoryBlobStore) FailNext(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failNext = err
}

func (b *MemoryBlobStore) takeFailure() error {
	err := b.failNext
	b.failNext = nil
	return err
}

func (b *MemoryBlobStore) Upload(ctx context.Context, path, contentType string, data []byte) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.takeFailure(); err != nil {
		return "", err
	}
	b.objects[path] = append([]byte(nil), data...)
	return "memory://" + path, nil
}

func (b *MemoryBlobStore) Remove(ctx context.Context, path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.takeFailure(); err != nil {
		return err
	}
	delete(b.objects, path)
	return nil
}

// Has reports whether an object exists at path.
func (b *MemoryBlobStore) Has(path string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[path]
	return ok
}

func (b *MemoryBlobStore) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.objects)
}
