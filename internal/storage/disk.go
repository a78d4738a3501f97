package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
)

// DiskStore keeps objects as files under <root>/<bucket>/<key>
type DiskStore struct {
	root string
}

// NewDiskStore creates a disk-backed store rooted at dir, creating it if needed
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &DiskStore{root: dir}, nil
}

// Put writes the object, refusing to replace an existing one
func (s *DiskStore) Put(ctx context.Context, bucket, key, contentType string, data []byte) error {
	key, err := CleanKey(bucket, key)
	if err != nil {
		return err
	}
	p := s.path(bucket, key)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return fmt.Errorf("failed to create object directory: %w", err)
	}

	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if errors.Is(err, fs.ErrExist) {
		return ErrObjectExists
	}
	if err != nil {
		return fmt.Errorf("failed to save object: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(p)
		return fmt.Errorf("failed to save object: %w", err)
	}
	return f.Close()
}

// Get reads an object back; the content type is sniffed from its bytes
func (s *DiskStore) Get(ctx context.Context, bucket, key string) (*Object, error) {
	key, err := CleanKey(bucket, key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(bucket, key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, err
	}
	return &Object{Data: data, ContentType: mimetype.Detect(data).String()}, nil
}

func (s *DiskStore) path(bucket, key string) string {
	return filepath.Join(s.root, bucket, filepath.FromSlash(key))
}
