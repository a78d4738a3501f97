// Package storage holds the object backends behind the /storage/v1 endpoints.
package storage

import (
	"context"
	"errors"
	"path"
	"strings"
)

var (
	ErrObjectExists   = errors.New("object already exists")
	ErrObjectNotFound = errors.New("object not found")
	ErrInvalidKey     = errors.New("invalid object key")
)

// Object is a stored file and its content type
type Object struct {
	Data        []byte
	ContentType string
}

// ObjectStore keeps files by bucket and key. Put never overwrites: an existing key is ErrObjectExists.
type ObjectStore interface {
	Put(ctx context.Context, bucket, key, contentType string, data []byte) error
	Get(ctx context.Context, bucket, key string) (*Object, error)
}

// CleanKey validates a bucket/key pair and returns the key in canonical form.
// Keys are relative slash-separated paths without "." or ".." segments.
func CleanKey(bucket, key string) (string, error) {
	if bucket == "" || strings.ContainsAny(bucket, `/\`) || bucket == "." || bucket == ".." {
		return "", ErrInvalidKey
	}
	key = strings.TrimPrefix(key, "/")
	if key == "" || strings.Contains(key, `\`) {
		return "", ErrInvalidKey
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return "", ErrInvalidKey
		}
	}
	return path.Clean(key), nil
}
