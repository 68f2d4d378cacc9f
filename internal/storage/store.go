// Package storage publishes episode artifacts to an object store. The
// store itself is an external collaborator behind the BlobStore interface;
// the Gateway layers retry, verification, and the atomic-publish protocol
// on top of it.
package storage

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned by Head and Copy when a key does not exist.
var ErrNotFound = errors.New("storage: key not found")

// MetadataDirective selects whether a copy keeps or replaces object metadata.
type MetadataDirective string

const (
	DirectiveCopy    MetadataDirective = "COPY"
	DirectiveReplace MetadataDirective = "REPLACE"
)

// PutOptions carries per-object settings for Put and metadata-replacing Copy.
type PutOptions struct {
	ContentType  string
	CacheControl string
	ACL          string
	Metadata     map[string]string
}

// ObjectInfo is the result of a head-metadata call.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}

// BlobStore is the key/value blob API the pipeline publishes through.
type BlobStore interface {
	Put(ctx context.Context, key string, body []byte, opts PutOptions) error
	Copy(ctx context.Context, srcKey, dstKey string, directive MetadataDirective, opts PutOptions) error
	Delete(ctx context.Context, key string) error
	Head(ctx context.Context, key string) (ObjectInfo, error)
	ListByPrefix(ctx context.Context, prefix string) ([]ObjectInfo, error)
	BucketExists(ctx context.Context) (bool, error)
}

var contentTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".json": "application/json",
	".xml":  "application/rss+xml; charset=utf-8",
}

// ContentTypeFor maps a filename to its upload content type, defaulting to
// application/octet-stream for unknown extensions.
func ContentTypeFor(filename string) string {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 {
		return "application/octet-stream"
	}
	if ct, ok := contentTypes[strings.ToLower(filename[idx:])]; ok {
		return ct
	}
	return "application/octet-stream"
}

// IsAudioFilename reports whether the filename carries a supported audio
// extension.
func IsAudioFilename(filename string) bool {
	lower := strings.ToLower(filename)
	return strings.HasSuffix(lower, ".mp3") || strings.HasSuffix(lower, ".wav")
}

// IsImageFilename reports whether the filename carries a supported episode
// image extension.
func IsImageFilename(filename string) bool {
	lower := strings.ToLower(filename)
	for _, ext := range []string{".jpg", ".jpeg", ".png", ".gif", ".webp"} {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
