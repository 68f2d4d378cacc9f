package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

type memoryObject struct {
	body         []byte
	contentType  string
	cacheControl string
	acl          string
	metadata     map[string]string
	lastModified time.Time
}

// MemoryStore is an in-process BlobStore. It backs dry-run invocations and
// tests.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
	now     func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[string]memoryObject),
		now:     time.Now,
	}
}

func (m *MemoryStore) Put(_ context.Context, key string, body []byte, opts PutOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	buf := make([]byte, len(body))
	copy(buf, body)
	m.objects[key] = memoryObject{
		body:         buf,
		contentType:  opts.ContentType,
		cacheControl: opts.CacheControl,
		acl:          opts.ACL,
		metadata:     copyMetadata(opts.Metadata),
		lastModified: m.now(),
	}
	return nil
}

func (m *MemoryStore) Copy(_ context.Context, srcKey, dstKey string, directive MetadataDirective, opts PutOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	src, ok := m.objects[srcKey]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, srcKey)
	}

	dst := memoryObject{
		body:         src.body,
		contentType:  src.contentType,
		cacheControl: src.cacheControl,
		acl:          src.acl,
		metadata:     copyMetadata(src.metadata),
		lastModified: m.now(),
	}
	if directive == DirectiveReplace {
		dst.metadata = copyMetadata(opts.Metadata)
		if opts.ContentType != "" {
			dst.contentType = opts.ContentType
		}
		if opts.CacheControl != "" {
			dst.cacheControl = opts.CacheControl
		}
	}
	m.objects[dstKey] = dst
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *MemoryStore) Head(_ context.Context, key string) (ObjectInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[key]
	if !ok {
		return ObjectInfo{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return ObjectInfo{
		Key:          key,
		Size:         int64(len(obj.body)),
		ContentType:  obj.contentType,
		LastModified: obj.lastModified,
		Metadata:     copyMetadata(obj.metadata),
	}, nil
}

func (m *MemoryStore) ListByPrefix(_ context.Context, prefix string) ([]ObjectInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ObjectInfo
	for key, obj := range m.objects {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		result = append(result, ObjectInfo{
			Key:          key,
			Size:         int64(len(obj.body)),
			ContentType:  obj.contentType,
			LastModified: obj.lastModified,
			Metadata:     copyMetadata(obj.metadata),
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result, nil
}

func (m *MemoryStore) BucketExists(context.Context) (bool, error) {
	return true, nil
}

// Get returns the stored bytes and info for a key. Test helper.
func (m *MemoryStore) Get(key string) ([]byte, ObjectInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, ObjectInfo{}, false
	}
	buf := make([]byte, len(obj.body))
	copy(buf, obj.body)
	return buf, ObjectInfo{
		Key:          key,
		Size:         int64(len(obj.body)),
		ContentType:  obj.contentType,
		LastModified: obj.lastModified,
		Metadata:     copyMetadata(obj.metadata),
	}, true
}

func copyMetadata(metadata map[string]string) map[string]string {
	if metadata == nil {
		return nil
	}
	result := make(map[string]string, len(metadata))
	for k, v := range metadata {
		result[k] = v
	}
	return result
}
