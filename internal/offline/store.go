/*

Bucket storage behind the offline layer. A bucket maps request URLs (or
queue keys) to stored responses. The interface keeps the offline worker
independent of where bytes actually live: the in-memory backend serves
tests, the file backend survives process restarts.

*/

package offline

import (
	"net/http"
	"sync"
	"time"
)

// StoredResponse is one persisted HTTP exchange. For queued write requests
// (background sync) StatusCode is zero and Method/URL carry the request to
// replay instead.
type StoredResponse struct {
	StatusCode int         `json:"status_code"`
	Header     http.Header `json:"header,omitempty"`
	Body       []byte      `json:"body,omitempty"`
	Method     string      `json:"method,omitempty"`
	URL        string      `json:"url,omitempty"`
	StoredAt   time.Time   `json:"stored_at"`
}

// BucketStore is a single named bucket.
type BucketStore interface {
	Get(key string) (*StoredResponse, bool, error)
	Put(key string, resp *StoredResponse) error
	Delete(key string) error
	Keys() ([]string, error)
}

// BucketManager owns the set of named buckets and supports the rotation
// performed during worker activation.
type BucketManager interface {
	Open(name string) (BucketStore, error)
	List() ([]string, error)
	Remove(name string) error
}

// MemoryBuckets is the in-memory BucketManager used in tests and as a
// fallback when no cache directory is available.
type MemoryBuckets struct {
	mu      sync.Mutex
	buckets map[string]*memoryBucket
}

func NewMemoryBuckets() *MemoryBuckets {
	return &MemoryBuckets{buckets: make(map[string]*memoryBucket)}
}

func (m *MemoryBuckets) Open(name string) (BucketStore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.buckets[name]; ok {
		return b, nil
	}
	b := &memoryBucket{entries: make(map[string]*StoredResponse)}
	m.buckets[name] = b
	return b, nil
}

func (m *MemoryBuckets) List() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.buckets))
	for name := range m.buckets {
		names = append(names, name)
	}
	return names, nil
}

func (m *MemoryBuckets) Remove(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.buckets, name)
	return nil
}

type memoryBucket struct {
	mu      sync.Mutex
	entries map[string]*StoredResponse
}

func (b *memoryBucket) Get(key string) (*StoredResponse, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	resp, ok := b.entries[key]
	return resp, ok, nil
}

func (b *memoryBucket) Put(key string, resp *StoredResponse) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[key] = resp
	return nil
}

func (b *memoryBucket) Delete(key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.entries, key)
	return nil
}

func (b *memoryBucket) Keys() ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	keys := make([]string, 0, len(b.entries))
	for key := range b.entries {
		keys = append(keys, key)
	}
	return keys, nil
}
