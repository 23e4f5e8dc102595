package offline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileBuckets persists each bucket as one JSON file under a root directory.
// Writes are atomic (temp file + rename); a corrupted bucket file degrades
// to an empty bucket rather than an error.
type FileBuckets struct {
	dir string

	mu   sync.Mutex
	open map[string]*fileBucket
}

func NewFileBuckets(dir string) *FileBuckets {
	return &FileBuckets{dir: dir, open: make(map[string]*fileBucket)}
}

// Open returns the same bucket instance for repeated opens of one name so
// all writers to a bucket share its file lock.
func (f *FileBuckets) Open(name string) (BucketStore, error) {
	if err := os.MkdirAll(f.dir, 0700); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.open[name]; ok {
		return b, nil
	}
	b := &fileBucket{path: filepath.Join(f.dir, name+".json")}
	f.open[name] = b
	return b, nil
}

func (f *FileBuckets) List() ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	return names, nil
}

func (f *FileBuckets) Remove(name string) error {
	f.mu.Lock()
	delete(f.open, name)
	f.mu.Unlock()

	err := os.Remove(filepath.Join(f.dir, name+".json"))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

type fileBucket struct {
	path string
	mu   sync.Mutex
}

func (b *fileBucket) Get(key string) (*StoredResponse, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	entries, err := b.load()
	if err != nil {
		return nil, false, err
	}
	resp, ok := entries[key]
	return resp, ok, nil
}

func (b *fileBucket) Put(key string, resp *StoredResponse) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	entries, err := b.load()
	if err != nil {
		return err
	}
	entries[key] = resp
	return b.save(entries)
}

func (b *fileBucket) Delete(key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	entries, err := b.load()
	if err != nil {
		return err
	}
	if _, ok := entries[key]; !ok {
		return nil
	}
	delete(entries, key)
	return b.save(entries)
}

func (b *fileBucket) Keys() ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	entries, err := b.load()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(entries))
	for key := range entries {
		keys = append(keys, key)
	}
	return keys, nil
}

// load reads the bucket file. Missing or corrupted files yield an empty
// bucket so a bad shutdown never wedges the offline layer.
func (b *fileBucket) load() (map[string]*StoredResponse, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]*StoredResponse), nil
		}
		return nil, err
	}

	var entries map[string]*StoredResponse
	if err := json.Unmarshal(data, &entries); err != nil {
		return make(map[string]*StoredResponse), nil //nolint:nilerr // graceful degradation for corrupted bucket
	}
	if entries == nil {
		entries = make(map[string]*StoredResponse)
	}
	return entries, nil
}

func (b *fileBucket) save(entries map[string]*StoredResponse) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}

	tmpPath := b.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmpPath, b.path)
}
