package offline

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileBucketPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	buckets := NewFileBuckets(dir)
	bucket, err := buckets.Open("saucerview-dynamic-v2")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	stored := &StoredResponse{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       []byte(`{"pools":[]}`),
		StoredAt:   time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC),
	}
	if err := bucket.Put("http://api.local/pools", stored); err != nil {
		t.Fatalf("Put: %v", err)
	}

	// A fresh manager over the same directory sees the entry.
	reopened, err := NewFileBuckets(dir).Open("saucerview-dynamic-v2")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, ok, err := reopened.Get("http://api.local/pools")
	if err != nil || !ok {
		t.Fatalf("Get after reopen: ok=%v err=%v", ok, err)
	}
	if string(got.Body) != `{"pools":[]}` {
		t.Fatalf("body mismatch: %s", got.Body)
	}
	if got.Header.Get("Content-Type") != "application/json" {
		t.Fatal("headers must survive persistence")
	}
}

func TestDoubleOpenSharesOneBucket(t *testing.T) {
	buckets := NewFileBuckets(t.TempDir())

	b1, err := buckets.Open("saucerview-dynamic-v2")
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	b2, err := buckets.Open("saucerview-dynamic-v2")
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	if b1 != b2 {
		t.Fatal("opening a bucket twice must return the same instance")
	}

	// Removing the bucket drops the cached instance too.
	if err := buckets.Remove("saucerview-dynamic-v2"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	b3, err := buckets.Open("saucerview-dynamic-v2")
	if err != nil {
		t.Fatalf("Open after Remove: %v", err)
	}
	if b3 == b1 {
		t.Fatal("a removed bucket must not resurrect the old instance")
	}
}

func TestCorruptedBucketFileDegradesToEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "saucerview-dynamic-v2.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatalf("writing corrupt file: %v", err)
	}

	bucket, err := NewFileBuckets(dir).Open("saucerview-dynamic-v2")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if _, ok, err := bucket.Get("anything"); err != nil || ok {
		t.Fatalf("corrupt bucket must read as empty: ok=%v err=%v", ok, err)
	}

	// Writes recover the bucket.
	if err := bucket.Put("k", &StoredResponse{Body: []byte("x")}); err != nil {
		t.Fatalf("Put into corrupt bucket: %v", err)
	}
	if _, ok, _ := bucket.Get("k"); !ok {
		t.Fatal("bucket must be writable after corruption")
	}
}

func TestDeleteAndKeys(t *testing.T) {
	bucket, err := NewFileBuckets(t.TempDir()).Open("b")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	bucket.Put("a", &StoredResponse{Body: []byte("1")})
	bucket.Put("b", &StoredResponse{Body: []byte("2")})

	if err := bucket.Delete("a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := bucket.Delete("a"); err != nil {
		t.Fatalf("deleting an absent key must be a no-op, got %v", err)
	}

	keys, err := bucket.Keys()
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(keys) != 1 || keys[0] != "b" {
		t.Fatalf("unexpected keys: %v", keys)
	}
}

func TestListAndRemoveBuckets(t *testing.T) {
	dir := t.TempDir()
	buckets := NewFileBuckets(dir)

	for _, name := range []string{"saucerview-static-v1", "saucerview-static-v2"} {
		b, err := buckets.Open(name)
		if err != nil {
			t.Fatalf("Open(%s): %v", name, err)
		}
		// A bucket file only exists once something is written.
		if err := b.Put("k", &StoredResponse{Body: []byte("x")}); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	names, err := buckets.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("expected 2 buckets, got %v", names)
	}

	if err := buckets.Remove("saucerview-static-v1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := buckets.Remove("saucerview-static-v1"); err != nil {
		t.Fatalf("removing an absent bucket must be a no-op, got %v", err)
	}

	names, _ = buckets.List()
	if len(names) != 1 || names[0] != "saucerview-static-v2" {
		t.Fatalf("unexpected buckets after remove: %v", names)
	}
}

func TestListOnMissingDirectory(t *testing.T) {
	buckets := NewFileBuckets(filepath.Join(t.TempDir(), "never-created"))
	names, err := buckets.List()
	if err != nil {
		t.Fatalf("List on missing dir: %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("expected no buckets, got %v", names)
	}
}
