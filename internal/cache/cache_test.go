package cache

import (
	"bytes"
	"os"
	"testing"
	"time"
)

func TestDiskCache_RoundTrip(t *testing.T) {
	c := NewDiskCache(t.TempDir(), time.Minute)

	key := CacheKey("hashing-v1:the levy is unfair")
	value := []byte(`[0.1,0.9]`)

	if err := c.Set(key, value, 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, found := c.Get(key)
	if !found {
		t.Fatal("expected a cache hit")
	}
	if !bytes.Equal(got, value) {
		t.Errorf("expected %q, got %q", value, got)
	}

	if _, found := c.Get(CacheKey("hashing-v1:a different comment")); found {
		t.Error("expected a miss for an unstored key")
	}
}

func TestDiskCache_Expiry(t *testing.T) {
	c := NewDiskCache(t.TempDir(), time.Minute)

	key := CacheKey("factcheck:the levy doubled")
	if err := c.Set(key, []byte("0.5"), time.Nanosecond); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	time.Sleep(time.Millisecond)
	if _, found := c.Get(key); found {
		t.Error("expected expired entry to miss")
	}
}

func TestDiskCache_CorruptFileIsMiss(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Minute)

	key := CacheKey("hashing-v1:corrupt me")
	if err := c.Set(key, []byte("payload"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if err := os.WriteFile(c.path(key), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, found := c.Get(key); found {
		t.Error("expected corrupt entry to miss")
	}
	if _, err := os.Stat(c.path(key)); !os.IsNotExist(err) {
		t.Error("expected corrupt entry to be removed")
	}
}

func TestLayeredCache_PromotesDiskHits(t *testing.T) {
	dir := t.TempDir()

	first := NewLayeredCache(time.Minute, dir, time.Minute)
	key := CacheKey("hashing-v1:persisted across runs")
	if err := first.Set(key, []byte("vector"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// A fresh instance has a cold memory layer and warms it from disk
	second := NewLayeredCache(time.Minute, dir, time.Minute)
	if _, found := second.Get(key); !found {
		t.Fatal("expected a disk hit through a fresh instance")
	}
	if _, found := second.memory.Get(key); !found {
		t.Error("expected the disk hit to be promoted to memory")
	}
}
