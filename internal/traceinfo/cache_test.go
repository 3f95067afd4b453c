package traceinfo_test

import (
	"testing"
	"time"

	"github.com/matgreaves/tracequeryd/internal/traceinfo"
)

func TestCache_InsertLookupRoundTrip(t *testing.T) {
	c := traceinfo.NewCache(4, time.Minute)
	key := traceinfo.CacheKey{ManifestSize: 10, EventsSize: 20}
	want := traceinfo.Summary{OS: "linux", EventCount: 5}

	c.Insert("t1", key, want)
	got, ok := c.Lookup("t1", key)
	if !ok {
		t.Fatal("expected a cache hit")
	}
	if got.OS != want.OS || got.EventCount != want.EventCount {
		t.Errorf("got = %+v, want %+v", got, want)
	}
}

func TestCache_KeyMismatchIsMiss(t *testing.T) {
	c := traceinfo.NewCache(4, time.Minute)
	c.Insert("t1", traceinfo.CacheKey{ManifestSize: 10}, traceinfo.Summary{})

	_, ok := c.Lookup("t1", traceinfo.CacheKey{ManifestSize: 11})
	if ok {
		t.Fatal("a changed cache key must invalidate the entry")
	}
}

func TestCache_TTLExpiry(t *testing.T) {
	c := traceinfo.NewCache(4, time.Nanosecond)
	key := traceinfo.CacheKey{ManifestSize: 10}
	c.Insert("t1", key, traceinfo.Summary{})

	time.Sleep(time.Millisecond)
	_, ok := c.Lookup("t1", key)
	if ok {
		t.Fatal("expected the entry to have expired")
	}
}

func TestCache_ZeroCapacityDisablesCaching(t *testing.T) {
	c := traceinfo.NewCache(0, time.Minute)
	key := traceinfo.CacheKey{}
	c.Insert("t1", key, traceinfo.Summary{OS: "linux"})

	_, ok := c.Lookup("t1", key)
	if ok {
		t.Fatal("capacity 0 must disable caching")
	}
}

func TestCache_FIFOEvictionAtCapacity(t *testing.T) {
	c := traceinfo.NewCache(2, time.Minute)
	c.Insert("a", traceinfo.CacheKey{ManifestSize: 1}, traceinfo.Summary{OS: "a"})
	c.Insert("b", traceinfo.CacheKey{ManifestSize: 2}, traceinfo.Summary{OS: "b"})
	c.Insert("c", traceinfo.CacheKey{ManifestSize: 3}, traceinfo.Summary{OS: "c"})

	if _, ok := c.Lookup("a", traceinfo.CacheKey{ManifestSize: 1}); ok {
		t.Error("oldest entry \"a\" should have been evicted")
	}
	if _, ok := c.Lookup("b", traceinfo.CacheKey{ManifestSize: 2}); !ok {
		t.Error("\"b\" should still be cached")
	}
	if _, ok := c.Lookup("c", traceinfo.CacheKey{ManifestSize: 3}); !ok {
		t.Error("\"c\" should still be cached")
	}
}

func TestCache_ConcurrentInsertLookup(t *testing.T) {
	c := traceinfo.NewCache(16, time.Minute)
	key := traceinfo.CacheKey{ManifestSize: 1}

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func(i int) {
			c.Insert("shared", key, traceinfo.Summary{EventCount: uint64(i)})
			c.Lookup("shared", key)
			done <- struct{}{}
		}(i)
	}
	for i := 0; i < 8; i++ {
		<-done
	}

	if _, ok := c.Lookup("shared", key); !ok {
		t.Fatal("expected a value after concurrent inserts")
	}
}
