package static

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

func TestCompressInflate(t *testing.T) {
	data := []byte(strings.Repeat("compressible text ", 100))

	compressed, err := Compress(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(compressed) >= len(data) {
		t.Errorf("compressed %d bytes into %d", len(data), len(compressed))
	}

	inflated, err := Inflate(compressed)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(inflated, data) {
		t.Error("round trip changed the payload")
	}

	if _, err := Inflate(data); err == nil {
		t.Error("expected plain data to fail inflating")
	}
}

func TestAcceptsGzip(t *testing.T) {
	testCases := []struct {
		header string
		accept bool
	}{
		{"gzip", true},
		{"deflate, gzip;q=0.8", true},
		{"GZIP", true},
		{"*", true},
		{"", false},
		{"br", false},
		{"gzip;q=0", false},
		{"gzip; q=0.0, br", false},
	}

	for _, tc := range testCases {
		if got := acceptsGzip(tc.header); got != tc.accept {
			t.Errorf("acceptsGzip(%q) = %v, want %v", tc.header, got, tc.accept)
		}
	}
}

func TestCacheStoreLookup(t *testing.T) {
	c := NewCache(0)

	if _, _, ok := c.Lookup("/a.txt", `"1"`, false); ok {
		t.Fatal("expected a miss on an empty cache")
	}

	c.Store("/a.txt", `"1"`, []byte("hello"), false)
	payload, compressed, ok := c.Lookup("/a.txt", `"1"`, true)
	if !ok || compressed || string(payload) != "hello" {
		t.Errorf("Lookup = %q, %v, %v", payload, compressed, ok)
	}

	if _, _, ok := c.Lookup("/a.txt", `"2"`, false); ok {
		t.Error("expected a stale tag to miss")
	}

	c.Remove("/a.txt")
	if c.Len() != 0 {
		t.Errorf("Len = %d after Remove", c.Len())
	}
}

func TestCacheInflatesForIdentityClients(t *testing.T) {
	data := []byte(strings.Repeat("body ", 50))
	compressed, err := Compress(data)
	if err != nil {
		t.Fatal(err)
	}

	c := NewCache(0)
	c.Store("/a.css", `"1"`, compressed, true)

	payload, isCompressed, ok := c.Lookup("/a.css", `"1"`, true)
	if !ok || !isCompressed || !bytes.Equal(payload, compressed) {
		t.Error("expected the gzip payload for a gzip client")
	}

	payload, isCompressed, ok = c.Lookup("/a.css", `"1"`, false)
	if !ok || isCompressed || !bytes.Equal(payload, data) {
		t.Error("expected the inflated payload for an identity client")
	}
}

func TestCacheFetch(t *testing.T) {
	c := NewCache(0)

	var loads atomic.Int32
	load := func() ([]byte, bool, error) {
		loads.Add(1)
		return []byte("payload"), false, nil
	}

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			payload, _, err := c.Fetch("/f.txt", `"1"`, false, load)
			if err != nil || string(payload) != "payload" {
				t.Errorf("Fetch = %q, %v", payload, err)
			}
		}()
	}
	wg.Wait()

	if n := loads.Load(); n != 1 {
		t.Errorf("loaded %d times, want once", n)
	}

	// a new tag refreshes the entry
	if _, _, err := c.Fetch("/f.txt", `"2"`, false, load); err != nil {
		t.Fatal(err)
	}
	if n := loads.Load(); n != 2 {
		t.Errorf("loaded %d times, want 2", n)
	}
}

func TestCacheFetchError(t *testing.T) {
	c := NewCache(0)
	failure := errors.New("disk on fire")

	_, _, err := c.Fetch("/f.txt", `"1"`, false, func() ([]byte, bool, error) {
		return nil, false, failure
	})
	if !errors.Is(err, failure) {
		t.Fatalf("err = %v, want %v", err, failure)
	}
	if _, _, ok := c.Lookup("/f.txt", `"1"`, false); ok {
		t.Error("a failed load must not be cached")
	}
}

func TestCacheCorruptEntry(t *testing.T) {
	c := NewCache(0)
	c.Store("/broken.css", `"1"`, []byte("not gzip"), true)

	_, _, err := c.Fetch("/broken.css", `"1"`, false, func() ([]byte, bool, error) {
		t.Error("unexpected load")
		return nil, false, nil
	})
	if !errors.Is(err, errCorruptEntry) {
		t.Errorf("err = %v, want errCorruptEntry", err)
	}
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewCache(2)
	c.Store("/a", `"1"`, []byte("a"), false)
	c.Store("/b", `"1"`, []byte("b"), false)

	// touch /a so /b becomes the oldest
	c.Lookup("/a", `"1"`, false)
	c.Store("/c", `"1"`, []byte("c"), false)

	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
	if _, _, ok := c.Lookup("/b", `"1"`, false); ok {
		t.Error("expected /b to be evicted")
	}
	for _, p := range []string{"/a", "/c"} {
		if _, _, ok := c.Lookup(p, `"1"`, false); !ok {
			t.Errorf("expected %s to be cached", p)
		}
	}
}
