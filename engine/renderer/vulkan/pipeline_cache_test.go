package vulkan

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestPipelineCacheRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	blob := []byte{0x10, 0x00, 0x00, 0x00, 0xde, 0xad, 0xbe, 0xef}

	if err := WritePipelineCacheBlob(dir, "deferred", blob); err != nil {
		t.Fatal(err)
	}
	got, err := ReadPipelineCacheFile(dir, "deferred")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, blob) {
		t.Fatalf("read %x, want %x", got, blob)
	}
	if _, err := os.Stat(filepath.Join(dir, "deferred.cache")); err != nil {
		t.Errorf("cache file not at the expected path: %v", err)
	}
}

func TestReadMissingPipelineCache(t *testing.T) {
	got, err := ReadPipelineCacheFile(t.TempDir(), "lighting")
	if err != nil {
		t.Fatalf("missing cache should not fail: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected an empty blob, got %v", got)
	}
}

func TestPipelineCachesAreKeyedByName(t *testing.T) {
	dir := t.TempDir()
	if err := WritePipelineCacheBlob(dir, "a", []byte{1}); err != nil {
		t.Fatal(err)
	}
	if err := WritePipelineCacheBlob(dir, "b", []byte{2, 2}); err != nil {
		t.Fatal(err)
	}
	a, _ := ReadPipelineCacheFile(dir, "a")
	b, _ := ReadPipelineCacheFile(dir, "b")
	if len(a) != 1 || len(b) != 2 {
		t.Errorf("a=%v b=%v", a, b)
	}
}
