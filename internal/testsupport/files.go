package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteFile writes size bytes to path where byte i is byte(i*31+7), so any
// offset has distinct, reproducible content. Parent directories are created.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()
	if size < 0 {
		size = 0
	}
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i*31 + 7)
	}
	WriteBytes(t, path, data)
}

// WriteBytes writes data to path, creating parent directories.
func WriteBytes(t testing.TB, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// PatchByte overwrites one byte of an existing file.
func PatchByte(t testing.TB, path string, offset int64, value byte) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	if _, err := f.WriteAt([]byte{value}, offset); err != nil {
		t.Fatalf("patch %s at %d: %v", path, offset, err)
	}
}
