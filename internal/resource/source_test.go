package resource

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/klauspost/compress/zstd"
)

var (
	_ Source = (*FS)(nil)
	_ Source = Empty{}
)

func compress(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		t.Fatalf("zstd writer: %v", err)
	}
	if _, err := enc.Write(data); err != nil {
		t.Fatalf("zstd write: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("zstd close: %v", err)
	}
	return buf.Bytes()
}

func readAll(t *testing.T, rc io.ReadCloser) []byte {
	t.Helper()
	defer rc.Close()
	out, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return out
}

func TestResourcePath(t *testing.T) {
	if got := ResourcePath("com.acme.math", "libfast.so"); got != "com/acme/math/libfast.so" {
		t.Fatalf("unexpected resource path: %q", got)
	}
}

func TestFSOpenPlainAndCompressed(t *testing.T) {
	payload := []byte("0123456789")
	src := NewFS(fstest.MapFS{
		"com/acme/math/libfast.so":       {Data: payload},
		"com/acme/math/libpacked.so.zst": {Data: compress(t, payload)},
	})

	rc, err := src.Open("com.acme.math", "libfast.so")
	if err != nil {
		t.Fatalf("open plain: %v", err)
	}
	if got := readAll(t, rc); !bytes.Equal(got, payload) {
		t.Fatalf("plain payload mismatch: %q", got)
	}

	rc, err = src.Open("com.acme.math", "libpacked.so")
	if err != nil {
		t.Fatalf("open compressed: %v", err)
	}
	if got := readAll(t, rc); !bytes.Equal(got, payload) {
		t.Fatalf("compressed payload mismatch: %q", got)
	}
}

func TestFSOpenMissing(t *testing.T) {
	src := NewFS(fstest.MapFS{})
	if _, err := src.Open("com.acme", "libnone.so"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := src.Open("com.acme", "../escape.so"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected invalid path to be not found, got %v", err)
	}
	if _, err := (Empty{}).Open("a", "b"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected empty source miss, got %v", err)
	}
}

func TestDirSource(t *testing.T) {
	root := t.TempDir()
	p := filepath.Join(root, "org", "x", "liby.so")
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, []byte("y"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	rc, err := Dir(root).Open("org.x", "liby.so")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if got := readAll(t, rc); string(got) != "y" {
		t.Fatalf("unexpected content: %q", got)
	}
}

func TestOpenFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.so")
	_, err := OpenFile(missing)
	if !errors.Is(err, ErrNotFound) || !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected ErrNotFound wrapping fs.ErrNotExist, got %v", err)
	}
	if _, err := OpenFile(t.TempDir()); err == nil {
		t.Fatalf("expected directory source to be rejected")
	}
}
