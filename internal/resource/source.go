// Package resource resolves packaged native artifacts to byte streams.
//
// Packaged resources live under a slash-separated tree that mirrors the
// dotted namespace: namespace "com.acme.math" and name "libfast.so" resolve to
// "com/acme/math/libfast.so". Any fs.FS works, so binaries can ship their
// libraries through embed.FS while tools point at a directory via os.DirFS.
package resource

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/klauspost/compress/zstd"
)

var ErrNotFound = errors.New("resource: not found")

// CompressedSuffix marks a zstd-compressed resource.
const CompressedSuffix = ".zst"

// Source opens the packaged bytes for one artifact.
type Source interface {
	Open(namespace, name string) (io.ReadCloser, error)
}

// FS resolves resources from a filesystem tree.
type FS struct {
	fsys fs.FS
}

func NewFS(fsys fs.FS) *FS {
	return &FS{fsys: fsys}
}

// Dir resolves resources from a directory on disk.
func Dir(root string) *FS {
	return NewFS(os.DirFS(root))
}

// ResourcePath returns the slash path for a namespace/name pair.
func ResourcePath(namespace, name string) string {
	return path.Join(strings.ReplaceAll(namespace, ".", "/"), name)
}

// Open returns the resource stream. When only a ".zst" sibling exists it is
// decompressed on the fly.
func (s *FS) Open(namespace, name string) (io.ReadCloser, error) {
	p := ResourcePath(namespace, name)
	if !fs.ValidPath(p) {
		return nil, fmt.Errorf("%w: invalid resource path %q", ErrNotFound, p)
	}
	f, err := s.fsys.Open(p)
	if err == nil {
		return f, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	cf, cerr := s.fsys.Open(p + CompressedSuffix)
	if cerr != nil {
		if errors.Is(cerr, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
		}
		return nil, cerr
	}
	dec, err := zstd.NewReader(cf)
	if err != nil {
		cf.Close()
		return nil, fmt.Errorf("resource: zstd %s: %w", p, err)
	}
	return &zstdStream{dec: dec, src: cf}, nil
}

type zstdStream struct {
	dec *zstd.Decoder
	src io.Closer
}

func (z *zstdStream) Read(p []byte) (int, error) {
	return z.dec.Read(p)
}

func (z *zstdStream) Close() error {
	z.dec.Close()
	return z.src.Close()
}

// OpenFile opens an explicit source path, mapping a missing file to
// ErrNotFound.
func OpenFile(p string) (io.ReadCloser, error) {
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s: %w", ErrNotFound, p, err)
		}
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("resource: %s is a directory", p)
	}
	return f, nil
}

// Empty is a Source with no resources.
type Empty struct{}

func (Empty) Open(namespace, name string) (io.ReadCloser, error) {
	return nil, fmt.Errorf("%w: %s", ErrNotFound, ResourcePath(namespace, name))
}
