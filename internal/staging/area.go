package staging

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/danmuck/nativebox/internal/tools"
	"github.com/zeebo/blake3"
)

var (
	ErrInvalidKey       = errors.New("staging: invalid artifact key")
	ErrSandboxViolation = errors.New("staging: path outside staging root")
)

// Materialized describes a file written by Materialize.
type Materialized struct {
	Path   string
	Size   int64
	Digest string
}

// Area maps artifact keys onto files below a single root directory.
type Area struct {
	root string
}

// New creates root (and parents) when missing.
func New(root string) (*Area, error) {
	abs, err := tools.EnsureDir(root)
	if err != nil {
		return nil, err
	}
	return &Area{root: filepath.Clean(abs)}, nil
}

func (a *Area) Root() string {
	return a.root
}

// Path derives the staged location for namespace/name. It does not touch the
// filesystem.
func (a *Area) Path(namespace, name string) (string, error) {
	if err := ValidateKey(namespace, name); err != nil {
		return "", err
	}
	rel := filepath.Join(strings.ReplaceAll(namespace, ".", string(os.PathSeparator)), name)
	dest := filepath.Clean(filepath.Join(a.root, rel))
	if !isWithin(dest, a.root) || dest == a.root {
		return "", fmt.Errorf("%w: %s", ErrSandboxViolation, dest)
	}
	return dest, nil
}

// Materialize copies src into the staged location for namespace/name. The
// bytes land in a temp sibling first and are renamed over the target only
// after a successful copy and sync, so a failed copy never leaves a partial
// target behind. src is closed on every path.
func (a *Area) Materialize(namespace, name string, src io.ReadCloser) (Materialized, error) {
	defer src.Close()

	dest, err := a.Path(namespace, name)
	if err != nil {
		return Materialized{}, err
	}
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Materialized{}, fmt.Errorf("creating staging directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+name+".*.tmp")
	if err != nil {
		return Materialized{}, fmt.Errorf("creating temp file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	hasher := blake3.New()
	size, err := io.Copy(io.MultiWriter(tmp, hasher), src)
	if err != nil {
		tmp.Close()
		return Materialized{}, fmt.Errorf("copying into %s: %w", dest, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return Materialized{}, fmt.Errorf("syncing %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return Materialized{}, fmt.Errorf("closing %s: %w", tmpPath, err)
	}
	// Shared objects must be mappable with exec permission on most hosts.
	if err := os.Chmod(tmpPath, 0o755); err != nil {
		return Materialized{}, fmt.Errorf("chmod %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return Materialized{}, fmt.Errorf("renaming into %s: %w", dest, err)
	}
	success = true

	return Materialized{
		Path:   dest,
		Size:   size,
		Digest: hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// Remove deletes the whole staging tree.
func (a *Area) Remove() error {
	return tools.RemoveDir(a.root)
}

// ValidateKey checks that namespace is a dotted identifier with non-empty
// segments and that name is a single path element.
func ValidateKey(namespace, name string) error {
	if strings.TrimSpace(namespace) == "" {
		return fmt.Errorf("%w: empty namespace", ErrInvalidKey)
	}
	for _, seg := range strings.Split(namespace, ".") {
		if seg == "" || strings.ContainsAny(seg, `/\`) {
			return fmt.Errorf("%w: namespace %q", ErrInvalidKey, namespace)
		}
	}
	if strings.TrimSpace(name) == "" || name == "." || name == ".." {
		return fmt.Errorf("%w: name %q", ErrInvalidKey, name)
	}
	if strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return fmt.Errorf("%w: name %q", ErrInvalidKey, name)
	}
	return nil
}

func isWithin(path string, root string) bool {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, ".."+string(os.PathSeparator)) && rel != "..")
}
