package tools

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func TestProcessIdentityStable(t *testing.T) {
	a := ProcessIdentity()
	b := ProcessIdentity()
	if a != b {
		t.Fatalf("identity changed within process: %q != %q", a, b)
	}
	if !strings.HasPrefix(a, strconv.Itoa(os.Getpid())+"@") {
		t.Fatalf("identity missing pid prefix: %q", a)
	}
	if strings.ContainsRune(a, os.PathSeparator) {
		t.Fatalf("identity must be a single path element: %q", a)
	}
}

func TestEnsureAndRemoveDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b", "c")
	abs, err := EnsureDir(dir)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if info, err := os.Stat(abs); err != nil || !info.IsDir() {
		t.Fatalf("expected directory at %s: %v", abs, err)
	}
	if err := RemoveDir(abs); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := RemoveDir(abs); err != nil {
		t.Fatalf("remove missing: %v", err)
	}
	if _, err := EnsureDir("  "); err == nil {
		t.Fatalf("expected empty dir error")
	}
}
