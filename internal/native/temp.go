package native

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/danmuck/nativebox/internal/tools"
)

var tempRepositories atomic.Uint64

// TempDirName returns the directory name used for the n-th temp repository
// of this process.
func TempDirName(n uint64) string {
	return fmt.Sprintf("%s-repo-%d", tools.ProcessIdentity(), n)
}

// NewTemp opens a repository in a fresh process-scoped directory under
// cfg.TempRoot (or os.TempDir()). Every call gets a distinct directory.
func NewTemp(cfg Config) (*Repository, error) {
	root := strings.TrimSpace(cfg.TempRoot)
	if root == "" {
		root = os.TempDir()
	}
	cfg.Dir = filepath.Join(root, TempDirName(tempRepositories.Add(1)))
	return New(cfg)
}
