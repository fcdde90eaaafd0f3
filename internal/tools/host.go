package tools

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

var (
	identityOnce sync.Once
	identity     string
)

// ProcessIdentity returns "<pid>@<hostname>-<nonce>". The nonce is drawn once
// per process so a recycled pid on the same host still yields a new identity.
func ProcessIdentity() string {
	identityOnce.Do(func() {
		host, err := os.Hostname()
		if err != nil || strings.TrimSpace(host) == "" {
			host = "localhost"
		}
		host = strings.ReplaceAll(host, string(os.PathSeparator), "_")
		nonce := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
		identity = fmt.Sprintf("%d@%s-%s", os.Getpid(), host, nonce)
	})
	return identity
}

// EnsureDir resolves dir to an absolute path and creates it with parents.
func EnsureDir(dir string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", fmt.Errorf("tools: empty directory")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return "", fmt.Errorf("tools: create %s: %w", abs, err)
	}
	return abs, nil
}

// RemoveDir recursively deletes dir. A missing directory is not an error.
func RemoveDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
