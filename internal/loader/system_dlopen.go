//go:build darwin || freebsd || linux || netbsd

package loader

import (
	"fmt"

	"github.com/ebitengine/purego"
)

// System loads shared libraries through dlopen. Handles are intentionally
// never closed; the library stays mapped for the life of the process.
type System struct{}

func (System) Load(path string) error {
	if _, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL); err != nil {
		return fmt.Errorf("dlopen %s: %w", path, err)
	}
	return nil
}
