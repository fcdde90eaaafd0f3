//go:build !(darwin || freebsd || linux || netbsd)

package loader

import "fmt"

type System struct{}

func (System) Load(path string) error {
	return fmt.Errorf("%w: %s", ErrUnsupported, path)
}
