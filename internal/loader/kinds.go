package loader

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Factory builds a Loader for a manifest loader kind.
type Factory func() Loader

const (
	KindSystem = "system"
	KindNoop   = "noop"
)

var (
	kindsMu sync.RWMutex
	kinds   = map[string]Factory{}
)

func init() {
	RegisterKind(KindSystem, func() Loader { return System{} })
	RegisterKind(KindNoop, func() Loader { return Noop{} })
}

// RegisterKind makes a loader kind selectable by name. Later registrations
// replace earlier ones.
func RegisterKind(kind string, f Factory) {
	kindsMu.Lock()
	defer kindsMu.Unlock()
	kinds[strings.ToLower(kind)] = f
}

func ByKind(kind string) (Loader, error) {
	kindsMu.RLock()
	f, ok := kinds[strings.ToLower(strings.TrimSpace(kind))]
	kindsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown loader kind %q (known: %s)", kind, strings.Join(Kinds(), ", "))
	}
	return f(), nil
}

// Kinds lists registered kinds in sorted order.
func Kinds() []string {
	kindsMu.RLock()
	defer kindsMu.RUnlock()
	out := make([]string, 0, len(kinds))
	for k := range kinds {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
