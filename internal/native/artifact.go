package native

import (
	"sync"
	"weak"
)

type State int32

const (
	Declared State = iota
	Storing
	Stored
	Loading
	Loaded
)

func (s State) String() string {
	switch s {
	case Declared:
		return "declared"
	case Storing:
		return "storing"
	case Stored:
		return "stored"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	default:
		return "unknown"
	}
}

// Key identifies an artifact within one repository.
type Key struct {
	Namespace string
	Name      string
}

func (k Key) String() string {
	return k.Namespace + "/" + k.Name
}

// Artifact is one registered native artifact. Identity is fixed at
// registration; state, path, size and digest change only under the
// artifact's transition lock.
type Artifact struct {
	key    Key
	repoID uint64
	repo   weak.Pointer[Repository]

	// mu serializes lifecycle transitions, including the loader call.
	mu sync.Mutex

	// vmu guards the snapshot fields so readers never wait on a load.
	vmu    sync.RWMutex
	state  State
	path   string
	size   int64
	digest string
}

// Info is a point-in-time view of an artifact.
type Info struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
	State     string `json:"state"`
	Path      string `json:"path,omitempty"`
	Size      int64  `json:"size,omitempty"`
	Digest    string `json:"digest,omitempty"`
}

func (a *Artifact) Key() Key          { return a.key }
func (a *Artifact) Namespace() string { return a.key.Namespace }
func (a *Artifact) Name() string      { return a.key.Name }

func (a *Artifact) State() State {
	a.vmu.RLock()
	defer a.vmu.RUnlock()
	return a.state
}

// Path is the absolute staged location, empty while Declared.
func (a *Artifact) Path() string {
	a.vmu.RLock()
	defer a.vmu.RUnlock()
	return a.path
}

func (a *Artifact) Size() int64 {
	a.vmu.RLock()
	defer a.vmu.RUnlock()
	return a.size
}

// Digest is the BLAKE3 hex digest of the staged bytes.
func (a *Artifact) Digest() string {
	a.vmu.RLock()
	defer a.vmu.RUnlock()
	return a.digest
}

func (a *Artifact) Info() Info {
	a.vmu.RLock()
	defer a.vmu.RUnlock()
	return Info{
		Namespace: a.key.Namespace,
		Name:      a.key.Name,
		State:     a.state.String(),
		Path:      a.path,
		Size:      a.size,
		Digest:    a.digest,
	}
}

// Load is shorthand for loading the artifact through its own repository.
func (a *Artifact) Load() error {
	repo := a.repo.Value()
	if repo == nil {
		return newError("load", a.key, ErrRepositoryClosed, nil)
	}
	return repo.Load(a)
}

// Equal reports whether both artifacts name the same key in the same
// repository.
func (a *Artifact) Equal(b *Artifact) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.repoID == b.repoID && a.key == b.key
}

func (a *Artifact) setState(s State) {
	a.vmu.Lock()
	a.state = s
	a.vmu.Unlock()
}

func (a *Artifact) setStored(path string, size int64, digest string) {
	a.vmu.Lock()
	a.state = Stored
	a.path = path
	a.size = size
	a.digest = digest
	a.vmu.Unlock()
}

// reset returns the artifact to Declared with no staged file.
func (a *Artifact) reset() {
	a.vmu.Lock()
	a.state = Declared
	a.path = ""
	a.size = 0
	a.digest = ""
	a.vmu.Unlock()
}
