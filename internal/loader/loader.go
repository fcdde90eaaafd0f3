package loader

import (
	"errors"
	"sync"
)

var ErrUnsupported = errors.New("loader: native loading unsupported on this platform")

// Loader loads the native artifact at path into the running process.
type Loader interface {
	Load(path string) error
}

// Noop accepts every path without touching native code.
type Noop struct{}

func (Noop) Load(string) error {
	return nil
}

// Recorder counts and records Load calls. Err is returned from every call
// when set. Hook runs inside Load before the result is decided, which lets
// tests hold a load in flight.
type Recorder struct {
	Err  error
	Hook func(path string)

	mu    sync.Mutex
	paths []string
}

func (r *Recorder) Load(path string) error {
	if r.Hook != nil {
		r.Hook(path)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
	return r.Err
}

// Calls returns the number of Load invocations so far.
func (r *Recorder) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.paths)
}

// Paths returns a copy of every path passed to Load, in call order.
func (r *Recorder) Paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.paths))
	copy(out, r.paths)
	return out
}
