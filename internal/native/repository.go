package native

import (
	"errors"
	"fmt"
	"io"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"weak"

	"github.com/danmuck/nativebox/internal/loader"
	"github.com/danmuck/nativebox/internal/logging"
	"github.com/danmuck/nativebox/internal/observability"
	"github.com/danmuck/nativebox/internal/resource"
	"github.com/danmuck/nativebox/internal/staging"
	"github.com/danmuck/nativebox/internal/tools"
	"github.com/rs/zerolog"
)

const DefaultParallelism = 4

// Config wires a repository to its collaborators. Zero values select the
// host loader, an empty resource source and the "native" component logger.
type Config struct {
	// Dir is the staging directory. Required by New; ignored by NewTemp.
	Dir string
	// TempRoot is the parent directory used by NewTemp. Defaults to os.TempDir().
	TempRoot string

	Loader      loader.Loader
	Source      resource.Source
	Logger      *zerolog.Logger
	Parallelism int
}

var repositoryIDs atomic.Uint64

// Repository stages native artifacts under one directory and loads each of
// them at most once.
type Repository struct {
	id          uint64
	area        *staging.Area
	loader      loader.Loader
	source      resource.Source
	log         zerolog.Logger
	parallelism int
	cleanup     runtime.Cleanup

	mu      sync.RWMutex
	records map[Key]*Artifact
	closed  atomic.Bool

	closeMu sync.Mutex
}

// New opens a repository rooted at cfg.Dir, creating the directory if needed.
func New(cfg Config) (*Repository, error) {
	if strings.TrimSpace(cfg.Dir) == "" {
		return nil, fmt.Errorf("native: repository directory is required")
	}
	area, err := staging.New(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("native: open repository: %w", err)
	}

	r := &Repository{
		id:          repositoryIDs.Add(1),
		area:        area,
		loader:      cfg.Loader,
		source:      cfg.Source,
		parallelism: cfg.Parallelism,
		records:     make(map[Key]*Artifact),
	}
	if r.loader == nil {
		r.loader = loader.System{}
	}
	if r.source == nil {
		r.source = resource.Empty{}
	}
	if r.parallelism <= 0 {
		r.parallelism = DefaultParallelism
	}
	if cfg.Logger != nil {
		r.log = *cfg.Logger
	} else {
		r.log = logging.Component("native")
	}
	r.log = r.log.With().Str("repository", area.Root()).Logger()

	// Safety net only; Close is the contract.
	r.cleanup = runtime.AddCleanup(r, func(dir string) {
		_ = tools.RemoveDir(dir)
	}, area.Root())

	r.log.Debug().Msg("repository opened")
	return r, nil
}

// Dir returns the absolute staging directory.
func (r *Repository) Dir() string {
	return r.area.Root()
}

// Keep disarms the garbage-collection cleanup so the staging directory
// outlives an unclosed repository. Close still removes it.
func (r *Repository) Keep() {
	r.cleanup.Stop()
}

// Closed reports whether Close has been called.
func (r *Repository) Closed() bool {
	return r.closed.Load()
}

// Size returns the number of registered artifacts in any state.
func (r *Repository) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

func (r *Repository) Lookup(namespace, name string) (*Artifact, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.records[Key{Namespace: namespace, Name: name}]
	return a, ok
}

// Artifacts returns the registered artifacts ordered by namespace then name.
func (r *Repository) Artifacts() []*Artifact {
	r.mu.RLock()
	list := make([]*Artifact, 0, len(r.records))
	for _, a := range r.records {
		list = append(list, a)
	}
	r.mu.RUnlock()
	sort.Slice(list, func(i, j int) bool {
		if list[i].key.Namespace != list[j].key.Namespace {
			return list[i].key.Namespace < list[j].key.Namespace
		}
		return list[i].key.Name < list[j].key.Name
	})
	return list
}

// Register declares namespace/name. Exactly one concurrent caller per key
// succeeds; the rest get ErrAlreadyExists.
func (r *Repository) Register(namespace, name string) (*Artifact, error) {
	start := time.Now()
	a, err := r.register(Key{Namespace: namespace, Name: name})
	observability.RecordOperation("register", err, time.Since(start))
	return a, err
}

func (r *Repository) register(key Key) (*Artifact, error) {
	if err := r.checkKey("register", key); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed.Load() {
		return nil, newError("register", key, ErrRepositoryClosed, nil)
	}
	if _, ok := r.records[key]; ok {
		return nil, newError("register", key, ErrAlreadyExists, nil)
	}
	a := r.newArtifact(key)
	r.records[key] = a
	r.log.Debug().Str("namespace", key.Namespace).Str("name", key.Name).Msg("artifact registered")
	return a, nil
}

// obtain returns the artifact for key, declaring it first when absent.
func (r *Repository) obtain(op string, key Key) (*Artifact, error) {
	if err := r.checkKey(op, key); err != nil {
		return nil, err
	}
	r.mu.RLock()
	a, ok := r.records[key]
	r.mu.RUnlock()
	if ok {
		return a, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed.Load() {
		return nil, newError(op, key, ErrRepositoryClosed, nil)
	}
	if a, ok := r.records[key]; ok {
		return a, nil
	}
	a = r.newArtifact(key)
	r.records[key] = a
	return a, nil
}

func (r *Repository) newArtifact(key Key) *Artifact {
	return &Artifact{
		key:    key,
		repoID: r.id,
		repo:   weak.Make(r),
		state:  Declared,
	}
}

func (r *Repository) checkKey(op string, key Key) error {
	if r.closed.Load() {
		return newError(op, key, ErrRepositoryClosed, nil)
	}
	if err := staging.ValidateKey(key.Namespace, key.Name); err != nil {
		return newError(op, key, ErrInvalidKey, err)
	}
	return nil
}

// Store materializes namespace/name from the repository's packaged
// resources. The key is declared implicitly when it is not registered yet.
func (r *Repository) Store(namespace, name string) (*Artifact, error) {
	return r.store("store", Key{Namespace: namespace, Name: name}, func() (io.ReadCloser, error) {
		return r.source.Open(namespace, name)
	})
}

// StoreFile materializes namespace/name from an explicit file.
func (r *Repository) StoreFile(sourcePath, namespace, name string) (*Artifact, error) {
	return r.store("store", Key{Namespace: namespace, Name: name}, func() (io.ReadCloser, error) {
		return resource.OpenFile(sourcePath)
	})
}

// StoreReader materializes namespace/name from src. When src implements
// io.Closer it is closed on every path, including early rejections.
func (r *Repository) StoreReader(namespace, name string, src io.Reader) (*Artifact, error) {
	rc, ok := src.(io.ReadCloser)
	if !ok {
		rc = io.NopCloser(src)
	}
	opened := false
	a, err := r.store("store", Key{Namespace: namespace, Name: name}, func() (io.ReadCloser, error) {
		opened = true
		return rc, nil
	})
	if !opened {
		rc.Close()
	}
	return a, err
}

func (r *Repository) store(op string, key Key, open func() (io.ReadCloser, error)) (*Artifact, error) {
	start := time.Now()
	a, err := r.storeLocked(op, key, open)
	observability.RecordOperation(op, err, time.Since(start))
	return a, err
}

func (r *Repository) storeLocked(op string, key Key, open func() (io.ReadCloser, error)) (*Artifact, error) {
	a, err := r.obtain(op, key)
	if err != nil {
		return nil, err
	}

	// A key that is busy or already staged is taken: reject without waiting
	// on the transition lock.
	if !a.mu.TryLock() {
		if r.closed.Load() {
			return nil, newError(op, key, ErrRepositoryClosed, nil)
		}
		return nil, newError(op, key, ErrAlreadyExists, fmt.Errorf("artifact is %s", a.State()))
	}
	defer a.mu.Unlock()
	if r.closed.Load() {
		return nil, newError(op, key, ErrRepositoryClosed, nil)
	}
	if state := a.State(); state != Declared {
		return nil, newError(op, key, ErrAlreadyExists, fmt.Errorf("artifact is %s", state))
	}
	a.setState(Storing)

	src, err := open()
	if err != nil {
		a.reset()
		kind := ErrIO
		if errors.Is(err, resource.ErrNotFound) {
			kind = ErrNotFound
		}
		r.log.Warn().Str("namespace", key.Namespace).Str("name", key.Name).Err(err).Msg("artifact source unavailable")
		return nil, newError(op, key, kind, err)
	}

	m, err := r.area.Materialize(key.Namespace, key.Name, src)
	if err != nil {
		a.reset()
		r.log.Warn().Str("namespace", key.Namespace).Str("name", key.Name).Err(err).Msg("artifact staging failed")
		return nil, newError(op, key, ErrIO, err)
	}
	a.setStored(m.Path, m.Size, m.Digest)
	observability.RecordStagedBytes(m.Size)

	r.log.Info().
		Str("namespace", key.Namespace).
		Str("name", key.Name).
		Str("path", m.Path).
		Int64("bytes", m.Size).
		Str("digest", m.Digest).
		Msg("artifact stored")
	return a, nil
}

// Load hands a Stored artifact to the loader. The loader runs under the
// artifact's transition lock, so racing callers invoke it at most once; the
// losers observe Loaded and fail with ErrInvalidState.
func (r *Repository) Load(a *Artifact) error {
	start := time.Now()
	err := r.load(a)
	observability.RecordOperation("load", err, time.Since(start))
	return err
}

func (r *Repository) load(a *Artifact) error {
	if a == nil {
		return newError("load", Key{}, ErrNotFound, errors.New("nil artifact"))
	}
	if r.closed.Load() {
		return newError("load", a.key, ErrRepositoryClosed, nil)
	}
	if a.repoID != r.id {
		return newError("load", a.key, ErrOwnership, nil)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if r.closed.Load() {
		return newError("load", a.key, ErrRepositoryClosed, nil)
	}
	switch state := a.State(); state {
	case Stored:
	case Loaded:
		return newError("load", a.key, ErrInvalidState, errors.New("artifact already loaded"))
	default:
		return newError("load", a.key, ErrInvalidState, fmt.Errorf("artifact is %s", state))
	}

	path := a.Path()
	a.setState(Loading)
	began := time.Now()
	if err := invoke(r.loader, path); err != nil {
		a.setState(Stored)
		r.log.Warn().Str("namespace", a.key.Namespace).Str("name", a.key.Name).Str("path", path).Err(err).Msg("artifact load failed")
		return newError("load", a.key, ErrLoad, err)
	}
	a.setState(Loaded)

	r.log.Info().
		Str("namespace", a.key.Namespace).
		Str("name", a.key.Name).
		Str("path", path).
		Dur("duration", time.Since(began)).
		Msg("artifact loaded")
	return nil
}

// invoke calls the loader and turns a panic into an error so the artifact
// can be rolled back to Stored.
func invoke(l loader.Loader, path string) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("loader panic: %v", p)
		}
	}()
	return l.Load(path)
}

// LoadKey loads a registered artifact by key.
func (r *Repository) LoadKey(namespace, name string) error {
	key := Key{Namespace: namespace, Name: name}
	if r.closed.Load() {
		return newError("load", key, ErrRepositoryClosed, nil)
	}
	a, ok := r.Lookup(namespace, name)
	if !ok {
		return newError("load", key, ErrNotFound, nil)
	}
	return r.Load(a)
}

// StoreAndLoad stores namespace/name from packaged resources and loads it.
func (r *Repository) StoreAndLoad(namespace, name string) (*Artifact, error) {
	a, err := r.Store(namespace, name)
	if err != nil {
		return nil, err
	}
	if err := r.Load(a); err != nil {
		return a, err
	}
	return a, nil
}

// StoreFileAndLoad stores namespace/name from sourcePath and loads it.
func (r *Repository) StoreFileAndLoad(sourcePath, namespace, name string) (*Artifact, error) {
	a, err := r.StoreFile(sourcePath, namespace, name)
	if err != nil {
		return nil, err
	}
	if err := r.Load(a); err != nil {
		return a, err
	}
	return a, nil
}

// Close clears the registry and removes the staging directory. In-flight
// store and load calls finish before the directory is removed. Repeated calls
// return nil. A failed removal is reported, but the registry stays cleared.
func (r *Repository) Close() error {
	r.closeMu.Lock()
	defer r.closeMu.Unlock()

	r.mu.Lock()
	if r.closed.Load() {
		r.mu.Unlock()
		return nil
	}
	r.closed.Store(true)
	drained := make([]*Artifact, 0, len(r.records))
	for _, a := range r.records {
		drained = append(drained, a)
	}
	r.records = make(map[Key]*Artifact)
	r.mu.Unlock()

	// Wait out in-flight transitions before the files disappear.
	for _, a := range drained {
		a.mu.Lock()
		a.mu.Unlock()
	}

	r.cleanup.Stop()
	start := time.Now()
	err := r.area.Remove()
	observability.RecordOperation("close", err, time.Since(start))
	if err != nil {
		r.log.Error().Err(err).Msg("repository removal failed")
		return newError("close", Key{}, ErrIO, err)
	}
	r.log.Debug().Int("artifacts", len(drained)).Msg("repository closed")
	return nil
}
