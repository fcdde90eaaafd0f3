package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/nativebox/internal/loader"
)

const (
	LoaderSystem = loader.KindSystem
	LoaderNoop   = loader.KindNoop

	DefaultParallelism = 4

	// EnvServerToken overrides [server].token so secrets can stay out of the
	// manifest file.
	EnvServerToken = "NATIVEBOX_SERVER_TOKEN"
)

type Manifest struct {
	Repository RepositoryConfig `toml:"repository"`
	Loader     LoaderConfig     `toml:"loader"`
	Server     ServerConfig     `toml:"server"`
	Artifacts  []ArtifactConfig `toml:"artifacts"`
}

type RepositoryConfig struct {
	Dir         string `toml:"dir"`
	TempRoot    string `toml:"temp_root"`
	Resources   string `toml:"resources"`
	Parallelism int    `toml:"parallelism"`
}

type LoaderConfig struct {
	Kind string `toml:"kind"`
}

type ServerConfig struct {
	Name    string `toml:"name"`
	Addr    string `toml:"addr"`
	Token   string `toml:"token"`
	TLSCert string `toml:"tls_cert"`
	TLSKey  string `toml:"tls_key"`
}

type ArtifactConfig struct {
	Namespace string `toml:"namespace"`
	Name      string `toml:"name"`
	Source    string `toml:"source"`
	Load      *bool  `toml:"load"`
}

// ShouldLoad reports whether the artifact is loaded after staging. Absent
// load keys default to true.
func (a ArtifactConfig) ShouldLoad() bool {
	return a.Load == nil || *a.Load
}

// LoadManifest decodes path, applies defaults and validates. Relative
// directories in the manifest resolve against the manifest's directory.
func LoadManifest(path string) (Manifest, error) {
	var m Manifest
	meta, err := toml.DecodeFile(path, &m)
	if err != nil {
		return Manifest{}, fmt.Errorf("manifest load failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Manifest{}, fmt.Errorf("manifest %s: unknown keys %v", path, undecoded)
	}

	applyDefaults(&m, filepath.Dir(path))
	if err := ValidateManifest(m); err != nil {
		return Manifest{}, fmt.Errorf("manifest %s: %w", path, err)
	}
	return m, nil
}

func applyDefaults(m *Manifest, base string) {
	m.Repository.Dir = resolve(base, m.Repository.Dir)
	m.Repository.TempRoot = resolve(base, m.Repository.TempRoot)
	m.Repository.Resources = resolve(base, m.Repository.Resources)
	if m.Repository.Parallelism <= 0 {
		m.Repository.Parallelism = DefaultParallelism
	}
	m.Loader.Kind = strings.ToLower(strings.TrimSpace(m.Loader.Kind))
	if m.Loader.Kind == "" {
		m.Loader.Kind = LoaderSystem
	}
	if strings.TrimSpace(m.Server.Name) == "" {
		m.Server.Name = "nativectl"
	}
	if token := strings.TrimSpace(os.Getenv(EnvServerToken)); token != "" {
		m.Server.Token = token
	}
	m.Server.TLSCert = resolve(base, m.Server.TLSCert)
	m.Server.TLSKey = resolve(base, m.Server.TLSKey)
	for i := range m.Artifacts {
		a := &m.Artifacts[i]
		a.Namespace = strings.TrimSpace(a.Namespace)
		a.Name = strings.TrimSpace(a.Name)
		a.Source = resolve(base, a.Source)
	}
}

func resolve(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" || filepath.IsAbs(p) || base == "" {
		return p
	}
	return filepath.Join(base, p)
}

func ValidateManifest(m Manifest) error {
	if _, err := loader.ByKind(m.Loader.Kind); err != nil {
		return err
	}
	if m.Repository.Parallelism < 0 {
		return fmt.Errorf("repository parallelism must not be negative")
	}
	if (m.Server.TLSCert == "") != (m.Server.TLSKey == "") {
		return fmt.Errorf("server tls_cert and tls_key must be set together")
	}
	seen := make(map[string]int, len(m.Artifacts))
	for i, a := range m.Artifacts {
		if err := ValidateArtifact(a); err != nil {
			return fmt.Errorf("artifact[%d] invalid: %w", i, err)
		}
		key := a.Namespace + "/" + a.Name
		if prev, ok := seen[key]; ok {
			return fmt.Errorf("artifact[%d] duplicates artifact[%d] (%s)", i, prev, key)
		}
		seen[key] = i
	}
	return nil
}

func ValidateArtifact(a ArtifactConfig) error {
	if a.Namespace == "" {
		return fmt.Errorf("namespace is required")
	}
	if a.Name == "" {
		return fmt.Errorf("name is required")
	}
	if strings.ContainsAny(a.Name, `/\`) {
		return fmt.Errorf("name %q must not contain path separators", a.Name)
	}
	for _, seg := range strings.Split(a.Namespace, ".") {
		if seg == "" {
			return fmt.Errorf("namespace %q has an empty segment", a.Namespace)
		}
	}
	return nil
}
