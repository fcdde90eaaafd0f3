// Package staging owns the on-disk layout of a repository.
//
// Ownership boundary:
// - namespace/name to path derivation
//
// - sandboxing every staged path under the root
//
// - atomic materialization of artifact bytes
//
// Layout:
// - <root>/<namespace with '.' replaced by the path separator>/<name>
//
// - in-progress writes use ".<name>.*.tmp" siblings and are renamed into place
package staging
