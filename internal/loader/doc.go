// Package loader abstracts handing a staged file to the host's native code
// loader.
//
// Ownership boundary:
// - the single-method Loader capability
//
// - the host implementation (System)
//
// - no-op and recording variants for tests and dry runs
//
// Loaders never unload. Callers are responsible for invoking Load at most
// once per path.
package loader
