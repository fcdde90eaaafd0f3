// Package native owns the artifact repository: the registry of native
// artifacts, their lifecycle, and the single place native code is loaded.
//
// Ownership boundary:
// - registration of (namespace, name) keys
//
// - the Declared -> Stored -> Loaded lifecycle
//
// - composing the staging area with the loader capability
//
// Lifecycle order:
// - register -> store -> load
//
// - store failures revert to Declared; load failures revert to Stored.
//
// - Loaded is terminal; a second load is rejected, never ignored.
//
// Locking:
// - the registry map lock covers check-and-insert, lookups and close.
//
// - each artifact's transition lock covers staging I/O and the loader call.
//
// A Repository must be closed. Close removes the staging directory; a
// repository that is never closed leaks it until the garbage collector
// happens to run a best-effort cleanup.
package native
