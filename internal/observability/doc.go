// Package observability owns process metrics and HTTP request telemetry.
//
// Ownership boundary:
// - prometheus collectors for repository operations
//
// - gin middleware for request logging and request metrics
package observability
