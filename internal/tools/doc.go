// Package tools provides host helpers shared by the repository and the CLI.
//
// Ownership boundary:
// - process identity strings
//
// - staging directory provisioning
package tools
