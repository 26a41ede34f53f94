// Package types holds canonical constants shared across herald components.
//
//nolint:revive // types is a common Go package naming convention
package types

// Version is the canonical project version.
// The CLI, the watcher input document, and the notifier event payloads
// all share this version (lockstep versioning).
const Version = "0.1.0"
