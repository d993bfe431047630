// Package flock provides cross-platform file locking utilities used by
// the registry file store to serialize per-record writes across processes.
package flock
