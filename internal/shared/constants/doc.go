// Package constants centralizes configuration defaults shared across the CLI and server.
//
// Scanner defaults, file permissions and report artifact names live here so cmd/ and
// internal/ packages can reference them without introducing import cycles.
package constants
