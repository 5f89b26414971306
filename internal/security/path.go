// Package security keeps exported files inside the directory the operator chose.
package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	consts "github.com/khanhnv2901/gatespy/internal/shared/constants"
)

var (
	// ErrPathEscape indicates the resolved path would escape the trusted root directory.
	ErrPathEscape = errors.New("path escapes base directory")
	// ErrEmptyBase is returned when no base directory was given.
	ErrEmptyBase = errors.New("base directory is required")
)

// ResolveWithin joins elems under base and rejects any result outside base. The returned
// path is absolute.
func ResolveWithin(base string, elems ...string) (string, error) {
	if base == "" {
		return "", ErrEmptyBase
	}

	cleanBase, err := filepath.Abs(base)
	if err != nil {
		return "", fmt.Errorf("resolve base path: %w", err)
	}
	target := filepath.Join(append([]string{cleanBase}, elems...)...)

	rel, err := filepath.Rel(cleanBase, target)
	if err != nil {
		return "", fmt.Errorf("relativize path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %s", ErrPathEscape, target)
	}
	return target, nil
}

// WriteFileWithin creates base if needed and writes data to name inside it. It returns the
// absolute path written.
func WriteFileWithin(base, name string, data []byte) (string, error) {
	path, err := ResolveWithin(base, name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), consts.DefaultDirPerm); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	if err := os.WriteFile(path, data, consts.DefaultFilePerm); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	return path, nil
}
