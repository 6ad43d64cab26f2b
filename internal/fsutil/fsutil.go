// Package fsutil provides atomic-write and path-traversal-safe
// validation helpers shared by the session view, the patch resolver,
// and the context-management CLI commands.
package fsutil

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jurriaanhof/aico-go/internal/aicoerr"
)

// AtomicWriteText writes text to path via a temp file in the same
// directory followed by a rename, so concurrent readers never observe
// a partially-written file.
func AtomicWriteText(path, text string) error {
	dir := filepath.Dir(path)
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return aicoerr.IO("create directory", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return aicoerr.IO("create temp file", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once renamed

	if _, err := tmp.WriteString(text); err != nil {
		tmp.Close()
		return aicoerr.IO("write temp file", err)
	}
	if err := tmp.Close(); err != nil {
		return aicoerr.IO("close temp file", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return aicoerr.IO("rename temp file into place", err)
	}
	return nil
}

// AtomicWriteJSON marshals data and writes it atomically to path.
func AtomicWriteJSON(path string, data any) error {
	body, err := json.Marshal(data)
	if err != nil {
		return aicoerr.Serialization("marshal json", err)
	}
	return AtomicWriteText(path, string(body))
}

// ValidateInputPaths resolves filePaths against the current working
// directory and verifies each resolves inside sessionRoot, rejecting
// any ".." escape (including via a symlink). It returns the set of
// valid paths as slash-separated relative paths, plus whether any
// input produced an error (logged to stderr, matching the original
// tool's per-file diagnostics).
func ValidateInputPaths(sessionRoot string, filePaths []string, requireExists bool) ([]string, bool) {
	rootCanon, err := filepath.EvalSymlinks(sessionRoot)
	if err != nil {
		rootCanon, err = filepath.Abs(sessionRoot)
		if err != nil {
			return nil, true
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}

	validRels := make([]string, 0, len(filePaths))
	hasErrors := false

	for _, p := range filePaths {
		joined := p
		if !filepath.IsAbs(p) {
			joined = filepath.Join(cwd, p)
		}
		logicalAbs := NormalizePath(joined)

		if requireExists {
			info, statErr := os.Stat(logicalAbs)
			if statErr != nil {
				warnf("File not found: %s", p)
				hasErrors = true
				continue
			}
			if info.IsDir() {
				warnf("Cannot add a directory: %s", p)
				hasErrors = true
				continue
			}
		}

		physicalTarget, resolveErr := filepath.EvalSymlinks(logicalAbs)
		if resolveErr != nil {
			if !requireExists {
				physicalTarget = logicalAbs
			} else {
				warnf("Could not resolve path: %s", p)
				hasErrors = true
				continue
			}
		}

		if !isWithin(physicalTarget, rootCanon) {
			warnf("File %q is outside the session root", p)
			hasErrors = true
			continue
		}

		if rel, relErr := filepath.Rel(sessionRoot, logicalAbs); relErr == nil && !strings.HasPrefix(rel, "..") {
			validRels = append(validRels, filepath.ToSlash(rel))
			continue
		}

		if rel, relErr := filepath.Rel(rootCanon, physicalTarget); relErr == nil && !strings.HasPrefix(rel, "..") {
			validRels = append(validRels, filepath.ToSlash(rel))
			continue
		}

		warnf("File %q is logically outside the session root", p)
		hasErrors = true
	}

	return validRels, hasErrors
}

func isWithin(target, root string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return rel == "." || !strings.HasPrefix(rel, "..")
}

func warnf(format string, args ...any) {
	// Per-file diagnostics go to stderr, mirroring the original tool's
	// eprintln! calls; callers that need structured logs wrap this.
	os.Stderr.WriteString("Error: " + fmt.Sprintf(format, args...) + "\n")
}

// NormalizePath folds ".."/"." path components without touching the
// filesystem (no symlink resolution), matching the original's manual
// component-by-component fold.
func NormalizePath(path string) string {
	parts := strings.Split(filepath.ToSlash(path), "/")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		switch part {
		case "", ".":
			continue
		case "..":
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, part)
		}
	}
	joined := strings.Join(out, "/")
	if strings.HasPrefix(path, "/") {
		joined = "/" + joined
	}
	return filepath.FromSlash(joined)
}
