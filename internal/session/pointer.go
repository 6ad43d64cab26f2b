// Package session implements the session pointer/view layer: the small
// ".ai_session.json" indirection file, the mutable session view it
// points at, pair-indexed addressing into the history store, and edit
// lineage (append-only message revision).
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jurriaanhof/aico-go/internal/aicoerr"
	"github.com/jurriaanhof/aico-go/internal/fsutil"
	"github.com/jurriaanhof/aico-go/internal/models"
)

// PointerFileName is the well-known indirection file aico looks for
// walking up from the current directory.
const PointerFileName = ".ai_session.json"

// FindSessionFile walks up from startDir looking for a pointer file,
// matching the shell-agnostic "nearest ancestor" session discovery used
// by every subcommand that operates on "the current session".
func FindSessionFile(startDir string) (string, bool) {
	dir := startDir
	for {
		candidate := filepath.Join(dir, PointerFileName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// LoadPointer reads and validates the pointer file at path, rejecting
// any format this build of aico doesn't recognize rather than guessing
// at a stale schema.
func LoadPointer(path string) (*models.SessionPointer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, aicoerr.IO("read session pointer", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, aicoerr.Serialization("parse session pointer", err)
	}

	var typ string
	if t, ok := raw["type"]; ok {
		_ = json.Unmarshal(t, &typ)
	}
	if typ != models.SessionPointerType {
		return nil, aicoerr.Session(fmt.Sprintf(
			"%q is not a session aico can open (found format %q, expected %q); it may belong to an older or incompatible aico version",
			path, typ, models.SessionPointerType), nil)
	}

	var ptr models.SessionPointer
	if err := json.Unmarshal(data, &ptr); err != nil {
		return nil, aicoerr.Serialization("parse session pointer", err)
	}
	return &ptr, nil
}

// SavePointer atomically (re)writes the pointer file.
func SavePointer(path string, ptr models.SessionPointer) error {
	ptr.Type = models.SessionPointerType
	return fsutil.AtomicWriteJSON(path, ptr)
}

// ViewPath resolves the view file path referenced by a pointer, which
// is stored relative to the pointer's own directory.
func ViewPath(pointerPath string, ptr models.SessionPointer) string {
	if filepath.IsAbs(ptr.Path) {
		return ptr.Path
	}
	return filepath.Join(filepath.Dir(pointerPath), ptr.Path)
}
