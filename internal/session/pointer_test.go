package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jurriaanhof/aico-go/internal/models"
)

func TestSavePointerThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, PointerFileName)

	want := models.SessionPointer{Path: "session-view.json"}
	if err := SavePointer(path, want); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := LoadPointer(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Path != want.Path || got.Type != models.SessionPointerType {
		t.Errorf("got %+v", got)
	}
}

func TestLoadPointerRejectsLegacyFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, PointerFileName)
	if err := os.WriteFile(path, []byte(`{"version": 1, "session_file": "old.json"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadPointer(path); err == nil {
		t.Error("expected legacy pointer format to be rejected")
	}
}

func TestFindSessionFileWalksUpTree(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(nested, 0o700); err != nil {
		t.Fatal(err)
	}
	pointerPath := filepath.Join(root, "a", PointerFileName)
	if err := SavePointer(pointerPath, models.SessionPointer{Path: "view.json"}); err != nil {
		t.Fatal(err)
	}

	found, ok := FindSessionFile(nested)
	if !ok {
		t.Fatal("expected to find the session file")
	}
	if found != pointerPath {
		t.Errorf("got %q, want %q", found, pointerPath)
	}
}

func TestFindSessionFileNotFound(t *testing.T) {
	root := t.TempDir()
	if _, ok := FindSessionFile(root); ok {
		t.Error("expected no session file to be found")
	}
}

func TestViewPathResolvesRelativeToPointerDir(t *testing.T) {
	pointerPath := "/home/user/project/.ai_session.json"
	ptr := models.SessionPointer{Path: ".aico/session-abc.json"}
	got := ViewPath(pointerPath, ptr)
	want := filepath.Join("/home/user/project", ".aico/session-abc.json")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSaveViewThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "view.json")

	view := NewView("cerebras/llama-3.3-70b")
	view.ContextFiles = []string{"main.go"}

	if err := SaveView(path, view); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := LoadView(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Model != view.Model || len(got.ContextFiles) != 1 {
		t.Errorf("got %+v", got)
	}
}
