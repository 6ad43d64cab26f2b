package git

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func newTestRepo(t *testing.T) *Manager {
	t.Helper()
	dir := t.TempDir()

	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}

	run("init")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "Test")

	if err := os.WriteFile(filepath.Join(dir, "seed.txt"), []byte("seed\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	run("add", "seed.txt")
	run("commit", "-m", "seed")

	return NewManager(dir)
}

func TestIsRepoDetectsGitDirectory(t *testing.T) {
	m := newTestRepo(t)
	if !m.IsRepo() {
		t.Error("expected IsRepo to be true")
	}

	notRepo := NewManager(t.TempDir())
	if notRepo.IsRepo() {
		t.Error("expected IsRepo to be false for a plain directory")
	}
}

func TestAutoCommitStagesAndCommitsWithTrailer(t *testing.T) {
	m := newTestRepo(t)
	m.SetModel("zai-glm-4.6")

	path := filepath.Join(m.workDir, "file.txt")
	if err := os.WriteFile(path, []byte("hello\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	hash, err := m.AutoCommit([]string{"file.txt"}, "add greeting", 3)
	if err != nil {
		t.Fatalf("AutoCommit: %v", err)
	}
	if hash == "" {
		t.Fatal("expected a non-empty commit hash")
	}

	commits, err := m.Log(1)
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	if len(commits) != 1 {
		t.Fatalf("got %d commits, want 1", len(commits))
	}
}

func TestAutoCommitRejectsEmptyFileList(t *testing.T) {
	m := newTestRepo(t)
	if _, err := m.AutoCommit(nil, "nothing", 0); err == nil {
		t.Error("expected an error for an empty file list")
	}
}

func TestUndoRevertsLastAicoCommit(t *testing.T) {
	m := newTestRepo(t)
	m.SetModel("zai-glm-4.6")

	path := filepath.Join(m.workDir, "file.txt")
	if err := os.WriteFile(path, []byte("hello\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := m.AutoCommit([]string{"file.txt"}, "add greeting", 0); err != nil {
		t.Fatalf("AutoCommit: %v", err)
	}

	revertHash, err := m.Undo()
	if err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if revertHash == "" {
		t.Fatal("expected a non-empty reverted commit hash")
	}

	content, err := m.GetFileContent("file.txt")
	if err != nil {
		t.Fatalf("GetFileContent: %v", err)
	}
	if content != "" {
		t.Errorf("expected file.txt to be gone after revert, got %q", content)
	}
}

func TestUndoFailsWithNoAicoCommit(t *testing.T) {
	m := newTestRepo(t)
	if _, err := m.Undo(); err == nil {
		t.Error("expected an error when there is no aico commit to undo")
	}
}

func TestHasChangesReflectsWorkingTree(t *testing.T) {
	m := newTestRepo(t)
	if m.HasChanges() {
		t.Error("expected a freshly committed repo to have no changes")
	}

	if err := os.WriteFile(filepath.Join(m.workDir, "dirty.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !m.HasChanges() {
		t.Error("expected an untracked file to count as a change")
	}
}
