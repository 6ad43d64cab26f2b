// Package git provides automatic git operations for applied patches.
package git

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Manager handles git operations against a session's working tree.
type Manager struct {
	workDir string
	model   string
	version string
}

// NewManager creates a git manager rooted at workDir. An empty workDir
// defaults to the process's current directory.
func NewManager(workDir string) *Manager {
	if workDir == "" {
		workDir, _ = os.Getwd()
	}
	return &Manager{
		workDir: workDir,
		version: "0.1.0",
	}
}

// SetModel records the model name used to produce the changes about to
// be committed, for the commit trailer.
func (m *Manager) SetModel(model string) {
	m.model = model
}

// IsRepo checks if the work directory is inside a git repository.
func (m *Manager) IsRepo() bool {
	gitDir := filepath.Join(m.workDir, ".git")
	info, err := os.Stat(gitDir)
	return err == nil && info.IsDir()
}

// CurrentBranch returns the current git branch.
func (m *Manager) CurrentBranch() (string, error) {
	out, err := m.exec("git", "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// CurrentCommit returns the current commit hash.
func (m *Manager) CurrentCommit() (string, error) {
	out, err := m.exec("git", "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// AutoCommit stages files and commits them with an aico trailer
// identifying the model and pair that produced the change.
func (m *Manager) AutoCommit(files []string, message string, pairIndex int) (string, error) {
	if !m.IsRepo() {
		return "", fmt.Errorf("not a git repository")
	}

	if len(files) == 0 {
		return "", fmt.Errorf("no files to commit")
	}

	for _, file := range files {
		if _, err := m.exec("git", "add", file); err != nil {
			return "", fmt.Errorf("stage %s: %w", file, err)
		}
	}

	status, err := m.exec("git", "diff", "--cached", "--name-only")
	if err != nil {
		return "", fmt.Errorf("check staged: %w", err)
	}
	if strings.TrimSpace(status) == "" {
		return "", fmt.Errorf("no changes to commit")
	}

	model := m.model
	if model == "" {
		model = "unknown"
	}

	fullMessage := fmt.Sprintf(`%s

Generated-by: aico v%s
Model: %s
Pair: %d
Timestamp: %s`, message, m.version, model, pairIndex, time.Now().Format(time.RFC3339))

	if _, err := m.exec("git", "commit", "-m", fullMessage); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}

	hash, err := m.CurrentCommit()
	if err != nil {
		return "", fmt.Errorf("get commit hash: %w", err)
	}

	return hash, nil
}

// Undo reverts the most recent aico-generated commit, non-destructively.
func (m *Manager) Undo() (string, error) {
	if !m.IsRepo() {
		return "", fmt.Errorf("not a git repository")
	}

	lastCommit, err := m.LastAicoCommit()
	if err != nil {
		return "", err
	}

	if _, err := m.exec("git", "revert", "--no-edit", lastCommit); err != nil {
		return "", fmt.Errorf("revert %s: %w", lastCommit, err)
	}

	return lastCommit, nil
}

// Redo re-applies the most recently reverted aico commit by reverting
// its revert, restoring the original change.
func (m *Manager) Redo() (string, error) {
	if !m.IsRepo() {
		return "", fmt.Errorf("not a git repository")
	}

	out, err := m.exec("git", "log", "--grep=^Revert", "-1", "--format=%H")
	if err != nil {
		return "", fmt.Errorf("find last revert: %w", err)
	}
	lastRevert := strings.TrimSpace(out)
	if lastRevert == "" {
		return "", fmt.Errorf("no revert to redo")
	}

	if _, err := m.exec("git", "revert", "--no-edit", lastRevert); err != nil {
		return "", fmt.Errorf("revert %s: %w", lastRevert, err)
	}

	return lastRevert, nil
}

// LastAicoCommit returns the hash of the most recent aico-generated commit.
func (m *Manager) LastAicoCommit() (string, error) {
	out, err := m.exec("git", "log", "--grep=Generated-by: aico", "-1", "--format=%H")
	if err != nil {
		return "", fmt.Errorf("find aico commit: %w", err)
	}

	hash := strings.TrimSpace(out)
	if hash == "" {
		return "", fmt.Errorf("no aico commit found")
	}

	return hash, nil
}

// GetDiff returns the unstaged working-tree diff for a file, or for the
// whole working tree if file is empty.
func (m *Manager) GetDiff(file string) (string, error) {
	args := []string{"diff"}
	if file != "" {
		args = append(args, "--", file)
	}

	out, err := m.exec("git", args...)
	if err != nil {
		return "", err
	}

	return out, nil
}

// GetLastDiff returns the diff introduced by the most recent commit.
func (m *Manager) GetLastDiff() (string, error) {
	out, err := m.exec("git", "diff", "HEAD~1", "HEAD")
	if err != nil {
		return "", err
	}
	return out, nil
}

// Status returns porcelain git status output.
func (m *Manager) Status() (string, error) {
	return m.exec("git", "status", "--porcelain")
}

// HasChanges reports whether the working tree has uncommitted changes.
func (m *Manager) HasChanges() bool {
	status, err := m.Status()
	if err != nil {
		return false
	}
	return strings.TrimSpace(status) != ""
}

// Init initializes a new git repository if one doesn't already exist.
func (m *Manager) Init() error {
	if m.IsRepo() {
		return nil
	}

	_, err := m.exec("git", "init")
	return err
}

// GetFileContent reads a file's current on-disk content, relative to
// the work directory. A missing file returns an empty string.
func (m *Manager) GetFileContent(path string) (string, error) {
	content, err := os.ReadFile(filepath.Join(m.workDir, path))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return string(content), nil
}

// CommitInfo describes one commit for `aico log`.
type CommitInfo struct {
	Hash      string
	Message   string
	Author    string
	Timestamp time.Time
	IsAico    bool
}

// Log returns the count most recent commits.
func (m *Manager) Log(count int) ([]CommitInfo, error) {
	if count <= 0 {
		count = 10
	}

	format := "%H|%s|%an|%at"
	out, err := m.exec("git", "log", fmt.Sprintf("-n%d", count), fmt.Sprintf("--format=%s", format))
	if err != nil {
		return nil, err
	}

	commits := make([]CommitInfo, 0)
	for _, line := range strings.Split(out, "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "|", 4)
		if len(parts) < 4 {
			continue
		}

		var timestamp int64
		fmt.Sscanf(parts[3], "%d", &timestamp)

		commits = append(commits, CommitInfo{
			Hash:      parts[0],
			Message:   parts[1],
			Author:    parts[2],
			Timestamp: time.Unix(timestamp, 0),
			IsAico:    strings.Contains(parts[1], "aico"),
		})
	}

	return commits, nil
}

func (m *Manager) exec(name string, args ...string) (string, error) {
	cmd := exec.Command(name, args...)
	cmd.Dir = m.workDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		errMsg := stderr.String()
		if errMsg == "" {
			errMsg = err.Error()
		}
		return "", fmt.Errorf("%s: %s", strings.Join(append([]string{name}, args...), " "), errMsg)
	}

	return stdout.String(), nil
}
