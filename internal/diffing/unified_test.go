package diffing

import (
	"strings"
	"testing"
)

func strPtr(s string) *string { return &s }

func TestGenerateDiffNoChangeIsEmpty(t *testing.T) {
	got := generateDiff("a.py", strPtr("same\n"), strPtr("same\n"))
	if got != "" {
		t.Errorf("expected empty diff for identical content, got %q", got)
	}
}

func TestGenerateDiffQuotesPathsWithSpaces(t *testing.T) {
	got := generateDiff("my file.py", strPtr("a\n"), strPtr("b\n"))
	if !strings.Contains(got, `"a/my file.py"`) {
		t.Errorf("expected quoted path, got %q", got)
	}
}

func TestGenerateDiffMarksMissingFinalNewline(t *testing.T) {
	got := generateDiff("a.py", strPtr("one\n"), strPtr("one\ntwo"))
	if !strings.Contains(got, "\\ No newline at end of file") {
		t.Errorf("expected no-newline marker, got %q", got)
	}
}

func TestCreatePatchedContentReplacesOccurrence(t *testing.T) {
	got, ok := createPatchedContent("hello world\n", "world", "there")
	if !ok {
		t.Fatal("expected patch to apply")
	}
	if got != "hello there\n" {
		t.Errorf("got %q", got)
	}
}

func TestCreatePatchedContentMissingSearchFails(t *testing.T) {
	_, ok := createPatchedContent("hello world\n", "nope", "there")
	if ok {
		t.Fatal("expected patch to fail when search content absent")
	}
}
