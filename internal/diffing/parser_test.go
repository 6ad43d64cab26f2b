package diffing

import (
	"strings"
	"testing"

	"github.com/jurriaanhof/aico-go/internal/models"
)

func collectAll(t *testing.T, p *Parser, chunk string) []models.StreamYieldItem {
	t.Helper()
	p.Feed(chunk)
	return p.drain()
}

func TestSimpleReplaceProducesDiffBlock(t *testing.T) {
	p := New(map[string]string{"a.py": "old\n"}, "")
	stream := "File: a.py\n<<<<<<< SEARCH\nold\n=======\nnew\n>>>>>>> REPLACE\n"

	items := p.ProcessYields(collectAll(t, p, stream))

	var sawHeader, sawDiff bool
	for _, it := range items {
		switch it.Kind {
		case models.YieldFileHeader:
			sawHeader = true
			if it.FileHeader.LLMFilePath != "a.py" {
				t.Errorf("got file header path %q", it.FileHeader.LLMFilePath)
			}
		case models.YieldDiffBlock:
			sawDiff = true
			if !strings.Contains(it.DiffBlock.UnifiedDiff, "-old") || !strings.Contains(it.DiffBlock.UnifiedDiff, "+new") {
				t.Errorf("diff missing expected lines: %q", it.DiffBlock.UnifiedDiff)
			}
		}
	}
	if !sawHeader {
		t.Error("expected a FileHeader item")
	}
	if !sawDiff {
		t.Error("expected a DiffBlock item")
	}

	final := p.BuildFinalUnifiedDiff()
	if !strings.Contains(final, "--- a/a.py") {
		t.Errorf("final diff missing a/ header: %q", final)
	}
}

func TestFileCreationUsesDevNull(t *testing.T) {
	p := New(map[string]string{}, "")
	stream := "File: new.py\n<<<<<<< SEARCH\n=======\nhello\n>>>>>>> REPLACE\n"

	items := p.ProcessYields(collectAll(t, p, stream))

	var diffBlock string
	for _, it := range items {
		if it.Kind == models.YieldDiffBlock {
			diffBlock = it.DiffBlock.UnifiedDiff
		}
	}
	if !strings.Contains(diffBlock, "--- /dev/null") {
		t.Errorf("expected /dev/null old path, got %q", diffBlock)
	}
	if !strings.Contains(diffBlock, "+hello") {
		t.Errorf("expected +hello line, got %q", diffBlock)
	}
	if strings.Contains(diffBlock, "No newline at end of file") {
		t.Errorf("did not expect a no-newline marker: %q", diffBlock)
	}
}

func TestFileDeletionUsesDevNullNewPath(t *testing.T) {
	p := New(map[string]string{"gone.py": "bye\n"}, "")
	stream := "File: gone.py\n<<<<<<< SEARCH\nbye\n=======\n>>>>>>> REPLACE\n"

	items := p.ProcessYields(collectAll(t, p, stream))

	var diffBlock string
	for _, it := range items {
		if it.Kind == models.YieldDiffBlock {
			diffBlock = it.DiffBlock.UnifiedDiff
		}
	}
	if !strings.Contains(diffBlock, "+++ /dev/null") {
		t.Errorf("expected /dev/null new path, got %q", diffBlock)
	}
}

func TestMissingSearchBlockSkipsPatchWithWarning(t *testing.T) {
	p := New(map[string]string{"a.py": "hello\n"}, "")
	stream := "File: a.py\n<<<<<<< SEARCH\nnotthere\n=======\nnew\n>>>>>>> REPLACE\n"

	items := p.ProcessYields(collectAll(t, p, stream))

	var sawWarning, sawUnparsed bool
	for _, it := range items {
		if it.Kind == models.YieldWarning {
			sawWarning = true
		}
		if it.Kind == models.YieldUnparsed {
			sawUnparsed = true
		}
	}
	if !sawWarning || !sawUnparsed {
		t.Errorf("expected warning+unparsed fallback, got %#v", items)
	}
}

func TestChunkBoundaryResumabilityMatchesSingleFeed(t *testing.T) {
	full := "Here is a fix.\n\nFile: a.py\n<<<<<<< SEARCH\nold\n=======\nnew\n>>>>>>> REPLACE\n\nDone."

	p1 := New(map[string]string{"a.py": "old\n"}, "")
	items1 := p1.ProcessYields(collectAll(t, p1, full))
	diff1, _, _ := p1.Finish("")
	_ = diff1

	// Split at fixed offsets: two in the leading prose, three inside the
	// "File:" header, and one each inside the SEARCH marker, the searched
	// text and the REPLACE marker.
	splits := []int{1, 5, 17, 18, 19, 30, 45, 60}
	for _, at := range splits {
		if at >= len(full) {
			continue
		}
		p2 := New(map[string]string{"a.py": "old\n"}, "")
		var items2 []models.StreamYieldItem
		p2.Feed(full[:at])
		items2 = append(items2, p2.drain()...)
		p2.Feed(full[at:])
		items2 = append(items2, p2.drain()...)
		_, trailing, _ := p2.Finish("")
		items2 = append(items2, trailing...)

		resolved2 := p2.ProcessYields(items2)

		text1 := flattenText(items1)
		text2 := flattenText(resolved2)
		if text1 != text2 {
			t.Errorf("split at %d: flattened text mismatch\n got: %q\nwant: %q", at, text2, text1)
		}
	}
}

func flattenText(items []models.StreamYieldItem) string {
	var b strings.Builder
	for _, it := range items {
		switch it.Kind {
		case models.YieldText:
			b.WriteString(it.Text)
		case models.YieldFileHeader:
			b.WriteString("File:" + it.FileHeader.LLMFilePath)
		case models.YieldDiffBlock:
			b.WriteString("DIFF:" + it.DiffBlock.LLMFilePath)
		case models.YieldUnparsed:
			b.WriteString(it.Unparsed.Text)
		}
	}
	return b.String()
}

func TestPathTraversalPatchIsRefused(t *testing.T) {
	root := t.TempDir()
	p := New(map[string]string{}, root)
	stream := "File: ../secret\n<<<<<<< SEARCH\nfoo\n=======\nbar\n>>>>>>> REPLACE\n"

	items := p.ProcessYields(collectAll(t, p, stream))

	var sawWarning bool
	for _, it := range items {
		if it.Kind == models.YieldWarning {
			sawWarning = true
		}
		if it.Kind == models.YieldDiffBlock {
			t.Errorf("path traversal patch must not produce a diff, got %#v", it)
		}
	}
	if !sawWarning {
		t.Error("expected a warning for the out-of-context file")
	}
}
