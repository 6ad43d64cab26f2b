package diffing

import (
	"fmt"
	"strings"

	dmp "github.com/sergi/go-diff/diffmatchpatch"
)

const contextLines = 3

// generateDiff produces a standard unified diff between old and new
// content for the given path. A nil old means the file is created
// (old path is /dev/null); a nil new means the file is deleted (new
// path is /dev/null). The line-level diff itself is computed with
// go-diff's line-mode algorithm; hunk formatting, path quoting, and
// "no newline" markers are hand-rolled to match the canonical unified
// diff format.
func generateDiff(path string, old, new *string) string {
	oldText, newText := "", ""
	if old != nil {
		oldText = *old
	}
	if new != nil {
		newText = *new
	}
	if old != nil && new != nil && oldText == newText {
		return ""
	}

	oldLines := splitKeepEmpty(oldText)
	newLines := splitKeepEmpty(newText)

	ops := diffLines(oldText, newText)

	hunks := buildHunks(ops)
	if len(hunks) == 0 {
		return ""
	}

	oldPath := "a/" + path
	newPath := "b/" + path
	if old == nil {
		oldPath = "/dev/null"
	}
	if new == nil {
		newPath = "/dev/null"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "--- %s\n", quotePath(oldPath))
	fmt.Fprintf(&b, "+++ %s\n", quotePath(newPath))

	oldFinalNL := hasFinalNewline(oldText)
	newFinalNL := hasFinalNewline(newText)

	for _, h := range hunks {
		writeHunk(&b, h, len(oldLines), len(newLines), oldFinalNL, newFinalNL)
	}

	return b.String()
}

func quotePath(p string) string {
	if strings.ContainsAny(p, " \"") {
		return "\"" + strings.ReplaceAll(p, "\"", "\\\"") + "\""
	}
	return p
}

// lineOp is one line-level edit operation: kind is '=' (equal), '-'
// (delete), or '+' (insert).
type lineOp struct {
	kind byte
	text string
}

func diffLines(oldText, newText string) []lineOp {
	differ := dmp.New()
	oldEnc, newEnc, lineArray := differ.DiffLinesToChars(oldText, newText)
	diffs := differ.DiffMain(oldEnc, newEnc, false)
	diffs = differ.DiffCharsToLines(diffs, lineArray)

	ops := make([]lineOp, 0, len(diffs))
	for _, d := range diffs {
		lines := splitKeepEmpty(d.Text)
		var kind byte
		switch d.Type {
		case dmp.DiffEqual:
			kind = '='
		case dmp.DiffDelete:
			kind = '-'
		case dmp.DiffInsert:
			kind = '+'
		}
		for _, l := range lines {
			ops = append(ops, lineOp{kind: kind, text: l})
		}
	}
	return ops
}

// splitKeepEmpty splits text into lines without a trailing synthetic
// empty element when text ends in "\n", matching diff line semantics:
// "a\nb\n" -> ["a","b"], "a\nb" -> ["a","b"] (last line has no
// terminator, tracked separately by the caller via hasFinalNewline).
func splitKeepEmpty(text string) []string {
	if text == "" {
		return nil
	}
	trimmed := strings.HasSuffix(text, "\n")
	lines := strings.Split(text, "\n")
	if trimmed {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func hasFinalNewline(text string) bool {
	return text == "" || strings.HasSuffix(text, "\n")
}

type hunk struct {
	oldStart, oldCount int
	newStart, newCount int
	lines              []lineOp
}

// buildHunks groups the op stream into unified-diff hunks, merging
// changes that are within 2*contextLines of each other.
func buildHunks(ops []lineOp) []hunk {
	type idxOp struct {
		lineOp
		oldIdx, newIdx int
	}

	indexed := make([]idxOp, 0, len(ops))
	oldIdx, newIdx := 0, 0
	for _, op := range ops {
		indexed = append(indexed, idxOp{lineOp: op, oldIdx: oldIdx, newIdx: newIdx})
		switch op.kind {
		case '=':
			oldIdx++
			newIdx++
		case '-':
			oldIdx++
		case '+':
			newIdx++
		}
	}

	changeIdxs := make([]int, 0)
	for i, op := range indexed {
		if op.kind != '=' {
			changeIdxs = append(changeIdxs, i)
		}
	}
	if len(changeIdxs) == 0 {
		return nil
	}

	var hunks []hunk
	i := 0
	for i < len(changeIdxs) {
		start := changeIdxs[i]
		end := changeIdxs[i]
		i++
		for i < len(changeIdxs) && changeIdxs[i]-end <= 2*contextLines {
			end = changeIdxs[i]
			i++
		}

		lo := start - contextLines
		if lo < 0 {
			lo = 0
		}
		hi := end + contextLines
		if hi > len(indexed)-1 {
			hi = len(indexed) - 1
		}

		slice := indexed[lo : hi+1]
		lines := make([]lineOp, len(slice))
		for j, s := range slice {
			lines[j] = s.lineOp
		}

		h := hunk{
			oldStart: slice[0].oldIdx,
			newStart: slice[0].newIdx,
			lines:    lines,
		}
		for _, l := range lines {
			switch l.kind {
			case '=':
				h.oldCount++
				h.newCount++
			case '-':
				h.oldCount++
			case '+':
				h.newCount++
			}
		}
		hunks = append(hunks, h)
	}
	return hunks
}

func writeHunk(b *strings.Builder, h hunk, oldLineCount, newLineCount int, oldFinalNL, newFinalNL bool) {
	oldStart, newStart := h.oldStart+1, h.newStart+1
	if h.oldCount == 0 {
		oldStart = h.oldStart
	}
	if h.newCount == 0 {
		newStart = h.newStart
	}
	fmt.Fprintf(b, "@@ -%d,%d +%d,%d @@\n", oldStart, h.oldCount, newStart, h.newCount)

	oi, ni := h.oldStart, h.newStart
	for _, l := range h.lines {
		var prefix byte
		switch l.kind {
		case '=':
			prefix = ' '
		case '-':
			prefix = '-'
		case '+':
			prefix = '+'
		}
		b.WriteByte(prefix)
		b.WriteString(l.text)
		b.WriteByte('\n')

		isLastOld := l.kind != '+' && oi == oldLineCount-1
		isLastNew := l.kind != '-' && ni == newLineCount-1

		if isLastOld && !oldFinalNL && (l.kind == '-' || l.kind == '=') {
			b.WriteString("\\ No newline at end of file\n")
		}
		if isLastNew && !newFinalNL && l.kind == '+' {
			b.WriteString("\\ No newline at end of file\n")
		}

		switch l.kind {
		case '=':
			oi++
			ni++
		case '-':
			oi++
		case '+':
			ni++
		}
	}
}
