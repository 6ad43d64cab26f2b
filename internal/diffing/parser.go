// Package diffing implements the stream parser that turns an LLM's
// streamed response into prose, file headers, and SEARCH/REPLACE edit
// blocks, plus the patch resolver that turns accepted edit blocks into
// a canonical unified diff against a baseline+overlay file map.
package diffing

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/jurriaanhof/aico-go/internal/models"
)

var fileHeaderRe = regexp.MustCompile(`(?m)^[ \t]*File:[ \t]*(.*?)\r?\n`)

const (
	searchMarker  = "<<<<<<< SEARCH"
	sepMarker     = "======="
	replaceMarker = ">>>>>>> REPLACE"
)

// Parser is a chunk-resumable stream tokenizer. Feed appends bytes;
// Next pulls the next classified item, if one is ready; Finish flushes
// whatever remains once the stream ends.
type Parser struct {
	buffer              string
	currentFile         *string
	yieldQueue          []models.StreamYieldItem
	baseline            map[string]string
	overlay             map[string]string
	discoveredBaseline  map[string]string
	lastCharWasNewline  bool
	sessionRoot         string
}

// New creates a parser over the given baseline file contents (the
// session's context files at the start of this turn) rooted at root
// for on-disk fallback lookups.
func New(baseline map[string]string, root string) *Parser {
	b := make(map[string]string, len(baseline))
	for k, v := range baseline {
		b[k] = v
	}
	return &Parser{
		baseline:            b,
		overlay:             make(map[string]string),
		discoveredBaseline:  make(map[string]string),
		lastCharWasNewline:  true,
		sessionRoot:         root,
	}
}

// Feed appends a chunk of streamed text to the internal buffer.
func (p *Parser) Feed(chunk string) {
	p.buffer += chunk
}

// FeedComplete feeds content and ensures it ends with a newline, so a
// trailing block at the very end of a non-streamed input still closes.
func (p *Parser) FeedComplete(content string) {
	p.Feed(content)
	if !strings.HasSuffix(content, "\n") {
		p.Feed("\n")
	}
}

// GetPendingContent returns the raw, not-yet-classified buffer tail.
func (p *Parser) GetPendingContent() string { return p.buffer }

// Overlay returns the resolved post-patch content for every file the
// parser touched, keyed by the same path BuildFinalUnifiedDiff uses.
// Callers write these back to disk once a turn is accepted.
func (p *Parser) Overlay() map[string]string {
	out := make(map[string]string, len(p.overlay))
	for k, v := range p.overlay {
		out[k] = v
	}
	return out
}

// IsPendingDisplayable reports whether the buffered tail is safe to
// show to a user immediately, or whether it might still turn into a
// File header or SEARCH marker once more bytes arrive.
func (p *Parser) IsPendingDisplayable() bool {
	pending := p.buffer
	if pending == "" {
		return false
	}

	tailIsAtLineStart := strings.Contains(pending, "\n") || p.lastCharWasNewline

	if !tailIsAtLineStart {
		return true
	}

	parts := strings.Split(pending, "\n")
	lastLine := parts[len(parts)-1]
	trimmed := strings.TrimLeft(lastLine, " \t")

	if trimmed != "" && (strings.HasPrefix("File:", trimmed) || (strings.HasPrefix(trimmed, "File:") && !strings.HasSuffix(pending, "\n"))) {
		return false
	}

	if p.currentFile != nil {
		if strings.Contains(pending, searchMarker) {
			return false
		}
		if trimmed != "" && strings.HasPrefix(searchMarker, trimmed) {
			return false
		}
	}

	return true
}

// Next pulls the next classified item from the parser, or returns
// false if more input is needed before one can be produced.
func (p *Parser) Next() (models.StreamYieldItem, bool) {
	for {
		if len(p.yieldQueue) > 0 {
			item := p.yieldQueue[0]
			p.yieldQueue = p.yieldQueue[1:]
			p.updateNewlineState(item)
			return item, true
		}

		if p.buffer == "" {
			return models.StreamYieldItem{}, false
		}

		if p.currentFile != nil {
			llmFilePath := *p.currentFile

			nextHeaderIdx := len(p.buffer)
			for _, m := range fileHeaderRe.FindAllStringIndex(p.buffer, -1) {
				if p.checkHeaderMatch(m[0]) {
					nextHeaderIdx = m[0]
					break
				}
			}

			chunkLimit := nextHeaderIdx
			if chunkLimit > 0 || (chunkLimit == 0 && p.lastCharWasNewline) {
				chunkItems, consumed := p.processFileChunk(llmFilePath, p.buffer[:chunkLimit])

				if consumed > 0 {
					p.buffer = p.buffer[consumed:]
				}

				if len(chunkItems) > 0 {
					p.yieldQueue = append(p.yieldQueue, chunkItems...)
					continue
				}

				if consumed == 0 {
					if nextHeaderIdx < len(p.buffer) {
						p.currentFile = nil
						continue
					}
					return models.StreamYieldItem{}, false
				}
			} else {
				p.currentFile = nil
				continue
			}
		}

		if loc := fileHeaderRe.FindStringSubmatchIndex(p.buffer); loc != nil {
			matchStart, matchEnd := loc[0], loc[1]
			if p.checkHeaderMatch(matchStart) {
				if matchStart > 0 {
					text := p.buffer[:matchStart]
					p.buffer = p.buffer[matchStart:]
					item := models.StreamYieldItem{Kind: models.YieldText, Text: text}
					p.updateNewlineState(item)
					return item, true
				}

				pathRaw := p.buffer[loc[2]:loc[3]]
				pathStr := strings.Trim(strings.TrimSpace(pathRaw), "*`")
				p.currentFile = &pathStr
				p.buffer = p.buffer[matchEnd:]
				item := models.StreamYieldItem{Kind: models.YieldFileHeader, FileHeader: models.FileHeader{LLMFilePath: pathStr}}
				p.updateNewlineState(item)
				return item, true
			}
		}

		text := p.buffer
		limit := len(text)

		for _, m := range fileHeaderRe.FindAllStringIndex(text, -1) {
			if p.checkHeaderMatch(m[0]) {
				limit = m[0]
				break
			}
		}

		if searchIdx := strings.Index(text[:limit], searchMarker); searchIdx >= 0 {
			ls := 0
			if nl := strings.LastIndex(text[:searchIdx], "\n"); nl >= 0 {
				ls = nl + 1
			}
			if ls > 0 || p.lastCharWasNewline {
				if ls < limit {
					limit = ls
				}
			}
		}

		if p.isIncomplete(text[:limit]) {
			if nl := strings.LastIndex(text[:limit], "\n"); nl >= 0 {
				limit = nl + 1
			} else {
				limit = 0
			}
		}

		if limit > 0 {
			textYield := p.buffer[:limit]
			p.buffer = p.buffer[limit:]
			item := models.StreamYieldItem{Kind: models.YieldText, Text: textYield}
			p.updateNewlineState(item)
			return item, true
		}

		return models.StreamYieldItem{}, false
	}
}

// drain pulls every currently-available item off the parser.
func (p *Parser) drain() []models.StreamYieldItem {
	var items []models.StreamYieldItem
	for {
		item, ok := p.Next()
		if !ok {
			break
		}
		items = append(items, item)
	}
	return items
}

// ParseAndResolve feeds chunk and returns the resolved items produced
// (patches turned into diff blocks or warnings).
func (p *Parser) ParseAndResolve(chunk string) []models.StreamYieldItem {
	p.Feed(chunk)
	raw := p.drain()
	return p.ProcessYields(raw)
}

// Finish flushes any remaining buffered content at end of stream,
// returning the final unified diff, the resolved items, and collected
// warning texts.
func (p *Parser) Finish(lastChunk string) (string, []models.StreamYieldItem, []string) {
	p.Feed(lastChunk)

	if p.isIncomplete(p.buffer) && strings.Contains(p.buffer, searchMarker) && strings.Contains(p.buffer, replaceMarker) {
		p.buffer += "\n"
	}

	items := p.drain()

	if p.buffer != "" {
		if p.isIncomplete(p.buffer) {
			items = append(items, models.StreamYieldItem{Kind: models.YieldUnparsed, Unparsed: models.UnparsedBlock{Text: p.buffer}})
		} else {
			items = append(items, models.StreamYieldItem{Kind: models.YieldText, Text: p.buffer})
		}
		p.buffer = ""
	}

	processed := p.ProcessYields(items)
	diff := p.BuildFinalUnifiedDiff()
	warnings := CollectWarnings(processed)

	return diff, processed, warnings
}

// FinalResolve is the all-in-one finalization entry point: it drains
// the buffer, resolves patches, and returns the diff, display items,
// and warnings.
func (p *Parser) FinalResolve() (string, []models.DisplayItem, []string) {
	_, items, warnings := p.Finish("")
	display := make([]models.DisplayItem, 0, len(items))
	for _, it := range items {
		if d, ok := it.ToDisplayItem(true); ok {
			display = append(display, d)
		}
	}
	diff := p.BuildFinalUnifiedDiff()
	return diff, display, warnings
}

// CollectWarnings extracts warning text from a resolved item list.
func CollectWarnings(items []models.StreamYieldItem) []string {
	var out []string
	for _, it := range items {
		if it.Kind == models.YieldWarning {
			out = append(out, it.Warning.Text)
		}
	}
	return out
}

// ProcessYields resolves any Patch items into DiffBlocks or Warnings.
func (p *Parser) ProcessYields(items []models.StreamYieldItem) []models.StreamYieldItem {
	processed := make([]models.StreamYieldItem, 0, len(items))
	for _, item := range items {
		if item.Kind == models.YieldPatch {
			resolved, warnings := p.handlePatch(item.Patch)
			for _, w := range warnings {
				processed = append(processed, models.StreamYieldItem{Kind: models.YieldWarning, Warning: models.WarningMessage{Text: w}})
			}
			if resolved != nil {
				processed = append(processed, *resolved)
			}
		} else {
			processed = append(processed, item)
		}
	}
	return processed
}

// BuildFinalUnifiedDiff produces the single aggregated diff for every
// file touched this turn, iterating keys in sorted order.
func (p *Parser) BuildFinalUnifiedDiff() string {
	keySet := make(map[string]struct{})
	for k := range p.discoveredBaseline {
		keySet[k] = struct{}{}
	}
	for k := range p.overlay {
		keySet[k] = struct{}{}
	}
	keys := make([]string, 0, len(keySet))
	for k := range keySet {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out strings.Builder
	for _, k := range keys {
		var old *string
		if v, ok := p.discoveredBaseline[k]; ok {
			old = &v
		} else if v, ok := p.baseline[k]; ok {
			old = &v
		}

		var new *string
		if v, ok := p.overlay[k]; ok && !(v == "" && old != nil && *old != "") {
			// An overlay emptied from non-empty content is a deletion.
			new = &v
		}

		if old == nil && new == nil {
			continue
		}
		if old != nil && new != nil && *old == *new {
			continue
		}

		out.WriteString(generateDiff(k, old, new))
	}
	return out.String()
}

func (p *Parser) handlePatch(patch models.AIPatch) (*models.StreamYieldItem, []string) {
	var warnings []string

	warnMsg, resolvedPath, fallback, found := p.resolvePath(patch.LLMFilePath, patch.SearchContent)
	if warnMsg != "" {
		warnings = append(warnings, warnMsg)
	}

	if !found {
		warnings = append(warnings, "File '"+patch.LLMFilePath+"' from the AI does not match any file in context. Patch skipped.")
		return &models.StreamYieldItem{Kind: models.YieldUnparsed, Unparsed: models.UnparsedBlock{Text: patch.RawBlock}}, warnings
	}

	if fallback != nil {
		if _, ok := p.overlay[resolvedPath]; !ok {
			p.overlay[resolvedPath] = *fallback
		}
		if _, ok := p.discoveredBaseline[resolvedPath]; !ok {
			p.discoveredBaseline[resolvedPath] = *fallback
		}
	}

	_, inOverlay := p.overlay[resolvedPath]
	_, inBaseline := p.baseline[resolvedPath]
	original := ""
	if v, ok := p.overlay[resolvedPath]; ok {
		original = v
	} else if v, ok := p.baseline[resolvedPath]; ok {
		original = v
	}

	newContent, ok := createPatchedContent(original, patch.SearchContent, patch.ReplaceContent)
	if !ok && strings.Contains(patch.SearchContent, "\r") {
		normalized := strings.ReplaceAll(patch.SearchContent, "\r", "")
		newContent, ok = createPatchedContent(original, normalized, patch.ReplaceContent)
	}

	if ok {
		// A path not yet tracked is a creation (old is /dev/null); a
		// tracked file patched down to nothing is a deletion (new is
		// /dev/null).
		var oldPtr, newPtr *string
		if inOverlay || inBaseline {
			oldCopy := original
			oldPtr = &oldCopy
		}
		if newContent != "" || oldPtr == nil {
			newPtr = &newContent
		}
		diff := generateDiff(resolvedPath, oldPtr, newPtr)
		p.overlay[resolvedPath] = newContent
		return &models.StreamYieldItem{
			Kind: models.YieldDiffBlock,
			DiffBlock: models.ProcessedDiffBlock{
				LLMFilePath: patch.LLMFilePath,
				UnifiedDiff: diff,
			},
		}, warnings
	}

	warnings = append(warnings, "The SEARCH block from the AI could not be found in '"+resolvedPath+"'. Patch skipped.")
	return &models.StreamYieldItem{Kind: models.YieldUnparsed, Unparsed: models.UnparsedBlock{Text: patch.RawBlock}}, warnings
}

// resolvePath decides which tracked path a patch's llmPath refers to:
// an exact match in overlay/baseline, a bare creation (empty search
// block, new path), or a path-traversal-safe fallback read from disk.
// found is false only when none of those apply.
func (p *Parser) resolvePath(llmPath, searchBlock string) (warnMsg string, resolved string, fallback *string, found bool) {
	if _, ok := p.overlay[llmPath]; ok {
		return "", llmPath, nil, true
	}
	if _, ok := p.baseline[llmPath]; ok {
		return "", llmPath, nil, true
	}
	if strings.TrimSpace(searchBlock) == "" {
		return "", llmPath, nil, true
	}

	if p.sessionRoot == "" {
		return "", "", nil, false
	}

	absPath := filepath.Join(p.sessionRoot, llmPath)
	info, err := os.Stat(absPath)
	if err != nil || info.IsDir() {
		return "", "", nil, false
	}

	canon, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		return "", "", nil, false
	}
	rootCanon, err := filepath.EvalSymlinks(p.sessionRoot)
	if err != nil {
		return "", "", nil, false
	}
	rel, err := filepath.Rel(rootCanon, canon)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", "", nil, false
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		return "", "", nil, false
	}

	text := string(content)
	msg := "File '" + llmPath + "' was not in the session context but was found on disk."
	return msg, llmPath, &text, true
}

func (p *Parser) checkHeaderMatch(matchStart int) bool {
	return matchStart > 0 || p.lastCharWasNewline
}

func (p *Parser) updateNewlineState(item models.StreamYieldItem) {
	switch item.Kind {
	case models.YieldText:
		p.lastCharWasNewline = strings.HasSuffix(item.Text, "\n")
	case models.YieldUnparsed:
		p.lastCharWasNewline = strings.HasSuffix(item.Unparsed.Text, "\n")
	case models.YieldFileHeader:
		p.lastCharWasNewline = true
	case models.YieldPatch:
		p.lastCharWasNewline = strings.HasSuffix(item.Patch.RawBlock, "\n")
	case models.YieldDiffBlock:
		p.lastCharWasNewline = strings.HasSuffix(item.DiffBlock.UnifiedDiff, "\n")
	case models.YieldWarning:
		// metadata, doesn't affect line-start tracking
	case models.YieldIncompleteBlock:
		p.lastCharWasNewline = strings.HasSuffix(item.IncompleteBlock, "\n")
	}
}

func (p *Parser) isIncomplete(text string) bool {
	var lastLine string
	if nl := strings.LastIndex(text, "\n"); nl >= 0 {
		lastLine = text[nl+1:]
	} else {
		if !p.lastCharWasNewline {
			return false
		}
		lastLine = text
	}

	if isAllWhitespaceOrEmpty(lastLine) && lastLine != "" {
		return true
	}

	trimmed := strings.TrimLeft(lastLine, " \t")

	if trimmed != "" && (strings.HasPrefix("File:", trimmed) || (strings.HasPrefix(trimmed, "File:") && !strings.HasSuffix(text, "\n"))) {
		return true
	}

	if p.currentFile != nil && trimmed != "" {
		if strings.HasPrefix(searchMarker, trimmed) {
			return true
		}
		if strings.HasPrefix(sepMarker, trimmed) {
			return true
		}
		if strings.HasPrefix(replaceMarker, trimmed) {
			return true
		}
	}

	if p.currentFile != nil {
		if idx := strings.Index(text, searchMarker); idx >= 0 {
			lineStart := 0
			if nl := strings.LastIndex(text[:idx], "\n"); nl >= 0 {
				lineStart = nl + 1
			}
			if lineStart == 0 && !strings.Contains(text, "\n") && !p.lastCharWasNewline {
				// invalid mid-line marker, fall through
			} else {
				indent := text[lineStart:idx]
				if isAllWhitespaceOrEmpty(indent) && !strings.Contains(text, replaceMarker) {
					return true
				}
			}
		}
	}

	return false
}

func isAllWhitespaceOrEmpty(s string) bool {
	for _, r := range s {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

// processFileChunk scans chunk (the portion of the buffer belonging to
// llmPath's content section) for SEARCH/REPLACE blocks, returning the
// classified items found and how many bytes were consumed.
func (p *Parser) processFileChunk(llmPath, chunk string) ([]models.StreamYieldItem, int) {
	var items []models.StreamYieldItem
	cursor := 0

	for cursor < len(chunk) {
		rel := strings.Index(chunk[cursor:], searchMarker)
		if rel < 0 {
			break
		}
		searchIdx := cursor + rel

		lineStart := 0
		if nl := strings.LastIndex(chunk[:searchIdx], "\n"); nl >= 0 {
			lineStart = nl + 1
		}
		indentSlice := chunk[lineStart:searchIdx]

		if !isAllWhitespaceOrEmpty(indentSlice) {
			end := searchIdx + 1
			if end > len(chunk) {
				end = len(chunk)
			}
			items = append(items, models.StreamYieldItem{Kind: models.YieldText, Text: chunk[cursor:end]})
			cursor = end
			continue
		}

		blockSearchStart := searchIdx + len(searchMarker)
		blockSearchStartContent := blockSearchStart + consumeLineEnding(chunk[blockSearchStart:])

		sepLineStart, sepLineEnd, okSep := findMarkerWithIndent(chunk, sepMarker, blockSearchStart, indentSlice)
		if !okSep {
			backtrack := lineStart
			if cursor > backtrack {
				backtrack = cursor
			}
			if backtrack > cursor {
				items = append(items, models.StreamYieldItem{Kind: models.YieldText, Text: chunk[cursor:backtrack]})
			}
			return items, backtrack
		}

		blockReplaceStartContent := sepLineEnd + consumeLineEnding(chunk[sepLineEnd:])

		replaceLineStart, _, okReplace := findMarkerWithIndent(chunk, replaceMarker, sepLineEnd, indentSlice)
		if !okReplace {
			backtrack := lineStart
			if cursor > backtrack {
				backtrack = cursor
			}
			if backtrack > cursor {
				items = append(items, models.StreamYieldItem{Kind: models.YieldText, Text: chunk[cursor:backtrack]})
			}
			return items, backtrack
		}

		if searchIdx > cursor {
			items = append(items, models.StreamYieldItem{Kind: models.YieldText, Text: chunk[cursor:searchIdx]})
		}

		finalEnd := replaceLineStart + len(indentSlice) + len(replaceMarker)

		searchContent := chunk[blockSearchStartContent:sepLineStart]
		searchContent = strings.TrimSuffix(searchContent, "\r")

		replaceContent := chunk[blockReplaceStartContent:replaceLineStart]
		replaceContent = strings.TrimSuffix(replaceContent, "\r")

		items = append(items, models.StreamYieldItem{
			Kind: models.YieldPatch,
			Patch: models.AIPatch{
				LLMFilePath:    llmPath,
				SearchContent:  searchContent,
				ReplaceContent: replaceContent,
				Indent:         indentSlice,
				RawBlock:       chunk[searchIdx:finalEnd],
			},
		})

		cursor = finalEnd
	}

	if cursor < len(chunk) {
		tail := chunk[cursor:]
		if !p.isIncomplete(tail) {
			items = append(items, models.StreamYieldItem{Kind: models.YieldText, Text: tail})
			cursor = len(chunk)
		}
	}

	return items, cursor
}

func consumeLineEnding(s string) int {
	if strings.HasPrefix(s, "\r\n") {
		return 2
	}
	if strings.HasPrefix(s, "\n") {
		return 1
	}
	return 0
}

// findMarkerWithIndent finds marker on its own line (with exactly
// expectedIndent leading whitespace and only whitespace trailing)
// starting the search at startPos. Returns the line's start and end
// offsets.
func findMarkerWithIndent(chunk, marker string, startPos int, expectedIndent string) (lineStart, lineEnd int, ok bool) {
	searchPos := startPos
	for {
		rel := strings.Index(chunk[searchPos:], marker)
		if rel < 0 {
			return 0, 0, false
		}
		foundIdx := searchPos + rel

		ls := 0
		if nl := strings.LastIndex(chunk[:foundIdx], "\n"); nl >= 0 {
			ls = nl + 1
		}

		if chunk[ls:foundIdx] == expectedIndent {
			after := chunk[foundIdx+len(marker):]
			le := len(chunk)
			if nl := strings.Index(after, "\n"); nl >= 0 {
				le = foundIdx + len(marker) + nl
			}
			trailer := chunk[foundIdx+len(marker) : le]
			if isWhitespaceNoNewline(trailer) {
				return ls, le, true
			}
		}

		searchPos = foundIdx + len(marker)
	}
}

func isWhitespaceNoNewline(s string) bool {
	for _, r := range s {
		if r == '\n' || !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
