package diffing

import "strings"

// createPatchedContent applies one SEARCH/REPLACE block against
// original, returning the patched content. It returns false if search
// cannot be located, matching the original's "patch skipped" path.
//
// Only one occurrence is replaced: if search appears more than once,
// the first (leftmost) occurrence is replaced, matching a literal string-replace
// semantics (the original's create_patched_content does no fuzzy
// matching beyond the \r-stripping retry handled by the caller).
func createPatchedContent(original, search, replace string) (string, bool) {
	if search == "" {
		if original == "" {
			return replace, true
		}
		// Empty search against non-empty content has no anchor; only
		// valid as a pure-creation patch where original is also empty.
		return "", false
	}

	idx := strings.Index(original, search)
	if idx < 0 {
		return "", false
	}

	var b strings.Builder
	b.WriteString(original[:idx])
	b.WriteString(replace)
	b.WriteString(original[idx+len(search):])
	return b.String(), true
}
