package session

import (
	"fmt"
	"strings"

	"github.com/jurriaanhof/aico-go/internal/aicoerr"
	"github.com/jurriaanhof/aico-go/internal/diffing"
	"github.com/jurriaanhof/aico-go/internal/historystore"
	"github.com/jurriaanhof/aico-go/internal/models"
)

// ClearTokenPairIndex is a sentinel for "one past the last pair" (the
// not-yet-created next turn). No function in this package interprets
// it: ResolvePairIndex rejects it as out of range.
const ClearTokenPairIndex = -1 << 31

func numPairs(view *models.SessionView) int {
	return len(view.MessageIndices) / 2
}

// resolvePairIndexInternal turns a user-facing pair index (which may be
// negative, counting back from the end) into an absolute index into
// view.MessageIndices. When allowPastEnd is true, an index equal to
// numPairs is accepted and returned as-is, addressing the turn that
// would be created next rather than an existing one.
func resolvePairIndexInternal(view *models.SessionView, index int, allowPastEnd bool) (int, error) {
	n := numPairs(view)

	resolved := index
	if index < 0 {
		resolved = n + index
	}

	if allowPastEnd && resolved == n {
		return n, nil
	}

	if resolved < 0 || resolved >= n {
		if n == 0 {
			return 0, aicoerr.InvalidInput("session has no message pairs yet", nil)
		}
		return 0, aicoerr.InvalidInput(fmt.Sprintf(
			"pair index %d is out of range (session has %d pair(s); valid range is %d..%d or -%d..-1)",
			index, n, 0, n-1, n), nil)
	}

	return resolved, nil
}

// ResolvePairIndex is the exported entry point for addressing a single
// existing pair; it never accepts the past-end index.
func ResolvePairIndex(view *models.SessionView, index int) (int, error) {
	return resolvePairIndexInternal(view, index, false)
}

// FetchPair resolves pairIndex and reads both of its records from the
// store.
func FetchPair(store *historystore.Store, view *models.SessionView, pairIndex int) (models.MessagePair, error) {
	resolved, err := resolvePairIndexInternal(view, pairIndex, false)
	if err != nil {
		return models.MessagePair{}, err
	}

	userGlobal := view.MessageIndices[2*resolved]
	assistantGlobal := view.MessageIndices[2*resolved+1]

	records, err := store.ReadMany([]int{userGlobal, assistantGlobal})
	if err != nil {
		return models.MessagePair{}, err
	}

	return models.MessagePair{
		PairIndex: resolved,
		User:      models.MessageWithID{Record: records[0], ID: userGlobal},
		Assistant: models.MessageWithID{Record: records[1], ID: assistantGlobal},
	}, nil
}

// AppendRecordToView appends record to the store and records its
// global index in the view's message list, returning the new index.
// It does not save the view; callers batch a turn's writes and save
// once.
func AppendRecordToView(view *models.SessionView, store *historystore.Store, record models.HistoryRecord) (int, error) {
	idx, err := store.Append(record)
	if err != nil {
		return 0, err
	}
	view.MessageIndices = append(view.MessageIndices, idx)
	return idx, nil
}

// AppendPair appends a user record followed by its assistant response
// as one new pair.
func AppendPair(view *models.SessionView, store *historystore.Store, user, assistant models.HistoryRecord) (models.MessagePair, error) {
	userIdx, err := AppendRecordToView(view, store, user)
	if err != nil {
		return models.MessagePair{}, err
	}
	assistantIdx, err := AppendRecordToView(view, store, assistant)
	if err != nil {
		return models.MessagePair{}, err
	}

	return models.MessagePair{
		PairIndex: numPairs(view) - 1,
		User:      models.MessageWithID{Record: user, ID: userIdx},
		Assistant: models.MessageWithID{Record: assistant, ID: assistantIdx},
	}, nil
}

// EditMessage revises the user or assistant half of pairIndex with
// newContent. Edits are never in-place mutations: a brand new record is
// appended to the store carrying an EditOf back-reference to the
// message it supersedes, the original's Timestamp is preserved so the
// chronology horizon doesn't move, and the view's pointer for that slot
// is updated to the new record. When editing the assistant side,
// derived content (diff + display items) is recomputed against
// baseline/root using the same stream parser a live turn would use.
func EditMessage(
	view *models.SessionView,
	store *historystore.Store,
	pairIndex int,
	role models.Role,
	newContent string,
	baseline map[string]string,
	root string,
) (models.MessagePair, error) {
	resolved, err := resolvePairIndexInternal(view, pairIndex, false)
	if err != nil {
		return models.MessagePair{}, err
	}

	slot := 2 * resolved
	if role == models.RoleAssistant {
		slot++
	}

	originalGlobal := view.MessageIndices[slot]
	originals, err := store.ReadMany([]int{originalGlobal})
	if err != nil {
		return models.MessagePair{}, err
	}
	original := originals[0]

	if original.Role != role {
		return models.MessagePair{}, aicoerr.InvalidInput(fmt.Sprintf(
			"pair %d's %s message does not match the requested role %s", resolved, original.Role, role), nil)
	}

	revised := original
	revised.Content = newContent
	revised.Timestamp = original.Timestamp
	originalIdx := originalGlobal
	revised.EditOf = &originalIdx
	revised.Derived = nil

	if role == models.RoleAssistant {
		revised.Derived = ComputeDerivedContent(newContent, baseline, root)
	}

	newGlobal, err := store.Append(revised)
	if err != nil {
		return models.MessagePair{}, err
	}
	view.MessageIndices[slot] = newGlobal

	return FetchPair(store, view, resolved)
}

// ComputeDerivedContent recomputes the cached diff/display rendering
// for an assistant message's content. It returns nil when the content
// has no structural diversity from plain prose: a single markdown
// item whose text is the content as fed to the parser (with the
// trailing newline FeedComplete adds when missing), with no diff
// produced.
// Anything else (a parsed diff, a warning, an unparsed fenced block) is
// considered diverse and worth caching.
func ComputeDerivedContent(content string, baseline map[string]string, root string) *models.DerivedContent {
	p := diffing.New(baseline, root)
	p.FeedComplete(content)

	diff, display, _ := p.FinalResolve()

	fed := content
	if !strings.HasSuffix(fed, "\n") {
		fed += "\n"
	}

	diverse := diff != "" || len(display) != 1
	if !diverse {
		d := display[0]
		diverse = d.Kind != models.DisplayMarkdown || d.Content != fed
	}

	if !diverse {
		return nil
	}

	var unifiedDiff *string
	if diff != "" {
		unifiedDiff = &diff
	}
	return &models.DerivedContent{UnifiedDiff: unifiedDiff, DisplayContent: display}
}

// ActiveHistory reads every record in the active window (from
// HistoryStartPair to the end, skipping ExcludedPairs) in pair order,
// ready to feed into the chronology engine's message assembly.
func ActiveHistory(store *historystore.Store, view *models.SessionView) ([]models.HistoryRecord, error) {
	n := numPairs(view)
	if n == 0 || view.HistoryStartPair >= n {
		return nil, nil
	}

	excluded := make(map[int]bool, len(view.ExcludedPairs))
	for _, p := range view.ExcludedPairs {
		excluded[p] = true
	}

	start := view.HistoryStartPair
	if start < 0 {
		start = 0
	}

	indices := make([]int, 0, 2*(n-start))
	for i := start; i < n; i++ {
		if excluded[i] {
			continue
		}
		indices = append(indices, view.MessageIndices[2*i], view.MessageIndices[2*i+1])
	}
	if len(indices) == 0 {
		return nil, nil
	}

	return store.ReadMany(indices)
}

// SummarizeActiveWindow reports on the slice of history actually in
// play for the next turn: pairs from HistoryStartPair onward, minus
// anything in ExcludedPairs, flagging a dangling trailing user message
// whose assistant half never arrived.
func SummarizeActiveWindow(view *models.SessionView) models.ActiveWindowSummary {
	n := numPairs(view)
	// A dangling message is a trailing user id with no assistant id after
	// it, which leaves MessageIndices with an odd length.
	summary := models.ActiveWindowSummary{HasDangling: len(view.MessageIndices)%2 == 1}

	if n == 0 || view.HistoryStartPair >= n {
		return summary
	}

	excluded := make(map[int]bool, len(view.ExcludedPairs))
	for _, p := range view.ExcludedPairs {
		excluded[p] = true
	}

	start := view.HistoryStartPair
	if start < 0 {
		start = 0
	}

	summary.ActiveStartID = view.MessageIndices[2*start]
	lastPair := n - 1
	summary.ActiveEndID = view.MessageIndices[2*lastPair+1]
	summary.ActivePairs = n - start

	for i := start; i < n; i++ {
		if excluded[i] {
			summary.ExcludedInWindow++
			continue
		}
		summary.PairsSent++
	}

	return summary
}
