package session

import (
	"testing"
	"time"

	"github.com/jurriaanhof/aico-go/internal/historystore"
	"github.com/jurriaanhof/aico-go/internal/models"
)

func newTestStoreAndView(t *testing.T, pairs int) (*historystore.Store, *models.SessionView) {
	t.Helper()
	store := historystore.New(t.TempDir())
	view := NewView("test-model")

	for i := 0; i < pairs; i++ {
		user := models.HistoryRecord{Role: models.RoleUser, Content: "hello", Timestamp: time.Now().UTC()}
		assistant := models.HistoryRecord{Role: models.RoleAssistant, Content: "hi there", Timestamp: time.Now().UTC()}
		if _, err := AppendPair(view, store, user, assistant); err != nil {
			t.Fatalf("append pair %d: %v", i, err)
		}
	}
	return store, view
}

func TestResolvePairIndexPositiveAndNegative(t *testing.T) {
	_, view := newTestStoreAndView(t, 3)

	cases := []struct {
		name  string
		index int
		want  int
	}{
		{"first", 0, 0},
		{"last", 2, 2},
		{"negative last", -1, 2},
		{"negative first", -3, 0},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := ResolvePairIndex(view, c.index)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != c.want {
				t.Errorf("got %d, want %d", got, c.want)
			}
		})
	}
}

func TestResolvePairIndexOutOfRange(t *testing.T) {
	_, view := newTestStoreAndView(t, 2)

	for _, idx := range []int{2, -3, 100} {
		if _, err := ResolvePairIndex(view, idx); err == nil {
			t.Errorf("index %d: expected out-of-range error", idx)
		}
	}
}

func TestResolvePairIndexEmptySession(t *testing.T) {
	view := NewView("test-model")
	if _, err := ResolvePairIndex(view, 0); err == nil {
		t.Error("expected error resolving a pair index in an empty session")
	}
}

func TestFetchPairRoundTrips(t *testing.T) {
	store, view := newTestStoreAndView(t, 2)

	pair, err := FetchPair(store, view, 1)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if pair.User.Record.Content != "hello" || pair.Assistant.Record.Content != "hi there" {
		t.Errorf("unexpected pair contents: %+v", pair)
	}
	if pair.PairIndex != 1 {
		t.Errorf("got pair index %d, want 1", pair.PairIndex)
	}
}

func TestEditMessagePreservesTimestampAndAppendsNewRecord(t *testing.T) {
	store, view := newTestStoreAndView(t, 1)

	original, err := FetchPair(store, view, 0)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	originalTimestamp := original.User.Record.Timestamp
	originalGlobalID := original.User.ID

	edited, err := EditMessage(view, store, 0, models.RoleUser, "revised content", nil, "")
	if err != nil {
		t.Fatalf("edit: %v", err)
	}

	if edited.User.Record.Content != "revised content" {
		t.Errorf("got content %q", edited.User.Record.Content)
	}
	if !edited.User.Record.Timestamp.Equal(originalTimestamp) {
		t.Errorf("edit changed the timestamp: got %v want %v", edited.User.Record.Timestamp, originalTimestamp)
	}
	if edited.User.ID == originalGlobalID {
		t.Error("edit should append a new record rather than reuse the original global id")
	}
	if edited.User.Record.EditOf == nil || *edited.User.Record.EditOf != originalGlobalID {
		t.Errorf("expected EditOf to point at %d, got %v", originalGlobalID, edited.User.Record.EditOf)
	}

	// The original record must still be readable: edits are append-only.
	originals, err := store.ReadMany([]int{originalGlobalID})
	if err != nil {
		t.Fatalf("reading original after edit: %v", err)
	}
	if originals[0].Content != "hello" {
		t.Errorf("original record was mutated: %q", originals[0].Content)
	}
}

func TestEditMessageWrongRoleRejected(t *testing.T) {
	store, view := newTestStoreAndView(t, 1)
	if _, err := EditMessage(view, store, 0, models.RoleAssistant, "x", nil, ""); err != nil {
		return
	}
	// Editing slot 0 (the user message) as RoleAssistant must fail
	// the role check, never silently succeed.
	t.Error("expected a role-mismatch error")
}

func TestComputeDerivedContentNilForPlainProse(t *testing.T) {
	got := ComputeDerivedContent("just a conversational reply, no code at all.", nil, "")
	if got != nil {
		t.Errorf("expected nil derived content for plain prose, got %+v", got)
	}
}

func TestComputeDerivedContentSetForDiff(t *testing.T) {
	content := "File: a.py\n<<<<<<< SEARCH\nold\n=======\nnew\n>>>>>>> REPLACE\n"
	got := ComputeDerivedContent(content, map[string]string{"a.py": "old\n"}, "")
	if got == nil {
		t.Fatal("expected non-nil derived content for a patch block")
	}
	if got.UnifiedDiff == nil || *got.UnifiedDiff == "" {
		t.Error("expected a non-empty unified diff")
	}
}

func TestSummarizeActiveWindowExcludesMarkedPairs(t *testing.T) {
	_, view := newTestStoreAndView(t, 3)
	view.ExcludedPairs = []int{1}

	summary := SummarizeActiveWindow(view)
	if summary.ActivePairs != 3 {
		t.Errorf("got ActivePairs=%d, want 3", summary.ActivePairs)
	}
	if summary.ExcludedInWindow != 1 {
		t.Errorf("got ExcludedInWindow=%d, want 1", summary.ExcludedInWindow)
	}
	if summary.PairsSent != 2 {
		t.Errorf("got PairsSent=%d, want 2", summary.PairsSent)
	}
}

func TestSummarizeActiveWindowRespectsHistoryStartPair(t *testing.T) {
	_, view := newTestStoreAndView(t, 4)
	view.HistoryStartPair = 2

	summary := SummarizeActiveWindow(view)
	if summary.ActivePairs != 2 {
		t.Errorf("got ActivePairs=%d, want 2", summary.ActivePairs)
	}
}

func TestSummarizeActiveWindowEmptySession(t *testing.T) {
	view := NewView("test-model")
	summary := SummarizeActiveWindow(view)
	if summary.ActivePairs != 0 || summary.PairsSent != 0 {
		t.Errorf("expected zero-value summary for an empty session, got %+v", summary)
	}
}
