package chronology

import (
	"strings"
	"testing"
	"time"

	"github.com/jurriaanhof/aico-go/internal/models"
)

func TestResolveContextStateEmptyHistoryTreatsAllFilesAsStatic(t *testing.T) {
	files := []models.ContextFile{
		{Path: "a.go", Content: "package a", Mtime: float64(time.Now().Unix())},
	}
	state := ResolveContextState(files, nil)
	if len(state.StaticFiles) != 1 || len(state.FloatingFiles) != 0 {
		t.Errorf("got static=%d floating=%d", len(state.StaticFiles), len(state.FloatingFiles))
	}
	if state.SpliceIdx != 0 {
		t.Errorf("got splice index %d, want 0", state.SpliceIdx)
	}
}

func TestResolveContextStatePartitionsAroundHorizon(t *testing.T) {
	horizon := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	beforeHorizon := float64(horizon.Add(-time.Hour).Unix())
	afterHorizon := float64(horizon.Add(time.Hour).Unix())

	files := []models.ContextFile{
		{Path: "old.go", Mtime: beforeHorizon},
		{Path: "new.go", Mtime: afterHorizon},
	}
	history := []time.Time{horizon, horizon.Add(2 * time.Hour)}

	state := ResolveContextState(files, history)

	if len(state.StaticFiles) != 1 || state.StaticFiles[0].Path != "old.go" {
		t.Errorf("unexpected static files: %+v", state.StaticFiles)
	}
	if len(state.FloatingFiles) != 1 || state.FloatingFiles[0].Path != "new.go" {
		t.Errorf("unexpected floating files: %+v", state.FloatingFiles)
	}
	if state.SpliceIdx != 1 {
		t.Errorf("got splice index %d, want 1 (after horizon record, before the later one)", state.SpliceIdx)
	}
}

func TestResolveContextStateSpliceDefaultsToEndWhenNothingPostdatesFloating(t *testing.T) {
	horizon := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	history := []time.Time{horizon, horizon.Add(time.Minute)}
	files := []models.ContextFile{
		{Path: "changed.go", Mtime: float64(horizon.Add(10 * time.Minute).Unix())},
	}

	state := ResolveContextState(files, history)
	if state.SpliceIdx != len(history) {
		t.Errorf("got splice index %d, want %d", state.SpliceIdx, len(history))
	}
}

func TestResolveContextStateCeilsMtimeToWholeSecond(t *testing.T) {
	horizon := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	// 0.4s into the horizon's second: ceil pushes this to horizon+1s,
	// which is strictly after the horizon, so it must be floating.
	files := []models.ContextFile{
		{Path: "borderline.go", Mtime: float64(horizon.Unix()) + 0.4},
	}
	state := ResolveContextState(files, []time.Time{horizon})
	if len(state.FloatingFiles) != 1 {
		t.Errorf("expected sub-second-after-horizon mtime to ceil into floating, got static=%+v floating=%+v",
			state.StaticFiles, state.FloatingFiles)
	}
}

func TestResolveContextStateTiedMtimeGoesFloating(t *testing.T) {
	horizon := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	files := []models.ContextFile{
		{Path: "exact.go", Mtime: float64(horizon.Unix())},
	}
	state := ResolveContextState(files, []time.Time{horizon})
	if len(state.FloatingFiles) != 1 || len(state.StaticFiles) != 0 {
		t.Errorf("expected mtime == horizon to resolve floating (re-send on tie), got static=%+v floating=%+v",
			state.StaticFiles, state.FloatingFiles)
	}
}

func TestAssembleMessagesOrdersAlignmentAfterHistory(t *testing.T) {
	history := []models.HistoryRecord{
		{Role: models.RoleUser, Content: "earlier question"},
		{Role: models.RoleAssistant, Content: "earlier answer"},
	}
	msgs := AssembleMessages(models.ModeConversation, false, history, models.ContextState{SpliceIdx: len(history)}, "final prompt", nil)

	var alignIdx, historyIdx, finalIdx int = -1, -1, -1
	for i, m := range msgs {
		if strings.Contains(m.Content, "earlier question") {
			historyIdx = i
		}
		if m.Content == AlignmentConversationUser {
			alignIdx = i
		}
		if strings.Contains(m.Content, "final prompt") {
			finalIdx = i
		}
	}
	if historyIdx == -1 || alignIdx == -1 || finalIdx == -1 {
		t.Fatalf("missing expected segment: history=%d align=%d final=%d in %+v", historyIdx, alignIdx, finalIdx, msgs)
	}
	if !(historyIdx < alignIdx && alignIdx < finalIdx) {
		t.Errorf("expected order history(%d) < alignment(%d) < final(%d)", historyIdx, alignIdx, finalIdx)
	}
}

func TestAssembleMessagesWrapsStdinContent(t *testing.T) {
	piped := "raw file contents"
	msgs := AssembleMessages(models.ModeConversation, false, nil, models.ContextState{}, "explain this", &piped)

	last := msgs[len(msgs)-1]
	if !strings.Contains(last.Content, "<stdin_content>") || !strings.Contains(last.Content, piped) || !strings.Contains(last.Content, "<prompt>") {
		t.Errorf("expected stdin/prompt wrapping, got %q", last.Content)
	}
}

func TestRecordsToMessagesPassesPassthroughVerbatim(t *testing.T) {
	piped := "should not appear"
	history := []models.HistoryRecord{
		{Role: models.RoleUser, Content: "verbatim content", Passthrough: true, PipedContent: &piped},
	}
	msgs := recordsToMessages(history)
	if msgs[0].Content != "verbatim content" {
		t.Errorf("expected passthrough record verbatim, got %q", msgs[0].Content)
	}
}

func TestAssembleMessagesPassthroughSkipsContextAndAlignment(t *testing.T) {
	history := []models.HistoryRecord{
		{Role: models.RoleUser, Content: "earlier question"},
		{Role: models.RoleAssistant, Content: "earlier answer"},
	}
	state := models.ContextState{
		StaticFiles: []models.ContextFile{{Path: "a.go", Content: "package a\n"}},
	}
	msgs := AssembleMessages(models.ModeConversation, true, history, state, "final prompt", nil)

	for _, m := range msgs {
		if strings.Contains(m.Content, StaticContextIntro) {
			t.Error("passthrough mode must skip the static context block")
		}
		if m.Content == AlignmentConversationUser {
			t.Error("passthrough mode must skip the alignment pair")
		}
	}
	if !strings.Contains(msgs[len(msgs)-1].Content, "final prompt") {
		t.Errorf("expected final prompt appended directly, got %+v", msgs)
	}
}

func TestAssembleMessagesIncludesSystemAndAlignment(t *testing.T) {
	state := models.ContextState{}
	msgs := AssembleMessages(models.ModeConversation, false, nil, state, "what does this do?", nil)

	if len(msgs) == 0 || msgs[0].Role != models.RoleSystem {
		t.Fatalf("expected first message to be system prompt, got %+v", msgs)
	}

	var sawAlignUser, sawFinalUser bool
	for _, m := range msgs {
		if m.Content == AlignmentConversationUser {
			sawAlignUser = true
		}
		if m.Content == "what does this do?" {
			sawFinalUser = true
		}
	}
	if !sawAlignUser {
		t.Error("expected conversational alignment turn")
	}
	if !sawFinalUser {
		t.Error("expected the pending user turn to be appended")
	}
}

func TestAssembleMessagesUsesDiffAlignmentAndAppendsInstructions(t *testing.T) {
	state := models.ContextState{}
	msgs := AssembleMessages(models.ModeDiff, false, nil, state, "refactor main", nil)

	var sawDiffAlign bool
	for _, m := range msgs {
		if m.Content == AlignmentDiffUser {
			sawDiffAlign = true
		}
	}
	if !sawDiffAlign {
		t.Error("expected diff-mode alignment turn")
	}

	last := msgs[len(msgs)-1]
	if last.Role != models.RoleUser {
		t.Fatalf("expected last message to be the user turn, got %+v", last)
	}
	if !strings.Contains(last.Content, "refactor main") || !strings.Contains(last.Content, "SEARCH/REPLACE") {
		t.Errorf("expected diff instructions appended to the final turn, got %q", last.Content)
	}
}

func TestAssembleMessagesMergesConsecutiveSameRoleHistory(t *testing.T) {
	history := []models.HistoryRecord{
		{Role: models.RoleUser, Content: "first"},
		{Role: models.RoleUser, Content: "second"},
		{Role: models.RoleAssistant, Content: "reply"},
	}
	msgs := AssembleMessages(models.ModeConversation, false, history, models.ContextState{}, "next", nil)

	for i, m := range msgs {
		if m.Role == models.RoleUser && i > 0 && msgs[i-1].Role == models.RoleUser {
			t.Fatalf("found two adjacent user turns at index %d: %+v", i, msgs)
		}
	}
	foundMerged := false
	for _, m := range msgs {
		if strings.Contains(m.Content, "first") && strings.Contains(m.Content, "second") {
			foundMerged = true
		}
	}
	if !foundMerged {
		t.Error("expected the two consecutive user turns to be merged into one message")
	}
}

func TestAssembleMessagesStaticAndFloatingContextBlocks(t *testing.T) {
	state := models.ContextState{
		StaticFiles:   []models.ContextFile{{Path: "a.go", Content: "package a\n"}},
		FloatingFiles: []models.ContextFile{{Path: "b.go", Content: "package b\n"}},
		SpliceIdx:     0,
	}
	msgs := AssembleMessages(models.ModeConversation, false, nil, state, "go on", nil)

	var sawStatic, sawFloating bool
	for _, m := range msgs {
		if strings.Contains(m.Content, StaticContextIntro) {
			sawStatic = true
		}
		if strings.Contains(m.Content, FloatingContextIntro) {
			sawFloating = true
		}
	}
	if !sawStatic {
		t.Error("expected a static context block")
	}
	if !sawFloating {
		t.Error("expected a floating context block")
	}
}
