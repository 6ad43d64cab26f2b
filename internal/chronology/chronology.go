// Package chronology implements the Chronology Engine: it partitions a
// session's loaded context files into a static baseline and a floating
// (recently-changed) overlay relative to a horizon timestamp, finds
// where in the conversation history the floating context should be
// spliced back in, and assembles the final ordered message list a
// provider call is built from.
package chronology

import (
	"math"
	"strings"
	"time"

	"github.com/jurriaanhof/aico-go/internal/models"
)

// farFutureHorizon is used as the horizon when a session has no history
// yet, so every context file is treated as static baseline rather than
// floating relative to a turn that never happened.
var farFutureHorizon = time.Date(3000, 1, 1, 0, 0, 0, 0, time.UTC)

// ceilToSecond rounds a fractional Unix mtime UP to the next whole
// second before comparing it against the horizon, so a file saved in
// the same wall-clock second as (but nanoseconds after) the horizon
// record is never misclassified as static due to sub-second jitter.
func ceilToSecond(mtime float64) time.Time {
	return time.Unix(int64(math.Ceil(mtime)), 0).UTC()
}

// ResolveContextState partitions files into static/floating relative to
// the timestamp of the first active history record (the horizon), and
// finds the splice index: the position in history after which floating
// context should be re-asserted because it postdates everything before
// that point.
func ResolveContextState(files []models.ContextFile, historyTimestamps []time.Time) models.ContextState {
	horizon := farFutureHorizon
	if len(historyTimestamps) > 0 {
		horizon = historyTimestamps[0]
	}

	var static, floating []models.ContextFile
	for _, f := range files {
		if !ceilToSecond(f.Mtime).Before(horizon) {
			floating = append(floating, f)
		} else {
			static = append(static, f)
		}
	}

	spliceIdx := len(historyTimestamps)
	if len(floating) > 0 {
		latestFloatingMtime := floating[0].Mtime
		for _, f := range floating[1:] {
			if f.Mtime > latestFloatingMtime {
				latestFloatingMtime = f.Mtime
			}
		}
		latestFloating := ceilToSecond(latestFloatingMtime)
		for i, ts := range historyTimestamps {
			if ts.After(latestFloating) {
				spliceIdx = i
				break
			}
		}
	}

	return models.ContextState{StaticFiles: static, FloatingFiles: floating, SpliceIdx: spliceIdx}
}

// Message is one entry of the final ordered list sent to a provider.
type Message struct {
	Role    models.Role
	Content string
}

// AssembleMessages builds the full provider-facing message list for one
// turn: system prompt, static context block, history up to the splice
// point, the floating context reassertion (if any context changed
// mid-session), the remaining history, the mode alignment pair, and
// finally the pending user turn. passthrough skips the static/floating
// context blocks and the alignment pair, rendering history verbatim
// (still stdin-wrapped where a record wasn't itself passthrough) with
// the final user message appended directly. The result is then
// turn-aligned so consecutive same-role entries are merged and empty
// ones dropped, since providers require strict user/assistant
// alternation.
func AssembleMessages(
	mode models.Mode,
	passthrough bool,
	history []models.HistoryRecord,
	state models.ContextState,
	pendingUserContent string,
	pendingPipedContent *string,
) []Message {
	if mode == models.ModeDiff {
		pendingUserContent += DiffModeInstructions
	}
	finalUser := Message{Role: models.RoleUser, Content: formatUserContent(pendingUserContent, pendingPipedContent)}

	if passthrough {
		out := []Message{{Role: models.RoleSystem, Content: DefaultSystemPrompt}}
		out = append(out, recordsToMessages(history)...)
		out = append(out, finalUser)
		return mergeConsecutiveSameRole(out)
	}

	var out []Message

	out = append(out, Message{Role: models.RoleSystem, Content: DefaultSystemPrompt})

	if len(state.StaticFiles) > 0 {
		out = append(out, Message{Role: models.RoleUser, Content: renderContextBlock(StaticContextIntro, state.StaticFiles)})
		out = append(out, Message{Role: models.RoleAssistant, Content: StaticContextAnchor})
	}

	spliceIdx := state.SpliceIdx
	if spliceIdx > len(history) {
		spliceIdx = len(history)
	}
	if spliceIdx < 0 {
		spliceIdx = 0
	}

	out = append(out, recordsToMessages(history[:spliceIdx])...)

	if len(state.FloatingFiles) > 0 {
		out = append(out, Message{Role: models.RoleUser, Content: renderContextBlock(FloatingContextIntro, state.FloatingFiles)})
		out = append(out, Message{Role: models.RoleAssistant, Content: FloatingContextAnchor})
	}

	out = append(out, recordsToMessages(history[spliceIdx:])...)

	alignUser, alignAssistant := AlignmentConversationUser, AlignmentConversationAssistant
	if mode == models.ModeDiff {
		alignUser, alignAssistant = AlignmentDiffUser, AlignmentDiffAssistant
	}
	out = append(out, Message{Role: models.RoleUser, Content: alignUser})
	out = append(out, Message{Role: models.RoleAssistant, Content: alignAssistant})

	out = append(out, finalUser)

	return mergeConsecutiveSameRole(out)
}

func renderContextBlock(intro string, files []models.ContextFile) string {
	var b strings.Builder
	b.WriteString(intro)
	b.WriteString("\n\n")
	for _, f := range files {
		b.WriteString(models.FormatFileContextXML(f.Path, f.Content))
	}
	return b.String()
}

func recordsToMessages(records []models.HistoryRecord) []Message {
	out := make([]Message, 0, len(records))
	for _, r := range records {
		content := r.Content
		if r.Role == models.RoleUser && !r.Passthrough {
			content = formatUserContent(r.Content, r.PipedContent)
		}
		out = append(out, Message{Role: r.Role, Content: content})
	}
	return out
}

// formatUserContent wraps content in the stdin/prompt XML contract when
// piped accompanied it, matching the wire format a non-passthrough user
// turn always carries; content with no piped stdin passes through
// unchanged.
func formatUserContent(content string, piped *string) string {
	if piped == nil {
		return content
	}
	return "<stdin_content>\n" + *piped + "\n</stdin_content>\n<prompt>\n" + content + "\n</prompt>"
}

// mergeConsecutiveSameRole enforces the strict alternation providers
// expect: adjacent same-role turns are joined with a blank line, and
// empty turns (an excluded pair, a piped-only record with no prose) are
// dropped rather than sent as a blank message.
func mergeConsecutiveSameRole(msgs []Message) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		if len(out) > 0 && out[len(out)-1].Role == m.Role {
			out[len(out)-1].Content += "\n\n" + m.Content
			continue
		}
		out = append(out, m)
	}
	return out
}
