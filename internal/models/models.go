// Package models holds the data types shared by the history store, the
// session view, the stream parser, and the chronology engine.
package models

import "time"

// Role identifies who produced a history record.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Mode identifies how a turn was generated.
type Mode string

const (
	ModeConversation Mode = "conversation"
	ModeDiff         Mode = "diff"
	ModeRaw          Mode = "raw"
)

// TokenUsage carries optional provider token accounting.
type TokenUsage struct {
	PromptTokens     uint32   `json:"prompt_tokens"`
	CompletionTokens uint32   `json:"completion_tokens"`
	TotalTokens      uint32   `json:"total_tokens"`
	CachedTokens     *uint32  `json:"cached_tokens,omitempty"`
	ReasoningTokens  *uint32  `json:"reasoning_tokens,omitempty"`
	Cost             *float64 `json:"cost,omitempty"`
}

// DisplayItemKind discriminates the closed set of DisplayItem payloads.
type DisplayItemKind string

const (
	DisplayMarkdown DisplayItemKind = "markdown"
	DisplayDiff     DisplayItemKind = "diff"
)

// DisplayItem is a tagged union over rendered content. Go has no enum
// with payload, so Kind discriminates which field is populated.
type DisplayItem struct {
	Kind    DisplayItemKind `json:"type"`
	Content string          `json:"content"`
}

func Markdown(text string) DisplayItem { return DisplayItem{Kind: DisplayMarkdown, Content: text} }
func Diff(text string) DisplayItem     { return DisplayItem{Kind: DisplayDiff, Content: text} }

// DerivedContent is the cached, recomputable rendering of a record.
type DerivedContent struct {
	UnifiedDiff     *string       `json:"unified_diff,omitempty"`
	DisplayContent  []DisplayItem `json:"display_content,omitempty"`
}

// HistoryRecord is one immutable entry in the append-only record store.
type HistoryRecord struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Mode      Mode      `json:"mode"`
	Timestamp time.Time `json:"timestamp"`

	Passthrough  bool    `json:"passthrough,omitempty"`
	PipedContent *string `json:"piped_content,omitempty"`

	// Assistant-only optional metadata.
	Model      *string         `json:"model,omitempty"`
	TokenUsage *TokenUsage     `json:"token_usage,omitempty"`
	Cost       *float64        `json:"cost,omitempty"`
	DurationMs *uint64         `json:"duration_ms,omitempty"`
	Derived    *DerivedContent `json:"derived,omitempty"`

	// Edit lineage: global index of the older record this one supersedes.
	EditOf *int `json:"edit_of,omitempty"`
}

// SessionPointer is the small on-disk file (".ai_session.json") that
// indirects to the active view file.
type SessionPointer struct {
	Type string `json:"type"`
	Path string `json:"path"`
}

const SessionPointerType = "aico_session_pointer_v1"

// SessionView is the mutable, atomically-rewritten session state.
type SessionView struct {
	Model            string    `json:"model"`
	ContextFiles     []string  `json:"context_files"`
	MessageIndices   []int     `json:"message_indices"`
	HistoryStartPair int       `json:"history_start_pair"`
	ExcludedPairs    []int     `json:"excluded_pairs"`
	CreatedAt        time.Time `json:"created_at"`
}

// ContextFile is a single loaded context file with its mtime.
type ContextFile struct {
	Path    string
	Content string
	Mtime   float64
}

// MessageWithID pairs a record with its global store id.
type MessageWithID struct {
	Record HistoryRecord
	ID     int
}

// MessageWithContext annotates a record with its position in the view.
type MessageWithContext struct {
	Record      HistoryRecord
	GlobalIndex int
	PairIndex   int
	IsExcluded  bool
}

// MessagePair is a resolved user/assistant pair addressed by pair index.
type MessagePair struct {
	PairIndex int
	User      MessageWithID
	Assistant MessageWithID
}

// ActiveWindowSummary reports on the active slice of a session's history.
type ActiveWindowSummary struct {
	ActivePairs      int
	ActiveStartID    int
	ActiveEndID      int
	ExcludedInWindow int
	PairsSent        int
	HasDangling      bool
}

// AIPatch is one parsed SEARCH/REPLACE edit block.
type AIPatch struct {
	LLMFilePath    string
	SearchContent  string
	ReplaceContent string
	Indent         string
	RawBlock       string
}

// ProcessedDiffBlock is a patch that has already been resolved to a
// unified diff against the on-disk or overlay baseline.
type ProcessedDiffBlock struct {
	LLMFilePath string `json:"llm_file_path"`
	UnifiedDiff string `json:"unified_diff"`
}

// FileHeader marks a "File: path" context switch in the stream.
type FileHeader struct {
	LLMFilePath string
}

// WarningMessage is a non-fatal parser diagnostic.
type WarningMessage struct {
	Text string
}

// UnparsedBlock is raw text the parser could not classify.
type UnparsedBlock struct {
	Text string
}

// StreamYieldKind discriminates the StreamYieldItem union.
type StreamYieldKind string

const (
	YieldText            StreamYieldKind = "text"
	YieldIncompleteBlock StreamYieldKind = "incomplete_block"
	YieldFileHeader      StreamYieldKind = "file_header"
	YieldDiffBlock       StreamYieldKind = "diff_block"
	YieldPatch           StreamYieldKind = "patch"
	YieldWarning         StreamYieldKind = "warning"
	YieldUnparsed        StreamYieldKind = "unparsed"
)

// StreamYieldItem is one unit of output from the Stream Parser. Only the
// field matching Kind is populated; this mirrors the closed Rust enum
// using Go's idiomatic discriminated-struct pattern.
type StreamYieldItem struct {
	Kind             StreamYieldKind
	Text             string
	IncompleteBlock  string
	FileHeader       FileHeader
	DiffBlock        ProcessedDiffBlock
	Patch            AIPatch
	Warning          WarningMessage
	Unparsed         UnparsedBlock
}

func (i StreamYieldItem) IsWarning() bool { return i.Kind == YieldWarning }

// ToDisplayItem converts a yielded item to a renderable DisplayItem, if
// any. IncompleteBlock only renders once the stream is finalized.
func (i StreamYieldItem) ToDisplayItem(isFinal bool) (DisplayItem, bool) {
	switch i.Kind {
	case YieldText:
		return Markdown(i.Text), true
	case YieldFileHeader:
		return Markdown("File: `" + i.FileHeader.LLMFilePath + "`\n"), true
	case YieldDiffBlock:
		return Diff(i.DiffBlock.UnifiedDiff), true
	case YieldWarning:
		return Markdown("[!WARNING]\n" + i.Warning.Text + "\n\n"), true
	case YieldUnparsed:
		return Markdown("\n`````text\n" + i.Unparsed.Text + "\n`````\n"), true
	case YieldIncompleteBlock:
		if isFinal {
			return Markdown(i.IncompleteBlock), true
		}
		return DisplayItem{}, false
	case YieldPatch:
		return DisplayItem{}, false
	}
	return DisplayItem{}, false
}

// StatusResponse is the payload for the status command.
type StatusResponse struct {
	SessionName  string   `json:"session_name"`
	Model        string   `json:"model"`
	ContextFiles []string `json:"context_files"`
	TotalTokens  *uint32  `json:"total_tokens,omitempty"`
	TotalCost    *float64 `json:"total_cost,omitempty"`
}

// InteractionResult is the outcome of one turn run through the engine.
type InteractionResult struct {
	Content       string
	DisplayItems  []DisplayItem
	TokenUsage    *TokenUsage
	Cost          *float64
	DurationMs    uint64
	UnifiedDiff   *string
}

// InteractionConfig configures how a single turn should be run.
type InteractionConfig struct {
	Mode          Mode
	NoHistory     bool
	Passthrough   bool
	ModelOverride *string
}

// ContextState is the result of partitioning context files into the
// static (baseline) and floating (recently changed) sets.
type ContextState struct {
	StaticFiles   []ContextFile
	FloatingFiles []ContextFile
	SpliceIdx     int
}

// FormatFileContextXML renders one context file as an XML-ish block for
// inclusion in a prompt, matching the literal format the provider sees.
func FormatFileContextXML(path, content string) string {
	block := "  <file path=\"" + path + "\">\n"
	block += content
	if len(content) == 0 || content[len(content)-1] != '\n' {
		block += "\n"
	}
	block += "  </file>\n"
	return block
}
