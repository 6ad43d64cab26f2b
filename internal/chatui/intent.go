package chatui

import (
	"strings"
)

// IntentType classifies one line of REPL input.
type IntentType string

const (
	IntentAsk      IntentType = "ask"      // conversation-mode turn
	IntentGen      IntentType = "gen"      // diff-mode turn
	IntentHelp     IntentType = "help"
	IntentHistory  IntentType = "history"
	IntentStatus   IntentType = "status"
	IntentDiff     IntentType = "diff"
	IntentUndo     IntentType = "undo"
	IntentRedo     IntentType = "redo"
	IntentSwitch   IntentType = "switch"
	IntentExit     IntentType = "exit"
	IntentDebug    IntentType = "debug"
	IntentUnknown  IntentType = "unknown"
)

// Intent is one parsed REPL line.
type Intent struct {
	Type    IntentType
	Command string
	Args    []string
	Raw     string
}

// ParseIntent classifies a REPL line. A leading "/" always means a slash
// command; anything else is a model turn, in diff mode if it begins
// with "gen " or just "gen", conversation mode otherwise.
func ParseIntent(input string) *Intent {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil
	}

	if strings.HasPrefix(input, "/") {
		return parseCommand(input)
	}

	if input == "gen" || strings.HasPrefix(input, "gen ") {
		return &Intent{Type: IntentGen, Command: "gen", Args: strings.Fields(input)[1:], Raw: input}
	}

	return &Intent{Type: IntentAsk, Raw: input}
}

func parseCommand(input string) *Intent {
	parts := strings.Fields(input)
	command := strings.TrimPrefix(parts[0], "/")
	args := parts[1:]

	intent := &Intent{Command: command, Args: args, Raw: input}

	switch command {
	case "help", "h":
		intent.Type = IntentHelp
	case "history":
		intent.Type = IntentHistory
	case "status":
		intent.Type = IntentStatus
	case "diff":
		intent.Type = IntentDiff
	case "undo":
		intent.Type = IntentUndo
	case "redo":
		intent.Type = IntentRedo
	case "gen":
		intent.Type = IntentGen
	case "model", "switch":
		intent.Type = IntentSwitch
	case "exit", "quit":
		intent.Type = IntentExit
	case "debug":
		intent.Type = IntentDebug
	default:
		intent.Type = IntentUnknown
	}

	return intent
}
