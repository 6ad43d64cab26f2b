package chatui

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/jurriaanhof/aico-go/internal/models"
	"github.com/chzyer/readline"
)

// REPL drives the interactive read-eval-print loop on top of an Engine.
type REPL struct {
	engine *Engine
	rl     *readline.Instance
	ctx    context.Context
	cancel context.CancelFunc

	debugMode    bool
	shutdownOnce sync.Once
}

// NewREPL wires a readline prompt to engine, with its history file
// stored alongside the session root's .aico directory.
func NewREPL(engine *Engine) (*REPL, error) {
	ctx, cancel := context.WithCancel(context.Background())

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "\033[36m>\033[0m ",
		HistoryFile:     filepath.Join(engine.SessionRoot, ".aico", "readline_history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("readline: %w", err)
	}

	return &REPL{engine: engine, rl: rl, ctx: ctx, cancel: cancel}, nil
}

// Run starts the loop, blocking until the user exits or EOF/SIGINT.
func (r *REPL) Run() error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		r.shutdown()
	}()

	r.printWelcome()

	for {
		line, err := r.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			if err == io.EOF {
				break
			}
			return err
		}

		intent := ParseIntent(line)
		if intent == nil {
			continue
		}

		if err := r.handle(intent); err != nil {
			fmt.Printf("\033[31mError: %v\033[0m\n", err)
		}
	}

	r.shutdown()
	return nil
}

func (r *REPL) handle(intent *Intent) error {
	switch intent.Type {
	case IntentExit:
		r.shutdown()
		os.Exit(0)
	case IntentHelp:
		r.printHelp()
	case IntentHistory:
		return r.showHistory()
	case IntentStatus:
		return r.showStatus()
	case IntentDiff:
		return r.showDiff()
	case IntentUndo:
		return r.handleUndo()
	case IntentRedo:
		return r.handleRedo()
	case IntentSwitch:
		return r.handleSwitch(intent.Args)
	case IntentDebug:
		r.toggleDebug()
	case IntentGen:
		return r.runTurn(strings.Join(intent.Args, " "), models.ModeDiff)
	case IntentAsk:
		return r.runTurn(intent.Raw, models.ModeConversation)
	default:
		fmt.Printf("unknown command: /%s (try /help)\n", intent.Command)
	}
	return nil
}

func (r *REPL) runTurn(content string, mode models.Mode) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("nothing to send")
	}

	result, err := r.engine.RunTurn(r.ctx, content, mode, func(d models.DisplayItem) {
		fmt.Print(d.Content)
	})
	if err != nil {
		return err
	}
	fmt.Println()
	if result.UnifiedDiff != nil && *result.UnifiedDiff != "" {
		fmt.Println("\033[90m--- applied diff ---\033[0m")
	}
	return nil
}

func (r *REPL) handleUndo() error {
	hash, err := r.engine.Git.Undo()
	if err != nil {
		return err
	}
	fmt.Printf("\033[32mReverted commit %s\033[0m\n", short(hash))
	return nil
}

func (r *REPL) handleRedo() error {
	hash, err := r.engine.Git.Redo()
	if err != nil {
		return err
	}
	fmt.Printf("\033[32mRe-applied commit %s\033[0m\n", short(hash))
	return nil
}

func (r *REPL) handleSwitch(args []string) error {
	if len(args) == 0 {
		fmt.Println("\n\033[33mAvailable providers:\033[0m")
		for _, p := range r.engine.Registry.List() {
			status := "\033[31m✗\033[0m"
			if p.IsAvailable() {
				status = "\033[32m✓\033[0m"
			}
			fmt.Printf("  %s %s\n", status, p.Name())
		}
		return nil
	}

	if err := r.engine.Registry.SetCurrent(args[0]); err != nil {
		return err
	}
	fmt.Printf("\033[32mSwitched to %s\033[0m\n", args[0])
	return nil
}

func (r *REPL) toggleDebug() {
	r.debugMode = !r.debugMode
	if r.debugMode {
		r.engine.Modules.EnableDebug()
		fmt.Println("\033[33mDebug mode enabled\033[0m")
	} else {
		r.engine.Modules.DisableDebug()
		fmt.Println("\033[33mDebug mode disabled\033[0m")
	}
}

func (r *REPL) showHistory() error {
	return PrintHistory(r.engine, 20)
}

func (r *REPL) showStatus() error {
	return PrintStatus(r.engine)
}

func (r *REPL) showDiff() error {
	if !r.engine.Git.IsRepo() {
		return fmt.Errorf("not a git repository")
	}
	diff, err := r.engine.Git.GetLastDiff()
	if err != nil || diff == "" {
		diff, err = r.engine.Git.GetDiff("")
		if err != nil {
			return err
		}
	}
	if diff == "" {
		fmt.Println("\033[90mNo changes\033[0m")
		return nil
	}
	fmt.Println(diff)
	return nil
}

func (r *REPL) printWelcome() {
	fmt.Println()
	fmt.Println("\033[36maico\033[0m - terminal coding assistant")
	if p := r.engine.Registry.Current(); p != nil {
		if p.IsAvailable() {
			fmt.Printf("\033[32m✓ Provider: %s\033[0m\n", p.Name())
		} else {
			fmt.Printf("\033[31m✗ Provider %s not configured\033[0m\n", p.Name())
		}
	}
	if r.engine.Git.IsRepo() {
		branch, _ := r.engine.Git.CurrentBranch()
		fmt.Printf("\033[32m✓ Git: %s\033[0m\n", branch)
	}
	fmt.Println("Type your request, \"gen ...\" for diff mode, or /help for commands.")
	fmt.Println()
}

func (r *REPL) printHelp() {
	fmt.Print(`
Commands:
  /help       show this help
  /history    show recent pairs
  /status     show session status
  /diff       show last changes
  /undo       revert the last aico commit
  /redo       re-apply a reverted aico commit
  /model      list/switch providers
  /debug      toggle debug mode
  /exit       exit

Anything else is sent as a conversation turn; "gen <request>" runs a
diff-mode turn that may write files.
`)
}

func (r *REPL) shutdown() {
	r.shutdownOnce.Do(func() {
		fmt.Println("\n\033[33mbye\033[0m")
		r.engine.Modules.Emit("session_end", map[string]interface{}{})
		r.cancel()
		r.rl.Close()
		r.engine.Cfg.Close()
	})
}

func short(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}
