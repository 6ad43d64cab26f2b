package chatui

import (
	"fmt"
	"strings"

	"github.com/jurriaanhof/aico-go/internal/session"
)

// PrintHistory prints up to the last n pairs of the active session.
func PrintHistory(e *Engine, n int) error {
	summary := session.SummarizeActiveWindow(e.View)
	if summary.ActivePairs == 0 {
		fmt.Println("\033[90mNo history yet\033[0m")
		return nil
	}

	start := 0
	if summary.ActivePairs > n {
		start = summary.ActivePairs - n
	}

	for i := start; i < summary.ActivePairs; i++ {
		pairIndex := e.View.HistoryStartPair + i
		pair, err := session.FetchPair(e.Store, e.View, pairIndex)
		if err != nil {
			continue
		}
		fmt.Printf("\033[36m[%d] you:\033[0m %s\n", pair.PairIndex, truncate(pair.User.Record.Content, 100))
		fmt.Printf("\033[32m[%d] aico:\033[0m %s\n", pair.PairIndex, truncate(pair.Assistant.Record.Content, 100))
	}
	return nil
}

// PrintStatus prints the current session, provider, and git summary.
func PrintStatus(e *Engine) error {
	summary := session.SummarizeActiveWindow(e.View)

	fmt.Println("\n\033[33mSession status:\033[0m")
	fmt.Printf("  Model: %s\n", e.View.Model)
	fmt.Printf("  Context files: %d\n", len(e.View.ContextFiles))
	fmt.Printf("  Pairs in window: %d (sent: %d, excluded: %d)\n",
		summary.ActivePairs, summary.PairsSent, summary.ExcludedInWindow)
	if summary.HasDangling {
		fmt.Println("  \033[33m⚠ a pending turn never received a response\033[0m")
	}

	if p := e.Registry.Current(); p != nil {
		fmt.Printf("  Provider: %s\n", p.Name())
	}

	if e.Git.IsRepo() {
		branch, _ := e.Git.CurrentBranch()
		fmt.Printf("  Git branch: %s\n", branch)
		if e.Git.HasChanges() {
			fmt.Println("  \033[33m⚠ uncommitted changes\033[0m")
		}
	}

	return nil
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}
