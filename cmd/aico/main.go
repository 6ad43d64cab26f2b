// Command aico is a terminal coding assistant: a conversational CLI
// that tracks session history, context files, and applies LLM-proposed
// patches to disk with git auto-commit.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "aico",
		Short:   "Terminal coding assistant",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd)
		},
	}

	cmd.AddCommand(
		newInitCmd(),
		newAddCmd(),
		newDropCmd(),
		newAskCmd(),
		newGenCmd(),
		newEditCmd(),
		newHistoryCmd(),
		newLastCmd(),
		newLogCmd(),
		newStatusCmd(),
		newSessionCmd(),
		newUndoCmd(),
		newRedoCmd(),
		newTrustCmd(),
	)

	return cmd
}
