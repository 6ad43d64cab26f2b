package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/jurriaanhof/aico-go/internal/models"
	"github.com/spf13/cobra"
)

func newAskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <message...>",
		Short: "Send a conversation-mode turn and print the response",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOneShotTurn(strings.Join(args, " "), models.ModeConversation)
		},
	}
}

func newGenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gen <request...>",
		Short: "Send a diff-mode turn, applying any resulting file changes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOneShotTurn(strings.Join(args, " "), models.ModeDiff)
		},
	}
}

func runOneShotTurn(content string, mode models.Mode) error {
	engine, err := openEngine()
	if err != nil {
		return err
	}
	defer engine.Cfg.Close()

	result, err := engine.RunTurn(context.Background(), content, mode, func(d models.DisplayItem) {
		fmt.Print(d.Content)
	})
	if err != nil {
		return err
	}
	fmt.Println()

	if result.UnifiedDiff != nil && *result.UnifiedDiff != "" {
		fmt.Println("\n--- applied diff ---")
		fmt.Println(*result.UnifiedDiff)
	}
	return nil
}
