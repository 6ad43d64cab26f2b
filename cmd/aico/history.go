package main

import (
	"fmt"

	"github.com/jurriaanhof/aico-go/internal/chatui"
	"github.com/jurriaanhof/aico-go/internal/session"
	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent pairs in the active session window",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := openEngine()
			if err != nil {
				return err
			}
			defer engine.Cfg.Close()
			return chatui.PrintHistory(engine, n)
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of pairs to show")
	return cmd
}

func newLastCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "last",
		Short: "Show the most recent pair in full",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := openEngine()
			if err != nil {
				return err
			}
			defer engine.Cfg.Close()

			summary := session.SummarizeActiveWindow(engine.View)
			if summary.ActivePairs == 0 {
				fmt.Println("no history yet")
				return nil
			}

			lastIndex := engine.View.HistoryStartPair + summary.ActivePairs - 1
			pair, err := session.FetchPair(engine.Store, engine.View, lastIndex)
			if err != nil {
				return err
			}

			fmt.Printf("you:\n%s\n\naico:\n%s\n", pair.User.Record.Content, pair.Assistant.Record.Content)
			if pair.Assistant.Record.Derived != nil && pair.Assistant.Record.Derived.UnifiedDiff != nil {
				fmt.Printf("\n--- diff ---\n%s\n", *pair.Assistant.Record.Derived.UnifiedDiff)
			}
			return nil
		},
	}
}

func newLogCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show recent git commits, flagging aico-generated ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := openEngine()
			if err != nil {
				return err
			}
			defer engine.Cfg.Close()

			if !engine.Git.IsRepo() {
				return fmt.Errorf("not a git repository")
			}

			commits, err := engine.Git.Log(n)
			if err != nil {
				return err
			}
			for _, c := range commits {
				marker := " "
				if c.IsAico {
					marker = "*"
				}
				fmt.Printf("%s %s %s  %s\n", marker, c.Hash[:8], c.Timestamp.Format("2006-01-02 15:04"), c.Message)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&n, "n", 10, "number of commits to show")
	return cmd
}
