package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newUndoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "undo",
		Short: "Revert the most recent aico-generated commit",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := openEngine()
			if err != nil {
				return err
			}
			defer engine.Cfg.Close()

			hash, err := engine.Git.Undo()
			if err != nil {
				return err
			}
			fmt.Printf("reverted %s\n", hash[:8])
			return nil
		},
	}
}

func newRedoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "redo",
		Short: "Re-apply the most recently undone aico commit",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := openEngine()
			if err != nil {
				return err
			}
			defer engine.Cfg.Close()

			hash, err := engine.Git.Redo()
			if err != nil {
				return err
			}
			fmt.Printf("re-applied %s\n", hash[:8])
			return nil
		},
	}
}
