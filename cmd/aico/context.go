package main

import (
	"fmt"

	"github.com/jurriaanhof/aico-go/internal/fsutil"
	"github.com/spf13/cobra"
)

func newAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <file> [file...]",
		Short: "Add files to the session's context",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := openEngine()
			if err != nil {
				return err
			}
			defer engine.Cfg.Close()

			valid, hasErrors := fsutil.ValidateInputPaths(engine.SessionRoot, args, true)
			if hasErrors && len(valid) == 0 {
				return fmt.Errorf("no valid files to add")
			}

			existing := make(map[string]bool, len(engine.View.ContextFiles))
			for _, p := range engine.View.ContextFiles {
				existing[p] = true
			}

			added := 0
			for _, p := range valid {
				if existing[p] {
					continue
				}
				engine.View.ContextFiles = append(engine.View.ContextFiles, p)
				existing[p] = true
				added++
			}

			if added == 0 {
				fmt.Println("nothing new to add")
				return nil
			}
			if err := engine.SaveView(); err != nil {
				return err
			}
			fmt.Printf("added %d file(s) to context\n", added)
			return nil
		},
	}
}

func newDropCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drop <file> [file...]",
		Short: "Remove files from the session's context",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := openEngine()
			if err != nil {
				return err
			}
			defer engine.Cfg.Close()

			valid, _ := fsutil.ValidateInputPaths(engine.SessionRoot, args, false)
			drop := make(map[string]bool, len(valid))
			for _, p := range valid {
				drop[p] = true
			}

			kept := engine.View.ContextFiles[:0]
			removed := 0
			for _, p := range engine.View.ContextFiles {
				if drop[p] {
					removed++
					continue
				}
				kept = append(kept, p)
			}
			engine.View.ContextFiles = kept

			if removed == 0 {
				fmt.Println("nothing matched")
				return nil
			}
			if err := engine.SaveView(); err != nil {
				return err
			}
			fmt.Printf("dropped %d file(s) from context\n", removed)
			return nil
		},
	}
}
