package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jurriaanhof/aico-go/internal/models"
	"github.com/jurriaanhof/aico-go/internal/session"
	"github.com/spf13/cobra"
)

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage named session views sharing one session root",
	}
	cmd.AddCommand(newSessionForkCmd(), newSessionSwitchCmd(), newSessionListCmd())
	return cmd
}

// newSessionForkCmd duplicates the active view under a new name and
// repoints the session to it, leaving the original view untouched on
// disk so it can be switched back to later.
func newSessionForkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fork <name>",
		Short: "Branch the active session view under a new name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			pointerPath, ok := session.FindSessionFile(cwd)
			if !ok {
				return fmt.Errorf("no aico session found here or in a parent directory")
			}

			pointer, err := session.LoadPointer(pointerPath)
			if err != nil {
				return err
			}
			currentViewPath := session.ViewPath(pointerPath, *pointer)

			view, err := session.LoadView(currentViewPath)
			if err != nil {
				return err
			}

			sessionRoot := filepath.Dir(pointerPath)
			newViewPath := filepath.Join(sessionRoot, ".aico", name+".json")
			if _, err := os.Stat(newViewPath); err == nil {
				return fmt.Errorf("a view named %q already exists", name)
			}

			if err := session.SaveView(newViewPath, view); err != nil {
				return err
			}

			relPath, err := filepath.Rel(filepath.Dir(pointerPath), newViewPath)
			if err != nil {
				relPath = newViewPath
			}
			newPointer := models.SessionPointer{Type: models.SessionPointerType, Path: relPath}
			if err := session.SavePointer(pointerPath, newPointer); err != nil {
				return err
			}

			fmt.Printf("forked session to %q and switched to it\n", name)
			return nil
		},
	}
}

// newSessionSwitchCmd repoints the session pointer at an existing named
// view without touching either view's contents.
func newSessionSwitchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "switch <name>",
		Short: "Point the session at a different named view",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			pointerPath, ok := session.FindSessionFile(cwd)
			if !ok {
				return fmt.Errorf("no aico session found here or in a parent directory")
			}

			sessionRoot := filepath.Dir(pointerPath)
			targetPath := filepath.Join(sessionRoot, ".aico", name+".json")
			if _, err := os.Stat(targetPath); err != nil {
				return fmt.Errorf("no view named %q", name)
			}

			relPath, err := filepath.Rel(filepath.Dir(pointerPath), targetPath)
			if err != nil {
				relPath = targetPath
			}
			pointer := models.SessionPointer{Type: models.SessionPointerType, Path: relPath}
			if err := session.SavePointer(pointerPath, pointer); err != nil {
				return err
			}

			fmt.Printf("switched to %q\n", name)
			return nil
		},
	}
}

func newSessionListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List named views available under the session root",
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			pointerPath, ok := session.FindSessionFile(cwd)
			if !ok {
				return fmt.Errorf("no aico session found here or in a parent directory")
			}

			pointer, err := session.LoadPointer(pointerPath)
			if err != nil {
				return err
			}
			activeViewPath := session.ViewPath(pointerPath, *pointer)

			dir := filepath.Join(filepath.Dir(pointerPath), ".aico")
			entries, err := os.ReadDir(dir)
			if err != nil {
				return err
			}
			for _, entry := range entries {
				if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
					continue
				}
				marker := " "
				if filepath.Join(dir, entry.Name()) == activeViewPath {
					marker = "*"
				}
				fmt.Printf("%s %s\n", marker, entry.Name())
			}
			return nil
		},
	}
}
