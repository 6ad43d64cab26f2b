package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jurriaanhof/aico-go/internal/models"
	"github.com/jurriaanhof/aico-go/internal/session"
	"github.com/spf13/cobra"
)

func newInitCmd() *cobra.Command {
	var model string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a new aico session rooted at the current directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}

			if _, ok := session.FindSessionFile(cwd); ok {
				return fmt.Errorf("a session already exists here or in a parent directory")
			}

			pointerPath := filepath.Join(cwd, session.PointerFileName)
			viewPath := filepath.Join(cwd, ".aico", "session.json")

			view := session.NewView(model)
			if err := session.SaveView(viewPath, view); err != nil {
				return err
			}

			relViewPath, err := filepath.Rel(cwd, viewPath)
			if err != nil {
				relViewPath = viewPath
			}
			pointer := models.SessionPointer{Type: models.SessionPointerType, Path: relViewPath}
			if err := session.SavePointer(pointerPath, pointer); err != nil {
				return err
			}

			fmt.Printf("Initialized aico session in %s (model %s)\n", cwd, model)
			return nil
		},
	}

	cmd.Flags().StringVar(&model, "model", defaultModel, "Default model for this session")
	return cmd
}
