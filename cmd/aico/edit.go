package main

import (
	"fmt"
	"strings"

	"github.com/jurriaanhof/aico-go/internal/chatui"
	"github.com/jurriaanhof/aico-go/internal/models"
	"github.com/jurriaanhof/aico-go/internal/session"
	"github.com/spf13/cobra"
)

func newEditCmd() *cobra.Command {
	var pairIndex int
	var role string

	cmd := &cobra.Command{
		Use:   "edit <new content...>",
		Short: "Revise a prior message, preserving edit lineage",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r models.Role
			switch role {
			case "user":
				r = models.RoleUser
			case "assistant":
				r = models.RoleAssistant
			default:
				return fmt.Errorf("--role must be \"user\" or \"assistant\"")
			}

			engine, err := openEngine()
			if err != nil {
				return err
			}
			defer engine.Cfg.Close()

			files, err := chatui.LoadContextFiles(engine.SessionRoot, engine.View.ContextFiles)
			if err != nil {
				return err
			}

			pair, err := session.EditMessage(
				engine.View, engine.Store, pairIndex, r,
				strings.Join(args, " "),
				chatui.Baseline(files), engine.SessionRoot,
			)
			if err != nil {
				return err
			}

			if err := engine.SaveView(); err != nil {
				return err
			}

			fmt.Printf("revised pair %d's %s message\n", pair.PairIndex, role)
			return nil
		},
	}

	cmd.Flags().IntVar(&pairIndex, "pair", -1, "pair index to revise (negative counts back from the end)")
	cmd.Flags().StringVar(&role, "role", "user", "which half of the pair to revise: user or assistant")
	return cmd
}
