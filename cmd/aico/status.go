package main

import (
	"github.com/jurriaanhof/aico-go/internal/chatui"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the active session, provider, and git status",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := openEngine()
			if err != nil {
				return err
			}
			defer engine.Cfg.Close()
			return chatui.PrintStatus(engine)
		},
	}
}
