package main

import (
	"github.com/jurriaanhof/aico-go/internal/chatui"
	"github.com/spf13/cobra"
)

// runChat is the root command's default action: open the session nearest
// the current directory and hand off to the interactive REPL.
func runChat(cmd *cobra.Command) error {
	engine, err := openEngine()
	if err != nil {
		return err
	}
	defer engine.Cfg.Close()

	repl, err := chatui.NewREPL(engine)
	if err != nil {
		return err
	}
	return repl.Run()
}
