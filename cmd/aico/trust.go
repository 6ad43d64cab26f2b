package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newTrustCmd stubs addon trust management. Addon discovery and execution
// are external collaborators this module only references through
// interfaces; this command just records the operator's decision so a
// future addon runner has somewhere to read it from.
func newTrustCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trust <addon>",
		Short: "Record an addon as trusted (addon execution is not implemented here)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := openEngine()
			if err != nil {
				return err
			}
			defer engine.Cfg.Close()

			key := "trust." + args[0]
			if err := engine.Cfg.SetConfig(key, "true"); err != nil {
				return err
			}
			fmt.Printf("marked %q as trusted\n", args[0])
			return nil
		},
	}
	return cmd
}
