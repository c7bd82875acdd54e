package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "pixelbatch",
		Short:         "Batch pixel-art generation with embedded provenance",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().Bool("verbose", false, "log every job transition")
	root.AddCommand(newDecodeCmd(), newRunCmd())
	return root
}
