package main

import (
	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "nativectl",
		Short: "Stage and load native artifacts from a manifest",
		Long: `nativectl stages native shared libraries into a private repository
directory and loads them into the current process.

Examples:
  # Write a starter manifest
  nativectl config init -o nativebox.toml

  # Stage and load every artifact, then serve status until interrupted
  nativectl run -c nativebox.toml --serve`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newStageCmd(), newConfigCmd())
	return root
}
