package main

import (
	"fmt"

	"github.com/danmuck/nativebox/internal/config"
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or check manifests",
	}

	var (
		output string
		force  bool
	)
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.WriteTemplate(output, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", output)
			return nil
		},
	}
	initCmd.Flags().StringVarP(&output, "output", "o", defaultManifest, "manifest path to write")
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing manifest")

	var input string
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Parse and validate a manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := config.LoadManifest(input)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s ok: %d artifacts, loader=%s\n", input, len(m.Artifacts), m.Loader.Kind)
			return nil
		},
	}
	validateCmd.Flags().StringVarP(&input, "input", "i", defaultManifest, "manifest path to check")

	cmd.AddCommand(initCmd, validateCmd)
	return cmd
}
