package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}
	ctx := newCommandContext(opts)

	rootCmd := &cobra.Command{
		Use:           "tofslices",
		Short:         "Inspect and export axial slices of TOF angiography datasets",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "tofslices.yaml", "Configuration file path (.yaml or .toml)")
	rootCmd.PersistentFlags().StringVar(&opts.root, "root", "", "Dataset root directory (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&opts.testMode, "test", false, "Test mode: load TOF volumes only, no label")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(newInspectCommand(ctx))
	rootCmd.AddCommand(newShowCommand(ctx))
	rootCmd.AddCommand(newExportCommand(ctx))
	rootCmd.AddCommand(newSlicesCommand(ctx))
	rootCmd.AddCommand(newManifestCommand(ctx))
	rootCmd.AddCommand(newEpochCommand(ctx))
	rootCmd.AddCommand(newConfigCommand())

	return rootCmd
}
