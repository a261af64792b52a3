package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"tofslices/pkg/manifest"
)

func newManifestCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "manifest <database>",
		Short: "Write the subject records and slice index to a SQLite manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := ctx.openDataset(cmd)
			if err != nil {
				return err
			}

			store, err := manifest.Open(args[0])
			if err != nil {
				return err
			}
			defer store.Close()

			run, err := store.Write(cmd.Context(), ds)
			if err != nil {
				return err
			}

			ctx.log().WithFields(logrus.Fields{
				"run":     run.ID,
				"entries": run.Length,
				"path":    args[0],
			}).Info("Manifest written")
			fmt.Fprintf(cmd.OutOrStdout(), "Run %s: %d entries written to %s\n", run.ID, run.Length, args[0])
			return nil
		},
	}
}
