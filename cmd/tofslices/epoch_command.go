package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"tofslices/pkg/gomlxds"
)

func newEpochCommand(ctx *commandContext) *cobra.Command {
	var batchSize int
	var shuffleSeed int64
	var dropIncomplete bool

	cmd := &cobra.Command{
		Use:   "epoch",
		Short: "Run one epoch of gomlx batches and report their shapes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := ctx.openDataset(cmd)
			if err != nil {
				return err
			}

			var opts []gomlxds.Option
			if cmd.Flags().Changed("shuffle") {
				opts = append(opts, gomlxds.WithShuffle(shuffleSeed))
			}
			if dropIncomplete {
				opts = append(opts, gomlxds.WithDropIncomplete())
			}
			batcher, err := gomlxds.New(ds, batchSize, opts...)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			batches, examples := 0, 0
			for {
				spec, inputs, labels, err := batcher.Yield()
				if errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					return err
				}
				ids := spec.([]string)
				fmt.Fprintf(out, "batch %d: inputs %s labels %s first %s\n",
					batches, inputs[0].Shape(), labels[0].Shape(), ids[0])
				batches++
				examples += len(ids)
			}
			fmt.Fprintf(out, "%s: %d batches, %d examples\n", batcher.Name(), batches, examples)
			return nil
		},
	}

	cmd.Flags().IntVar(&batchSize, "batch-size", 16, "Examples per batch")
	cmd.Flags().Int64Var(&shuffleSeed, "shuffle", 0, "Shuffle the epoch with this seed")
	cmd.Flags().BoolVar(&dropIncomplete, "drop-incomplete", false, "Skip the last batch if it is not full")
	return cmd
}
