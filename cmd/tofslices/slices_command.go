package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"tofslices/internal/models"
	"tofslices/pkg/nifti"
	"tofslices/pkg/visualization"
)

func newSlicesCommand(ctx *commandContext) *cobra.Command {
	var outDir string
	var axis string
	var sequence string

	cmd := &cobra.Command{
		Use:   "slices <subject>",
		Short: "Write every slice of one subject volume along an axis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.config(cmd)
			if err != nil {
				return err
			}
			ds, err := ctx.openDataset(cmd)
			if err != nil {
				return err
			}

			seq, err := parseSequence(sequence)
			if err != nil {
				return err
			}

			var path string
			for _, subj := range ds.Subjects() {
				if subj.Name == args[0] {
					path = subj.Path(seq)
					break
				}
			}
			if path == "" {
				return fmt.Errorf("subject %q not found under %s", args[0], ds.Root())
			}

			vol, err := nifti.Load(path)
			if err != nil {
				return err
			}

			viewer := visualization.NewViewer(vol)
			dir := filepath.Join(outDir, args[0], seq.Suffix())
			ext := "." + strings.TrimPrefix(strings.ToLower(cfg.Export.Format), ".")
			if err := viewer.SaveSliceSequence(axis, dir, ext); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s-axis slices of %s to %s\n", axis, path, dir)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "volume_slices", "Output directory")
	cmd.Flags().StringVar(&axis, "axis", "z", "Slice axis: x, y or z")
	cmd.Flags().StringVar(&sequence, "sequence", "TOF-orig", "Volume to slice: TOF-orig, TOF-pre or seg")
	return cmd
}

func parseSequence(name string) (models.SequenceType, error) {
	for _, seq := range models.TrainSequences {
		if strings.EqualFold(name, seq.String()) || strings.EqualFold(name, seq.Suffix()) {
			return seq, nil
		}
	}
	return 0, fmt.Errorf("unknown sequence %q", name)
}
