package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"tofslices/pkg/visualization"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var outDir string
	var format string
	var size int
	var seed int64

	cmd := &cobra.Command{
		Use:   "export <index>...",
		Short: "Write the channels of one or more slices as images",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.config(cmd)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("format") {
				format = cfg.Export.Format
			}
			if !cmd.Flags().Changed("size") {
				size = cfg.Export.Size
			}
			ext := "." + strings.TrimPrefix(strings.ToLower(format), ".")

			ds, err := ctx.openDataset(cmd)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(outDir, 0755); err != nil {
				return fmt.Errorf("create output directory: %w", err)
			}

			out := cmd.OutOrStdout()
			for _, arg := range args {
				index, err := strconv.Atoi(arg)
				if err != nil {
					return fmt.Errorf("invalid index %q: %w", arg, err)
				}
				sample, err := loadSample(cmd, ds, index, seed)
				if err != nil {
					return err
				}

				base := strings.TrimSuffix(filepath.Base(sample.ID), ".nii")
				for _, ch := range channels(ds, sample) {
					filename := filepath.Join(outDir, fmt.Sprintf("%s_%s%s", base, ch.name, ext))
					img := visualization.PlaneImage(ch.plane)
					if err := visualization.SaveImage(img, filename, size); err != nil {
						return fmt.Errorf("save %s: %w", filename, err)
					}
					fmt.Fprintln(out, filename)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "exported_slices", "Output directory")
	cmd.Flags().StringVar(&format, "format", "png", "Image format: png, jpg or tif")
	cmd.Flags().IntVar(&size, "size", 0, "Resize so the longer side has this many pixels")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Transform seed for every exported sample (default: drawn from the dataset)")
	return cmd
}
