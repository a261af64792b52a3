package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"

	"tofslices/internal/models"
	"tofslices/pkg/dataset"
	"tofslices/pkg/visualization"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	var histogramPath string
	var seed int64

	cmd := &cobra.Command{
		Use:   "show <index>",
		Short: "Load one slice and print its shape and intensity statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid index %q: %w", args[0], err)
			}

			ds, err := ctx.openDataset(cmd)
			if err != nil {
				return err
			}

			sample, err := loadSample(cmd, ds, index, seed)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			c, h, w := sample.Image.Shape()
			lc, lh, lw := sample.Label.Shape()
			fmt.Fprintf(out, "ID: %s\nSubject: %s (#%d)\nSlice: %d\n", sample.ID, ds.Subjects()[sample.Subject].Name, sample.Subject, sample.Slice)
			fmt.Fprintf(out, "Image: %dx%dx%d\nLabel: %dx%dx%d\n", c, h, w, lc, lh, lw)

			headers := []string{"Channel", "Mean", "Std", "Min", "Max", "Foreground"}
			aligns := []columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight}
			var rows [][]string
			for _, ch := range channels(ds, sample) {
				st := dataset.Stats(ch.plane)
				rows = append(rows, []string{
					ch.name,
					strconv.FormatFloat(st.Mean, 'f', 3, 64),
					strconv.FormatFloat(st.StdDev, 'f', 3, 64),
					strconv.FormatFloat(st.Min, 'f', 3, 64),
					strconv.FormatFloat(st.Max, 'f', 3, 64),
					strconv.FormatFloat(st.Foreground*100, 'f', 2, 64) + "%",
				})
			}
			fmt.Fprintln(out, renderTable(headers, rows, aligns))

			if histogramPath != "" {
				if err := visualization.SaveHistogram(sample.Image.Channel(0), sample.ID, histogramPath, 64); err != nil {
					return err
				}
				fmt.Fprintf(out, "Histogram saved to %s\n", histogramPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&histogramPath, "histogram", "", "Write an intensity histogram of the first channel to this file")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Transform seed for this sample (default: drawn from the dataset)")
	return cmd
}

// loadSample reads one item, using the --seed flag when it was given
func loadSample(cmd *cobra.Command, ds *dataset.Dataset, index int, seed int64) (models.Sample, error) {
	if cmd.Flags().Changed("seed") {
		return ds.ItemWithSeed(index, seed)
	}
	return ds.Item(index)
}

// namedPlane pairs a channel with a display name
type namedPlane struct {
	name  string
	plane *mat.Dense
}

// channels lists the image channels followed by the label, in display order
func channels(ds *dataset.Dataset, s models.Sample) []namedPlane {
	seqs := ds.Sequences()
	c, _, _ := s.Image.Shape()

	out := make([]namedPlane, 0, c+1)
	for i := 0; i < c; i++ {
		out = append(out, namedPlane{name: seqs[i].String(), plane: s.Image.Channel(i)})
	}
	if !ds.TestMode() {
		out = append(out, namedPlane{name: "label", plane: s.Label.Channel(0)})
	}
	return out
}
