package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"tofslices/internal/models"
)

func newInspectCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "List the subjects found under the dataset root",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := ctx.openDataset(cmd)
			if err != nil {
				return err
			}

			headers := []string{"#", "Subject"}
			for _, seq := range models.TrainSequences {
				headers = append(headers, seq.String())
			}
			headers = append(headers, "Slices")
			aligns := []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight}

			var rows [][]string
			for i, subj := range ds.Subjects() {
				row := []string{strconv.Itoa(i), subj.Name}
				for _, seq := range models.TrainSequences {
					row = append(row, fileStatus(subj.Path(seq)))
				}
				row = append(row, strconv.Itoa(subj.Slices))
				rows = append(rows, row)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(headers, rows, aligns))
			mode := "train"
			if ds.TestMode() {
				mode = "test"
			}
			fmt.Fprintf(out, "Root: %s\nMode: %s\nSubjects: %d\nSlices: %d\n", ds.Root(), mode, len(rows), ds.Len())
			return nil
		},
	}
}

// fileStatus reports the extension found on disk, or "missing"
func fileStatus(path string) string {
	if _, err := os.Stat(path); err != nil {
		return "missing"
	}
	if strings.HasSuffix(path, ".gz") {
		return "nii.gz"
	}
	return "nii"
}
