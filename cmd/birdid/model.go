package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

func newModelCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Inspect the model artifact",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "inspect",
		Short: "Resolve and load the artifact, then print its metadata",
		RunE: func(cmd *cobra.Command, args []string) error {
			loader := a.loader()
			defer loader.Close()

			artifact, err := loader.Load()
			if err != nil {
				return modelError(err)
			}

			shape := func(dims []int64) string {
				return "[" + strings.Join(lo.Map(dims, func(d int64, _ int) string {
					return strconv.FormatInt(d, 10)
				}), " ") + "]"
			}

			meta := artifact.Metadata
			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"Field", "Value"})
			table.AppendBulk([][]string{
				{"path", artifact.Path},
				{"format", artifact.Format},
				{"blake3", artifact.Digest},
				{"classes", strings.Join(meta.Classes, ", ")},
				{"input", fmt.Sprintf("%s %s", meta.InputName, shape(meta.InputShape))},
				{"output", fmt.Sprintf("%s %s", meta.OutputName, shape(meta.OutputShape))},
				{"logits", strconv.FormatBool(meta.Logits)},
			})
			table.Render()
			return nil
		},
	})

	return cmd
}
