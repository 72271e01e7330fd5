package main

import (
	"fmt"
	"io"

	"github.com/Brownie44l1/birdid/internal/model"
	"github.com/Brownie44l1/birdid/internal/species"
	"github.com/anthonynsimon/bild/imgio"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newPredictCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "predict <image>...",
		Short: "Classify image files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loader := a.loader()
			defer loader.Close()

			p, err := predictor(loader)
			if err != nil {
				return modelError(err)
			}

			for _, path := range args {
				img, err := imgio.Open(path)
				if err != nil {
					return fmt.Errorf("failed to open %s: %w", path, err)
				}

				result, err := p.Predict(img)
				if err != nil {
					return fmt.Errorf("failed to predict %s: %w", path, err)
				}

				a.log.Debug("predicted", zap.String("path", path), zap.String("class", result.Label.String()))
				a.printResult(cmd.OutOrStdout(), path, result)
			}
			return nil
		},
	}
}

func (a *app) printResult(w io.Writer, path string, result *model.PredictionResult) {
	tier := a.cfg.Confidence.Classify(result.Confidence)

	fmt.Fprintf(w, "%s\n預測結果: %s  信心度: %.2f%%\n%s\n", path, result.Label, result.Confidence*100, tier.Message())

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Class", "Probability"})
	for _, prob := range result.Ranked() {
		table.Append([]string{prob.Label.String(), fmt.Sprintf("%.2f%%", prob.Value*100)})
	}
	table.Render()

	if rec, ok := species.Lookup(result.Label); ok {
		fmt.Fprintf(w, "學名: %s\n英文名: %s\n特徵: %s\n分佈: %s\n習性: %s\n\n",
			rec.ScientificName, rec.CommonName, rec.Description, rec.Range, rec.Behavior)
	}
}
