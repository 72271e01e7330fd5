package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/Brownie44l1/birdid/internal/dataset"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v7"
	"github.com/vbauerster/mpb/v7/decor"
	"go.uber.org/zap"
)

var errNotReady = errors.New("dataset not ready: some classes have too few training images")

func newDatasetCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dataset",
		Short: "Prepare the training image layout",
	}

	pflags := cmd.PersistentFlags()
	pflags.String("root", "", "Dataset root directory")
	a.v.BindPFlag("dataset.root", pflags.Lookup("root"))

	cmd.AddCommand(
		&cobra.Command{
			Use:   "init",
			Short: "Create the train/test directories for every class",
			RunE: func(cmd *cobra.Command, args []string) error {
				layout := dataset.Layout{Root: a.cfg.Dataset.Root}
				dirs, err := layout.Init()
				if err != nil {
					return err
				}
				for _, dir := range dirs {
					fmt.Fprintf(cmd.OutOrStdout(), "  ✓ %s\n", dir)
				}
				a.log.Info("dataset layout created", zap.String("root", layout.Root), zap.Int("dirs", len(dirs)))
				return nil
			},
		},
		&cobra.Command{
			Use:   "check",
			Short: "Count images per class and report readiness",
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.checkDataset(cmd)
			},
		},
		newSplitCmd(a),
	)

	return cmd
}

func (a *app) checkDataset(cmd *cobra.Command) error {
	layout := dataset.Layout{Root: a.cfg.Dataset.Root}
	counts, ready, err := layout.Check(dataset.Thresholds{
		MinTrain:         a.cfg.Dataset.MinTrain,
		RecommendedTrain: a.cfg.Dataset.RecommendedTrain,
	})
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"Class", "Train", "Test", "Status"})
	for _, c := range counts {
		status := "✓ 訓練資料充足"
		switch c.Status {
		case dataset.StatusInsufficient:
			status = fmt.Sprintf("⚠️ 訓練資料不足（建議至少 %d 張）", a.cfg.Dataset.RecommendedTrain)
		case dataset.StatusBelowRecommended:
			status = "⚠️ 建議增加更多訓練資料"
		}
		if c.Test < a.cfg.Dataset.MinTest {
			status += fmt.Sprintf("，測試資料少於 %d 張", a.cfg.Dataset.MinTest)
		}
		table.Append([]string{c.Label.String(), strconv.Itoa(c.Train), strconv.Itoa(c.Test), status})
	}
	table.Render()

	if !ready {
		return errNotReady
	}
	fmt.Fprintln(cmd.OutOrStdout(), "✓ 資料準備完成！可以開始訓練模型。")
	return nil
}

func newSplitCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "split",
		Short: "Verify images, hold out a validation split and write the manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			layout := dataset.Layout{Root: a.cfg.Dataset.Root}

			total, err := layout.Total()
			if err != nil {
				return err
			}

			opts := dataset.SplitOptions{
				ValidationSplit: a.cfg.Dataset.ValidationSplit,
				Seed:            a.cfg.Dataset.Seed,
			}

			var (
				progress *mpb.Progress
				bar      *mpb.Bar
			)
			if total > 0 {
				progress = mpb.New(mpb.WithWidth(48), mpb.WithOutput(cmd.ErrOrStderr()))
				bar = progress.AddBar(int64(total),
					mpb.PrependDecorators(decor.Name("verifying "), decor.CountersNoUnit("%d / %d")),
					mpb.AppendDecorators(decor.Percentage()),
				)
				opts.Progress = func(string) { bar.Increment() }
			}

			m, err := layout.Split(opts)
			if progress != nil {
				if err != nil {
					bar.Abort(false)
				}
				progress.Wait()
			}
			if err != nil {
				return err
			}

			path := filepath.Join(layout.Root, dataset.ManifestFile)
			if err := dataset.WriteManifest(path, m); err != nil {
				return fmt.Errorf("failed to write manifest: %w", err)
			}

			for _, w := range m.Skipped {
				a.log.Warn("skipped undecodable image", zap.String("path", w))
			}

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"Index", "Class", "Train", "Validation", "Test"})
			for _, name := range m.Classes {
				table.Append([]string{
					strconv.Itoa(m.ClassIndices[name]),
					name,
					strconv.Itoa(len(m.Train[name])),
					strconv.Itoa(len(m.Validation[name])),
					strconv.Itoa(len(m.Test[name])),
				})
			}
			table.Render()
			fmt.Fprintf(cmd.OutOrStdout(), "manifest written to %s\n", path)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.Float64("validation-split", 0.2, "Fraction of training images held out for validation")
	flags.Int64("seed", 42, "Shuffle seed")
	a.v.BindPFlag("dataset.validation_split", flags.Lookup("validation-split"))
	a.v.BindPFlag("dataset.seed", flags.Lookup("seed"))

	return cmd
}
