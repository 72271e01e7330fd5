package main

import (
	"errors"
	"fmt"

	"github.com/Brownie44l1/birdid/internal/config"
	"github.com/Brownie44l1/birdid/internal/handlers"
	"github.com/Brownie44l1/birdid/internal/logger"
	"github.com/Brownie44l1/birdid/internal/model"
	"github.com/Brownie44l1/birdid/internal/species"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// app carries what every subcommand needs once flags and config are read.
type app struct {
	v   *viper.Viper
	cfg *config.Config
	log *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	cmd := &cobra.Command{
		Use:           "birdid",
		Short:         "Taiwan myna classifier",
		Long:          "Classifies photos of Javan, Common and Great mynas with a transfer-learning model and prepares the training dataset.",
		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			configFile, _ := cmd.Flags().GetString("config")
			envFile, _ := cmd.Flags().GetString("env-file")

			cfg, err := config.Load(a.v, configFile, envFile)
			if err != nil {
				return err
			}
			a.cfg = cfg

			a.log, err = logger.New(cfg)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}

	pflags := cmd.PersistentFlags()
	pflags.String("config", "", "Path to a YAML config file")
	pflags.String("env-file", "", "Path to a .env file (default .env when present)")
	pflags.String("models-dir", "", "Directory holding the model artifact")
	a.v.BindPFlag("model.dir", pflags.Lookup("models-dir"))

	cmd.AddCommand(
		newServeCmd(a),
		newPredictCmd(a),
		newModelCmd(a),
		newDatasetCmd(a),
	)
	cmd.CompletionOptions.HiddenDefaultCmd = true

	return cmd
}

func (a *app) loader() *model.Loader {
	opener := &model.ORTOpener{LibraryPath: a.cfg.Model.OnnxLibrary}
	return model.NewLoader(a.cfg.Model.Dir, a.cfg.Model.Name, opener, a.log)
}

// predictor loads the artifact through l and binds it to the trained label
// order.
func predictor(l *model.Loader) (*model.Predictor, error) {
	artifact, err := l.Load()
	if err != nil {
		return nil, err
	}
	return model.NewPredictor(artifact, species.All())
}

// modelError keeps the cause inspectable while printing the same text the
// web page shows.
func modelError(err error) error {
	if errors.Is(err, model.ErrArtifactMissing) {
		return fmt.Errorf("%s: %w", handlers.ModelErrorMessage(err), err)
	}
	return fmt.Errorf("載入模型時發生錯誤: %w", err)
}
