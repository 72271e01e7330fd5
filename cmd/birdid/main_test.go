package main

import (
	"bytes"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/Brownie44l1/birdid/internal/dataset"
	"github.com/Brownie44l1/birdid/internal/species"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("BIRDID_ENVIRONMENT", "test")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestDatasetCommands(t *testing.T) {
	chdir(t, t.TempDir())
	root := filepath.Join(t.TempDir(), "data")

	out, err := run(t, "dataset", "init", "--root", root)
	require.NoError(t, err)
	require.Contains(t, out, filepath.Join(root, "train", "白尾八哥"))

	out, err = run(t, "dataset", "check", "--root", root)
	require.ErrorIs(t, err, errNotReady)
	require.Contains(t, out, "訓練資料不足")

	layout := dataset.Layout{Root: root}
	for _, label := range species.All() {
		for i := 0; i < 5; i++ {
			f, err := os.Create(filepath.Join(layout.Dir(dataset.SplitTrain, label), string(rune('a'+i))+".png"))
			require.NoError(t, err)
			require.NoError(t, png.Encode(f, image.NewGray(image.Rect(0, 0, 2, 2))))
			require.NoError(t, f.Close())
		}
	}

	t.Setenv("BIRDID_DATASET_MIN_TRAIN", "5")
	t.Setenv("BIRDID_DATASET_RECOMMENDED_TRAIN", "5")
	out, err = run(t, "dataset", "check", "--root", root)
	require.NoError(t, err)
	require.Contains(t, out, "資料準備完成")

	out, err = run(t, "dataset", "split", "--root", root, "--seed", "3")
	require.NoError(t, err)
	require.Contains(t, out, "manifest written")

	m, err := dataset.ReadManifest(filepath.Join(root, dataset.ManifestFile))
	require.NoError(t, err)
	require.Equal(t, int64(3), m.Seed)
	require.Len(t, m.Validation["林八哥"], 1)
	require.Len(t, m.Train["林八哥"], 4)
}

func TestModelInspect_Missing(t *testing.T) {
	chdir(t, t.TempDir())

	_, err := run(t, "model", "inspect", "--models-dir", t.TempDir())
	require.Error(t, err)
	require.Contains(t, err.Error(), "找不到模型檔案，請先訓練模型")
}

func TestPredict_RequiresArgs(t *testing.T) {
	chdir(t, t.TempDir())

	_, err := run(t, "predict")
	require.Error(t, err)
}
