// Package dataset prepares the on-disk image layout the external training
// job reads: <root>/<split>/<label>/<image>.
package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/Brownie44l1/birdid/internal/species"
	"github.com/samber/lo"
)

const (
	SplitTrain = "train"
	SplitTest  = "test"

	readmeFile = "README.md"
)

var (
	Splits    = []string{SplitTrain, SplitTest}
	imageExts = []string{".png", ".jpg", ".jpeg"}
)

type Layout struct {
	Root string
}

func (l Layout) Dir(split string, label species.Label) string {
	return filepath.Join(l.Root, split, label.String())
}

// Init creates every split/label directory and (re)writes the dataset
// README. It returns the directories in creation order.
func (l Layout) Init() ([]string, error) {
	var dirs []string
	for _, split := range Splits {
		for _, label := range species.All() {
			dir := l.Dir(split, label)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create %s: %w", dir, err)
			}
			dirs = append(dirs, dir)
		}
	}

	if err := os.WriteFile(filepath.Join(l.Root, readmeFile), []byte(readme()), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write dataset readme: %w", err)
	}
	return dirs, nil
}

// Images lists the image files of one class in one split, sorted by name. A
// missing directory holds no images.
func (l Layout) Images(split string, label species.Label) ([]string, error) {
	dir := l.Dir(split, label)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	files := lo.FilterMap(entries, func(e os.DirEntry, _ int) (string, bool) {
		if e.IsDir() || !IsImage(e.Name()) {
			return "", false
		}
		return filepath.Join(dir, e.Name()), true
	})
	slices.Sort(files)
	return files, nil
}

func IsImage(name string) bool {
	return lo.Contains(imageExts, strings.ToLower(filepath.Ext(name)))
}

func readme() string {
	var b strings.Builder
	b.WriteString("# 鳥類圖片資料\n\n")
	b.WriteString("## 資料夾說明\n\n")
	b.WriteString("- `train/`: 訓練資料\n")
	b.WriteString("- `test/`: 測試資料\n\n")
	b.WriteString("## 類別\n\n")
	for i, label := range species.All() {
		rec, _ := species.Lookup(label)
		fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, label, rec.CommonName)
	}
	b.WriteString("\n## 注意事項\n\n")
	b.WriteString("- 圖片格式：JPG, JPEG, PNG\n")
	b.WriteString("- 圖片大小：會自動調整為 224x224\n")
	b.WriteString("- 建議每個類別至少 50 張訓練圖片、10 張測試圖片\n")
	b.WriteString("- 請確保使用的圖片有適當的授權，避免使用有浮水印的圖片\n")
	return b.String()
}
