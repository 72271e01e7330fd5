package dataset

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/Brownie44l1/birdid/internal/species"
	"github.com/anthonynsimon/bild/imgio"
)

const ManifestFile = "manifest.json"

// Manifest is handed to the training job. ClassIndices must be used as the
// one-hot index of each class.
type Manifest struct {
	Classes         []string            `json:"classes"`
	ClassIndices    map[string]int      `json:"class_indices"`
	ValidationSplit float64             `json:"validation_split"`
	Seed            int64               `json:"seed"`
	Train           map[string][]string `json:"train"`
	Validation      map[string][]string `json:"validation"`
	Test            map[string][]string `json:"test"`
	Skipped         []string            `json:"skipped,omitempty"`
}

type SplitOptions struct {
	ValidationSplit float64
	Seed            int64
	// Progress, when set, is called once per inspected image.
	Progress func(path string)
}

// Split verifies that every image decodes, shuffles each class's training
// images and holds out ValidationSplit of them for validation. Paths in the
// manifest are relative to the dataset root.
func (l Layout) Split(opts SplitOptions) (*Manifest, error) {
	if opts.ValidationSplit <= 0 || opts.ValidationSplit >= 1 {
		return nil, fmt.Errorf("validation split %v must be in (0, 1)", opts.ValidationSplit)
	}

	m := &Manifest{
		Classes:         species.Names(),
		ClassIndices:    make(map[string]int),
		ValidationSplit: opts.ValidationSplit,
		Seed:            opts.Seed,
		Train:           make(map[string][]string),
		Validation:      make(map[string][]string),
		Test:            make(map[string][]string),
	}

	rng := rand.New(rand.NewSource(opts.Seed))

	for i, label := range species.All() {
		name := label.String()
		m.ClassIndices[name] = i

		train, err := l.usable(SplitTrain, label, opts.Progress, m)
		if err != nil {
			return nil, err
		}
		rng.Shuffle(len(train), func(a, b int) { train[a], train[b] = train[b], train[a] })

		holdout := int(float64(len(train)) * opts.ValidationSplit)
		m.Validation[name] = train[:holdout]
		m.Train[name] = train[holdout:]

		test, err := l.usable(SplitTest, label, opts.Progress, m)
		if err != nil {
			return nil, err
		}
		m.Test[name] = test
	}

	return m, nil
}

func (l Layout) usable(split string, label species.Label, progress func(string), m *Manifest) ([]string, error) {
	files, err := l.Images(split, label)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(files))
	for _, path := range files {
		if progress != nil {
			progress(path)
		}

		rel, err := filepath.Rel(l.Root, path)
		if err != nil {
			return nil, err
		}
		rel = filepath.ToSlash(rel)

		if _, err := imgio.Open(path); err != nil {
			m.Skipped = append(m.Skipped, rel)
			continue
		}
		out = append(out, rel)
	}
	return out, nil
}

// Total counts the images Split will inspect.
func (l Layout) Total() (int, error) {
	total := 0
	for _, split := range Splits {
		for _, label := range species.All() {
			files, err := l.Images(split, label)
			if err != nil {
				return 0, err
			}
			total += len(files)
		}
	}
	return total, nil
}

func WriteManifest(path string, m *Manifest) error {
	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}

func ReadManifest(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, nil
}
