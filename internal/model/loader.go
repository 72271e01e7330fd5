package model

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/Brownie44l1/birdid/internal/species"
	"go.uber.org/zap"
	"lukechampine.com/blake3"
)

const (
	FormatBundle = "bundle"
	FormatLegacy = "legacy"

	bundleModelFile    = "model.onnx"
	bundleMetadataFile = "metadata.json"
	legacyExt          = ".onnx"
)

var (
	ErrArtifactMissing = errors.New("model artifact not found")
	ErrArtifactCorrupt = errors.New("model artifact corrupt")
	ErrInputShape      = errors.New("input does not match model input shape")
)

// Artifact is a loaded model. It is shared read-only by every prediction.
type Artifact struct {
	Runner   Runner
	Metadata Metadata
	Path     string
	Format   string
	Digest   string
}

// Loader resolves the artifact on disk and loads it once. Both the artifact
// and a load failure are kept for the lifetime of the Loader.
type Loader struct {
	dir    string
	name   string
	opener Opener
	logger *zap.Logger

	once     sync.Once
	artifact *Artifact
	err      error
}

func NewLoader(dir, name string, opener Opener, logger *zap.Logger) *Loader {
	return &Loader{
		dir:    dir,
		name:   name,
		opener: opener,
		logger: logger,
	}
}

// BundlePath is the primary location: a directory holding the model and its
// metadata.
func (l *Loader) BundlePath() string {
	return filepath.Join(l.dir, l.name)
}

// LegacyPath is the fallback single-file location.
func (l *Loader) LegacyPath() string {
	return filepath.Join(l.dir, l.name+legacyExt)
}

func (l *Loader) Load() (*Artifact, error) {
	l.once.Do(func() {
		l.artifact, l.err = l.load()
		if l.err != nil {
			l.logger.Warn("model unavailable", zap.Error(l.err))
			return
		}
		l.logger.Info("model loaded",
			zap.String("path", l.artifact.Path),
			zap.String("format", l.artifact.Format),
			zap.String("digest", l.artifact.Digest),
			zap.Strings("classes", l.artifact.Metadata.Classes))
	})
	return l.artifact, l.err
}

// Close releases the loaded runner and, when it owns one, the runtime.
func (l *Loader) Close() error {
	var errs []error
	if l.artifact != nil {
		errs = append(errs, l.artifact.Runner.Close())
	}
	if c, ok := l.opener.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

func (l *Loader) load() (*Artifact, error) {
	modelPath, meta, format, err := l.resolve()
	if err != nil {
		return nil, err
	}

	digest, err := fileDigest(modelPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArtifactCorrupt, err)
	}

	runner, err := l.opener.Open(modelPath, meta)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArtifactCorrupt, err)
	}

	return &Artifact{
		Runner:   runner,
		Metadata: meta,
		Path:     modelPath,
		Format:   format,
		Digest:   digest,
	}, nil
}

func (l *Loader) resolve() (string, Metadata, string, error) {
	bundle := l.BundlePath()
	if info, err := os.Stat(bundle); err == nil && info.IsDir() {
		meta, err := readMetadata(filepath.Join(bundle, bundleMetadataFile))
		if err != nil {
			return "", Metadata{}, "", fmt.Errorf("%w: %v", ErrArtifactCorrupt, err)
		}
		modelPath := filepath.Join(bundle, bundleModelFile)
		if _, err := os.Stat(modelPath); err != nil {
			return "", Metadata{}, "", fmt.Errorf("%w: %v", ErrArtifactCorrupt, err)
		}
		return modelPath, meta, FormatBundle, nil
	}

	legacy := l.LegacyPath()
	if info, err := os.Stat(legacy); err == nil && !info.IsDir() {
		return legacy, DefaultMetadata(), FormatLegacy, nil
	}

	return "", Metadata{}, "", fmt.Errorf("%w: tried %s and %s", ErrArtifactMissing, bundle, legacy)
}

func readMetadata(path string) (Metadata, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to read metadata: %w", err)
	}

	meta := DefaultMetadata()
	if err := json.Unmarshal(raw, &meta); err != nil {
		return Metadata{}, fmt.Errorf("failed to parse metadata: %w", err)
	}

	if err := meta.Validate(); err != nil {
		return Metadata{}, err
	}
	return meta, nil
}

// Validate checks the metadata against the trained label order and the
// NHWC input layout.
func (m Metadata) Validate() error {
	if want := species.Names(); !slices.Equal(m.Classes, want) {
		return fmt.Errorf("class order %v does not match %v", m.Classes, want)
	}

	size := int64(m.ImageSize)
	if !slices.Equal(m.InputShape, []int64{1, size, size, 3}) {
		return fmt.Errorf("input shape %v is not [1 %d %d 3]", m.InputShape, size, size)
	}

	var outputs int64 = 1
	for _, dim := range m.OutputShape {
		outputs *= dim
	}
	if len(m.OutputShape) == 0 || outputs != int64(len(m.Classes)) {
		return fmt.Errorf("output shape %v does not hold %d classes", m.OutputShape, len(m.Classes))
	}

	if m.InputName == "" || m.OutputName == "" {
		return errors.New("input and output names are required")
	}
	return nil
}

func fileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := blake3.New(32, nil)
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
