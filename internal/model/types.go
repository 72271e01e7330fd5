package model

import (
	"sort"

	"github.com/Brownie44l1/birdid/internal/species"
)

// InputSize is the square edge length the network was trained on.
const InputSize = 224

type Metadata struct {
	InputShape  []int64  `json:"input_shape"`
	OutputShape []int64  `json:"output_shape"`
	Classes     []string `json:"classes"`
	ImageSize   int      `json:"image_size"`
	InputName   string   `json:"input_name,omitempty"`
	OutputName  string   `json:"output_name,omitempty"`
	// Logits marks a network exported without its final softmax.
	Logits bool `json:"logits,omitempty"`
}

// DefaultMetadata describes a legacy single-file artifact, which carries no
// metadata of its own.
func DefaultMetadata() Metadata {
	classes := species.Names()
	return Metadata{
		InputShape:  []int64{1, InputSize, InputSize, 3},
		OutputShape: []int64{1, int64(len(classes))},
		Classes:     classes,
		ImageSize:   InputSize,
		InputName:   "input",
		OutputName:  "output",
	}
}

// Tensor is a dense NHWC float32 batch.
type Tensor struct {
	Shape []int64
	Data  []float32
}

type PredictionRequest struct {
	Image []float32 `json:"image"`
}

type Probability struct {
	Label species.Label `json:"label"`
	Value float64       `json:"probability"`
}

type PredictionResult struct {
	Label      species.Label
	Confidence float64
	// Distribution is in class index order.
	Distribution []Probability
}

// Ranked returns the distribution sorted by descending probability. Equal
// probabilities keep class index order.
func (r *PredictionResult) Ranked() []Probability {
	ranked := make([]Probability, len(r.Distribution))
	copy(ranked, r.Distribution)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Value > ranked[j].Value
	})
	return ranked
}

func (r *PredictionResult) Map() map[string]float64 {
	m := make(map[string]float64, len(r.Distribution))
	for _, p := range r.Distribution {
		m[p.Label.String()] = p.Value
	}
	return m
}
