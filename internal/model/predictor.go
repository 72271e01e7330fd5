package model

import (
	"fmt"
	"image"
	"math"
	"slices"

	"github.com/Brownie44l1/birdid/internal/species"
	"github.com/samber/lo"
)

type Predictor struct {
	artifact *Artifact
	classes  []species.Label
}

// NewPredictor pairs a loaded artifact with the class order used to read its
// output. The order must be the one the artifact was trained with.
func NewPredictor(artifact *Artifact, classes []species.Label) (*Predictor, error) {
	names := lo.Map(classes, func(l species.Label, _ int) string { return l.String() })
	if !slices.Equal(names, artifact.Metadata.Classes) {
		return nil, fmt.Errorf("class order %v does not match artifact classes %v", names, artifact.Metadata.Classes)
	}

	return &Predictor{
		artifact: artifact,
		classes:  slices.Clone(classes),
	}, nil
}

func (p *Predictor) Artifact() *Artifact {
	return p.artifact
}

// InputLen is the number of values a raw input tensor must hold.
func (p *Predictor) InputLen() int {
	n := 1
	for _, dim := range p.artifact.Metadata.InputShape {
		n *= int(dim)
	}
	return n
}

func (p *Predictor) Predict(img image.Image) (*PredictionResult, error) {
	tensor := Preprocess(img, p.artifact.Metadata.ImageSize)
	return p.PredictTensor(tensor.Data)
}

// PredictTensor runs a single forward pass over an already preprocessed
// input.
func (p *Predictor) PredictTensor(input []float32) (*PredictionResult, error) {
	if len(input) != p.InputLen() {
		return nil, fmt.Errorf("%w: expected %d values, got %d", ErrInputShape, p.InputLen(), len(input))
	}

	output, err := p.artifact.Runner.Run(input)
	if err != nil {
		return nil, err
	}
	if len(output) < len(p.classes) {
		return nil, fmt.Errorf("model returned %d values for %d classes", len(output), len(p.classes))
	}

	scores := make([]float64, len(p.classes))
	for i := range scores {
		scores[i] = float64(output[i])
	}
	if p.artifact.Metadata.Logits {
		scores = softmax(scores)
	}

	maxIdx := 0
	distribution := make([]Probability, len(p.classes))
	for i, label := range p.classes {
		distribution[i] = Probability{Label: label, Value: scores[i]}
		if scores[i] > scores[maxIdx] {
			maxIdx = i
		}
	}

	return &PredictionResult{
		Label:        p.classes[maxIdx],
		Confidence:   scores[maxIdx],
		Distribution: distribution,
	}, nil
}

func softmax(logits []float64) []float64 {
	maxLogit := lo.Max(logits)

	var sum float64
	out := make([]float64, len(logits))
	for i, v := range logits {
		out[i] = math.Exp(v - maxLogit)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
