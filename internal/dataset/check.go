package dataset

import "github.com/Brownie44l1/birdid/internal/species"

type Status string

const (
	StatusInsufficient     Status = "insufficient"
	StatusBelowRecommended Status = "below_recommended"
	StatusReady            Status = "ready"
)

type Thresholds struct {
	MinTrain         int
	RecommendedTrain int
}

type Count struct {
	Label  species.Label
	Train  int
	Test   int
	Status Status
}

// Check counts the images of every class. The dataset is ready when no class
// has fewer training images than MinTrain.
func (l Layout) Check(th Thresholds) ([]Count, bool, error) {
	ready := true
	counts := make([]Count, 0, len(species.All()))

	for _, label := range species.All() {
		train, err := l.Images(SplitTrain, label)
		if err != nil {
			return nil, false, err
		}
		test, err := l.Images(SplitTest, label)
		if err != nil {
			return nil, false, err
		}

		c := Count{Label: label, Train: len(train), Test: len(test)}
		switch {
		case c.Train < th.MinTrain:
			c.Status = StatusInsufficient
			ready = false
		case c.Train < th.RecommendedTrain:
			c.Status = StatusBelowRecommended
		default:
			c.Status = StatusReady
		}
		counts = append(counts, c)
	}

	return counts, ready, nil
}
