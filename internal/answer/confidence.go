package answer

import (
	"fmt"
	"strings"
)

// Weights blends the confidence signals. They are tuning constants, not
// derived quantities.
type Weights struct {
	Mean   float64 `koanf:"mean"`
	High   float64 `koanf:"high"`
	Length float64 `koanf:"length"`
}

// DefaultWeights returns 0.5 / 0.3 / 0.2.
func DefaultWeights() Weights {
	return Weights{Mean: 0.5, High: 0.3, Length: 0.2}
}

// Validate rejects negative weights.
func (w Weights) Validate() error {
	if w.Mean < 0 || w.High < 0 || w.Length < 0 {
		return fmt.Errorf("confidence weights must not be negative: %+v", w)
	}
	return nil
}

// highQualityScore is the score above which a passage counts as strong.
const highQualityScore = 0.8

// Confidence estimates answer reliability in [0,1] from the retrieval
// scores (best first) and the answer text:
//
//	Mean·mean(top 3 scores) + High·min(strong/3, 1) + Length·min(words/100, 1)
//
// No passages always yields 0.
func Confidence(scores []float64, answer string, w Weights) float64 {
	if len(scores) == 0 {
		return 0
	}

	top := scores[:min(3, len(scores))]
	var sum float64
	for _, s := range top {
		sum += s
	}
	mean := sum / float64(len(top))

	strong := 0
	for _, s := range scores {
		if s > highQualityScore {
			strong++
		}
	}
	high := min(float64(strong)/3, 1)
	length := min(float64(len(strings.Fields(answer)))/100, 1)

	c := w.Mean*mean + w.High*high + w.Length*length
	return min(max(c, 0), 1)
}
