// Package host models the host-cell environment a session runs inside.
// Host stress drifts smoothly over turns, driven by seeded simplex noise,
// and modulates how aggressively entities degrade.
package host

import (
	opensimplex "github.com/ojrac/opensimplex-go"
)

// Stress bounds: the multiplier applied to the degradation probability.
const (
	minStress = 0.75
	maxStress = 1.25
)

// Field is a deterministic noise field over turn numbers. Two fields built
// from the same seed produce identical stress curves, so sessions stay
// reproducible.
type Field struct {
	noise opensimplex.Noise
}

// NewField creates a field seeded for one simulation session.
func NewField(seed int64) *Field {
	return &Field{noise: opensimplex.NewNormalized(seed)}
}

// Stress returns the host stress multiplier for a turn, in [0.75, 1.25].
// Neighboring turns yield nearby values: stress drifts, it does not jump.
func (f *Field) Stress(turn int) float64 {
	// Layer two octaves for a slow trend with mild turn-to-turn texture.
	n := octaveNoise(f.noise, float64(turn), 2, 0.05, 0.5)
	return minStress + n*(maxStress-minStress)
}

// octaveNoise layers multiple noise frequencies into fractal noise in [0, 1].
func octaveNoise(noise opensimplex.Noise, x float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, 0.5) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}
