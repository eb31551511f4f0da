// Package wasteland models the outside zone as layered simplex noise.
// The danger field gives expeditions a deterministic hazard profile
// over distance: the same seed always yields the same wasteland.
package wasteland

import (
	opensimplex "github.com/ojrac/opensimplex-go"
)

// Field is a noise-derived hazard landscape keyed by travel distance.
type Field struct {
	danger opensimplex.Noise
	yield  opensimplex.Noise
}

// NewField creates a wasteland field from a seed.
func NewField(seed int64) *Field {
	return &Field{
		danger: opensimplex.NewNormalized(seed),
		yield:  opensimplex.NewNormalized(seed + 1),
	}
}

// dangerScale compresses distance so the field varies noticeably over
// the 1–5 unit steps an expedition takes per event.
const dangerScale = 0.13

// baseDanger keeps even the calmest stretch mildly hostile; the noise
// layer fills the remaining range.
const baseDanger = 0.25

// Danger returns hazard intensity in [baseDanger, 1] at a distance
// from the vault. Farther stretches trend harsher via a slow ramp.
func (f *Field) Danger(distance float64) float64 {
	if distance < 0 {
		distance = 0
	}
	noise := f.danger.Eval2(distance*dangerScale, 0)
	ramp := distance / (distance + 50) // 0 near home, →1 far out
	d := baseDanger + (1-baseDanger)*(0.7*noise+0.3*ramp)
	if d > 1 {
		d = 1
	}
	return d
}

// Yield returns loot richness in [0, 1] at a distance. Richer ground
// tends to sit in the more dangerous stretches.
func (f *Field) Yield(distance float64) float64 {
	if distance < 0 {
		distance = 0
	}
	return f.yield.Eval2(distance*dangerScale, 0)
}
