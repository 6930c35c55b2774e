// Package gain converts between linear volume, a bounded decibel range and a unit [0,1] control position.
package gain

import (
	"fmt"
	"math"

	"golang.org/x/exp/constraints"
)

// Curve maps linear volume onto the decibel range [Lower, Upper].
//
// Decibels are computed as 60*log10(v): PulseAudio software volumes are cubic, so this is 20*log10 of the
// amplitude the volume actually produces.
type Curve struct {
	Lower, Upper float64
	// TrueZero maps silence to -Inf dB and unit 0 back to silence instead of to Lower.
	TrueZero bool
}

var (
	// Fader is the curve used for fader positions.
	Fader = Curve{Lower: -80, Upper: 25, TrueZero: true}
	// Meter is the curve used for peak meters.
	Meter = Curve{Lower: -120, Upper: 0, TrueZero: true}
)

// New returns a curve over [lower, upper] dB. lower must be below upper.
func New(lower, upper float64, trueZero bool) (Curve, error) {
	if !(lower < upper) {
		return Curve{}, fmt.Errorf("gain curve lower bound %v must be below upper bound %v", lower, upper)
	}
	return Curve{Lower: lower, Upper: upper, TrueZero: trueZero}, nil
}

func clamp[T constraints.Ordered](lo, hi, v T) T {
	return max(lo, min(hi, v))
}

// Range is the width of the curve in decibels.
func (c Curve) Range() float64 {
	return c.Upper - c.Lower
}

// FromLinear returns the decibel value of the linear volume v, clamped to the curve.
func (c Curve) FromLinear(v float64) float64 {
	v = math.Abs(v)
	if v == 0 {
		if c.TrueZero {
			return math.Inf(-1)
		}
		return c.Lower
	}
	if math.IsNaN(v) {
		return c.Lower
	}
	return clamp(c.Lower, c.Upper, 60*math.Log10(v))
}

// ToLinear is the inverse of FromLinear within the curve.
func (c Curve) ToLinear(db float64) float64 {
	if math.IsInf(db, -1) {
		return 0
	}
	return math.Pow(10, db/60)
}

// FromLinearUnit returns the position of v along the curve, in [0,1]. Silence is 0.
func (c Curve) FromLinearUnit(v float64) float64 {
	if v == 0 || math.IsNaN(v) {
		return 0
	}
	return clamp(0, 1, (c.FromLinear(v)-c.Lower)/c.Range())
}

// ToLinearUnit returns the linear volume at position u along the curve.
func (c Curve) ToLinearUnit(u float64) float64 {
	if math.IsNaN(u) {
		u = 0
	}
	u = clamp(0, 1, u)
	if c.TrueZero && u == 0 {
		return 0
	}
	return c.ToLinear(c.Lower + u*c.Range())
}
