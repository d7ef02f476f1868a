package math

import (
	"github.com/chewxy/math32"
	"golang.org/x/exp/constraints"
	"golang.org/x/exp/rand"
)

const (
	K_PI                 float32 = math32.Pi
	K_DEG2RAD_MULTIPLIER float32 = K_PI / 180.0
)

// Clamp limits f to [low, high].
func Clamp[T constraints.Ordered](f, low, high T) T {
	return max(low, min(f, high))
}

func DegToRad(degrees float32) float32 {
	return degrees * K_DEG2RAD_MULTIPLIER
}

// RandomInRange returns a float in [lo, hi) drawn from r.
func RandomInRange(r *rand.Rand, lo, hi float32) float32 {
	return lo + r.Float32()*(hi-lo)
}
