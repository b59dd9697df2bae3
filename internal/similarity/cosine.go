// Package similarity holds the cosine primitives shared by retrieval and
// anomaly scoring. Distances follow pgvector's `<=>` operator: 0 for identical
// direction, 1 for orthogonal, 2 for opposite.
package similarity

import "math"

// MaxDistance is returned for vectors that cannot be compared.
const MaxDistance = 2.0

// CosineDistance returns 1 - cos(a, b). Zero vectors, empty vectors and
// length mismatches yield MaxDistance.
func CosineDistance(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return MaxDistance
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return MaxDistance
	}
	cos := dot / (math.Sqrt(na) * math.Sqrt(nb))
	// rounding can push cos just outside [-1, 1]
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}
	return 1 - cos
}

// FromDistance maps a cosine distance in [0,2] onto a similarity in [0,1].
func FromDistance(d float64) float64 {
	if math.IsNaN(d) {
		return 0
	}
	s := 1 - d/2
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// Cosine is FromDistance(CosineDistance(a, b)).
func Cosine(a, b []float32) float64 {
	return FromDistance(CosineDistance(a, b))
}
