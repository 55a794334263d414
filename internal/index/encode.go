package index

import (
	"fmt"
	"strconv"
)

// Cosine distance lies in [0,2]. The encoding clamps to just below
// the upper bound so every key keeps a single integer digit and
// lexicographic order equals numeric order.
const maxEncodableDistance = 1.999999

// EncodeDistance renders a cosine distance as a fixed-width,
// sign-safe string whose lexicographic order matches numeric order,
// so the store's native string range index can approximate numeric
// range queries.
func EncodeDistance(d float64) string {
	if d < 0 {
		d = 0
	}
	if d > maxEncodableDistance {
		d = maxEncodableDistance
	}
	// Fixed width "d.dddddd": one integer digit, six fractional
	return fmt.Sprintf("%.6f", d)
}

// DecodeDistance parses a key produced by EncodeDistance.
func DecodeDistance(key string) (float64, error) {
	d, err := strconv.ParseFloat(key, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing distance key %q: %w", key, err)
	}
	return d, nil
}
