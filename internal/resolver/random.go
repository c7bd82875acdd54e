package resolver

import (
	"math/rand"
)

// Source is the uniform random source used for every draw. Intn returns a
// value in [0, n) for n > 0.
type Source interface {
	Intn(n int) int
}

type globalSource struct{}

func (globalSource) Intn(n int) int { return rand.Intn(n) }

// DefaultSource draws from the process-wide generator, which is safe for
// concurrent use.
func DefaultSource() Source { return globalSource{} }

// NewSeededSource returns a deterministic source. It is not safe for
// concurrent use.
func NewSeededSource(seed int64) Source {
	return rand.New(rand.NewSource(seed))
}

// Permutation returns a uniformly random ordering of names (Fisher-Yates).
func Permutation(rng Source, names []string) []string {
	out := append([]string(nil), names...)
	for i := len(out) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}
