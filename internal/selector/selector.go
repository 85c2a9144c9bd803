package selector

import "math/rand/v2"

// Source draws uniformly distributed integers in [0, n).
// *rand.Rand from math/rand/v2 satisfies it.
type Source interface {
	IntN(n int) int
}

type globalSource struct{}

func (globalSource) IntN(n int) int { return rand.IntN(n) }

// Default is the process-wide generator, seeded by the runtime.
var Default Source = globalSource{}

// Selector picks a configuration while avoiding an immediate repeat.
type Selector struct {
	src Source
}

// New returns a Selector drawing from src. A nil src uses Default.
func New(src Source) *Selector {
	if src == nil {
		src = Default
	}
	return &Selector{src: src}
}

// Select returns a uniformly random element of matches that differs from previous.
// A single match is returned even when it equals previous. ok is false only when
// matches is empty.
func (s *Selector) Select(matches []string, previous string) (name string, ok bool) {
	switch len(matches) {
	case 0:
		return "", false
	case 1:
		return matches[0], true
	}
	// names are unique, so with two or more at least one differs from previous
	for {
		name = matches[s.src.IntN(len(matches))]
		if name != previous {
			return name, true
		}
	}
}
