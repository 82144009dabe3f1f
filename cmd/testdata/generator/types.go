package generator

import (
	"io"
	"math/rand/v2"
)

// Generator produces record lines for search test data
type Generator interface {
	// Init seeds the generator with its own random source
	Init(r *rand.Rand)

	// WriteLine writes one line of test data to the writer
	WriteLine(w io.Writer) error

	// Description returns a human-readable description of the data format
	Description() string

	// DefaultCount returns the suggested default number of lines to generate
	DefaultCount() int64
}
