package generator

import (
	"io"
	"math/rand/v2"
	"strings"
)

// NoisyGenerator writes phonebook contacts mixed with blank lines,
// malformed lines and overlong fields, to exercise the loader.
type NoisyGenerator struct {
	PhonebookGenerator
	NoiseRate float64 // fraction of lines that are not plain contacts
}

var malformedLines = []string{
	"missing quotes and comma",
	`"only one field"`,
	`"three","fields","here"`,
	`"unterminated,"017"`,
}

func (g *NoisyGenerator) Init(r *rand.Rand) {
	g.PhonebookGenerator.Init(r)
	if g.NoiseRate == 0 {
		g.NoiseRate = 0.05
	}
}

func (g *NoisyGenerator) WriteLine(w io.Writer) error {
	if g.rand.Float64() >= g.NoiseRate {
		return g.PhonebookGenerator.WriteLine(w)
	}

	var line string
	switch g.rand.IntN(4) {
	case 0:
		line = ""
	case 1:
		line = malformedLines[g.rand.IntN(len(malformedLines))]
	case 2:
		// longer than a field holds; the loader truncates it
		line = `"` + strings.Repeat(lastNames[g.rand.IntN(len(lastNames))]+" ", 8) + `","` + g.number() + `"`
	default:
		line = `"Doe, ""J""","` + g.number() + `"`
	}
	_, err := io.WriteString(w, line+"\n")
	return err
}

func (g *NoisyGenerator) Description() string {
	return "Phonebook contacts with blank, malformed and overlong lines"
}

func (g *NoisyGenerator) DefaultCount() int64 {
	return 1e4
}
