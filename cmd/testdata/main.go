package main

import (
	"bufio"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"
	"pkg.jsn.cam/partsearch/cmd/testdata/generator"
)

/* generates record files for partsearch in the form of "label","value" */

var (
	GeneratorName = flag.String("generator", "phonebook", "Generator to use ("+strings.Join(generator.List(), ", ")+")")
	TotalCount    = flag.Int64("total_count", 0, "Number of lines to generate (0 = generator default)")
	OutputPath    = flag.String("output", "var/phonebook.txt", "Output file path")
	Seed          = flag.Uint64("seed", 0, "Random seed (0 = random)")
	NoiseRate     = flag.Float64("noise_rate", 0.05, "Fraction of noise lines for the noisy generator")
	Quiet         = flag.Bool("quiet", false, "Disable the progress bar")
)

const progressStep = 1024

func main() {
	flag.Parse()

	generator.SetNoiseRate(*NoiseRate)
	gen, err := generator.Get(*GeneratorName)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	seed := *Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	gen.Init(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))

	count := *TotalCount
	if count <= 0 {
		count = gen.DefaultCount()
	}

	if err := os.MkdirAll(filepath.Dir(*OutputPath), 0755); err != nil {
		panic(err)
	}
	file, err := os.Create(*OutputPath)
	if err != nil {
		panic(err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)

	var bar *progressbar.ProgressBar
	if !*Quiet {
		bar = progressbar.Default(count, gen.Description())
	}

	for i := int64(0); i < count; i++ {
		if err := gen.WriteLine(w); err != nil {
			panic(err)
		}
		if bar != nil && (i+1)%progressStep == 0 {
			_ = bar.Add(progressStep)
		}
	}

	if err := w.Flush(); err != nil {
		panic(err)
	}
	if bar != nil {
		_ = bar.Finish()
	}

	fmt.Printf("Wrote %d lines to %s (seed %d)\n", count, *OutputPath, seed)
}
