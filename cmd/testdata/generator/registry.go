package generator

import (
	"fmt"
	"slices"
)

// Registry maps generator names to generator factory functions
var Registry = map[string]func() Generator{
	"phonebook": func() Generator { return &PhonebookGenerator{} },
	"noisy":     func() Generator { return &NoisyGenerator{} },
}

// Get returns a generator by name
func Get(name string) (Generator, error) {
	factory, exists := Registry[name]
	if !exists {
		return nil, fmt.Errorf("unknown generator: %s (available: %v)", name, List())
	}
	return factory(), nil
}

// List returns all available generator names, sorted
func List() []string {
	names := make([]string, 0, len(Registry))
	for name := range Registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// SetNoiseRate updates the fraction of noise lines the noisy generator writes
func SetNoiseRate(rate float64) {
	Registry["noisy"] = func() Generator { return &NoisyGenerator{NoiseRate: rate} }
}
