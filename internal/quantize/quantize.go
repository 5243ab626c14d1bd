// Package quantize provides the lossy quality codecs whose information loss
// fqloss measures. A codec is modelled only by its round trip: the quality
// string it would reconstruct after compression.
package quantize

import (
	"fmt"
	"slices"

	"github.com/vertti/fqloss/internal/encoder"
)

// Quantizer reconstructs the quality string a codec would restore for a read.
//
// Implementations must be pure and deterministic, safe for concurrent use,
// must not modify their arguments, and must return a string of the same
// length as quality.
type Quantizer interface {
	Reconstruct(id string, bases, quality []byte) []byte
}

// Func adapts an ordinary function to the Quantizer interface.
type Func func(id string, bases, quality []byte) []byte

// Reconstruct calls f.
func (f Func) Reconstruct(id string, bases, quality []byte) []byte {
	return f(id, bases, quality)
}

// Identity returns an unchanged copy of the quality string.
var Identity Quantizer = Func(func(_ string, _, quality []byte) []byte {
	return slices.Clone(quality)
})

// Factory builds a quantizer for a corpus with the given quality encoding.
type Factory func(enc encoder.QualityEncoding) (Quantizer, error)

// Default is the name of the codec used when none is requested.
const Default = "block64"

var registry = map[string]Factory{
	"block64": func(encoder.QualityEncoding) (Quantizer, error) {
		return Block64, nil
	},
	"illumina8": func(enc encoder.QualityEncoding) (Quantizer, error) {
		return NewIllumina8(enc), nil
	},
	"lossless": func(enc encoder.QualityEncoding) (Quantizer, error) {
		return NewLossless(enc)
	},
	"identity": func(encoder.QualityEncoding) (Quantizer, error) {
		return Identity, nil
	},
}

// Lookup returns the factory registered under name.
func Lookup(name string) (Factory, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown quantizer %q (available: %v)", name, Names())
	}
	return f, nil
}

// Names lists the registered quantizers in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
