// Package encoder holds the quality-score encodings understood by fqloss
// and the reversible transforms applied to quality strings.
package encoder

import "fmt"

// Phred encoding offsets.
const (
	Phred33Offset = 33
	Phred64Offset = 64
)

// MaxPhred is the highest score representable in printable Phred+33.
const MaxPhred = 93

// QualityEncoding represents the quality score encoding scheme.
type QualityEncoding uint8

// Quality encoding schemes.
const (
	EncodingPhred33 QualityEncoding = iota // Sanger/Illumina 1.8+ (offset 33)
	EncodingPhred64                        // Illumina 1.3-1.7 (offset 64)
)

// Offset returns the ASCII offset of score zero.
func (e QualityEncoding) Offset() byte {
	if e == EncodingPhred64 {
		return Phred64Offset
	}
	return Phred33Offset
}

func (e QualityEncoding) String() string {
	switch e {
	case EncodingPhred33:
		return "phred33"
	case EncodingPhred64:
		return "phred64"
	default:
		return fmt.Sprintf("QualityEncoding(%d)", uint8(e))
	}
}

// DetectEncoding guesses the encoding from a sample of quality strings.
// Any symbol below ';' (59) can only be Phred+33. A sample whose smallest
// symbol is at least '@' (64) is taken as Phred+64. Everything else,
// including an empty sample, falls back to Phred+33.
func DetectEncoding(qualities [][]byte) QualityEncoding {
	lowest := byte(255)
	for _, qual := range qualities {
		for _, b := range qual {
			if b < 59 {
				return EncodingPhred33
			}
			lowest = min(lowest, b)
		}
	}
	if lowest != 255 && lowest >= Phred64Offset {
		return EncodingPhred64
	}
	return EncodingPhred33
}

// Scores converts quality symbols to 0-based scores in place.
func Scores(qual []byte, enc QualityEncoding) {
	off := enc.Offset()
	for i := range qual {
		qual[i] -= off
	}
}

// Symbols converts 0-based scores back to quality symbols in place.
func Symbols(qual []byte, enc QualityEncoding) {
	off := enc.Offset()
	for i := range qual {
		qual[i] += off
	}
}

// DeltaEncode replaces every score after the first with its difference
// from the previous one, in place. Runs of equal scores become zeros.
func DeltaEncode(qual []byte) {
	for i := len(qual) - 1; i > 0; i-- {
		qual[i] -= qual[i-1]
	}
}

// DeltaDecode reverses DeltaEncode in place.
func DeltaDecode(qual []byte) {
	for i := 1; i < len(qual); i++ {
		qual[i] += qual[i-1]
	}
}
