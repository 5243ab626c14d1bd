package quantize

import "github.com/vertti/fqloss/internal/encoder"

// illuminaBins maps Phred scores to the representative of their bin in
// Illumina's 8-level scheme. Scores from 40 up map to 40; scores 0 and 1
// (no-calls) are left alone.
var illuminaBins = [...]struct {
	upper, value byte
}{
	{9, 6},
	{19, 15},
	{24, 22},
	{29, 27},
	{34, 33},
	{39, 37},
}

// Illumina8 bins quality scores into Illumina's eight levels.
type Illumina8 struct {
	table [256]byte
}

// NewIllumina8 builds the symbol lookup table for enc.
func NewIllumina8(enc encoder.QualityEncoding) *Illumina8 {
	q := &Illumina8{}
	off := int(enc.Offset())
	for sym := range q.table {
		q.table[sym] = byte(sym)
		score := sym - off
		if score < 2 {
			continue
		}
		q.table[sym] = byte(binScore(score) + off)
	}
	return q
}

func binScore(score int) int {
	for _, b := range illuminaBins {
		if score <= int(b.upper) {
			return int(b.value)
		}
	}
	return 40
}

// Reconstruct implements Quantizer.
func (q *Illumina8) Reconstruct(_ string, _, quality []byte) []byte {
	out := make([]byte, len(quality))
	for i, sym := range quality {
		out[i] = q.table[sym]
	}
	return out
}
