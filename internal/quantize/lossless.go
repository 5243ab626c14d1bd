package quantize

import (
	"fmt"
	"slices"

	"github.com/klauspost/compress/zstd"

	"github.com/vertti/fqloss/internal/encoder"
)

// Lossless runs quality strings through a real compression round trip:
// scores are normalized, delta encoded and zstd compressed, then decoded
// back. Its loss is always zero, which makes it a reference point for the
// lossy codecs.
type Lossless struct {
	enc  encoder.QualityEncoding
	zEnc *zstd.Encoder
	zDec *zstd.Decoder
}

// NewLossless creates the zstd encoder and decoder shared by all reads.
// EncodeAll and DecodeAll are safe for concurrent use.
func NewLossless(enc encoder.QualityEncoding) (*Lossless, error) {
	zEnc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	zDec, err := zstd.NewReader(nil)
	if err != nil {
		_ = zEnc.Close()
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	return &Lossless{enc: enc, zEnc: zEnc, zDec: zDec}, nil
}

// Reconstruct implements Quantizer. A decode failure yields nil, which the
// loss evaluator reports as a length mismatch.
func (l *Lossless) Reconstruct(_ string, _, quality []byte) []byte {
	scores := slices.Clone(quality)
	encoder.Scores(scores, l.enc)
	encoder.DeltaEncode(scores)

	packed := l.zEnc.EncodeAll(scores, make([]byte, 0, len(scores)/2))
	out, err := l.zDec.DecodeAll(packed, make([]byte, 0, len(quality)))
	if err != nil {
		return nil
	}

	encoder.DeltaDecode(out)
	encoder.Symbols(out, l.enc)
	return out
}

// Close releases the zstd resources.
func (l *Lossless) Close() error {
	l.zDec.Close()
	return l.zEnc.Close()
}
