package quantize

// BlockSize is the number of bases sharing one quality value in Block64.
const BlockSize = 64

// Block64 stores one quality value per 64-base block, the floor of the
// block's mean, and inflates it back to every base of the block. The last
// block of a read may be shorter.
var Block64 Quantizer = Func(reconstructBlocks)

func reconstructBlocks(_ string, _, quality []byte) []byte {
	out := make([]byte, len(quality))
	for i := 0; i < len(quality); i += BlockSize {
		j := min(i+BlockSize, len(quality))

		// floor(mean(q - offset)) + offset == floor(mean(q)) for any
		// integer offset, so the encoding does not matter here.
		sum := 0
		for _, q := range quality[i:j] {
			sum += int(q)
		}
		mean := byte(sum / (j - i))
		for k := i; k < j; k++ {
			out[k] = mean
		}
	}
	return out
}
