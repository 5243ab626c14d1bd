package quantize

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vertti/fqloss/internal/encoder"
)

func TestBlock64(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		quality string
		want    string
	}{
		{"empty", "", ""},
		{"constant", "IIII", "IIII"},
		{"exact mean", "!#", "\"\""},
		{"floor of mean", "!$", "\"\""},
		{"short tail block", strings.Repeat("I", 64) + "!#", strings.Repeat("I", 64) + "\"\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := Block64.Reconstruct("r", nil, []byte(tt.quality))
			assert.Equal(t, []byte(tt.want), got)
		})
	}
}

func TestBlock64BlocksAreIndependent(t *testing.T) {
	t.Parallel()

	quality := []byte(strings.Repeat("+", 64) + strings.Repeat("I", 64))
	got := Block64.Reconstruct("r", nil, quality)
	assert.Equal(t, quality, got)
}

func TestBlock64DoesNotModifyInput(t *testing.T) {
	t.Parallel()

	quality := []byte("!I!I")
	_ = Block64.Reconstruct("r", nil, quality)
	assert.Equal(t, []byte("!I!I"), quality)
}

func TestIllumina8(t *testing.T) {
	t.Parallel()

	tests := []struct {
		score int
		want  int
	}{
		{0, 0},
		{1, 1},
		{2, 6},
		{9, 6},
		{10, 15},
		{19, 15},
		{20, 22},
		{24, 22},
		{25, 27},
		{29, 27},
		{30, 33},
		{34, 33},
		{35, 37},
		{39, 37},
		{40, 40},
		{41, 40},
	}

	for _, enc := range []encoder.QualityEncoding{encoder.EncodingPhred33, encoder.EncodingPhred64} {
		q := NewIllumina8(enc)
		off := int(enc.Offset())
		for _, tt := range tests {
			got := q.Reconstruct("r", nil, []byte{byte(tt.score + off)})
			assert.Equal(t, []byte{byte(tt.want + off)}, got, "%s score %d", enc, tt.score)
		}
	}
}

func TestIllumina8LeavesSymbolsBelowOffset(t *testing.T) {
	t.Parallel()

	q := NewIllumina8(encoder.EncodingPhred64)
	got := q.Reconstruct("r", nil, []byte("!5"))
	assert.Equal(t, []byte("!5"), got)
}

func TestLosslessRoundTrip(t *testing.T) {
	t.Parallel()

	for _, enc := range []encoder.QualityEncoding{encoder.EncodingPhred33, encoder.EncodingPhred64} {
		q, err := NewLossless(enc)
		require.NoError(t, err)

		for _, quality := range []string{"", "I", "IIII#5?<", strings.Repeat("ABCDEFGHIJ", 100)} {
			input := []byte(quality)
			got := q.Reconstruct("r", nil, input)
			assert.Len(t, got, len(input))
			assert.True(t, bytes.Equal(input, got), "%s %q", enc, quality)
		}
		require.NoError(t, q.Close())
	}
}

func TestLosslessConcurrentUse(t *testing.T) {
	t.Parallel()

	q, err := NewLossless(encoder.EncodingPhred33)
	require.NoError(t, err)
	defer func() { _ = q.Close() }()

	quality := []byte(strings.Repeat("5?I#", 50))
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				assert.Equal(t, quality, q.Reconstruct("r", nil, quality))
			}
		}()
	}
	wg.Wait()
}

func TestIdentityCopies(t *testing.T) {
	t.Parallel()

	quality := []byte("II#")
	got := Identity.Reconstruct("r", nil, quality)
	assert.Equal(t, quality, got)

	got[0] = '!'
	assert.Equal(t, []byte("II#"), quality)
}

func TestLookup(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"block64", "identity", "illumina8", "lossless"}, Names())

	for _, name := range Names() {
		factory, err := Lookup(name)
		require.NoError(t, err, name)

		q, err := factory(encoder.EncodingPhred33)
		require.NoError(t, err, name)
		assert.Len(t, q.Reconstruct("r", []byte("ACGT"), []byte("IIII")), 4, name)
	}

	_, err := Lookup("nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown quantizer")
}

func TestFuncAdapter(t *testing.T) {
	t.Parallel()

	var gotID string
	q := Func(func(id string, _, quality []byte) []byte {
		gotID = id
		return quality
	})
	q.Reconstruct("read-7", nil, nil)
	assert.Equal(t, "read-7", gotID)
}
