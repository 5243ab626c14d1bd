// Package stats computes corpus-level read length statistics.
package stats

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
)

// ErrEmptyCorpus is returned when statistics are requested for zero reads.
var ErrEmptyCorpus = errors.New("empty corpus")

// Summary holds the length statistics of a read corpus.
type Summary struct {
	Count      uint64  // Number of reads
	TotalBases uint64  // Sum of read lengths
	MeanLength float64 // TotalBases / Count
	N50        int     // Length at which half the bases are in reads at least this long
	N90        int     // Same at 90 percent
	MinLength  int     // Shortest read
	MaxLength  int     // Longest read
}

// Accumulator collects read lengths. The zero value is ready to use.
// It is not safe for concurrent use; build one per worker and Merge.
type Accumulator struct {
	lengths []int
	total   uint64
}

// Add records one read length.
func (a *Accumulator) Add(length int) {
	a.lengths = append(a.lengths, length)
	a.total += uint64(length) //nolint:gosec // lengths are non-negative
}

// Merge appends the lengths collected by o.
func (a *Accumulator) Merge(o *Accumulator) {
	a.lengths = append(a.lengths, o.lengths...)
	a.total += o.total
}

// Count returns the number of lengths recorded so far.
func (a *Accumulator) Count() int { return len(a.lengths) }

// Result computes the summary. It sorts the collected lengths in place.
func (a *Accumulator) Result() (Summary, error) {
	if len(a.lengths) == 0 {
		return Summary{}, ErrEmptyCorpus
	}

	slices.SortFunc(a.lengths, descending)

	return Summary{
		Count:      uint64(len(a.lengths)),
		TotalBases: a.total,
		MeanLength: float64(a.total) / float64(len(a.lengths)),
		N50:        nx(a.lengths, a.total, 50),
		N90:        nx(a.lengths, a.total, 90),
		MinLength:  a.lengths[len(a.lengths)-1],
		MaxLength:  a.lengths[0],
	}, nil
}

// Nx returns the length L such that reads of length L or longer hold at
// least x percent of all bases. lengths must be non-empty.
func Nx(lengths []int, x int) (int, error) {
	if len(lengths) == 0 {
		return 0, ErrEmptyCorpus
	}
	if x <= 0 || x > 100 {
		return 0, fmt.Errorf("Nx percentage %d out of range (0, 100]", x)
	}
	sorted := slices.Clone(lengths)
	slices.SortFunc(sorted, descending)

	var total uint64
	for _, l := range sorted {
		total += uint64(l) //nolint:gosec // lengths are non-negative
	}
	return nx(sorted, total, x), nil
}

// nx scans lengths sorted in non-increasing order and returns the first
// length at which the running sum reaches x percent of total. The
// comparison is done in integers, so there is no rounding at the threshold.
func nx(sorted []int, total uint64, x int) int {
	var running uint64
	for _, l := range sorted {
		running += uint64(l) //nolint:gosec // lengths are non-negative
		if running*100 >= total*uint64(x) { //nolint:gosec // x is in (0, 100]
			return l
		}
	}
	// The running sum equals total after the last length.
	return sorted[len(sorted)-1]
}

func descending(a, b int) int { return cmp.Compare(b, a) }
