// Package histogram tallies quality symbols across a read corpus.
package histogram

// Histogram counts occurrences of each quality symbol. The zero value is an
// empty histogram ready to use. It is not safe for concurrent use; build one
// per worker and Merge.
type Histogram struct {
	counts [256]uint64
}

// Add counts every symbol of one quality string.
func (h *Histogram) Add(quality []byte) {
	for _, q := range quality {
		h.counts[q]++
	}
}

// Merge adds the counts of o to h.
func (h *Histogram) Merge(o *Histogram) {
	for sym, n := range o.counts {
		h.counts[sym] += n
	}
}

// Count returns the number of times sym was seen.
func (h *Histogram) Count(sym byte) uint64 {
	return h.counts[sym]
}

// Total returns the number of symbols counted.
func (h *Histogram) Total() uint64 {
	var total uint64
	for _, n := range h.counts {
		total += n
	}
	return total
}

// Symbols returns the observed symbols in ascending order.
func (h *Histogram) Symbols() []byte {
	var syms []byte
	for sym, n := range h.counts {
		if n > 0 {
			syms = append(syms, byte(sym))
		}
	}
	return syms
}

// Len returns the number of distinct symbols observed.
func (h *Histogram) Len() int {
	n := 0
	for _, c := range h.counts {
		if c > 0 {
			n++
		}
	}
	return n
}
