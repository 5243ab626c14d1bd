// Package report writes fqloss results: the quality histogram CSV, the
// aggregate loss value and the human-readable corpus summary.
package report

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/vertti/fqloss/internal/histogram"
	"github.com/vertti/fqloss/internal/stats"
)

// ErrDestination is returned when the histogram file cannot be written.
var ErrDestination = errors.New("cannot write histogram")

// HistogramHeader is the first row of the histogram CSV.
var HistogramHeader = []string{"Quality", "Frequency"}

// WriteHistogramCSV writes one row per observed symbol, its code point and
// count, in ascending code point order.
func WriteHistogramCSV(w io.Writer, h *histogram.Histogram) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(HistogramHeader); err != nil {
		return err
	}
	for _, sym := range h.Symbols() {
		row := []string{
			strconv.Itoa(int(sym)),
			strconv.FormatUint(h.Count(sym), 10),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteHistogramFile creates or truncates path and writes the histogram.
func WriteHistogramFile(path string, h *histogram.Histogram) (err error) {
	f, err := os.Create(path) //nolint:gosec // CLI tool writes user-specified files
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDestination, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: %w", ErrDestination, cerr)
		}
	}()

	bw := bufio.NewWriterSize(f, 1<<16)
	if err := WriteHistogramCSV(bw, h); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDestination, path, err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDestination, path, err)
	}
	return nil
}

// WriteLoss prints the aggregate loss with six fractional digits.
func WriteLoss(w io.Writer, mean float64) error {
	_, err := fmt.Fprintf(w, "%.6f\n", mean)
	return err
}

// WriteSummary prints the corpus statistics for a human reader.
func WriteSummary(w io.Writer, s stats.Summary) error {
	_, err := fmt.Fprintf(w, `FASTQ reads:
Number of reads: %d
Total bases: %d
Average length: %g
N50 length: %d
N90 length: %d
Minimal length: %d
Maximal length: %d

`, s.Count, s.TotalBases, s.MeanLength, s.N50, s.N90, s.MinLength, s.MaxLength)
	return err
}
