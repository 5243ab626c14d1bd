// Package loss measures how far reconstructed quality strings deviate from
// the originals.
package loss

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/vertti/fqloss/internal/parser"
	"github.com/vertti/fqloss/internal/quantize"
)

var (
	// ErrLengthMismatch means a quantizer broke its contract by returning a
	// quality string of a different length.
	ErrLengthMismatch = errors.New("reconstructed quality length differs from original")

	// ErrEmptyCorpus is returned when a mean is requested over zero reads.
	ErrEmptyCorpus = errors.New("empty corpus")
)

// MismatchError reports a length mismatch for one read.
type MismatchError struct {
	ID            string
	Original      int
	Reconstructed int
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("read %q: %v (%d vs %d)", e.ID, ErrLengthMismatch, e.Original, e.Reconstructed)
}

func (e *MismatchError) Unwrap() error { return ErrLengthMismatch }

// ReadLoss returns the mean absolute difference between the code points of
// original and reconstructed. An empty read has zero loss.
func ReadLoss(original, reconstructed []byte) (float64, error) {
	if len(original) != len(reconstructed) {
		return 0, &MismatchError{Original: len(original), Reconstructed: len(reconstructed)}
	}
	if len(original) == 0 {
		return 0, nil
	}

	var diff int64
	for i, q := range original {
		d := int64(q) - int64(reconstructed[i])
		if d < 0 {
			d = -d
		}
		diff += d
	}
	return float64(diff) / float64(len(original)), nil
}

// Evaluator computes per-read loss through a quantizer.
type Evaluator struct {
	q quantize.Quantizer
}

// NewEvaluator returns an evaluator for q.
func NewEvaluator(q quantize.Quantizer) *Evaluator {
	return &Evaluator{q: q}
}

// Evaluate reconstructs rec's quality and returns its loss.
func (e *Evaluator) Evaluate(rec *parser.Record) (float64, error) {
	reconstructed := e.q.Reconstruct(rec.Header, rec.Sequence, rec.Quality)
	l, err := ReadLoss(rec.Quality, reconstructed)
	if err != nil {
		var mm *MismatchError
		if errors.As(err, &mm) {
			mm.ID = rec.Header
		}
		return 0, err
	}
	return l, nil
}

// EvaluateAll adds the loss of every record to acc.
func (e *Evaluator) EvaluateAll(acc *Accumulator, records []*parser.Record) error {
	for _, rec := range records {
		l, err := e.Evaluate(rec)
		if err != nil {
			return err
		}
		acc.Add(l)
	}
	return nil
}

// extendedPrec is the mantissa precision of the running sum.
const extendedPrec = 128

// Accumulator keeps the running sum of per-read losses in extended
// precision. The zero value is ready to use. An Accumulator must not be
// copied after first use.
type Accumulator struct {
	sum     big.Float
	scratch big.Float
	count   uint64
	worst   float64
}

func (a *Accumulator) init() {
	if a.sum.Prec() == 0 {
		a.sum.SetPrec(extendedPrec)
	}
}

// Add records the loss of one read.
func (a *Accumulator) Add(readLoss float64) {
	a.init()
	a.sum.Add(&a.sum, a.scratch.SetFloat64(readLoss))
	a.count++
	a.worst = max(a.worst, readLoss)
}

// Merge adds the sum and count of o. Partial means are never combined.
func (a *Accumulator) Merge(o *Accumulator) {
	a.init()
	a.sum.Add(&a.sum, &o.sum)
	a.count += o.count
	a.worst = max(a.worst, o.worst)
}

// Count returns the number of reads recorded.
func (a *Accumulator) Count() uint64 { return a.count }

// Max returns the largest per-read loss recorded.
func (a *Accumulator) Max() float64 { return a.worst }

// Mean returns the unweighted mean of the per-read losses.
func (a *Accumulator) Mean() (float64, error) {
	if a.count == 0 {
		return 0, ErrEmptyCorpus
	}
	var mean big.Float
	mean.SetPrec(extendedPrec)
	mean.Quo(&a.sum, new(big.Float).SetUint64(a.count))
	f, _ := mean.Float64()
	return f, nil
}
