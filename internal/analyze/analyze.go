// Package analyze streams a FASTQ corpus once and feeds every enabled
// accumulator: read lengths, the quality histogram and compression loss.
package analyze

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/vertti/fqloss/internal/encoder"
	"github.com/vertti/fqloss/internal/histogram"
	"github.com/vertti/fqloss/internal/loss"
	"github.com/vertti/fqloss/internal/parser"
	"github.com/vertti/fqloss/internal/quantize"
	"github.com/vertti/fqloss/internal/stats"
)

// Options selects the accumulators to run and tunes the pipeline.
type Options struct {
	Stats     bool             // Collect read lengths
	Histogram bool             // Build the quality histogram
	Loss      bool             // Evaluate compression loss
	Quantizer quantize.Factory // Required when Loss is set

	BatchBytes int // Sequence+quality bytes per batch (default: parser.DefaultBatchBytes)
	Workers    int // Number of parallel workers (default: NumCPU)

	Logger *slog.Logger
}

// Result holds the merged output of one pass.
type Result struct {
	Encoding encoder.QualityEncoding
	Reads    uint64
	Batches  int

	Lengths   *stats.Accumulator   // nil unless Options.Stats
	Histogram *histogram.Histogram // nil unless Options.Histogram
	Loss      *loss.Accumulator    // nil unless Options.Loss

	// LossErr is the first loss failure in input order. It stops loss
	// evaluation but not the other accumulators.
	LossErr error
}

// job is one batch of records to process.
type job struct {
	seqNum  int
	records []*parser.Record
}

// partial holds the accumulators of one batch.
type partial struct {
	seqNum  int
	reads   int
	lengths stats.Accumulator
	hist    histogram.Histogram
	loss    loss.Accumulator
	lossErr error
}

// Run reads FASTQ from r and returns the merged result. Ingestion errors
// abort the whole pass.
func Run(ctx context.Context, r io.Reader, opts *Options) (*Result, error) {
	if opts == nil {
		opts = &Options{Stats: true}
	}
	if opts.BatchBytes <= 0 {
		opts.BatchBytes = parser.DefaultBatchBytes
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Loss && opts.Quantizer == nil {
		return nil, errors.New("loss evaluation requires a quantizer")
	}

	// Parse first batch to detect quality encoding
	p := parser.New(r)
	firstBatch, err := p.NextBatch(opts.BatchBytes)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing FASTQ: %w", err)
	}
	firstBatchEOF := errors.Is(err, io.EOF)

	qualities := make([][]byte, len(firstBatch))
	for i, rec := range firstBatch {
		qualities[i] = rec.Quality
	}

	res := &Result{Encoding: encoder.DetectEncoding(qualities)}
	if opts.Stats {
		res.Lengths = &stats.Accumulator{}
	}
	if opts.Histogram {
		res.Histogram = &histogram.Histogram{}
	}

	var ev *loss.Evaluator
	if opts.Loss {
		q, err := opts.Quantizer(res.Encoding)
		if err != nil {
			return nil, fmt.Errorf("creating quantizer: %w", err)
		}
		if c, ok := q.(io.Closer); ok {
			defer c.Close() //nolint:errcheck // quantizer close during cleanup
		}
		ev = loss.NewEvaluator(q)
		res.Loss = &loss.Accumulator{}
	}
	opts.Logger.Debug("quality encoding detected", "encoding", res.Encoding.String())

	w := &worker{opts: opts, ev: ev}
	if opts.Workers == 1 {
		err = runSequential(firstBatch, firstBatchEOF, p, w, res)
	} else {
		err = runParallel(ctx, firstBatch, firstBatchEOF, p, w, res)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// worker turns batches into partials.
type worker struct {
	opts *Options
	ev   *loss.Evaluator
}

func (w *worker) process(j job) *partial {
	part := &partial{seqNum: j.seqNum, reads: len(j.records)}
	for _, rec := range j.records {
		if w.opts.Stats {
			part.lengths.Add(rec.Len())
		}
		if w.opts.Histogram {
			part.hist.Add(rec.Quality)
		}
	}
	if w.ev != nil {
		part.lossErr = w.ev.EvaluateAll(&part.loss, j.records)
	}
	return part
}

// merge folds a partial into the result. Partials must arrive in order.
func (res *Result) merge(part *partial, logger *slog.Logger) {
	res.Reads += uint64(part.reads) //nolint:gosec // batch size is non-negative
	res.Batches++
	if res.Lengths != nil {
		res.Lengths.Merge(&part.lengths)
	}
	if res.Histogram != nil {
		res.Histogram.Merge(&part.hist)
	}
	if res.Loss != nil && res.LossErr == nil {
		if part.lossErr != nil {
			res.LossErr = part.lossErr
		} else {
			res.Loss.Merge(&part.loss)
		}
	}
	logger.Debug("batch processed", "batch", part.seqNum, "reads", part.reads, "total_reads", res.Reads)
}

func runSequential(firstBatch []*parser.Record, firstBatchEOF bool, p *parser.Parser, w *worker, res *Result) error {
	seqNum := 0
	if len(firstBatch) > 0 {
		res.merge(w.process(job{seqNum: seqNum, records: firstBatch}), w.opts.Logger)
		seqNum++
	}
	if firstBatchEOF {
		return nil
	}

	for {
		batch, err := p.NextBatch(w.opts.BatchBytes)
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("parsing FASTQ: %w", err)
		}
		if len(batch) == 0 {
			return nil
		}
		res.merge(w.process(job{seqNum: seqNum, records: batch}), w.opts.Logger)
		seqNum++
	}
}

func runParallel(ctx context.Context, firstBatch []*parser.Record, firstBatchEOF bool, p *parser.Parser, w *worker, res *Result) error {
	jobs := make(chan job, w.opts.Workers*2)
	results := make(chan *partial, w.opts.Workers*2)

	g, gctx := errgroup.WithContext(ctx)

	// Start workers
	for range w.opts.Workers {
		g.Go(func() error {
			for j := range jobs {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}
				results <- w.process(j)
			}
			return nil
		})
	}

	// Producer: dispatch first batch and continue parsing
	g.Go(func() error {
		defer close(jobs)
		return produceJobs(gctx, jobs, firstBatch, firstBatchEOF, p, w.opts.BatchBytes)
	})

	// Collector: merge partials in input order
	collectorDone := make(chan struct{})
	go func() {
		defer close(collectorDone)
		collectInOrder(results, res, w.opts.Logger)
	}()

	// Wait for workers and producer
	err := g.Wait()
	close(results)

	// Wait for collector
	<-collectorDone
	return err
}

func produceJobs(ctx context.Context, jobs chan<- job, firstBatch []*parser.Record, firstBatchEOF bool, p *parser.Parser, batchBytes int) error {
	seqNum := 0

	// Send first batch if present
	if len(firstBatch) > 0 {
		select {
		case jobs <- job{seqNum: seqNum, records: firstBatch}:
			seqNum++
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if firstBatchEOF {
		return nil
	}

	for {
		batch, err := p.NextBatch(batchBytes)
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("parsing FASTQ: %w", err)
		}
		if len(batch) == 0 {
			return nil
		}

		select {
		case jobs <- job{seqNum: seqNum, records: batch}:
			seqNum++
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// collectInOrder buffers out-of-order partials so the merge order, and with
// it the floating-point result, does not depend on scheduling.
func collectInOrder(results <-chan *partial, res *Result, logger *slog.Logger) {
	pending := make(map[int]*partial)
	next := 0

	for part := range results {
		pending[part.seqNum] = part
		for {
			ready, ok := pending[next]
			if !ok {
				break
			}
			res.merge(ready, logger)
			delete(pending, next)
			next++
		}
	}
}
