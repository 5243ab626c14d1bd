// fqloss measures the information lost by lossy quality-score quantization
// of FASTQ reads and reports corpus length statistics.
package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/spf13/pflag"

	"github.com/vertti/fqloss/internal/analyze"
	"github.com/vertti/fqloss/internal/parser"
	"github.com/vertti/fqloss/internal/quantize"
	"github.com/vertti/fqloss/internal/report"
)

var version = "v0.2.0"

// Every documented path exits successfully; failures are reported on stderr.
const exitSuccess = 0

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

type config struct {
	help        bool
	showVersion bool
	test        bool
	csvFile     string
	inputFile   string
	quantizer   string
	workers     int
	batchBytes  int
	logLevel    string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	cfg, fs := parseFlags(args, logger)
	if cfg.logLevel != "" {
		if err := level.UnmarshalText([]byte(cfg.logLevel)); err != nil {
			logger.Warn("ignoring invalid log level", "value", cfg.logLevel)
		}
	}

	if cfg.help {
		usage(stdout, fs)
	}
	if cfg.showVersion {
		fmt.Fprintln(stdout, version)
	}
	if cfg.inputFile != "" {
		analyzeCorpus(context.Background(), cfg, stdout, stderr, logger)
	}
	return exitSuccess
}

func newFlagSet(cfg *config) *pflag.FlagSet {
	fs := pflag.NewFlagSet("fqloss", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.SortFlags = false

	fs.BoolVarP(&cfg.help, "help", "h", false, "print this help message")
	fs.BoolVarP(&cfg.showVersion, "version", "v", false, "print the version")
	fs.BoolVarP(&cfg.test, "test", "t", false, "print the average compression loss over all reads to stdout")
	fs.StringVarP(&cfg.csvFile, "file-csv", "f", "", "write quality symbol frequencies to this CSV `path`")
	fs.StringVarP(&cfg.quantizer, "quantizer", "q", quantize.Default,
		"quality codec to evaluate ("+strings.Join(quantize.Names(), ", ")+")")
	fs.IntVarP(&cfg.workers, "workers", "w", 0, "analysis workers (default: NumCPU)")
	fs.IntVarP(&cfg.batchBytes, "batch-bytes", "b", parser.DefaultBatchBytes, "sequence+quality bytes read per batch")
	fs.StringVar(&cfg.logLevel, "log-level", "info", "diagnostic log level (debug, info, warn, error)")
	return fs
}

// parseFlags never fails: unknown options and malformed values are logged
// and the remaining options still apply.
func parseFlags(args []string, logger *slog.Logger) (config, *pflag.FlagSet) {
	var cfg config
	fs := newFlagSet(&cfg)

	clean, unknown, malformed := filterArgs(fs, args)
	for _, opt := range unknown {
		logger.Warn("ignoring unknown option", "option", opt)
	}
	for _, opt := range malformed {
		logger.Warn("ignoring malformed option", "option", opt)
	}
	if err := fs.Parse(clean); err != nil {
		logger.Warn("ignoring malformed option", "error", err)
	}

	// Handle positional argument
	if fs.NArg() > 0 {
		cfg.inputFile = fs.Arg(0)
	}
	if fs.NArg() > 1 {
		logger.Warn("ignoring extra arguments", "args", fs.Args()[1:])
	}
	return cfg, fs
}

// filterArgs removes every option pflag would stop at, so one bad option
// cannot hide the arguments after it. Unknown names are returned in unknown,
// rejected or missing values in malformed. Long options may be abbreviated
// to any unique prefix and are rewritten to their full name.
func filterArgs(fs *pflag.FlagSet, args []string) (clean, unknown, malformed []string) {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--":
			return append(clean, args[i:]...), unknown, malformed

		case strings.HasPrefix(arg, "--"):
			name, value, hasValue := strings.Cut(arg[2:], "=")
			f := lookupLong(fs, name)
			if f == nil {
				unknown = append(unknown, arg)
				continue
			}
			if !hasValue && f.NoOptDefVal == "" {
				if i+1 >= len(args) {
					malformed = append(malformed, arg)
					continue
				}
				i++
				value, hasValue = args[i], true
			}
			switch {
			case !hasValue:
				clean = append(clean, "--"+f.Name)
			case acceptsValue(f, value):
				clean = append(clean, "--"+f.Name+"="+value)
			default:
				malformed = append(malformed, "--"+f.Name+"="+value)
			}

		case len(arg) > 1 && arg[0] == '-':
			kept := []byte{'-'}
			var value []string
			for j := 1; j < len(arg); j++ {
				short := arg[j : j+1]
				f := fs.ShorthandLookup(short)
				if f == nil {
					unknown = append(unknown, "-"+short)
					continue
				}
				if f.NoOptDefVal != "" {
					kept = append(kept, arg[j])
					continue
				}
				// The value is the rest of this token or the next argument.
				v := arg[j+1:]
				if v == "" {
					if i+1 >= len(args) {
						malformed = append(malformed, "-"+short)
						break
					}
					i++
					v = args[i]
				}
				if acceptsValue(f, v) {
					kept = append(kept, arg[j])
					value = append(value, v)
				} else {
					malformed = append(malformed, "-"+short+" "+v)
				}
				break
			}
			if len(kept) > 1 {
				clean = append(clean, string(kept))
				clean = append(clean, value...)
			}

		default:
			clean = append(clean, arg)
		}
	}
	return clean, unknown, malformed
}

// lookupLong finds a long option by its full name or a unique prefix.
func lookupLong(fs *pflag.FlagSet, name string) *pflag.Flag {
	if f := fs.Lookup(name); f != nil || name == "" {
		return f
	}
	var (
		match   *pflag.Flag
		matches int
	)
	fs.VisitAll(func(f *pflag.Flag) {
		if strings.HasPrefix(f.Name, name) {
			match = f
			matches++
		}
	})
	if matches != 1 {
		return nil
	}
	return match
}

// acceptsValue reports whether f parses value. f keeps its current value.
func acceptsValue(f *pflag.Flag, value string) bool {
	old := f.Value.String()
	err := f.Value.Set(value)
	// pflag scalars overwrite themselves even when parsing fails.
	_ = f.Value.Set(old)
	return err == nil
}

func usage(w io.Writer, fs *pflag.FlagSet) {
	fmt.Fprintf(w, `fqloss - Measure quality-score compression loss in FASTQ files

Usage:
  fqloss [options] reads.fastq[.gz|.zst]

Options:
`)
	fs.SetOutput(w)
	fs.PrintDefaults()
	fs.SetOutput(io.Discard)
	fmt.Fprintf(w, `
fqloss takes one FASTQ file as its argument ("-" reads stdin). Length
statistics are always printed to stderr.

Examples:
  fqloss -t sample.fq                        Print the average block64 loss
  fqloss -t -q illumina8 sample.fastq.gz     Evaluate Illumina 8-level binning
  fqloss -f quality.csv sample.fq            Write the quality histogram
`)
}

// analyzeCorpus runs every requested action over one pass of the input.
// Failures are logged; independent actions still complete.
func analyzeCorpus(ctx context.Context, cfg config, stdout, stderr io.Writer, logger *slog.Logger) {
	evaluate := cfg.test
	factory, err := quantize.Lookup(cfg.quantizer)
	if err != nil && evaluate {
		logger.Error("compression loss not evaluated", "error", err)
		evaluate = false
	}

	input, cleanup, err := openInput(cfg.inputFile)
	if err != nil {
		logger.Error("reading input failed", "error", err)
		return
	}
	defer cleanup()

	res, err := analyze.Run(ctx, input, &analyze.Options{
		Stats:      true,
		Histogram:  cfg.csvFile != "",
		Loss:       evaluate,
		Quantizer:  factory,
		BatchBytes: cfg.batchBytes,
		Workers:    cfg.workers,
		Logger:     logger,
	})
	if err != nil {
		logger.Error("reading input failed", "path", cfg.inputFile, "error", err)
		return
	}
	logger.Info("reads loaded", "reads", res.Reads, "batches", res.Batches, "encoding", res.Encoding.String())

	if summary, err := res.Lengths.Result(); err != nil {
		logger.Warn("no length statistics", "error", err)
	} else if err := report.WriteSummary(stderr, summary); err != nil {
		logger.Error("writing summary failed", "error", err)
	}

	if cfg.csvFile != "" {
		if err := report.WriteHistogramFile(cfg.csvFile, res.Histogram); err != nil {
			logger.Error("CSV file not created", "error", err)
		} else {
			logger.Info("CSV file created", "path", cfg.csvFile, "symbols", res.Histogram.Len())
		}
	}

	if evaluate {
		writeLoss(stdout, res, cfg.quantizer, logger)
	}
}

func writeLoss(stdout io.Writer, res *analyze.Result, quantizer string, logger *slog.Logger) {
	if res.LossErr != nil {
		logger.Error("compression loss not evaluated", "quantizer", quantizer, "error", res.LossErr)
		return
	}
	mean, err := res.Loss.Mean()
	if err != nil {
		logger.Error("compression loss not evaluated", "quantizer", quantizer, "error", err)
		return
	}
	if err := report.WriteLoss(stdout, mean); err != nil {
		logger.Error("writing loss failed", "error", err)
		return
	}
	logger.Debug("compression loss", "quantizer", quantizer, "mean", mean, "max", res.Loss.Max(), "reads", res.Loss.Count())
}

func openInput(path string) (io.Reader, func(), error) {
	if path == "-" {
		return wrapInputMaybeCompressed(path, os.Stdin, func() {})
	}

	f, err := os.Open(path) //nolint:gosec // CLI tool needs to open user-specified files
	if err != nil {
		return nil, nil, fmt.Errorf("cannot open input: %w", err)
	}
	return wrapInputMaybeCompressed(path, f, func() { _ = f.Close() })
}

func wrapInputMaybeCompressed(path string, in io.Reader, closeInput func()) (io.Reader, func(), error) {
	br := bufio.NewReaderSize(in, 1<<20)
	header, err := br.Peek(len(zstdMagic))
	if err != nil && !errors.Is(err, io.EOF) {
		closeInput()
		return nil, nil, fmt.Errorf("cannot inspect input: %w", err)
	}

	lower := strings.ToLower(path)
	switch {
	case bytes.HasPrefix(header, gzipMagic) || strings.HasSuffix(lower, ".gz"):
		gz, err := gzip.NewReader(br)
		if err != nil {
			closeInput()
			return nil, nil, fmt.Errorf("cannot open gzip input: %w", err)
		}
		return gz, func() {
			_ = gz.Close()
			closeInput()
		}, nil

	case bytes.HasPrefix(header, zstdMagic) || strings.HasSuffix(lower, ".zst"):
		zr, err := zstd.NewReader(br)
		if err != nil {
			closeInput()
			return nil, nil, fmt.Errorf("cannot open zstd input: %w", err)
		}
		return zr, func() {
			zr.Close()
			closeInput()
		}, nil
	}

	return br, closeInput, nil
}
