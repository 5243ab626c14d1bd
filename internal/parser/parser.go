// Package parser provides streaming FASTQ parsing in byte-bounded batches.
package parser

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
)

// ErrMalformed is returned for input that is not valid FASTQ.
var ErrMalformed = errors.New("invalid FASTQ")

// DefaultBatchBytes is the default sequence+quality budget of one batch.
const DefaultBatchBytes = 64 << 20

// minChunk is the smallest backing buffer carved into record slices.
const minChunk = 1 << 16

// Record represents a single FASTQ record.
type Record struct {
	Header   string // Header line without the leading '@'
	Sequence []byte // Bases
	Quality  []byte // Quality symbols, same length as Sequence
}

// Len returns the read length.
func (r *Record) Len() int { return len(r.Sequence) }

// Parser reads FASTQ records from an input stream.
// It is a forward-only cursor: records are never re-read.
type Parser struct {
	reader *bufio.Reader
	line   []byte // reusable buffer for reading lines
	lineNo int
}

// New creates a new FASTQ parser.
func New(r io.Reader) *Parser {
	return &Parser{
		reader: bufio.NewReaderSize(r, 1<<20), // 1MB buffer
		line:   make([]byte, 0, 512),
	}
}

// Next reads and returns the next FASTQ record.
// Returns io.EOF when no more records are available.
func (p *Parser) Next() (*Record, error) {
	rec := &Record{}
	if _, err := p.nextInto(rec, nil, 0); err != nil {
		return nil, err
	}
	return rec, nil
}

// NextBatch reads records until their combined header, sequence and quality
// size reaches maxBytes. A batch holds at least one record whenever input
// remains, even if that record alone exceeds the budget.
// Returns an empty batch and io.EOF once the input is exhausted.
func (p *Parser) NextBatch(maxBytes int) ([]*Record, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultBatchBytes
	}

	var (
		batch   []*Record
		dataBuf []byte
		used    int
	)
	for used < maxBytes {
		rec := &Record{}
		var err error
		dataBuf, err = p.nextInto(rec, dataBuf, minChunk)
		if err != nil {
			if errors.Is(err, io.EOF) && len(batch) > 0 {
				return batch, nil
			}
			return batch, err
		}
		batch = append(batch, rec)
		used += len(rec.Header) + len(rec.Sequence) + len(rec.Quality)
	}
	return batch, nil
}

// nextInto parses a FASTQ record into rec, carving sequence and quality
// from dataBuf, which grows in chunks of at least chunk bytes.
// Returns the updated dataBuf.
func (p *Parser) nextInto(rec *Record, dataBuf []byte, chunk int) ([]byte, error) {
	// Line 1: Header (starts with @). Blank lines between records are skipped.
	line, err := p.readLine()
	for err == nil && len(line) == 0 {
		line, err = p.readLine()
	}
	if err != nil {
		return dataBuf, err
	}
	if line[0] != '@' {
		return dataBuf, p.malformed("header line must start with @")
	}
	rec.Header = string(line[1:])

	// Line 2: Sequence
	line, err = p.readRecordLine()
	if err != nil {
		return dataBuf, err
	}
	dataBuf = reserve(dataBuf, len(line), chunk)
	seqStart := len(dataBuf)
	dataBuf = append(dataBuf, line...)
	rec.Sequence = dataBuf[seqStart:len(dataBuf):len(dataBuf)]

	// Line 3: Plus line (we ignore it)
	line, err = p.readRecordLine()
	if err != nil {
		return dataBuf, err
	}
	if len(line) == 0 || line[0] != '+' {
		return dataBuf, p.malformed("separator line must start with +")
	}

	// Line 4: Quality scores
	line, err = p.readRecordLine()
	if err != nil {
		return dataBuf, err
	}
	dataBuf = reserve(dataBuf, len(line), chunk)
	qualStart := len(dataBuf)
	dataBuf = append(dataBuf, line...)
	rec.Quality = dataBuf[qualStart:len(dataBuf):len(dataBuf)]

	if len(rec.Sequence) != len(rec.Quality) {
		return dataBuf, p.malformed(fmt.Sprintf("sequence and quality lengths differ (%d vs %d) in record %q",
			len(rec.Sequence), len(rec.Quality), rec.Header))
	}

	return dataBuf, nil
}

// reserve makes room for n more bytes without moving existing data, so
// slices already handed out keep pointing at their own backing array.
func reserve(buf []byte, n, chunk int) []byte {
	if cap(buf)-len(buf) >= n {
		return buf
	}
	return make([]byte, 0, max(n, chunk))
}

// readRecordLine reads a line that must exist inside a record.
func (p *Parser) readRecordLine() ([]byte, error) {
	line, err := p.readLine()
	if errors.Is(err, io.EOF) {
		return nil, p.malformed("truncated record")
	}
	return line, err
}

func (p *Parser) malformed(msg string) error {
	return fmt.Errorf("%w: line %d: %s", ErrMalformed, p.lineNo, msg)
}

// readLine reads a line from the input, stripping the newline.
// Reuses an internal buffer to minimize allocations.
func (p *Parser) readLine() ([]byte, error) {
	p.line = p.line[:0]

	for {
		segment, isPrefix, err := p.reader.ReadLine()
		if err != nil {
			return nil, err
		}

		p.line = append(p.line, segment...)

		if !isPrefix {
			break
		}
	}
	p.lineNo++

	// Trim any trailing CR (for Windows line endings)
	p.line = bytes.TrimSuffix(p.line, []byte{'\r'})

	return p.line, nil
}
