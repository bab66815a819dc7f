// Package dedup removes duplicate lines from a line source, keeping the first
// occurrence of every line and never reordering the lines it keeps.
//
// Global mode tracks the kept lines in a [linebloom.Filter] so that testing a
// new line costs O(k) hash evaluations instead of a scan over everything seen
// so far. Bloom filter hits are confirmed exactly before a line is deleted.
// Adjacent mode only compares each line with the one kept before it.
package dedup

import (
	"bytes"
	"time"

	"github.com/jcalabro/linebloom"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// LineSource is random access to the lines of a text buffer.
//
// Deleting line i must shift every later line down by one immediately, so
// that line i+1 becomes line i.
type LineSource interface {
	// LineCount returns the number of lines.
	LineCount() int
	// Line returns the text of line i without its terminator. It returns
	// false when i is past the last line. The returned slice is only read
	// until the next call that modifies the source.
	Line(i int) ([]byte, bool)
	// DeleteLine removes line i.
	DeleteLine(i int) error
}

// EditGrouper is implemented by line sources that can group a series of
// deletions into one undoable edit.
type EditGrouper interface {
	BeginEdit()
	EndEdit()
}

// Result summarizes a Scan.
type Result struct {
	// Scanned is the number of lines examined.
	Scanned int
	// Deleted is the number of duplicate lines removed.
	Deleted int
	// Candidates is the number of filter hits in global mode. With
	// VerifyNone every candidate is deleted.
	Candidates int
	// FalsePositives is the number of filter hits that verification
	// rejected.
	FalsePositives int
}

// Scan removes duplicate lines from the range of src selected by opts.
//
// In global mode the filter is built before any line is touched; if that
// fails, src is left unmodified. If DeleteLine fails the scan stops and
// returns the counts so far together with the error.
func Scan(src LineSource, opts Options) (Result, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return Result{}, err
	}
	lo, hi, err := opts.Range.resolve(src.LineCount())
	if err != nil {
		return Result{}, err
	}

	s := &scanner{
		src:  src,
		opts: opts,
		lg:   opts.Logger.With(zap.Stringer("mode", opts.Mode)),
		lo:   lo,
		hi:   hi,
	}

	start := time.Now()
	var res Result
	switch opts.Mode {
	case Adjacent:
		res, err = s.adjacent()
	default:
		res, err = s.global()
	}
	opts.Metrics.observe(opts.Mode, res, time.Since(start))

	s.lg.Debug("scan finished",
		zap.Int("scanned", res.Scanned),
		zap.Int("deleted", res.Deleted),
		zap.Int("candidates", res.Candidates),
		zap.Int("false_positives", res.FalsePositives),
		zap.Duration("took", time.Since(start)),
		zap.Error(err),
	)
	return res, err
}

type scanner struct {
	src  LineSource
	opts Options
	lg   *zap.Logger

	lo, hi int // Current range; hi shrinks as lines are deleted
	cursor int // Next line to examine; lines in [lo, cursor) were kept
}

func (s *scanner) global() (Result, error) {
	var res Result

	var verifier *countingVerifier
	switch s.opts.Verify {
	case VerifyScan:
		verifier = &countingVerifier{keptLines: &linearVerifier{src: s.src, lo: s.lo, cursor: &s.cursor}}
	case VerifyIndex:
		verifier = &countingVerifier{keptLines: newIndexVerifier(s.src, s.hi-s.lo)}
	}

	// An empty range still gets a filter, sized for one line.
	expected := uint64(max(s.hi-s.lo, 1))
	var f *linebloom.Filter
	var err error
	if verifier != nil {
		f, err = linebloom.New(expected, s.opts.FalsePositiveRate, verifier)
	} else {
		f, err = linebloom.New(expected, s.opts.FalsePositiveRate, nil)
	}
	if err != nil {
		return res, errors.Wrap(err, "dedup: build filter")
	}
	s.opts.Metrics.filterBuilt(f)
	s.lg.Debug("built filter",
		zap.Int("lines", s.hi-s.lo),
		zap.Uint64("bits", f.Cap()),
		zap.Uint32("k", f.K()),
		zap.Stringer("verify", s.opts.Verify),
	)

	defer s.group()()

	for s.cursor = s.lo; s.cursor < s.hi; {
		line, ok := s.src.Line(s.cursor)
		if !ok {
			break
		}
		res.Scanned++

		// The first line of the range is always kept.
		if f.Size() == 0 || !f.Contains(line) {
			f.Add(line)
			if verifier != nil {
				verifier.kept(s.cursor, line)
			}
			s.cursor++
			continue
		}

		if verifier == nil {
			res.Candidates++
		}
		if err := s.delete(&res); err != nil {
			s.countVerifier(&res, verifier)
			return res, err
		}
	}

	s.countVerifier(&res, verifier)
	return res, nil
}

func (s *scanner) countVerifier(res *Result, v *countingVerifier) {
	if v == nil {
		return
	}
	res.Candidates = v.candidates
	res.FalsePositives = v.falsePositives
}

func (s *scanner) adjacent() (Result, error) {
	var res Result
	var prev []byte
	havePrev := false

	defer s.group()()

	for s.cursor = s.lo; s.cursor < s.hi; {
		line, ok := s.src.Line(s.cursor)
		if !ok {
			break
		}
		res.Scanned++

		if havePrev && bytes.Equal(line, prev) {
			if err := s.delete(&res); err != nil {
				return res, err
			}
			continue
		}

		// The source may reuse line's memory after a delete.
		prev = append(prev[:0], line...)
		havePrev = true
		s.cursor++
	}

	return res, nil
}

// delete removes the line at the cursor. The next line moves into its place,
// so the cursor stays put and the range shrinks.
func (s *scanner) delete(res *Result) error {
	if err := s.src.DeleteLine(s.cursor); err != nil {
		return errors.Wrapf(err, "dedup: delete line %d", s.cursor)
	}
	res.Deleted++
	s.hi--
	return nil
}

// group starts an edit group on sources that support one and returns the
// function that ends it.
func (s *scanner) group() func() {
	g, ok := s.src.(EditGrouper)
	if !ok {
		return func() {}
	}
	g.BeginEdit()
	return g.EndEdit
}

// Lines returns lines with duplicates removed according to opts. The input
// slice is not modified.
func Lines(lines [][]byte, opts Options) ([][]byte, Result, error) {
	src := &sliceSource{lines: append([][]byte(nil), lines...)}
	res, err := Scan(src, opts)
	if err != nil {
		return nil, res, err
	}
	return src.lines, res, nil
}

// sliceSource is a LineSource over a slice of lines.
type sliceSource struct {
	lines [][]byte
}

func (s *sliceSource) LineCount() int { return len(s.lines) }

func (s *sliceSource) Line(i int) ([]byte, bool) {
	if i < 0 || i >= len(s.lines) {
		return nil, false
	}
	return s.lines[i], true
}

func (s *sliceSource) DeleteLine(i int) error {
	if i < 0 || i >= len(s.lines) {
		return errors.Errorf("line %d out of range", i)
	}
	s.lines = append(s.lines[:i], s.lines[i+1:]...)
	return nil
}
