package dedup

import (
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// DefaultFalsePositiveRate is the bit-level false positive rate used to size
// the filter when Options.FalsePositiveRate is zero.
const DefaultFalsePositiveRate = 1e-4

var (
	// ErrInvalidRange is returned when a Range does not fit the line source.
	ErrInvalidRange = errors.New("dedup: invalid line range")

	// ErrInvalidMode is returned for an unknown Mode.
	ErrInvalidMode = errors.New("dedup: invalid mode")

	// ErrInvalidVerify is returned for an unknown VerifyStrategy.
	ErrInvalidVerify = errors.New("dedup: invalid verify strategy")
)

// Mode selects which lines count as duplicates.
type Mode int

const (
	// Global removes every line equal to any earlier line in the range.
	Global Mode = iota
	// Adjacent removes a line only when it equals the line kept just before it.
	Adjacent
)

func (m Mode) String() string {
	switch m {
	case Global:
		return "global"
	case Adjacent:
		return "adjacent"
	default:
		return "unknown"
	}
}

// ParseMode parses the String form of a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "global", "":
		return Global, nil
	case "adjacent":
		return Adjacent, nil
	}
	return 0, errors.Wrapf(ErrInvalidMode, "%q", s)
}

// VerifyStrategy selects how global mode confirms a candidate duplicate
// reported by the bloom filter.
type VerifyStrategy int

const (
	// VerifyScan compares the candidate with every line kept so far.
	VerifyScan VerifyStrategy = iota
	// VerifyIndex looks the candidate up in a hash index of the kept lines
	// and compares only the lines sharing its hash.
	VerifyIndex
	// VerifyNone trusts the filter. Lines that are false positives are
	// deleted even though they are unique.
	VerifyNone
)

func (v VerifyStrategy) String() string {
	switch v {
	case VerifyScan:
		return "scan"
	case VerifyIndex:
		return "index"
	case VerifyNone:
		return "none"
	default:
		return "unknown"
	}
}

// ParseVerifyStrategy parses the String form of a VerifyStrategy.
func ParseVerifyStrategy(s string) (VerifyStrategy, error) {
	switch strings.ToLower(s) {
	case "scan", "":
		return VerifyScan, nil
	case "index":
		return VerifyIndex, nil
	case "none":
		return VerifyNone, nil
	}
	return 0, errors.Wrapf(ErrInvalidVerify, "%q", s)
}

// Range is a half-open range [Start, End) of line indices. An End of zero
// extends the range to the last line, so the zero Range covers the whole
// source.
type Range struct {
	Start int
	End   int
}

// resolve clamps r to a source holding count lines.
func (r Range) resolve(count int) (lo, hi int, err error) {
	if r.Start < 0 || r.End < 0 {
		return 0, 0, errors.Wrapf(ErrInvalidRange, "negative bound in [%d, %d)", r.Start, r.End)
	}
	hi = r.End
	if hi == 0 || hi > count {
		hi = count
	}
	if r.Start > hi {
		return 0, 0, errors.Wrapf(ErrInvalidRange, "start %d is past end %d", r.Start, hi)
	}
	return r.Start, hi, nil
}

// Options configures a Scan. The zero value removes global duplicates from
// the whole source with exact verification.
type Options struct {
	Mode  Mode
	Range Range

	// FalsePositiveRate sizes the bloom filter in global mode. Zero means
	// DefaultFalsePositiveRate.
	FalsePositiveRate float64

	// Verify selects how global mode confirms filter hits.
	Verify VerifyStrategy

	// Logger receives debug output. Nil disables logging.
	Logger *zap.Logger

	// Metrics records scan statistics. Nil disables recording.
	Metrics *Metrics
}

func (o Options) withDefaults() (Options, error) {
	switch o.Mode {
	case Global, Adjacent:
	default:
		return o, errors.Wrapf(ErrInvalidMode, "%d", o.Mode)
	}
	switch o.Verify {
	case VerifyScan, VerifyIndex, VerifyNone:
	default:
		return o, errors.Wrapf(ErrInvalidVerify, "%d", o.Verify)
	}
	if o.FalsePositiveRate == 0 {
		o.FalsePositiveRate = DefaultFalsePositiveRate
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o, nil
}
