package dedup

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/jcalabro/linebloom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func toLines(ss ...string) [][]byte {
	lines := make([][]byte, len(ss))
	for i, s := range ss {
		lines[i] = []byte(s)
	}
	return lines
}

func toStrings(lines [][]byte) []string {
	ss := make([]string, len(lines))
	for i, l := range lines {
		ss[i] = string(l)
	}
	return ss
}

// recordingSource wraps a sliceSource and records edit grouping calls.
type recordingSource struct {
	sliceSource
	events    []string
	failAfter int // fail DeleteLine once this many deletes succeeded, if > 0
	deletes   int
}

func (r *recordingSource) BeginEdit() { r.events = append(r.events, "begin") }
func (r *recordingSource) EndEdit()   { r.events = append(r.events, "end") }

func (r *recordingSource) DeleteLine(i int) error {
	if r.failAfter > 0 && r.deletes == r.failAfter {
		return errors.New("read-only buffer")
	}
	r.deletes++
	return r.sliceSource.DeleteLine(i)
}

func TestScanGlobal(t *testing.T) {
	for _, v := range []VerifyStrategy{VerifyScan, VerifyIndex, VerifyNone} {
		t.Run(v.String(), func(t *testing.T) {
			out, res, err := Lines(toLines("a", "b", "a", "c", "b"), Options{Verify: v})
			require.NoError(t, err)
			require.Equal(t, []string{"a", "b", "c"}, toStrings(out))
			require.Equal(t, 2, res.Deleted)
			require.Equal(t, 5, res.Scanned)
		})
	}
}

func TestScanAdjacent(t *testing.T) {
	tests := []struct {
		name    string
		in      []string
		want    []string
		deleted int
	}{
		{"no adjacent duplicates", []string{"a", "b", "a", "c", "b"}, []string{"a", "b", "a", "c", "b"}, 0},
		{"runs", []string{"a", "a", "b", "b", "b", "a"}, []string{"a", "b", "a"}, 3},
		{"blank lines", []string{"", "", "x", "", ""}, []string{"", "x", ""}, 2},
		{"single line", []string{"only"}, []string{"only"}, 0},
		{"all equal", []string{"z", "z", "z", "z"}, []string{"z"}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, res, err := Lines(toLines(tt.in...), Options{Mode: Adjacent})
			require.NoError(t, err)
			assert.Equal(t, tt.want, toStrings(out))
			assert.Equal(t, tt.deleted, res.Deleted)
			assert.Equal(t, len(tt.in), res.Scanned)
			assert.Zero(t, res.Candidates)
		})
	}
}

func TestScanGlobalBlankLines(t *testing.T) {
	out, res, err := Lines(toLines("", "x", "", "y", "x"), Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"", "x", "y"}, toStrings(out))
	assert.Equal(t, 2, res.Deleted)
}

func TestScanEmptyRange(t *testing.T) {
	for _, mode := range []Mode{Global, Adjacent} {
		t.Run(mode.String(), func(t *testing.T) {
			out, res, err := Lines(nil, Options{Mode: mode})
			require.NoError(t, err)
			assert.Empty(t, out)
			assert.Equal(t, Result{}, res)

			src := &sliceSource{lines: toLines("a", "a", "a")}
			res, err = Scan(src, Options{Mode: mode, Range: Range{Start: 2, End: 2}})
			require.NoError(t, err)
			assert.Equal(t, Result{}, res)
			assert.Len(t, src.lines, 3)
		})
	}
}

func TestScanRange(t *testing.T) {
	src := &sliceSource{lines: toLines("a", "b", "a", "b", "a")}

	res, err := Scan(src, Options{Range: Range{Start: 1, End: 4}})
	require.NoError(t, err)

	// Only "b", "a", "b" are considered; lines outside the range stay.
	assert.Equal(t, []string{"a", "b", "a", "a"}, toStrings(src.lines))
	assert.Equal(t, 1, res.Deleted)
	assert.Equal(t, 3, res.Scanned)
}

func TestScanRangeClamped(t *testing.T) {
	src := &sliceSource{lines: toLines("x", "y", "x")}

	res, err := Scan(src, Options{Range: Range{Start: 0, End: 100}})
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, toStrings(src.lines))
	assert.Equal(t, 1, res.Deleted)

	// An open end runs to the last line.
	src = &sliceSource{lines: toLines("x", "y", "y", "x")}
	res, err = Scan(src, Options{Range: Range{Start: 1}})
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y", "x"}, toStrings(src.lines))
	assert.Equal(t, 1, res.Deleted)
}

func TestScanInvalidOptions(t *testing.T) {
	lines := toLines("a", "a")
	tests := []struct {
		name    string
		opts    Options
		wantErr error
	}{
		{"negative start", Options{Range: Range{Start: -1}}, ErrInvalidRange},
		{"negative end", Options{Range: Range{End: -1}}, ErrInvalidRange},
		{"start past end", Options{Range: Range{Start: 5}}, ErrInvalidRange},
		{"unknown mode", Options{Mode: Mode(9)}, ErrInvalidMode},
		{"unknown verify", Options{Verify: VerifyStrategy(9)}, ErrInvalidVerify},
		{"rate above one", Options{FalsePositiveRate: 1.5}, linebloom.ErrInvalidProbability},
		{"negative rate", Options{FalsePositiveRate: -0.1}, linebloom.ErrInvalidProbability},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &recordingSource{sliceSource: sliceSource{lines: lines}}
			res, err := Scan(src, tt.opts)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, Result{}, res)

			// Nothing was deleted and no edit was started.
			assert.Len(t, src.lines, 2)
			assert.Empty(t, src.events)
		})
	}
}

func TestScanVerificationRejectsFalsePositives(t *testing.T) {
	// A generous false positive rate makes the filter report many unique
	// lines as candidates.
	const n = 2000
	lines := make([][]byte, n)
	for i := range lines {
		lines[i] = fmt.Appendf(nil, "unique-%d", i)
	}

	for _, v := range []VerifyStrategy{VerifyScan, VerifyIndex} {
		t.Run(v.String(), func(t *testing.T) {
			out, res, err := Lines(lines, Options{FalsePositiveRate: 0.5, Verify: v})
			require.NoError(t, err)
			assert.Len(t, out, n)
			assert.Zero(t, res.Deleted)
			assert.Positive(t, res.Candidates)
			assert.Equal(t, res.Candidates, res.FalsePositives)
		})
	}

	t.Run("none", func(t *testing.T) {
		out, res, err := Lines(lines, Options{FalsePositiveRate: 0.5, Verify: VerifyNone})
		require.NoError(t, err)

		// Without verification false positives are deleted.
		assert.Positive(t, res.Deleted)
		assert.Equal(t, res.Candidates, res.Deleted)
		assert.Zero(t, res.FalsePositives)
		assert.Len(t, out, n-res.Deleted)
	})
}

func TestScanMatchesReference(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))

	for round := range 20 {
		in := make([]string, rng.IntN(300))
		for i := range in {
			in[i] = fmt.Sprintf("w%d", rng.IntN(50))
		}

		// First occurrence wins, order preserved.
		seen := make(map[string]bool)
		var want []string
		for _, s := range in {
			if !seen[s] {
				seen[s] = true
				want = append(want, s)
			}
		}

		for _, v := range []VerifyStrategy{VerifyScan, VerifyIndex} {
			out, res, err := Lines(toLines(in...), Options{Verify: v, FalsePositiveRate: 0.05})
			require.NoError(t, err)
			require.Equal(t, len(want), len(out), "round %d verify %s", round, v)
			if len(want) > 0 {
				require.Equal(t, want, toStrings(out), "round %d verify %s", round, v)
			}
			require.Equal(t, len(in)-len(want), res.Deleted)
		}
	}
}

func TestScanEditGroup(t *testing.T) {
	for _, mode := range []Mode{Global, Adjacent} {
		t.Run(mode.String(), func(t *testing.T) {
			src := &recordingSource{sliceSource: sliceSource{lines: toLines("a", "a", "b", "b")}}
			res, err := Scan(src, Options{Mode: mode})
			require.NoError(t, err)
			assert.Equal(t, 2, res.Deleted)
			assert.Equal(t, []string{"begin", "end"}, src.events)
		})
	}
}

func TestScanDeleteFailure(t *testing.T) {
	for _, mode := range []Mode{Global, Adjacent} {
		t.Run(mode.String(), func(t *testing.T) {
			src := &recordingSource{
				sliceSource: sliceSource{lines: toLines("a", "a", "b", "b", "c", "c")},
				failAfter:   1,
			}
			res, err := Scan(src, Options{Mode: mode})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "read-only buffer")

			// The first delete went through; the group is still closed.
			assert.Equal(t, 1, res.Deleted)
			assert.Equal(t, []string{"a", "b", "b", "c", "c"}, toStrings(src.lines))
			assert.Equal(t, []string{"begin", "end"}, src.events)
		})
	}
}

func TestLinesDoesNotModifyInput(t *testing.T) {
	in := toLines("a", "b", "a")
	out, _, err := Lines(in, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, toStrings(out))
	assert.Equal(t, []string{"a", "b", "a"}, toStrings(in))
}

func TestScanLogging(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)

	_, err := Scan(&sliceSource{lines: toLines("a", "b", "a")}, Options{Logger: zap.New(core)})
	require.NoError(t, err)

	built := logs.FilterMessage("built filter").All()
	require.Len(t, built, 1)
	assert.Equal(t, int64(3), built[0].ContextMap()["lines"])

	finished := logs.FilterMessage("scan finished").All()
	require.Len(t, finished, 1)
	fields := finished[0].ContextMap()
	assert.Equal(t, "global", fields["mode"])
	assert.Equal(t, int64(1), fields["deleted"])
}

func TestParseMode(t *testing.T) {
	for _, m := range []Mode{Global, Adjacent} {
		got, err := ParseMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	_, err := ParseMode("sideways")
	require.ErrorIs(t, err, ErrInvalidMode)
}

func TestParseVerifyStrategy(t *testing.T) {
	for _, v := range []VerifyStrategy{VerifyScan, VerifyIndex, VerifyNone} {
		got, err := ParseVerifyStrategy(v.String())
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
	_, err := ParseVerifyStrategy("maybe")
	require.ErrorIs(t, err, ErrInvalidVerify)
}
