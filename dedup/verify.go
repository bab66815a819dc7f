package dedup

import (
	"bytes"

	"github.com/zeebo/xxh3"
)

// keptLines confirms filter candidates against the lines a scan has kept so
// far, which always occupy [lo, cursor) of the source.
type keptLines interface {
	// kept records that line i was kept.
	kept(i int, line []byte)
	// Verify reports whether data equals a kept line.
	Verify(data []byte) bool
}

// linearVerifier compares a candidate with every kept line.
type linearVerifier struct {
	src    LineSource
	lo     int
	cursor *int
}

func (v *linearVerifier) kept(int, []byte) {}

func (v *linearVerifier) Verify(data []byte) bool {
	for i := v.lo; i < *v.cursor; i++ {
		line, ok := v.src.Line(i)
		if !ok {
			return false
		}
		if bytes.Equal(line, data) {
			return true
		}
	}
	return false
}

// indexVerifier buckets kept line indices by their xxh3 hash, so a candidate
// is only compared with lines that share its hash.
type indexVerifier struct {
	src   LineSource
	index map[uint64][]int
}

func newIndexVerifier(src LineSource, sizeHint int) *indexVerifier {
	return &indexVerifier{
		src:   src,
		index: make(map[uint64][]int, sizeHint),
	}
}

func (v *indexVerifier) kept(i int, line []byte) {
	h := xxh3.Hash(line)
	v.index[h] = append(v.index[h], i)
}

func (v *indexVerifier) Verify(data []byte) bool {
	for _, i := range v.index[xxh3.Hash(data)] {
		line, ok := v.src.Line(i)
		if ok && bytes.Equal(line, data) {
			return true
		}
	}
	return false
}

// countingVerifier counts how often the filter asks for verification and how
// often the answer turns a bit-level hit into a miss.
type countingVerifier struct {
	keptLines
	candidates     int
	falsePositives int
}

func (v *countingVerifier) Verify(data []byte) bool {
	v.candidates++
	ok := v.keptLines.Verify(data)
	if !ok {
		v.falsePositives++
	}
	return ok
}
