package linebloom

import (
	"math"

	"github.com/bits-and-blooms/bitset"
	"github.com/pkg/errors"
)

var (
	// ErrInvalidBits is returned when a filter is requested with zero bits.
	ErrInvalidBits = errors.New("linebloom: bit count must be positive")

	// ErrInvalidHashes is returned when a filter is requested with zero hash rounds.
	ErrInvalidHashes = errors.New("linebloom: hash round count must be positive")

	// ErrAllocation is returned when the bit array cannot be allocated.
	ErrAllocation = errors.New("linebloom: could not allocate bit array")
)

// Verifier resolves exact membership for elements the bit array reports as
// candidates. It is only consulted after all k bits for an element are set.
//
// Verify must not modify the filter, and it must not mutate whatever data it
// consults while a caller is iterating over that data.
type Verifier interface {
	Verify(data []byte) bool
}

// VerifierFunc adapts an ordinary function to the Verifier interface.
type VerifierFunc func(data []byte) bool

// Verify calls f(data).
func (f VerifierFunc) Verify(data []byte) bool {
	return f(data)
}

// Filter is a bloom filter of m bits probed by k rounds of MurmurHash2, each
// round seeded with its round number. An optional Verifier turns the
// probabilistic answer into an exact one.
//
// Filter is not safe for concurrent use.
type Filter struct {
	bits   *bitset.BitSet // m bits, only ever set
	m      uint64         // Number of addressable bits
	k      uint32         // Number of hash rounds
	size   uint64         // Number of Add calls
	verify Verifier       // Exact membership oracle, may be nil
}

// New creates a filter sized for expectedItems elements at the false positive
// rate fpRate. v may be nil, in which case Contains answers probabilistically.
func New(expectedItems uint64, fpRate float64, v Verifier) (*Filter, error) {
	m, k, err := OptimalParams(expectedItems, fpRate)
	if err != nil {
		return nil, err
	}
	return NewWithParams(m, k, v)
}

// NewWithParams creates a filter with m bits and k hash rounds.
func NewWithParams(m uint64, k uint32, v Verifier) (*Filter, error) {
	if m == 0 {
		return nil, ErrInvalidBits
	}
	if k == 0 {
		return nil, ErrInvalidHashes
	}
	if m > MaxBits || m > math.MaxUint {
		return nil, errors.Wrapf(ErrAllocation, "%d bits exceeds the %d bit limit", m, MaxBits)
	}

	// bitset.New recovers from a failed allocation by returning an empty set.
	bits := bitset.New(uint(m))
	if uint64(bits.Len()) != m {
		return nil, errors.Wrapf(ErrAllocation, "%d bits", m)
	}

	return &Filter{
		bits:   bits,
		m:      m,
		k:      k,
		verify: v,
	}, nil
}

// Add adds data to the bloom filter. Adding the same data twice still counts
// twice towards Size.
func (f *Filter) Add(data []byte) {
	for i := uint32(0); i < f.k; i++ {
		f.bits.Set(uint(position(data, i, f.m)))
	}
	f.size++
}

// AddString adds a string to the bloom filter without allocating.
func (f *Filter) AddString(s string) {
	f.Add(stringBytes(s))
}

// MayContain reports whether all k bits for data are set. A false result
// means data was definitely never added; a true result may be a false
// positive. The Verifier is not consulted.
func (f *Filter) MayContain(data []byte) bool {
	for i := uint32(0); i < f.k; i++ {
		if !f.bits.Test(uint(position(data, i, f.m))) {
			return false
		}
	}
	return true
}

// Contains checks if data is in the filter. When all k bits are set and the
// filter has a Verifier, the Verifier decides; without one the probabilistic
// answer is returned as is.
func (f *Filter) Contains(data []byte) bool {
	if !f.MayContain(data) {
		return false
	}
	if f.verify == nil {
		return true
	}
	return f.verify.Verify(data)
}

// ContainsString checks if a string is in the filter without allocating.
func (f *Filter) ContainsString(s string) bool {
	return f.Contains(stringBytes(s))
}

// Size returns the number of Add calls made on the filter. It is not a count
// of distinct elements.
func (f *Filter) Size() uint64 {
	return f.size
}

// Cap returns the capacity of the filter in bits.
func (f *Filter) Cap() uint64 {
	return f.m
}

// K returns the number of hash rounds used.
func (f *Filter) K() uint32 {
	return f.k
}

// EstimatedFillRatio returns the proportion of bits that are set.
func (f *Filter) EstimatedFillRatio() float64 {
	return float64(f.bits.Count()) / float64(f.m)
}

// EstimatedFalsePositiveRate estimates the current false positive rate
// of the bit array based on the number of items added.
func (f *Filter) EstimatedFalsePositiveRate() float64 {
	return EstimateFalsePositiveRate(f.m, f.k, f.size)
}
