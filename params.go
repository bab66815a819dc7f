package linebloom

import (
	"math"

	"github.com/pkg/errors"
)

const (
	// ln2 is the natural logarithm of 2.
	ln2 = 0.6931471805599453
	// ln2Squared is ln(2)^2.
	ln2Squared = 0.4804530139182014

	// MaxBits is the largest bit array a Filter will allocate (128 GiB).
	MaxBits = uint64(1) << 40
)

var (
	// ErrInvalidProbability is returned when a false positive rate is not in (0, 1).
	ErrInvalidProbability = errors.New("linebloom: false positive rate must be in (0, 1)")

	// ErrInvalidCount is returned when the expected number of items is zero.
	ErrInvalidCount = errors.New("linebloom: expected item count must be positive")
)

// OptimalParams calculates the classic optimal bloom filter parameters for
// expectedItems elements at false positive rate fpRate:
//
//	m = ceil(-n * ln(p) / ln(2)^2)
//	k = round(ln(2) * m / n), at least 1
//
// It returns the number of bits m and the number of hash rounds k.
func OptimalParams(expectedItems uint64, fpRate float64) (m uint64, k uint32, err error) {
	if math.IsNaN(fpRate) || fpRate <= 0 || fpRate >= 1 {
		return 0, 0, errors.Wrapf(ErrInvalidProbability, "got %v", fpRate)
	}
	if expectedItems == 0 {
		return 0, 0, ErrInvalidCount
	}

	n := float64(expectedItems)
	bits := math.Ceil(-(n * math.Log(fpRate)) / ln2Squared)
	if bits > float64(MaxBits) {
		return 0, 0, errors.Wrapf(ErrAllocation, "%d items at rate %v need %.0f bits", expectedItems, fpRate, bits)
	}
	m = uint64(bits)

	k = uint32(math.Round(ln2 * float64(m) / n))
	k = max(k, 1)

	return m, k, nil
}

// EstimateFalsePositiveRate estimates the false positive rate for given parameters.
// Formula: (1 - e^(-kn/m))^k
func EstimateFalsePositiveRate(m uint64, k uint32, itemsAdded uint64) float64 {
	if m == 0 || itemsAdded == 0 {
		return 0
	}

	mf := float64(m)
	n := float64(itemsAdded)
	kf := float64(k)

	return math.Pow(1-math.Exp(-kf*n/mf), kf)
}
