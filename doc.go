// Package linebloom provides a bloom filter with exact verification, built for
// detecting duplicate lines of text.
//
// A bloom filter is a space-efficient probabilistic data structure that tests
// whether an element is a member of a set. False positive matches are possible,
// but false negatives are not – if the filter says an element is not present,
// it definitely is not. If it says an element might be present, it could be a
// false positive.
//
// Removing duplicate lines needs an exact answer, so a [Filter] can carry a
// [Verifier]: when all bits for an element are set, the Verifier is asked to
// confirm membership against the real data. The bit array turns most lookups
// into O(k) work and the Verifier only runs for the few candidates that pass
// it.
//
// # Hashing
//
// The filter uses a single hash function, [MurmurHash2], and simulates k
// independent hash functions by seeding round i with i:
//
//	pos_i = MurmurHash2(data, i) % m
//
// # Choosing Parameters
//
// Use [New] with your expected number of items and desired false positive
// rate:
//
//	// Filter for 10,000 lines with 0.01% false positive rate
//	f, err := linebloom.New(10_000, 1e-4, nil)
//
// The parameters follow the classic formulas:
//
//	m = ceil(-n * ln(p) / (ln(2))²)
//	k = round(ln(2) * m / n)
//
// [NewWithParams] allows explicit control over m and k.
//
// # Size
//
// [Filter.Size] counts calls to [Filter.Add], not distinct elements. Adding
// the same element twice counts twice.
//
// # Thread Safety
//
// [Filter] is NOT thread-safe. Use external synchronization if a filter is
// shared between goroutines.
//
// # Deduplication
//
// The [github.com/jcalabro/linebloom/dedup] package drives a Filter over a
// range of lines and deletes every line that already occurred earlier in the
// range. The lineuniq command exposes it on the command line.
package linebloom
