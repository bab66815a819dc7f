package linebloom

import (
	"encoding/binary"
	"unsafe"
)

const (
	// murmurM is the MurmurHash2 multiplicative mixing constant.
	murmurM = 0x5bd1e995
	// murmurR is the MurmurHash2 mixing shift.
	murmurR = 24
)

// MurmurHash2 computes Austin Appleby's 32-bit MurmurHash2 of data with the
// given seed.
//
// Input words are read little-endian on every platform, so the result matches
// the reference implementation on little-endian hosts. The hash is not
// cryptographic and is not suitable for untrusted keys.
func MurmurHash2(data []byte, seed uint32) uint32 {
	h := seed ^ uint32(len(data))

	// Mix 4 bytes at a time into the hash.
	for len(data) >= 4 {
		k := binary.LittleEndian.Uint32(data)
		k *= murmurM
		k ^= k >> murmurR
		k *= murmurM

		h *= murmurM
		h ^= k

		data = data[4:]
	}

	switch len(data) {
	case 3:
		h ^= uint32(data[2]) << 16
		fallthrough
	case 2:
		h ^= uint32(data[1]) << 8
		fallthrough
	case 1:
		h ^= uint32(data[0])
		h *= murmurM
	}

	h ^= h >> 13
	h *= murmurM
	h ^= h >> 15

	return h
}

// MurmurHash2String computes MurmurHash2 of s without allocating.
func MurmurHash2String(s string, seed uint32) uint32 {
	return MurmurHash2(stringBytes(s), seed)
}

// stringBytes returns a read-only view of s as a byte slice.
func stringBytes(s string) []byte {
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

// position returns the bit index probed by hash round i for data.
func position(data []byte, i uint32, m uint64) uint64 {
	return uint64(MurmurHash2(data, i)) % m
}
