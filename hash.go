package xorfilter

import "math/bits"

// murmur64 is a three-round xor-shift-multiply finalizer, bijective over
// uint64. Used to spread a key+seed sum across all 64 bits before any
// index derivation.
func murmur64(h uint64) uint64 {
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	h *= 0xc4ceb9fe1a85ec53
	h ^= h >> 33
	return h
}

// mixSplit folds a key and the filter's seed into a single 64-bit hash.
func mixSplit(key, seed uint64) uint64 {
	return murmur64(key + seed)
}

// splitmix64 advances state in place and returns the next pseudo-random
// value. Used only to pick fresh seeds between populate retries.
func splitmix64(state *uint64) uint64 {
	*state += 0x9E3779B97F4A7C15
	z := *state
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

// reduce maps a 32-bit hash fraction onto [0, n) without division ("fast
// range": https://lemire.me/blog/2016/06/27/a-fast-alternative-to-the-modulo-reduction/).
func reduce(hash uint32, n uint32) uint32 {
	return uint32((uint64(hash) * uint64(n)) >> 32)
}

// mulHi returns the high 64 bits of the 64x64 product a*b.
func mulHi(a, b uint64) uint64 {
	hi, _ := bits.Mul64(a, b)
	return hi
}

// rotl64 rotates n left by c bits (c taken mod 64).
func rotl64(n uint64, c uint) uint64 {
	return bits.RotateLeft64(n, int(c&63))
}

// fingerprintWidth constrains the two fingerprint storage types the
// library supports.
type fingerprintWidth interface {
	~uint8 | ~uint16
}

// fingerprint truncates hash to the lower W bits of hash XOR its own high
// half, where W is the bit width of T.
func fingerprint[T fingerprintWidth](hash uint64) T {
	return T(hash ^ (hash >> 32))
}
