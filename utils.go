package xorfilter

import "sort"

// sortAndDedupUint64 sorts keys ascending and compacts out adjacent
// duplicates in place, returning the (possibly shorter) slice. Mirrors
// the C implementation's qsort-then-compact fallback used once the
// iteration budget is exhausted and duplicates have been observed.
func sortAndDedupUint64(keys []uint64) []uint64 {
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	if len(keys) == 0 {
		return keys
	}
	j := 1
	for i := 1; i < len(keys); i++ {
		if keys[i] != keys[i-1] {
			keys[j] = keys[i]
			j++
		}
	}
	return keys[:j]
}

// sizeOf returns the size in bytes of a fingerprint storage type,
// inferred from a zero value since generic type parameters cannot be
// passed to unsafe.Sizeof directly in a constant context here.
func sizeOf[T fingerprintWidth](_ T) int {
	var v T
	switch any(v).(type) {
	case uint8:
		return 1
	case uint16:
		return 2
	default:
		return 0
	}
}
