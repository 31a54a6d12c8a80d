package xorfilter

// Xor is an immutable approximate membership filter built on three
// disjoint fingerprint blocks, parameterised over its fingerprint storage
// width T. Xor8 and Xor16 are the two concrete instantiations the library
// exposes.
type Xor[T fingerprintWidth] struct {
	Seed        uint64
	BlockLength uint64

	Fingerprints []T
}

// Xor8 targets a ~0.39% false-positive probability at ~9.84 bits/key.
type Xor8 = Xor[uint8]

// Xor16 targets a ~0.0015% false-positive probability at ~19.7 bits/key.
type Xor16 = Xor[uint16]

// xorSet is the per-cell construction accumulator: the running XOR of
// every hash currently mapped to the cell, plus how many are mapped.
type xorSet struct {
	xormask uint64
	count   uint32
}

// xorKeyIndex pairs a cell index with the hash that (at some point)
// mapped to it; used both as a degree-1 queue entry and as a peeled-stack
// entry.
type xorKeyIndex struct {
	hash  uint64
	index uint32
}

// Allocate sizes the fingerprint array for a filter meant to hold up to
// size keys: capacity is round(1.23*size)+32, rounded down to a multiple
// of 3, split into three equal blocks.
func (f *Xor[T]) Allocate(size uint32) bool {
	blockLength, capacity := xorCapacity(size)
	f.BlockLength = blockLength
	f.Fingerprints = make([]T, capacity)
	return true
}

// Free releases the fingerprint array and zeroes all fields.
func (f *Xor[T]) Free() {
	*f = Xor[T]{}
}

// SizeInBytes reports the filter's in-memory footprint, header plus body.
func (f *Xor[T]) SizeInBytes() int {
	var zero T
	return 3*int(f.BlockLength)*sizeOf(zero) + xorHeaderBytes
}

const xorHeaderBytes = 8 + 8 // Seed, BlockLength

// hashIndices derives the three disjoint-block cell indices a hash maps
// to, per spec.md §4.1's xor-family derivation.
func (f *Xor[T]) hashIndices(hash uint64) (h0, h1, h2 uint32) {
	bl := uint32(f.BlockLength)
	h0 = reduce(uint32(hash), bl)
	h1 = reduce(uint32(rotl64(hash, 21)), bl) + bl
	h2 = reduce(uint32(rotl64(hash, 42)), bl) + 2*bl
	return h0, h1, h2
}

// Contains reports whether key is possibly a member.
func (f *Xor[T]) Contains(key uint64) bool {
	hash := mixSplit(key, f.Seed)
	fp := fingerprint[T](hash)
	h0, h1, h2 := f.hashIndices(hash)
	fp ^= f.Fingerprints[h0] ^ f.Fingerprints[h1] ^ f.Fingerprints[h2]
	return fp == 0
}

// Populate builds the filter from keys by direct (unbuffered) peeling:
// every key's hash is folded into its three blocks in input order, with
// no duplicate-aware bookkeeping (unlike the fuse family). Keys are
// sorted and deduplicated in place after SortIterations retries if the
// construction keeps failing, since duplicates are by far the most
// common cause of runaway retries.
func (f *Xor[T]) Populate(keys []uint64) error {
	return f.populate(keys, false)
}

// BufferedPopulate is equivalent to Populate but stages cell updates in
// per-block, slot-batched buffers to keep random-access writes within a
// cache-resident window. The two pick the same sequence of retry seeds
// (success or failure of a given seed depends only on the key multiset,
// not processing order) and a peelable hypergraph has a unique fingerprint
// solution, so BufferedPopulate yields byte-identical Fingerprints to
// Populate for the same input.
func (f *Xor[T]) BufferedPopulate(keys []uint64) error {
	return f.populate(keys, true)
}

func (f *Xor[T]) populate(keys []uint64, buffered bool) error {
	size := uint32(len(keys))
	if size == 0 {
		// Trivially satisfied: an empty key set needs no cells filled.
		rc := uint64(1)
		f.Seed = splitmix64(&rc)
		return nil
	}

	rngCounter := uint64(1)
	f.Seed = splitmix64(&rngCounter)
	blockLength := f.BlockLength
	arrayLength := blockLength * 3

	sets := make([]xorSet, arrayLength)
	sets0 := sets[:blockLength]
	sets1 := sets[blockLength : 2*blockLength]
	sets2 := sets[2*blockLength:]

	stack := make([]xorKeyIndex, size)

	var buf0, buf1, buf2 *xorSetBuffer
	if buffered {
		buf0 = newXorSetBuffer(blockLength)
		buf1 = newXorSetBuffer(blockLength)
		buf2 = newXorSetBuffer(blockLength)
	}

	for iteration := 1; ; iteration++ {
		if iteration == SortIterations {
			keys = sortAndDedupUint64(keys)
			size = uint32(len(keys))
			if int(size) != len(stack) {
				stack = make([]xorKeyIndex, size)
			}
		}
		if iteration > MaxIterations {
			for i := range f.Fingerprints {
				f.Fingerprints[i] = 0
			}
			return ErrTooManyIterations
		}

		for i := range sets {
			sets[i] = xorSet{}
		}

		if buffered {
			for _, key := range keys {
				hash := mixSplit(key, f.Seed)
				h0, h1, h2 := f.hashIndices(hash)
				buf0.increment(h0, hash, sets0)
				buf1.increment(h1-uint32(blockLength), hash, sets1)
				buf2.increment(h2-2*uint32(blockLength), hash, sets2)
			}
			buf0.flushAllIncrement(sets0)
			buf1.flushAllIncrement(sets1)
			buf2.flushAllIncrement(sets2)
		} else {
			for _, key := range keys {
				hash := mixSplit(key, f.Seed)
				h0, h1, h2 := f.hashIndices(hash)
				bl := uint32(blockLength)
				sets0[h0].xormask ^= hash
				sets0[h0].count++
				sets1[h1-bl].xormask ^= hash
				sets1[h1-bl].count++
				sets2[h2-2*bl].xormask ^= hash
				sets2[h2-2*bl].count++
			}
		}

		var q0, q1, q2 []xorKeyIndex
		for i := range sets0 {
			if sets0[i].count == 1 {
				q0 = append(q0, xorKeyIndex{sets0[i].xormask, uint32(i)})
			}
		}
		for i := range sets1 {
			if sets1[i].count == 1 {
				q1 = append(q1, xorKeyIndex{sets1[i].xormask, uint32(i)})
			}
		}
		for i := range sets2 {
			if sets2[i].count == 1 {
				q2 = append(q2, xorKeyIndex{sets2[i].xormask, uint32(i)})
			}
		}

		stackSize := 0
		bl := uint32(blockLength)
		for len(q0)+len(q1)+len(q2) > 0 {
			for len(q0) > 0 {
				ki := q0[len(q0)-1]
				q0 = q0[:len(q0)-1]
				index := ki.index
				if buffered {
					q0 = buf0.makeCurrent(sets0, index, q0)
				}
				if sets0[index].count == 0 {
					continue
				}
				hash := ki.hash
				h1 := reduce(uint32(rotl64(hash, 21)), bl)
				h2 := reduce(uint32(rotl64(hash, 42)), bl)
				stack[stackSize] = ki
				stackSize++
				if buffered {
					q1 = buf1.decrement(h1, hash, sets1, q1)
					q2 = buf2.decrement(h2, hash, sets2, q2)
				} else {
					sets1[h1].xormask ^= hash
					sets1[h1].count--
					if sets1[h1].count == 1 {
						q1 = append(q1, xorKeyIndex{sets1[h1].xormask, h1})
					}
					sets2[h2].xormask ^= hash
					sets2[h2].count--
					if sets2[h2].count == 1 {
						q2 = append(q2, xorKeyIndex{sets2[h2].xormask, h2})
					}
				}
			}
			if buffered && len(q1) == 0 {
				q1 = buf1.flushFullest(sets1, q1)
			}
			for len(q1) > 0 {
				ki := q1[len(q1)-1]
				q1 = q1[:len(q1)-1]
				index := ki.index
				if buffered {
					q1 = buf1.makeCurrent(sets1, index, q1)
				}
				if sets1[index].count == 0 {
					continue
				}
				hash := ki.hash
				h0 := reduce(uint32(hash), bl)
				h2 := reduce(uint32(rotl64(hash, 42)), bl)
				stack[stackSize] = xorKeyIndex{hash, ki.index + bl}
				stackSize++
				if buffered {
					q0 = buf0.decrement(h0, hash, sets0, q0)
					q2 = buf2.decrement(h2, hash, sets2, q2)
				} else {
					sets0[h0].xormask ^= hash
					sets0[h0].count--
					if sets0[h0].count == 1 {
						q0 = append(q0, xorKeyIndex{sets0[h0].xormask, h0})
					}
					sets2[h2].xormask ^= hash
					sets2[h2].count--
					if sets2[h2].count == 1 {
						q2 = append(q2, xorKeyIndex{sets2[h2].xormask, h2})
					}
				}
			}
			if buffered && len(q2) == 0 {
				q2 = buf2.flushFullest(sets2, q2)
			}
			for len(q2) > 0 {
				ki := q2[len(q2)-1]
				q2 = q2[:len(q2)-1]
				index := ki.index
				if buffered {
					q2 = buf2.makeCurrent(sets2, index, q2)
				}
				if sets2[index].count == 0 {
					continue
				}
				hash := ki.hash
				h0 := reduce(uint32(hash), bl)
				h1 := reduce(uint32(rotl64(hash, 21)), bl)
				stack[stackSize] = xorKeyIndex{hash, ki.index + 2*bl}
				stackSize++
				if buffered {
					q0 = buf0.decrement(h0, hash, sets0, q0)
					q1 = buf1.decrement(h1, hash, sets1, q1)
				} else {
					sets0[h0].xormask ^= hash
					sets0[h0].count--
					if sets0[h0].count == 1 {
						q0 = append(q0, xorKeyIndex{sets0[h0].xormask, h0})
					}
					sets1[h1].xormask ^= hash
					sets1[h1].count--
					if sets1[h1].count == 1 {
						q1 = append(q1, xorKeyIndex{sets1[h1].xormask, h1})
					}
				}
			}
			if buffered && len(q0) == 0 {
				q0 = buf0.flushFullest(sets0, q0)
			}
			if buffered && len(q0)+len(q1)+len(q2) == 0 && stackSize < int(size) {
				q0 = buf0.flushAllDecrement(sets0, q0)
				q1 = buf1.flushAllDecrement(sets1, q1)
				q2 = buf2.flushAllDecrement(sets2, q2)
			}
		}

		if stackSize == int(size) {
			break
		}
		f.Seed = splitmix64(&rngCounter)
	}

	fp0 := f.Fingerprints[:blockLength]
	fp1 := f.Fingerprints[blockLength : 2*blockLength]
	fp2 := f.Fingerprints[2*blockLength:]
	bl := uint32(blockLength)

	for i := int(size) - 1; i >= 0; i-- {
		ki := stack[i]
		val := fingerprint[T](ki.hash)
		switch {
		case ki.index < bl:
			h1 := reduce(uint32(rotl64(ki.hash, 21)), bl)
			h2 := reduce(uint32(rotl64(ki.hash, 42)), bl)
			val ^= fp1[h1] ^ fp2[h2]
			fp0[ki.index] = val
		case ki.index < 2*bl:
			h0 := reduce(uint32(ki.hash), bl)
			h2 := reduce(uint32(rotl64(ki.hash, 42)), bl)
			val ^= fp0[h0] ^ fp2[h2]
			fp1[ki.index-bl] = val
		default:
			h0 := reduce(uint32(ki.hash), bl)
			h1 := reduce(uint32(rotl64(ki.hash, 21)), bl)
			val ^= fp0[h0] ^ fp1[h1]
			fp2[ki.index-2*bl] = val
		}
	}

	if buffered {
		// buffers are independently GC'd; nothing to release explicitly.
		_ = buf0
		_ = buf1
		_ = buf2
	}

	return nil
}
