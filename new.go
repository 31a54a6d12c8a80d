package xorfilter

// NewXor allocates and populates a Xor[T] filter from keys in one call,
// the idiomatic-Go entry point layered over the lower-level Allocate +
// Populate pair the operation table in spec.md describes. Returns
// ErrTooManyIterations if construction's retry budget is exhausted.
func NewXor[T fingerprintWidth](keys []uint64) (*Xor[T], error) {
	f := &Xor[T]{}
	f.Allocate(uint32(len(keys)))
	if err := f.Populate(keys); err != nil {
		return nil, err
	}
	return f, nil
}

// NewXorBuffered is NewXor using the cache-friendlier buffered
// construction path; the resulting filter is byte-identical to NewXor's
// for the same input.
func NewXorBuffered[T fingerprintWidth](keys []uint64) (*Xor[T], error) {
	f := &Xor[T]{}
	f.Allocate(uint32(len(keys)))
	if err := f.BufferedPopulate(keys); err != nil {
		return nil, err
	}
	return f, nil
}

// NewBinaryFuse allocates and populates a BinaryFuse[T] filter from keys
// in one call.
func NewBinaryFuse[T fingerprintWidth](keys []uint64) (*BinaryFuse[T], error) {
	f := &BinaryFuse[T]{}
	f.Allocate(uint32(len(keys)))
	if err := f.Populate(keys); err != nil {
		return nil, err
	}
	return f, nil
}
