package xorfilter

import "errors"

var (
	// ErrTooManyIterations is returned when populate exhausts its retry
	// budget without a successful peel. Almost always means the input
	// key set carries far more duplicates than the type's duplicate
	// tolerance can absorb.
	ErrTooManyIterations = errors.New("xorfilter: too many iterations, you probably have duplicate keys")

	// ErrSizeMismatch is returned when the key count passed to Populate
	// does not match the size the filter was allocated with.
	ErrSizeMismatch = errors.New("xorfilter: populate size does not match allocated size")

	// ErrBufferTooShort is returned by Deserialize/Unpack when the
	// supplied buffer is shorter than the declared filter requires.
	ErrBufferTooShort = errors.New("xorfilter: buffer too short")
)
