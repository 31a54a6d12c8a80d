package xorfilter

import "encoding/binary"

// Serialization is native byte order only, matching spec.md's explicit
// choice not to define an endian-independent wire format. Go 1.21's
// encoding/binary.NativeEndian gives us that without reaching for unsafe.

func putFingerprint[T fingerprintWidth](b []byte, v T) {
	switch any(v).(type) {
	case uint8:
		b[0] = byte(v)
	case uint16:
		binary.NativeEndian.PutUint16(b, uint16(v))
	}
}

func getFingerprint[T fingerprintWidth](b []byte) T {
	var zero T
	switch any(zero).(type) {
	case uint8:
		return T(b[0])
	case uint16:
		return T(binary.NativeEndian.Uint16(b))
	default:
		return zero
	}
}

func fingerprintBytes[T fingerprintWidth]() int {
	var zero T
	return sizeOf(zero)
}

// --- Xor dense serialization ---

// SerializationBytes reports the dense wire size: Seed, BlockLength, then
// the raw fingerprint array.
func (f *Xor[T]) SerializationBytes() int {
	return xorHeaderBytes + len(f.Fingerprints)*fingerprintBytes[T]()
}

// Serialize writes the dense form to buf, which must be at least
// SerializationBytes() long.
func (f *Xor[T]) Serialize(buf []byte) (int, error) {
	n := f.SerializationBytes()
	if len(buf) < n {
		return 0, ErrBufferTooShort
	}
	binary.NativeEndian.PutUint64(buf[0:8], f.Seed)
	binary.NativeEndian.PutUint64(buf[8:16], f.BlockLength)
	pos := xorHeaderBytes
	width := fingerprintBytes[T]()
	for _, v := range f.Fingerprints {
		putFingerprint(buf[pos:pos+width], v)
		pos += width
	}
	return n, nil
}

// Deserialize reads the dense form written by Serialize, allocating a
// fresh Fingerprints array of the declared length. Any prior Fingerprints
// on f should be released (Free) before calling this.
func (f *Xor[T]) Deserialize(buf []byte) error {
	if len(buf) < xorHeaderBytes {
		*f = Xor[T]{}
		return ErrBufferTooShort
	}
	seed := binary.NativeEndian.Uint64(buf[0:8])
	blockLength := binary.NativeEndian.Uint64(buf[8:16])
	width := fingerprintBytes[T]()
	capacity := 3 * blockLength
	need := xorHeaderBytes + int(capacity)*width
	if len(buf) < need {
		*f = Xor[T]{}
		return ErrBufferTooShort
	}
	fp := make([]T, capacity)
	pos := xorHeaderBytes
	for i := range fp {
		fp[i] = getFingerprint[T](buf[pos : pos+width])
		pos += width
	}
	f.Seed = seed
	f.BlockLength = blockLength
	f.Fingerprints = fp
	return nil
}

// --- BinaryFuse dense serialization ---

// SerializationBytes reports the dense wire size: Seed, Size,
// SegmentLength, SegmentCount, SegmentCountLength, ArrayLength, then the
// raw fingerprint array.
func (f *BinaryFuse[T]) SerializationBytes() int {
	return binaryFuseHeaderBytes + len(f.Fingerprints)*fingerprintBytes[T]()
}

// Serialize writes the dense form to buf, which must be at least
// SerializationBytes() long.
func (f *BinaryFuse[T]) Serialize(buf []byte) (int, error) {
	n := f.SerializationBytes()
	if len(buf) < n {
		return 0, ErrBufferTooShort
	}
	binary.NativeEndian.PutUint64(buf[0:8], f.Seed)
	binary.NativeEndian.PutUint32(buf[8:12], f.Size)
	binary.NativeEndian.PutUint32(buf[12:16], f.SegmentLength)
	binary.NativeEndian.PutUint32(buf[16:20], f.SegmentCount)
	binary.NativeEndian.PutUint32(buf[20:24], f.SegmentCountLength)
	binary.NativeEndian.PutUint32(buf[24:28], f.ArrayLength)
	pos := binaryFuseHeaderBytes
	width := fingerprintBytes[T]()
	for _, v := range f.Fingerprints {
		putFingerprint(buf[pos:pos+width], v)
		pos += width
	}
	return n, nil
}

// Deserialize reads the dense form written by Serialize, allocating a
// fresh Fingerprints array. SegmentLengthMask is recomputed, not stored
// on the wire.
func (f *BinaryFuse[T]) Deserialize(buf []byte) error {
	if len(buf) < binaryFuseHeaderBytes {
		*f = BinaryFuse[T]{}
		return ErrBufferTooShort
	}
	seed := binary.NativeEndian.Uint64(buf[0:8])
	size := binary.NativeEndian.Uint32(buf[8:12])
	segmentLength := binary.NativeEndian.Uint32(buf[12:16])
	segmentCount := binary.NativeEndian.Uint32(buf[16:20])
	segmentCountLength := binary.NativeEndian.Uint32(buf[20:24])
	arrayLength := binary.NativeEndian.Uint32(buf[24:28])

	width := fingerprintBytes[T]()
	need := binaryFuseHeaderBytes + int(arrayLength)*width
	if len(buf) < need {
		*f = BinaryFuse[T]{}
		return ErrBufferTooShort
	}
	fp := make([]T, arrayLength)
	pos := binaryFuseHeaderBytes
	for i := range fp {
		fp[i] = getFingerprint[T](buf[pos : pos+width])
		pos += width
	}
	f.Seed = seed
	f.Size = size
	f.SegmentLength = segmentLength
	f.SegmentLengthMask = segmentLength - 1
	f.SegmentCount = segmentCount
	f.SegmentCountLength = segmentCountLength
	f.ArrayLength = arrayLength
	f.Fingerprints = fp
	return nil
}

// --- shared packed-format helpers ---
//
// Layout: header, then a presence bitmap (LSB-of-byte-first: bit i of the
// bitmap is set iff fingerprint i is nonzero, living in byte i/8 at
// position i%8), then the nonzero fingerprints in ascending cell order.
// Grounded on original_source/include/xorfilter.h's XOR_bytesf/XOR_packf/
// XOR_unpackf macros.

func packedBitmapBytes(n int) int {
	return (n + 7) / 8
}

func packedBodyBytes[T fingerprintWidth](fp []T) int {
	width := fingerprintBytes[T]()
	nonzero := 0
	for _, v := range fp {
		if v != 0 {
			nonzero++
		}
	}
	return packedBitmapBytes(len(fp)) + nonzero*width
}

func packBody[T fingerprintWidth](fp []T, buf []byte) int {
	bitmapLen := packedBitmapBytes(len(fp))
	bitmap := buf[:bitmapLen]
	for i := range bitmap {
		bitmap[i] = 0
	}
	pos := bitmapLen
	width := fingerprintBytes[T]()
	for i, v := range fp {
		if v == 0 {
			continue
		}
		bitmap[i/8] |= 1 << uint(i%8)
		putFingerprint(buf[pos:pos+width], v)
		pos += width
	}
	return pos
}

func unpackBody[T fingerprintWidth](fp []T, buf []byte) error {
	bitmapLen := packedBitmapBytes(len(fp))
	if len(buf) < bitmapLen {
		return ErrBufferTooShort
	}
	bitmap := buf[:bitmapLen]
	pos := bitmapLen
	width := fingerprintBytes[T]()
	for i := range fp {
		if bitmap[i/8]&(1<<uint(i%8)) == 0 {
			continue
		}
		if pos+width > len(buf) {
			return ErrBufferTooShort
		}
		fp[i] = getFingerprint[T](buf[pos : pos+width])
		pos += width
	}
	return nil
}

// --- Xor packed serialization ---

// PackBytes reports the exact packed-form size for the filter's current
// fingerprint contents.
func (f *Xor[T]) PackBytes() int {
	return xorHeaderBytes + packedBodyBytes(f.Fingerprints)
}

// Pack writes the packed (sparse) form to buf, returning the number of
// bytes used, or 0 if buf is too small.
func (f *Xor[T]) Pack(buf []byte) int {
	n := f.PackBytes()
	if len(buf) < n {
		return 0
	}
	binary.NativeEndian.PutUint64(buf[0:8], f.Seed)
	binary.NativeEndian.PutUint64(buf[8:16], f.BlockLength)
	packBody(f.Fingerprints, buf[xorHeaderBytes:])
	return n
}

// Unpack reads the packed form written by Pack, allocating a fresh
// zero-filled Fingerprints array and scattering stored fingerprints back
// to their cells.
func (f *Xor[T]) Unpack(buf []byte) error {
	if len(buf) < xorHeaderBytes {
		*f = Xor[T]{}
		return ErrBufferTooShort
	}
	seed := binary.NativeEndian.Uint64(buf[0:8])
	blockLength := binary.NativeEndian.Uint64(buf[8:16])
	fp := make([]T, 3*blockLength)
	if err := unpackBody(fp, buf[xorHeaderBytes:]); err != nil {
		*f = Xor[T]{}
		return err
	}
	f.Seed = seed
	f.BlockLength = blockLength
	f.Fingerprints = fp
	return nil
}

// --- BinaryFuse packed serialization ---

const binaryFusePackedHeaderBytes = 8 + 4 // Seed, Size

// PackBytes reports the exact packed-form size for the filter's current
// fingerprint contents.
func (f *BinaryFuse[T]) PackBytes() int {
	return binaryFusePackedHeaderBytes + packedBodyBytes(f.Fingerprints)
}

// Pack writes the packed (sparse) form to buf, returning the number of
// bytes used, or 0 if buf is too small. Only Seed and Size are stored:
// the rest of the geometry (SegmentLength, SegmentCount,
// SegmentCountLength, ArrayLength) is a pure function of Size, so Unpack
// recomputes it rather than storing it again.
func (f *BinaryFuse[T]) Pack(buf []byte) int {
	n := f.PackBytes()
	if len(buf) < n {
		return 0
	}
	binary.NativeEndian.PutUint64(buf[0:8], f.Seed)
	binary.NativeEndian.PutUint32(buf[8:12], f.Size)
	packBody(f.Fingerprints, buf[binaryFusePackedHeaderBytes:])
	return n
}

// Unpack reads the packed form written by Pack into a fresh filter,
// re-deriving geometry from the stored Size.
func (f *BinaryFuse[T]) Unpack(buf []byte) error {
	if len(buf) < binaryFusePackedHeaderBytes {
		*f = BinaryFuse[T]{}
		return ErrBufferTooShort
	}
	seed := binary.NativeEndian.Uint64(buf[0:8])
	size := binary.NativeEndian.Uint32(buf[8:12])
	g := newFuseGeometry(size)
	fp := make([]T, g.arrayLength)
	if err := unpackBody(fp, buf[binaryFusePackedHeaderBytes:]); err != nil {
		*f = BinaryFuse[T]{}
		return err
	}
	f.Seed = seed
	f.Size = size
	f.SegmentLength = g.segmentLength
	f.SegmentLengthMask = g.segmentLengthMask
	f.SegmentCount = g.segmentCount
	f.SegmentCountLength = g.segmentCountLength
	f.ArrayLength = g.arrayLength
	f.Fingerprints = fp
	return nil
}
