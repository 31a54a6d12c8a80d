package xorfilter

import (
	"math/rand"
	"testing"
)

func randomUint64Keys(n int, seed int64) []uint64 {
	r := rand.New(rand.NewSource(seed))
	keys := make([]uint64, n)
	for i := range keys {
		keys[i] = r.Uint64()
	}
	return keys
}

func TestXor8ContainsAllKeys(t *testing.T) {
	keys := randomUint64Keys(10000, 1)
	f, err := NewXor[uint8](keys)
	if err != nil {
		t.Fatalf("NewXor failed: %v", err)
	}
	for _, k := range keys {
		if !f.Contains(k) {
			t.Fatalf("key %d falsely reported absent", k)
		}
	}
}

func TestXor8FalsePositiveRate(t *testing.T) {
	const n = 10000
	keys := randomUint64Keys(n, 2)
	f, err := NewXor[uint8](keys)
	if err != nil {
		t.Fatalf("NewXor failed: %v", err)
	}

	present := make(map[uint64]bool, n)
	for _, k := range keys {
		present[k] = true
	}

	r := rand.New(rand.NewSource(3))
	const trials = 1_000_000
	falsePositives := 0
	for i := 0; i < trials; i++ {
		k := r.Uint64()
		if present[k] {
			continue
		}
		if f.Contains(k) {
			falsePositives++
		}
	}
	rate := float64(falsePositives) / float64(trials)
	// Xor8 targets ~0.39%; allow generous headroom since this is a single sample.
	if rate > 0.01 {
		t.Fatalf("false positive rate too high: %f (%d/%d)", rate, falsePositives, trials)
	}
}

func TestXor16LowerFalsePositiveRateThanXor8(t *testing.T) {
	keys := randomUint64Keys(5000, 4)
	f8, err := NewXor[uint8](keys)
	if err != nil {
		t.Fatalf("NewXor[uint8] failed: %v", err)
	}
	f16, err := NewXor[uint16](keys)
	if err != nil {
		t.Fatalf("NewXor[uint16] failed: %v", err)
	}

	present := make(map[uint64]bool, len(keys))
	for _, k := range keys {
		present[k] = true
	}

	r := rand.New(rand.NewSource(5))
	const trials = 200_000
	fp8, fp16 := 0, 0
	for i := 0; i < trials; i++ {
		k := r.Uint64()
		if present[k] {
			continue
		}
		if f8.Contains(k) {
			fp8++
		}
		if f16.Contains(k) {
			fp16++
		}
	}
	if fp16 > fp8 {
		t.Fatalf("xor16 false positives (%d) exceeded xor8 (%d) over %d trials", fp16, fp8, trials)
	}
}

func TestXorEmptyKeySet(t *testing.T) {
	f, err := NewXor[uint8](nil)
	if err != nil {
		t.Fatalf("NewXor with no keys should succeed, got %v", err)
	}
	// An empty filter's fingerprint cells are all zero, so Contains still
	// carries the family's ordinary false-positive rate rather than being
	// guaranteed false; check the rate stays bounded over many queries.
	r := rand.New(rand.NewSource(100))
	hits := 0
	const trials = 100000
	for i := 0; i < trials; i++ {
		if f.Contains(r.Uint64()) {
			hits++
		}
	}
	if rate := float64(hits) / float64(trials); rate > 0.01 {
		t.Fatalf("empty filter false positive rate too high: %f", rate)
	}
}

func TestXorBufferedPopulateMatchesUnbuffered(t *testing.T) {
	keys := randomUint64Keys(20000, 6)

	var direct Xor[uint8]
	direct.Allocate(uint32(len(keys)))
	if err := direct.Populate(append([]uint64(nil), keys...)); err != nil {
		t.Fatalf("Populate failed: %v", err)
	}

	var buffered Xor[uint8]
	buffered.Allocate(uint32(len(keys)))
	if err := buffered.BufferedPopulate(append([]uint64(nil), keys...)); err != nil {
		t.Fatalf("BufferedPopulate failed: %v", err)
	}

	if direct.BlockLength != buffered.BlockLength {
		t.Fatalf("block length mismatch: %d vs %d", direct.BlockLength, buffered.BlockLength)
	}
	if direct.Seed != buffered.Seed {
		t.Fatalf("seed mismatch: %d vs %d", direct.Seed, buffered.Seed)
	}
	if len(direct.Fingerprints) != len(buffered.Fingerprints) {
		t.Fatalf("fingerprint length mismatch: %d vs %d", len(direct.Fingerprints), len(buffered.Fingerprints))
	}
	for i := range direct.Fingerprints {
		if direct.Fingerprints[i] != buffered.Fingerprints[i] {
			t.Fatalf("fingerprint %d differs between direct and buffered construction: %d vs %d", i, direct.Fingerprints[i], buffered.Fingerprints[i])
		}
	}
}

func TestXorDuplicateKeysDoNotPreventConstruction(t *testing.T) {
	keys := randomUint64Keys(2000, 7)
	// Duplicate the first ten keys to exercise the sort-and-dedup fallback.
	keys = append(keys, keys[:10]...)

	f, err := NewXor[uint8](keys)
	if err != nil {
		t.Fatalf("NewXor with duplicates failed: %v", err)
	}
	for _, k := range keys {
		if !f.Contains(k) {
			t.Fatalf("key %d falsely reported absent after duplicate-tolerant construction", k)
		}
	}
}

func TestXorSerializeDeserializeRoundTrip(t *testing.T) {
	keys := randomUint64Keys(4096, 8)
	f, err := NewXor[uint16](keys)
	if err != nil {
		t.Fatalf("NewXor failed: %v", err)
	}

	buf := make([]byte, f.SerializationBytes())
	if _, err := f.Serialize(buf); err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}

	var g Xor[uint16]
	if err := g.Deserialize(buf); err != nil {
		t.Fatalf("Deserialize failed: %v", err)
	}
	if g.Seed != f.Seed || g.BlockLength != f.BlockLength {
		t.Fatalf("header mismatch after round trip")
	}
	for i := range f.Fingerprints {
		if f.Fingerprints[i] != g.Fingerprints[i] {
			t.Fatalf("fingerprint %d differs after round trip", i)
		}
	}
	for _, k := range keys {
		if !g.Contains(k) {
			t.Fatalf("key %d lost across serialize/deserialize round trip", k)
		}
	}
}

func TestXorPackUnpackRoundTrip(t *testing.T) {
	keys := randomUint64Keys(4096, 9)
	f, err := NewXor[uint8](keys)
	if err != nil {
		t.Fatalf("NewXor failed: %v", err)
	}

	buf := make([]byte, f.PackBytes())
	if n := f.Pack(buf); n == 0 {
		t.Fatalf("Pack reported buffer too small")
	}

	f.Free()
	if f.Fingerprints != nil {
		t.Fatalf("Free should clear Fingerprints")
	}

	var g Xor[uint8]
	if err := g.Unpack(buf); err != nil {
		t.Fatalf("Unpack failed: %v", err)
	}
	for _, k := range keys {
		if !g.Contains(k) {
			t.Fatalf("key %d lost across pack/unpack round trip", k)
		}
	}
}

func BenchmarkXor8Contains(b *testing.B) {
	keys := randomUint64Keys(100000, 10)
	f, err := NewXor[uint8](keys)
	if err != nil {
		b.Fatalf("NewXor failed: %v", err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		f.Contains(keys[i%len(keys)])
	}
}

func BenchmarkXor8Populate(b *testing.B) {
	keys := randomUint64Keys(100000, 11)
	for i := 0; i < b.N; i++ {
		var f Xor[uint8]
		f.Allocate(uint32(len(keys)))
		if err := f.Populate(append([]uint64(nil), keys...)); err != nil {
			b.Fatalf("Populate failed: %v", err)
		}
	}
}
