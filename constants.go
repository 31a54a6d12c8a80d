package xorfilter

// MaxIterations bounds populate's seed-retry loop. Expected iterations
// for a successful build is well under 2; exceeding this bound is
// astronomically improbable for a distinct key set and is treated as a
// hard failure.
const MaxIterations = 100

// SortIterations is the xor-family retry count after which the key array
// is sorted and deduplicated in place, mirroring the fuse family's
// duplicate-driven fallback (the xor family has no inline duplicate
// detection, so duplicates only ever manifest as repeated peeling
// failures).
const SortIterations = 10

// bufferInsignificantBits sets the xor buffered-populate slot size to
// 2^18 entries, keeping each slot's random-access writes within one
// cache-resident window.
const bufferInsignificantBits = 18
