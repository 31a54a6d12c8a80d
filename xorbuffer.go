package xorfilter

// xorSetBuffer batches cell updates for one xor block by the top bits of
// the cell index, so that BufferedPopulate's random-access writes stay
// within one slot's cache-resident window instead of scattering across
// the whole block on every key. Grounded on
// original_source/include/xorfilter.h's xor_setbuffer_t and its
// xor_*_buffer helpers.
type xorSetBuffer struct {
	buffer    []xorKeyIndex
	counts    []uint32
	slotBits  uint32
	slotSize  uint32
	slotCount uint32
}

func newXorSetBuffer(blockLength uint64) *xorSetBuffer {
	slotBits := uint32(bufferInsignificantBits)
	slotSize := uint32(1) << slotBits
	slotCount := uint32((blockLength + uint64(slotSize) - 1) / uint64(slotSize))
	if slotCount == 0 {
		slotCount = 1
	}
	return &xorSetBuffer{
		buffer:    make([]xorKeyIndex, uint64(slotCount)*uint64(slotSize)),
		counts:    make([]uint32, slotCount),
		slotBits:  slotBits,
		slotSize:  slotSize,
		slotCount: slotCount,
	}
}

// increment stages a +1 count / xormask-toggle for index, flushing the
// owning slot into sets once it fills.
func (b *xorSetBuffer) increment(index uint32, hash uint64, sets []xorSet) {
	slot := index >> b.slotBits
	offset := slot << b.slotBits
	addr := b.counts[slot] + offset
	b.buffer[addr] = xorKeyIndex{hash: hash, index: index}
	b.counts[slot]++
	if b.counts[slot] == b.slotSize {
		for i := offset; i < b.slotSize+offset; i++ {
			ki := b.buffer[i]
			sets[ki.index].xormask ^= ki.hash
			sets[ki.index].count++
		}
		b.counts[slot] = 0
	}
}

// decrement stages a -1 count / xormask-toggle for index, flushing the
// owning slot (and appending any newly degree-1 cells to queue) once it
// fills.
func (b *xorSetBuffer) decrement(index uint32, hash uint64, sets []xorSet, queue []xorKeyIndex) []xorKeyIndex {
	slot := index >> b.slotBits
	offset := slot << b.slotBits
	addr := b.counts[slot] + offset
	b.buffer[addr] = xorKeyIndex{hash: hash, index: index}
	b.counts[slot]++
	if b.counts[slot] == b.slotSize {
		queue = b.drainSlot(slot, sets, queue)
	}
	return queue
}

// makeCurrent flushes whatever is pending in index's slot (even if not
// full), so a read of sets[index] about to happen next reflects every
// staged update. Appends any newly degree-1 cells found along the way.
func (b *xorSetBuffer) makeCurrent(sets []xorSet, index uint32, queue []xorKeyIndex) []xorKeyIndex {
	slot := index >> b.slotBits
	if b.counts[slot] == 0 {
		return queue
	}
	return b.drainSlot(slot, sets, queue)
}

// flushFullest drains the single most-populated slot, used as a
// tie-break when one of the three per-block queues stalls empty while
// the others still have staged decrements.
func (b *xorSetBuffer) flushFullest(sets []xorSet, queue []xorKeyIndex) []xorKeyIndex {
	best := uint32(0)
	for s := uint32(1); s < b.slotCount; s++ {
		if b.counts[s] > b.counts[best] {
			best = s
		}
	}
	if b.counts[best] == 0 {
		return queue
	}
	return b.drainSlot(best, sets, queue)
}

// flushAllIncrement drains every slot's staged increments unconditionally.
func (b *xorSetBuffer) flushAllIncrement(sets []xorSet) {
	for slot := uint32(0); slot < b.slotCount; slot++ {
		offset := slot << b.slotBits
		for i := offset; i < b.counts[slot]+offset; i++ {
			ki := b.buffer[i]
			sets[ki.index].xormask ^= ki.hash
			sets[ki.index].count++
		}
		b.counts[slot] = 0
	}
}

// flushAllDecrement drains every slot's staged decrements unconditionally;
// used only in the rare case all three queues empty out with keys still
// unaccounted for.
func (b *xorSetBuffer) flushAllDecrement(sets []xorSet, queue []xorKeyIndex) []xorKeyIndex {
	for slot := uint32(0); slot < b.slotCount; slot++ {
		if b.counts[slot] == 0 {
			continue
		}
		queue = b.drainSlot(slot, sets, queue)
	}
	return queue
}

func (b *xorSetBuffer) drainSlot(slot uint32, sets []xorSet, queue []xorKeyIndex) []xorKeyIndex {
	offset := slot << b.slotBits
	for i := offset; i < b.counts[slot]+offset; i++ {
		ki := b.buffer[i]
		sets[ki.index].xormask ^= ki.hash
		sets[ki.index].count--
		if sets[ki.index].count == 1 {
			queue = append(queue, xorKeyIndex{hash: sets[ki.index].xormask, index: ki.index})
		}
	}
	b.counts[slot] = 0
	return queue
}
