// Copyright 2025 The HashSet Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package hashset provides a generic unordered set of comparable keys backed
// by an open-addressing hash table with Robin Hood probing. See
// https://en.wikipedia.org/wiki/Hash_table#Robin_Hood_hashing and
// https://codecapsule.com/2013/11/11/robin-hood-hashing/ for background on
// the probing scheme, and
// https://codecapsule.com/2013/11/17/robin-hood-hashing-backward-shift-deletion/
// for the tombstone-free deletion it enables.
//
// # Layout
//
// A Set holds two parallel allocations. The metadata table is a power-of-two
// sized array of {hash, keyIdx} pairs addressed by hash. The keys themselves
// live in a separate dense array with exactly Len() live elements and no
// holes, which keeps iteration a straight scan over contiguous memory.
// Metadata entries reference keys by index and never store them. A hash
// value of 0 marks an empty metadata slot; real hashes that come out as 0
// are remapped to 1.
//
// Insertion uses Robin Hood stealing: while probing forward, a candidate
// whose probe distance exceeds the occupant's evicts the occupant and the
// eviction continues probing in its place. This bounds the variance of probe
// lengths across all entries. Lookups can therefore terminate early - at an
// empty slot, or as soon as the scan distance exceeds the occupant's own
// probe length - without any tombstone bookkeeping.
//
// Deletion performs a backward shift: entries after the freed slot that are
// not at their ideal position are shifted back one slot, restoring the
// probing invariant with no tombstones. The vacated dense-array index is
// filled by moving the last key into it, so the key array stays compact; the
// moved key's metadata entry is re-pointed in the same step.
//
// The table doubles when an insertion would push the number of elements past
// 3/4 of capacity. Growth rebuilds only the metadata table; keys are block
// copied and keep their indices.
//
// # Index stability
//
// Dense indices and the positions produced by iteration are stable across
// ReplaceKey and across deletion of the index being removed (which moves
// only the last element). Any other Insert, Delete, Reserve, or Clear may
// rehash or compact and invalidates previously obtained indices.
//
// A Set is NOT goroutine-safe.
package hashset

import (
	"fmt"
	"hash/maphash"
	"log/slog"
	"math/bits"
	"strings"
)

const (
	// defaultCapacity is the planned capacity of a Set constructed without a
	// capacity hint. Must be a power of two.
	defaultCapacity = 16
	// minCapacity is the smallest capacity the table will use. Must be a
	// power of two.
	minCapacity = 4
	// emptyHash marks an unused metadata slot. Real hashes are remapped away
	// from this value so a zeroed metadata table is an empty table.
	emptyHash = 0
)

// Metadata is a single slot of the hash-addressed table: the (remapped) hash
// of a key and the key's index in the dense key array.
type Metadata struct {
	hash   uint32
	keyIdx uint32
}

// Set is an unordered set of keys with Insert, Delete, Has, and index-based
// access operations. Keys are stored in a dense array which makes iteration
// cache friendly and gives every element a stable positional index between
// mutations. The zero value is not usable; construct with New, NewOf, or
// Clone.
//
// A Set is NOT goroutine-safe.
type Set[K comparable] struct {
	// The hash function applied to keys. Defaults to maphash.Comparable.
	hash hashFn[K]
	seed maphash.Seed
	// The allocator to use for the metadata and keys slices.
	allocator Allocator[K]
	logger    *slog.Logger
	// keys is the dense key array. Its backing length is the growth
	// threshold of the current capacity plus one; only [0:size) are live.
	keys []K
	// metadata is capacityMask+1 in length and nil until the first insert.
	// While nil, capacityMask records the planned capacity.
	metadata []Metadata
	// The total number of metadata slots minus one. The capacity is always a
	// power of two so the mask computes i%capacity with a bitwise and.
	capacityMask uint32
	// The number of live keys.
	size uint32
}

type hashFn[K comparable] func(key K, seed maphash.Seed) uint32

func defaultHash[K comparable](key K, seed maphash.Seed) uint32 {
	h := maphash.Comparable(seed, key)
	return uint32(h>>32) ^ uint32(h)
}

// New constructs a new Set with the specified initial capacity hint. If
// initialCapacity is 0 the set plans for a small default capacity. No memory
// is allocated until the first insertion.
func New[K comparable](initialCapacity int, options ...Option[K]) *Set[K] {
	s := &Set[K]{
		hash:         defaultHash[K],
		seed:         maphash.MakeSeed(),
		allocator:    defaultAllocator[K]{},
		logger:       slog.Default(),
		capacityMask: defaultCapacity - 1,
	}
	for _, op := range options {
		op.apply(s)
	}
	if initialCapacity > 0 {
		s.capacityMask = nextPowerOfTwo(max(minCapacity, uint32(initialCapacity))) - 1
	}
	return s
}

// NewOf constructs a Set holding the given keys. Duplicates are collapsed.
func NewOf[K comparable](keys ...K) *Set[K] {
	s := New[K](len(keys))
	for _, k := range keys {
		s.Insert(k)
	}
	return s
}

// hashKey computes the table hash of key, remapping the empty sentinel to an
// adjacent value so 0 is reserved for unused slots.
func (s *Set[K]) hashKey(key K) uint32 {
	h := s.hash(key, s.seed)
	if h == emptyHash {
		h = emptyHash + 1
	}
	return h
}

// growthThreshold returns capacity*3/4 - 1 for a power-of-two capacity
// expressed as its mask. An insertion is preceded by a resize once size
// exceeds this value.
func growthThreshold(mask uint32) uint32 {
	return mask ^ (mask+1)>>2
}

// probeLength returns the distance (mod capacity) between metaIdx and the
// ideal slot of hash.
func probeLength(metaIdx, hash, mask uint32) uint32 {
	return (metaIdx - (hash & mask)) & mask
}

func nextPowerOfTwo(v uint32) uint32 {
	return 1 << bits.Len32(v-1)
}

// lookup finds the metadata slot holding key, returning the key's dense
// index and the metadata index. The scan starts at the ideal slot of hash
// and stops at an empty slot or once the scan distance exceeds an occupant's
// own probe length, which the Robin Hood ordering guarantees means the key
// is absent.
func (s *Set[K]) lookup(key K, hash uint32) (keyIdx, metaIdx uint32, ok bool) {
	if s.metadata == nil {
		return 0, 0, false
	}
	mask := s.capacityMask
	idx := hash & mask
	for dist := uint32(0); ; dist++ {
		m := s.metadata[idx]
		if m.hash == hash && s.keys[m.keyIdx] == key {
			return m.keyIdx, idx, true
		}
		if m.hash == emptyHash {
			return 0, 0, false
		}
		if dist > probeLength(idx, m.hash, mask) {
			return 0, 0, false
		}
		idx = (idx + 1) & mask
	}
}

// insertMetadata places a {hash, keyIdx} pair into the metadata table using
// Robin Hood stealing: an occupant closer to its ideal slot than the current
// candidate is evicted and the eviction continues probing as the new
// candidate.
func (s *Set[K]) insertMetadata(hash, keyIdx uint32) {
	mask := s.capacityMask
	idx := hash & mask
	if s.metadata[idx].hash == emptyHash {
		s.metadata[idx] = Metadata{hash: hash, keyIdx: keyIdx}
		return
	}

	candidate := Metadata{hash: hash, keyIdx: keyIdx}
	idx = (idx + 1) & mask
	dist := uint32(1)
	for {
		if s.metadata[idx].hash == emptyHash {
			if invariants && dist > 12 {
				s.logger.Warn("hashset: excessive collision count, is the right hash function being used?",
					"distance", dist)
			}
			s.metadata[idx] = candidate
			return
		}

		// Not an empty slot, check the probe length of the occupant.
		existing := probeLength(idx, s.metadata[idx].hash, mask)
		if existing < dist {
			candidate, s.metadata[idx] = s.metadata[idx], candidate
			dist = existing
		}

		idx = (idx + 1) & mask
		dist++
	}
}

// resizeAndRehash grows the table to hold newCapacity slots (rounded up to a
// power of two, at least minCapacity) and re-inserts every live metadata
// entry. Keys keep their dense indices; only the metadata table is rebuilt.
func (s *Set[K]) resizeAndRehash(newCapacity uint32) {
	oldMetadata := s.metadata
	oldKeys := s.keys

	s.capacityMask = nextPowerOfTwo(max(minCapacity, newCapacity)) - 1
	s.metadata = s.allocator.AllocMetadata(int(s.capacityMask + 1))
	s.keys = s.allocator.AllocKeys(int(growthThreshold(s.capacityMask) + 1))
	copy(s.keys, oldKeys[:s.size])

	if s.size != 0 {
		for _, m := range oldMetadata {
			if m.hash != emptyHash {
				s.insertMetadata(m.hash, m.keyIdx)
			}
		}
	}

	s.allocator.FreeKeys(oldKeys)
	s.allocator.FreeMetadata(oldMetadata)
}

// insert appends key to the dense array and inserts its metadata, growing
// the table first if the insertion would exceed the load threshold. The key
// must not be present.
func (s *Set[K]) insert(key K, hash uint32) int {
	if s.metadata == nil {
		// Allocate on demand: an empty set holds no backing storage.
		s.metadata = s.allocator.AllocMetadata(int(s.capacityMask + 1))
		s.keys = s.allocator.AllocKeys(int(growthThreshold(s.capacityMask) + 1))
	}

	if s.size > growthThreshold(s.capacityMask) {
		s.resizeAndRehash((s.capacityMask + 1) * 2)
	}

	s.keys[s.size] = key
	s.insertMetadata(hash, s.size)
	s.size++
	return int(s.size - 1)
}

// Insert adds key to the set and returns its dense index. Inserting a key
// that is already present is a no-op returning the existing index.
func (s *Set[K]) Insert(key K) int {
	hash := s.hashKey(key)
	if keyIdx, _, ok := s.lookup(key, hash); ok {
		return int(keyIdx)
	}
	idx := s.insert(key, hash)
	s.checkInvariants()
	return idx
}

// InsertNew adds key to the set without checking whether it is already
// present, and returns its dense index. The caller is responsible for
// uniqueness: inserting a duplicate corrupts the set. This is a performance
// escape hatch for bulk loads where the caller already knows the keys are
// distinct; the duplicate check still runs under the invariants build tag.
func (s *Set[K]) InsertNew(key K) int {
	if invariants && s.Has(key) {
		panic(fmt.Sprintf("hashset: InsertNew of an already-present key\n%s", s.debugString()))
	}
	idx := s.insert(key, s.hashKey(key))
	s.checkInvariants()
	return idx
}

// Has reports whether key is in the set.
func (s *Set[K]) Has(key K) bool {
	_, _, ok := s.lookup(key, s.hashKey(key))
	return ok
}

// Find returns the dense index of key, or ok=false if the key is absent.
func (s *Set[K]) Find(key K) (idx int, ok bool) {
	keyIdx, _, ok := s.lookup(key, s.hashKey(key))
	return int(keyIdx), ok
}

// GetIndex returns the dense index of key, or -1 if the key is absent.
func (s *Set[K]) GetIndex(key K) int {
	keyIdx, _, ok := s.lookup(key, s.hashKey(key))
	if !ok {
		return -1
	}
	return int(keyIdx)
}

// At returns the key at dense index i. Indices are only meant to be obtained
// from the set itself, so an out-of-range index is caller misuse and At
// panics rather than returning an error.
func (s *Set[K]) At(i int) K {
	if i < 0 || uint32(i) >= s.size {
		panic(fmt.Sprintf("hashset: index %d out of range [0, %d)", i, s.size))
	}
	return s.keys[i]
}

// eraseMetadata removes the entry at metaIdx by backward shifting: each
// following occupant that is not already at its ideal slot moves back one
// position. The shift stops at an empty slot or a zero probe length, leaving
// no tombstone and preserving the Robin Hood ordering of the survivors.
func (s *Set[K]) eraseMetadata(metaIdx uint32) {
	mask := s.capacityMask
	next := (metaIdx + 1) & mask
	for s.metadata[next].hash != emptyHash && probeLength(next, s.metadata[next].hash, mask) != 0 {
		s.metadata[metaIdx], s.metadata[next] = s.metadata[next], s.metadata[metaIdx]
		metaIdx = next
		next = (next + 1) & mask
	}
	s.metadata[metaIdx] = Metadata{}
}

// Delete removes key from the set, reporting whether it was present.
// Deleting an absent key is not an error. The dense array is kept compact by
// moving the last key into the vacated index, so the index of the last
// element changes; all other indices are untouched.
func (s *Set[K]) Delete(key K) bool {
	keyIdx, metaIdx, ok := s.lookup(key, s.hashKey(key))
	if !ok {
		return false
	}

	s.eraseMetadata(metaIdx)
	s.size--

	if keyIdx < s.size {
		// Compact the dense array: move the last key into the hole and
		// re-point its metadata entry at the new index. The moved key's slot
		// is found by an ordinary lookup of its own hash.
		moved := s.keys[s.size]
		s.keys[keyIdx] = moved
		_, movedMetaIdx, ok := s.lookup(moved, s.hashKey(moved))
		if !ok {
			panic(fmt.Sprintf("hashset: moved key not found during compaction\n%s", s.debugString()))
		}
		s.metadata[movedMetaIdx].keyIdx = keyIdx
	}
	var zero K
	s.keys[s.size] = zero

	s.checkInvariants()
	return true
}

// DeleteAt removes the key at dense index i, reporting whether the index was
// valid. Unlike At, a stale out-of-range index returns false rather than
// panicking, since callers commonly track indices that a prior mutation may
// have invalidated.
func (s *Set[K]) DeleteAt(i int) bool {
	if i < 0 || uint32(i) >= s.size {
		return false
	}
	return s.Delete(s.keys[i])
}

// ReplaceKey replaces oldKey with newKey in place: the element keeps its
// dense index and no other element moves, so iteration positions remain
// valid. Returns false if newKey is already present or oldKey is absent.
// Replacing a key with itself is a no-op returning true.
func (s *Set[K]) ReplaceKey(oldKey, newKey K) bool {
	if oldKey == newKey {
		return true
	}
	newHash := s.hashKey(newKey)
	if _, _, ok := s.lookup(newKey, newHash); ok {
		return false
	}
	keyIdx, metaIdx, ok := s.lookup(oldKey, s.hashKey(oldKey))
	if !ok {
		return false
	}

	// Only the metadata moves: drop the old entry via backward shift,
	// overwrite the key in place, and insert fresh metadata for the new hash
	// pointing at the same dense index.
	s.eraseMetadata(metaIdx)
	s.keys[keyIdx] = newKey
	s.insertMetadata(newHash, keyIdx)

	s.checkInvariants()
	return true
}

// Reserve pre-sizes the table for at least capacity elements to avoid
// incremental rehashing during a known bulk insertion. If the set is still
// unallocated only the planned capacity is updated. Shrinking below the
// current capacity is refused; a request below the current size additionally
// logs a warning since it is likely a mistake.
func (s *Set[K]) Reserve(capacity int) {
	c := uint32(max(0, capacity))
	if s.metadata == nil {
		s.capacityMask = nextPowerOfTwo(max(minCapacity, c)) - 1
		return
	}
	if c <= s.capacityMask+1 {
		if c < s.size {
			s.logger.Warn("hashset: Reserve called with a capacity smaller than the current size",
				"capacity", capacity, "size", s.size)
		}
		return
	}
	s.resizeAndRehash(c)
	s.checkInvariants()
}

// Clear removes all keys, retaining the current allocations.
func (s *Set[K]) Clear() {
	if s.metadata == nil || s.size == 0 {
		return
	}
	clear(s.metadata)
	clear(s.keys[:s.size])
	s.size = 0
}

// Reset removes all keys and releases the backing allocations, returning the
// set to the empty, unallocated state.
func (s *Set[K]) Reset() {
	if s.metadata != nil {
		s.allocator.FreeKeys(s.keys)
		s.allocator.FreeMetadata(s.metadata)
		s.keys = nil
		s.metadata = nil
	}
	s.capacityMask = defaultCapacity - 1
	s.size = 0
}

// Close closes the set, releasing any memory back to its configured
// allocator. It is unnecessary to close a set using the default allocator.
// It is invalid to use a Set after it has been closed, though Close itself
// is idempotent.
func (s *Set[K]) Close() {
	if s.metadata != nil {
		s.allocator.FreeKeys(s.keys)
		s.allocator.FreeMetadata(s.metadata)
		s.keys = nil
		s.metadata = nil
	}
	s.size = 0
	s.allocator = nil
}

// Clone returns an independent copy of the set: fresh allocations, same
// contents, same hash function and seed. Mutating the clone never affects
// the original.
func (s *Set[K]) Clone() *Set[K] {
	c := &Set[K]{
		hash:         s.hash,
		seed:         s.seed,
		allocator:    s.allocator,
		logger:       s.logger,
		capacityMask: s.capacityMask,
		size:         s.size,
	}
	if s.metadata == nil || s.size == 0 {
		c.size = 0
		return c
	}
	// The metadata is copied verbatim, which is valid because the clone
	// shares the hash seed with the original.
	c.metadata = c.allocator.AllocMetadata(len(s.metadata))
	copy(c.metadata, s.metadata)
	c.keys = c.allocator.AllocKeys(len(s.keys))
	copy(c.keys, s.keys[:s.size])
	return c
}

// Equal reports whether the two sets hold the same keys, irrespective of
// order, hash function, or capacity. Runs in O(Len()) average time.
func (s *Set[K]) Equal(other *Set[K]) bool {
	if s.size != other.size {
		return false
	}
	for i := uint32(0); i < s.size; i++ {
		if !other.Has(s.keys[i]) {
			return false
		}
	}
	return true
}

// All calls yield sequentially for each dense index and key in the set,
// front to back. If yield returns false, iteration stops. All can be used
// with range:
//
//	for i, k := range s.All {
//	  fmt.Printf("%d: %v\n", i, k)
//	}
//
// The sequence is restartable. It remains valid only while the set is not
// mutated, except for ReplaceKey and DeleteAt of the index currently being
// visited, which keep every other position valid.
func (s *Set[K]) All(yield func(i int, key K) bool) {
	for i := 0; i < int(s.size); i++ {
		if !yield(i, s.keys[i]) {
			return
		}
	}
}

// Backward is like All but visits the keys back to front, starting from the
// last dense index.
func (s *Set[K]) Backward(yield func(i int, key K) bool) {
	for i := int(s.size) - 1; i >= 0; i-- {
		if !yield(i, s.keys[i]) {
			return
		}
	}
}

// Len returns the number of keys in the set.
func (s *Set[K]) Len() int {
	return int(s.size)
}

// Capacity returns the number of metadata slots the set holds, or plans to
// hold if nothing has been inserted yet.
func (s *Set[K]) Capacity() int {
	return int(s.capacityMask + 1)
}

// IsEmpty reports whether the set holds no keys.
func (s *Set[K]) IsEmpty() bool {
	return s.size == 0
}

// checkInvariants verifies the internal consistency of the set. Compiled
// away unless the invariants build tag is set.
func (s *Set[K]) checkInvariants() {
	if !invariants {
		return
	}

	if s.metadata == nil {
		if s.size != 0 {
			panic(fmt.Sprintf("invariant failed: unallocated set has size %d", s.size))
		}
		return
	}

	if s.size > growthThreshold(s.capacityMask)+1 {
		panic(fmt.Sprintf("invariant failed: size %d exceeds load threshold of capacity %d\n%s",
			s.size, s.capacityMask+1, s.debugString()))
	}

	mask := s.capacityMask
	var live uint32
	for i := range s.metadata {
		m := s.metadata[i]
		if m.hash == emptyHash {
			continue
		}
		live++
		if m.keyIdx >= s.size {
			panic(fmt.Sprintf("invariant failed: meta(%d) references key index %d with size %d\n%s",
				i, m.keyIdx, s.size, s.debugString()))
		}
		if h := s.hashKey(s.keys[m.keyIdx]); h != m.hash {
			panic(fmt.Sprintf("invariant failed: meta(%d) stores hash %08x but key hashes to %08x\n%s",
				i, m.hash, h, s.debugString()))
		}
		// Robin Hood ordering: a displaced occupant must follow an occupant
		// whose own probe length is at most one smaller.
		if d := probeLength(uint32(i), m.hash, mask); d > 0 {
			prev := (uint32(i) - 1) & mask
			pm := s.metadata[prev]
			if pm.hash == emptyHash {
				panic(fmt.Sprintf("invariant failed: meta(%d) is %d slots from ideal but meta(%d) is empty\n%s",
					i, d, prev, s.debugString()))
			}
			if pd := probeLength(prev, pm.hash, mask); pd+1 < d {
				panic(fmt.Sprintf("invariant failed: probe length jumps from %d at meta(%d) to %d at meta(%d)\n%s",
					pd, prev, d, i, s.debugString()))
			}
		}
	}
	if live != s.size {
		panic(fmt.Sprintf("invariant failed: found %d live metadata entries, but size is %d\n%s",
			live, s.size, s.debugString()))
	}

	// Every dense index must be reachable through its own key's lookup.
	for i := uint32(0); i < s.size; i++ {
		keyIdx, _, ok := s.lookup(s.keys[i], s.hashKey(s.keys[i]))
		if !ok || keyIdx != i {
			panic(fmt.Sprintf("invariant failed: key at index %d resolves to (%d, %t)\n%s",
				i, keyIdx, ok, s.debugString()))
		}
	}
}

func (s *Set[K]) debugString() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "capacity=%d  size=%d\n", s.capacityMask+1, s.size)
	for i := range s.metadata {
		m := s.metadata[i]
		if m.hash == emptyHash {
			fmt.Fprintf(&buf, "  %4d: empty\n", i)
			continue
		}
		fmt.Fprintf(&buf, "  %4d: hash=%08x probe=%d key_idx=%d",
			i, m.hash, probeLength(uint32(i), m.hash, s.capacityMask), m.keyIdx)
		if m.keyIdx < s.size {
			fmt.Fprintf(&buf, " key=%v", s.keys[m.keyIdx])
		}
		buf.WriteString("\n")
	}
	return buf.String()
}
