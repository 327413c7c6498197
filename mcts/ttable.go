package mcts

import (
	"math"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/pbnjay/memory"
	"github.com/rs/zerolog/log"

	"github.com/gdicarlo/damasco/game"
)

// maxProbe bounds the linear probe on both insert and lookup.
const maxProbe = 8

type tableEntry struct {
	key  uint64
	node *Node
	age  uint64
}

// TranspositionTable maps position hashes to tree nodes so transpositions
// can warm-start new nodes. A hit requires both hash equality and full
// state equality; 64-bit hash collisions and stale arena pointers both fail
// the state check and read as misses.
type TranspositionTable struct {
	mu       sync.Mutex
	table    []tableEntry
	sizeMask uint64
	stamp    uint64

	created atomic.Uint64
	lookups atomic.Uint64
	hits    atomic.Uint64
	// "type 2" collisions: a probed slot held a different position with
	// the same bucket. Full-hash or state mismatches at lookup time.
	t2collisions atomic.Uint64
}

// NewTranspositionTable creates a table with 2^sizeExponent entries.
func NewTranspositionTable(sizeExponent int) *TranspositionTable {
	if sizeExponent < 10 {
		sizeExponent = 10
	}
	numElems := 1 << sizeExponent
	log.Debug().Int("num-elems", numElems).
		Int("estimated-total-memory-bytes", numElems*int(unsafe.Sizeof(tableEntry{}))).
		Msg("transposition-table-size")
	return &TranspositionTable{
		table:    make([]tableEntry, numElems),
		sizeMask: uint64(numElems - 1),
	}
}

// NewTranspositionTableFromMemory sizes the table to a fraction of total
// system memory, rounded down to a power of two.
func NewTranspositionTableFromMemory(fraction float64) *TranspositionTable {
	totalMem := memory.TotalMemory()
	desiredNElems := fraction * (float64(totalMem) / float64(unsafe.Sizeof(tableEntry{})))
	exp := int(math.Log2(desiredNElems))
	if exp > 26 {
		exp = 26
	}
	return NewTranspositionTable(exp)
}

// Lookup returns the stored node for this hash, verifying the stored node
// still holds exactly the given position. Returns nil on miss.
func (t *TranspositionTable) Lookup(key uint64, pos *game.Position) *Node {
	t.lookups.Add(1)
	t.mu.Lock()
	defer t.mu.Unlock()
	idx := key & t.sizeMask
	for i := uint64(0); i < maxProbe; i++ {
		e := &t.table[(idx+i)&t.sizeMask]
		if e.node == nil {
			return nil
		}
		if e.key != key {
			t.t2collisions.Add(1)
			continue
		}
		nodePos := e.node.pos
		if !nodePos.Equal(pos) {
			// Same hash, different state: a birthday collision or a
			// recycled arena node.
			t.t2collisions.Add(1)
			continue
		}
		t.hits.Add(1)
		return e.node
	}
	return nil
}

// Insert stores the node under its hash, linearly probing for an empty slot
// and overwriting the oldest entry in the window when none is free.
func (t *TranspositionTable) Insert(key uint64, node *Node) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stamp++
	idx := key & t.sizeMask
	oldest := idx
	oldestAge := uint64(math.MaxUint64)
	for i := uint64(0); i < maxProbe; i++ {
		slot := (idx + i) & t.sizeMask
		e := &t.table[slot]
		if e.node == nil || e.key == key {
			oldest = slot
			break
		}
		if e.age < oldestAge {
			oldestAge = e.age
			oldest = slot
		}
	}
	t.table[oldest] = tableEntry{key: key, node: node, age: t.stamp}
	t.created.Add(1)
}

// Reset clears the table and its counters.
func (t *TranspositionTable) Reset() {
	t.mu.Lock()
	clear(t.table)
	t.stamp = 0
	t.mu.Unlock()
	t.created.Store(0)
	t.lookups.Store(0)
	t.hits.Store(0)
	t.t2collisions.Store(0)
}

// Stats reports lookup/hit/collision counters.
func (t *TranspositionTable) Stats() (created, lookups, hits, t2collisions uint64) {
	return t.created.Load(), t.lookups.Load(), t.hits.Load(), t.t2collisions.Load()
}

// Capacity is the fixed entry count, always a power of two.
func (t *TranspositionTable) Capacity() int { return len(t.table) }
