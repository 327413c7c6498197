package mcts

import (
	"math"
	"sync"
	"unsafe"

	"github.com/pbnjay/memory"
	"github.com/rs/zerolog/log"

	"github.com/gdicarlo/damasco/nn"
)

// policyPerNode reserves policy-cache capacity proportional to the node
// count; only expanded interior nodes ever claim a slab, so a fraction of a
// full vector per node is plenty.
const policyPerNode = nn.PolicySize / 8

// Arena owns every tree node. Allocation is a bump-pointer advance under a
// single mutex; Reset recycles all outstanding nodes at once, which is how
// trees are discarded between games. Nodes hold pointers into the arena but
// the arena is the unique owner.
type Arena struct {
	mu sync.Mutex

	nodes     []Node
	allocated int

	policy     []float32
	policyUsed int
}

// NewArena allocates a fixed-capacity arena of maxNodes nodes.
func NewArena(maxNodes int) *Arena {
	if maxNodes < 1 {
		maxNodes = 1
	}
	a := &Arena{
		nodes:  make([]Node, maxNodes),
		policy: make([]float32, maxNodes*policyPerNode),
	}
	log.Debug().Int("max-nodes", maxNodes).
		Int("estimated-bytes", maxNodes*int(unsafe.Sizeof(Node{}))).
		Msg("arena-created")
	return a
}

// NewArenaMB sizes the arena to roughly the given number of megabytes.
func NewArenaMB(mb int) *Arena {
	perNode := int(unsafe.Sizeof(Node{})) + policyPerNode*4
	maxNodes := mb * 1024 * 1024 / perNode
	return NewArena(maxNodes)
}

// NewArenaFromMemory sizes the arena to a fraction of total system memory.
func NewArenaFromMemory(fraction float64) *Arena {
	total := memory.TotalMemory()
	perNode := int(unsafe.Sizeof(Node{})) + policyPerNode*4
	desired := fraction * float64(total) / float64(perNode)
	// Round down to a power of two, within sane bounds.
	exp := int(math.Log2(desired))
	if exp < 16 {
		exp = 16
	}
	if exp > 27 {
		exp = 27
	}
	log.Info().Uint64("total-system-memory-bytes", total).
		Int("node-bytes", perNode).Int("size-power-of-2", exp).
		Msg("arena-size")
	return NewArena(1 << exp)
}

// AllocNode returns a zeroed node, or nil when the arena is exhausted. The
// caller handles exhaustion; it is not an error.
func (a *Arena) AllocNode() *Node {
	a.mu.Lock()
	if a.allocated >= len(a.nodes) {
		a.mu.Unlock()
		return nil
	}
	n := &a.nodes[a.allocated]
	a.allocated++
	a.mu.Unlock()
	n.reset()
	return n
}

// AllocPolicy hands out a policy-cache slab, or nil on exhaustion.
func (a *Arena) AllocPolicy(size int) []float32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.policyUsed+size > len(a.policy) {
		return nil
	}
	s := a.policy[a.policyUsed : a.policyUsed+size : a.policyUsed+size]
	a.policyUsed += size
	return s
}

// Reset invalidates every outstanding allocation.
func (a *Arena) Reset() {
	a.mu.Lock()
	a.allocated = 0
	a.policyUsed = 0
	a.mu.Unlock()
}

// Allocated reports the number of live nodes.
func (a *Arena) Allocated() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.allocated
}

// Capacity is the fixed node capacity.
func (a *Arena) Capacity() int { return len(a.nodes) }

// FillRatio is Allocated/Capacity; the driver abandons tree reuse rather
// than start a search in a nearly full arena.
func (a *Arena) FillRatio() float64 {
	return float64(a.Allocated()) / float64(len(a.nodes))
}
