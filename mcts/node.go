// Package mcts implements the parallel Monte-Carlo tree search that drives
// move selection, with virtual-loss leaf parallelism, an optional
// transposition table, solver labels, and neural or rollout leaf evaluation.
package mcts

import (
	"sync"
	"sync/atomic"

	"github.com/gdicarlo/damasco/game"
	"github.com/gdicarlo/damasco/move"
)

// Status is a proven game-theoretic label, relative to the side to move at
// the node. Once a node leaves Unproven it never changes again.
type Status uint8

const (
	Unproven Status = iota
	// WinForMover: the side to move at this node wins with perfect play.
	WinForMover
	// LossForMover: the side to move at this node loses with perfect play.
	LossForMover
	// ProvenDraw comes only from the 40-quiet-moves terminal rule.
	ProvenDraw
)

func (s Status) String() string {
	switch s {
	case WinForMover:
		return "win-for-mover"
	case LossForMover:
		return "loss-for-mover"
	case ProvenDraw:
		return "draw"
	}
	return "unproven"
}

// Node is one tree position. visits and vloss are atomics readable without
// the lock; score, sumSq, status and the untried list are guarded by mu.
// parent, mv, pos, heur, prior and terminal are written once at creation and
// read freely afterwards. children entries are published by storing the
// pointer first and then atomically bumping numChildren.
type Node struct {
	mu sync.Mutex

	parent *Node
	mv     move.Move
	pos    game.Position

	untried []move.Move

	children    [move.MaxMoves]*Node
	numChildren int32

	visits int64
	vloss  int32

	// score accumulates results from the perspective of the player who
	// just moved into this node.
	score float64
	sumSq float64

	status   Status
	terminal bool
	drawn    bool
	noExpand bool

	heur  float64
	prior float64

	// policy is the masked, renormalized network policy for this node's
	// position, computed once and indexed by nn.MoveToPolicyIndex. Backed
	// by an arena slab.
	policy []float32
}

func (n *Node) Visits() int64 { return atomic.LoadInt64(&n.visits) }

func (n *Node) VirtualLoss() int32 { return atomic.LoadInt32(&n.vloss) }

func (n *Node) addVirtualLoss()    { atomic.AddInt32(&n.vloss, 1) }
func (n *Node) removeVirtualLoss() { atomic.AddInt32(&n.vloss, -1) }

func (n *Node) NumChildren() int { return int(atomic.LoadInt32(&n.numChildren)) }

// Move returns the move that led into this node; meaningless at a root.
func (n *Node) Move() move.Move { return n.mv }

func (n *Node) Position() game.Position { return n.pos }

// Status reads the solver label.
func (n *Node) Status() Status {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.status
}

// Mean is the average result from the just-moved player's perspective; 0
// when unvisited.
func (n *Node) Mean() float64 {
	v := n.Visits()
	if v == 0 {
		return 0
	}
	n.mu.Lock()
	score := n.score
	n.mu.Unlock()
	return score / float64(v)
}

// stats snapshots the locked fields alongside the atomic counters for the
// selection formulas.
func (n *Node) stats() (visits int64, vloss int32, score, sumSq float64, status Status) {
	visits = n.Visits()
	vloss = n.VirtualLoss()
	n.mu.Lock()
	score, sumSq, status = n.score, n.sumSq, n.status
	n.mu.Unlock()
	return
}

// untriedCount reports how many expansion candidates remain.
func (n *Node) untriedCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.untried)
}

// popUntried removes one expansion candidate, or reports false when none
// remain.
func (n *Node) popUntried() (move.Move, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.untried) == 0 {
		return move.Move{}, false
	}
	m := n.untried[len(n.untried)-1]
	n.untried = n.untried[:len(n.untried)-1]
	return m, true
}

// pushUntried returns a popped candidate, used when an expansion is
// abandoned.
func (n *Node) pushUntried(m move.Move) {
	n.mu.Lock()
	n.untried = append(n.untried, m)
	n.mu.Unlock()
}

// linkChild appends a fully initialized child.
func (n *Node) linkChild(c *Node) {
	n.mu.Lock()
	idx := atomic.LoadInt32(&n.numChildren)
	n.children[idx] = c
	atomic.StoreInt32(&n.numChildren, idx+1)
	n.mu.Unlock()
}

// childList returns the currently published children. The slice aliases the
// node's array; entries up to NumChildren are immutable once published.
func (n *Node) childList() []*Node {
	return n.children[:n.NumChildren()]
}

// reset clears a node for arena reuse. The mutex is left alone; a recycled
// node is never handed out while locked.
func (n *Node) reset() {
	n.parent = nil
	n.mv = move.Move{}
	n.pos = game.Position{}
	n.untried = nil
	for i := range n.children {
		n.children[i] = nil
	}
	n.numChildren = 0
	n.visits = 0
	n.vloss = 0
	n.score = 0
	n.sumSq = 0
	n.status = Unproven
	n.terminal = false
	n.drawn = false
	n.noExpand = false
	n.heur = 0
	n.prior = 0
	n.policy = nil
}
