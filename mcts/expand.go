package mcts

import (
	"github.com/rs/zerolog/log"

	"github.com/gdicarlo/damasco/board"
	"github.com/gdicarlo/damasco/game"
	"github.com/gdicarlo/damasco/move"
	"github.com/gdicarlo/damasco/nn"
)

// loopPenalty is the heuristic assigned to a position that repeats an
// ancestor, to discourage shuffling cycles.
const loopPenalty = -1e6

// expand pops one untried move off leaf, creates the child node and links
// it. Returns nil when the arena is exhausted; the iteration is then
// abandoned and the driver told to stop.
func (s *Searcher) expand(w *worker, leaf *Node) *Node {
	mv, ok := leaf.popUntried()
	if !ok {
		// Another worker took the last untried move; simulate leaf as-is.
		return leaf
	}
	childPos := leaf.pos.Apply(&mv)

	child := s.arena.AllocNode()
	if child == nil {
		s.signalStop(stopArenaFull)
		leaf.pushUntried(mv)
		return nil
	}
	child.parent = leaf
	child.mv = mv
	child.pos = childPos

	moves := w.gen.GenAll(&childPos)
	switch {
	case childPos.DrawByQuietMoves():
		child.terminal = true
		child.drawn = true
		child.status = ProvenDraw
	case len(moves) == 0:
		// No moves: the side to move here has lost.
		child.terminal = true
		child.status = LossForMover
	default:
		child.untried = append([]move.Move(nil), moves...)
	}

	child.heur = w.calc.MoveScore(&leaf.pos, &mv)

	// Loop guard: a child that repeats an ancestor position is a cycle,
	// not progress.
	for a := leaf; a != nil; a = a.parent {
		if a.pos.Key == childPos.Key && a.pos.Equal(&childPos) {
			child.noExpand = true
			child.untried = nil
			child.heur = loopPenalty
			child.score = -1
			break
		}
	}

	if s.cfg.UsePUCT {
		child.prior = s.priorFor(w, leaf, &mv)
	}

	if s.tt != nil {
		if hit := s.tt.Lookup(childPos.Key, &childPos); hit != nil && hit != child {
			warmStart(child, hit)
		}
		s.tt.Insert(childPos.Key, child)
	}

	leaf.linkChild(child)
	child.addVirtualLoss()
	return child
}

// warmStart seeds a fresh node with the statistics of a transposed node.
func warmStart(child, hit *Node) {
	visits := hit.Visits()
	hit.mu.Lock()
	score, sumSq, status := hit.score, hit.sumSq, hit.status
	hit.mu.Unlock()
	child.visits = visits
	child.score = score
	child.sumSq = sumSq
	if status != Unproven && !child.terminal {
		child.status = status
	}
}

// priorFor returns the PUCT prior for mv out of leaf. With a network, the
// prior comes from leaf's cached policy: one forward pass per parent,
// softmaxed over all slots, masked to the legal moves and renormalized.
// Without one, priors are uniform over the parent's legal moves.
func (s *Searcher) priorFor(w *worker, leaf *Node, mv *move.Move) float64 {
	legal := w.gen.GenAll(&leaf.pos)
	if w.model == nil {
		return 1 / float64(len(legal))
	}
	policy := s.ensurePolicy(w, leaf, legal)
	if policy == nil {
		return 1 / float64(len(legal))
	}
	return float64(policy[nn.MoveToPolicyIndex(leaf.pos.ToMove, mv)])
}

// ensurePolicy computes and caches the masked policy for node's position.
// The legal list must be node's full legal move list.
func (s *Searcher) ensurePolicy(w *worker, node *Node, legal []move.Move) []float32 {
	node.mu.Lock()
	if node.policy != nil {
		p := node.policy
		node.mu.Unlock()
		return p
	}
	node.mu.Unlock()

	slab := s.arena.AllocPolicy(nn.PolicySize)
	if slab == nil {
		s.signalStop(stopArenaFull)
		return nil
	}
	for i := range slab {
		slab[i] = 0
	}
	raw, _, err := w.model.Infer(&node.pos, historyOf(node))
	if err != nil {
		log.Warn().Err(err).Msg("policy-inference-failed")
		uniformPolicy(slab, node.pos.ToMove, legal)
	} else {
		maskPolicy(slab, raw, node.pos.ToMove, legal)
	}

	node.mu.Lock()
	if node.policy == nil {
		node.policy = slab
	}
	p := node.policy
	node.mu.Unlock()
	return p
}

// maskPolicy keeps only the legal-move slots of the softmaxed policy and
// renormalizes them to sum to 1, falling back to uniform when the network
// puts no mass on any legal move.
func maskPolicy(dst, raw []float32, mover board.Color, legal []move.Move) {
	var sum float32
	for i := range legal {
		idx := nn.MoveToPolicyIndex(mover, &legal[i])
		dst[idx] = raw[idx]
		sum += raw[idx]
	}
	if sum <= 0 {
		uniformPolicy(dst, mover, legal)
		return
	}
	for i := range legal {
		idx := nn.MoveToPolicyIndex(mover, &legal[i])
		dst[idx] /= sum
	}
}

func uniformPolicy(dst []float32, mover board.Color, legal []move.Move) {
	u := 1 / float32(len(legal))
	for i := range legal {
		dst[nn.MoveToPolicyIndex(mover, &legal[i])] = u
	}
}

// historyOf collects up to nn.MaxHistory ancestor positions, most recent
// first.
func historyOf(node *Node) []*game.Position {
	var hist []*game.Position
	for a := node.parent; a != nil && len(hist) < nn.MaxHistory; a = a.parent {
		hist = append(hist, &a.pos)
	}
	return hist
}
