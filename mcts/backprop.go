package mcts

import "sync/atomic"

// backpropagate walks from leaf to the root, paying back virtual losses and
// folding the result into each node's statistics. The result flips
// perspective at every level: a good outcome for the player who moved into
// the leaf is a bad one for the player who moved into its parent.
func (s *Searcher) backpropagate(leaf *Node, result float64) {
	for n := leaf; n != nil; n = n.parent {
		if n.parent != nil {
			n.removeVirtualLoss()
		}
		atomic.AddInt64(&n.visits, 1)
		n.mu.Lock()
		n.score += result
		n.sumSq += result * result
		n.mu.Unlock()
		if s.cfg.UseSolver {
			s.updateStatus(n)
		}
		result = 1 - result
	}
}

// releasePath undoes the virtual losses of an abandoned iteration without
// committing any statistics.
func releasePath(leaf *Node) {
	for n := leaf; n != nil; n = n.parent {
		if n.parent != nil {
			n.removeVirtualLoss()
		}
	}
}

// updateStatus derives a solver label from the children. The node's mover
// wins if any child is lost for its own mover; the node's mover loses if
// every reply is expanded and winning for the opponent. Labels are
// monotonic: once proven, never revisited.
func (s *Searcher) updateStatus(n *Node) {
	if n.terminal {
		return
	}
	n.mu.Lock()
	if n.status != Unproven {
		n.mu.Unlock()
		return
	}
	untried := len(n.untried)
	n.mu.Unlock()

	children := n.childList()
	anyLoss := false
	allWin := len(children) > 0
	for _, c := range children {
		switch c.Status() {
		case LossForMover:
			anyLoss = true
		case WinForMover:
		default:
			allWin = false
		}
		if anyLoss {
			break
		}
	}

	var proven Status
	switch {
	case anyLoss:
		proven = WinForMover
	case untried == 0 && allWin:
		proven = LossForMover
	default:
		return
	}
	n.mu.Lock()
	if n.status == Unproven {
		n.status = proven
	}
	n.mu.Unlock()
}
