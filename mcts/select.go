package mcts

import "math"

const (
	provenWinScore  = 1e5
	provenLossScore = -1e5
	visitEpsilon    = 1e-9
)

// selectLeaf descends from root to a node that is terminal, still has
// unexpanded moves, or has no children. Every chosen child picks up a
// virtual loss; backpropagation pays them all back.
func (s *Searcher) selectLeaf(root *Node) *Node {
	node := root
	for {
		if node.terminal || node.noExpand {
			return node
		}
		if node.untriedCount() > 0 {
			return node
		}
		children := node.childList()
		if len(children) == 0 {
			return node
		}

		var best *Node
		if s.cfg.UseSolver && node.Status() == WinForMover {
			// The mover already has a proven line; follow it.
			for _, c := range children {
				if c.Status() == LossForMover {
					best = c
					break
				}
			}
		}
		if best == nil {
			parentVisits := node.Visits()
			lnN := math.Log(float64(parentVisits) + 1)
			bestScore := math.Inf(-1)
			for _, c := range children {
				sc := s.childScore(c, lnN, parentVisits)
				if sc > bestScore {
					bestScore = sc
					best = c
				}
			}
		}
		best.addVirtualLoss()
		node = best
	}
}

// childScore rates a child from its parent's point of view. The child's
// accumulated score is already from the perspective of the player moving at
// the parent, so no flip is needed here. Virtual losses inflate effective
// visits and deflate effective score so in-flight paths look bad to peers.
func (s *Searcher) childScore(c *Node, lnN float64, parentVisits int64) float64 {
	visits, vloss, score, sumSq, status := c.stats()

	if s.cfg.UseSolver {
		switch status {
		case LossForMover:
			// Proven win for us.
			return provenWinScore + score
		case WinForMover:
			return provenLossScore
		}
	}

	nEff := float64(visits) + float64(vloss)
	if nEff == 0 {
		if s.cfg.UseFPU {
			return s.cfg.FPUValue + s.bias(c, 0)
		}
		return math.Inf(1)
	}
	wEff := score - float64(vloss)
	q := wEff / math.Max(nEff, visitEpsilon)

	var sc float64
	switch {
	case s.cfg.UsePUCT:
		sc = q + s.cfg.PUCTC*c.prior*math.Sqrt(float64(parentVisits))/(1+nEff)
	case s.cfg.UseUCB1Tuned:
		mean := q
		variance := sumSq/nEff - mean*mean + math.Sqrt(2*lnN/nEff)
		// Virtual losses can drive the empirical variance below zero;
		// clamping keeps the Sqrt defined so the child stays selectable.
		if variance < 0 {
			variance = 0
		}
		sc = mean + math.Sqrt(lnN/nEff*math.Min(0.25, variance))
	default:
		sc = q + s.cfg.UCB1C*math.Sqrt(lnN/nEff)
	}
	return sc + s.bias(c, nEff)
}

// bias is the progressive-bias term, decaying with visits.
func (s *Searcher) bias(c *Node, nEff float64) float64 {
	if !s.cfg.UseProgressiveBias {
		return 0
	}
	return s.cfg.BiasConstant * c.heur / (nEff + 1)
}
