package mcts

import (
	"math"

	"github.com/rs/zerolog/log"

	"github.com/gdicarlo/damasco/config"
)

// drawScore is the reward assigned to drawn outcomes; below the 0.5
// coin-flip value so the search prefers trying to win.
const drawScore = 0.25

const (
	fastRolloutInterval = 5
	fastRolloutMargin   = 3
	fastRolloutWin      = 0.85
	fastRolloutLoss     = 0.15
)

// simulate produces a leaf value in [0,1] from the perspective of the
// player who just moved into node.
func (s *Searcher) simulate(w *worker, node *Node) float64 {
	if node.terminal {
		if node.drawn {
			return drawScore
		}
		// The side to move has no moves and loses; the player who just
		// moved wins.
		return 1
	}

	if s.cfg.RolloutPolicy == config.RolloutNeural && w.model != nil {
		_, value, err := w.model.Infer(&node.pos, historyOf(node))
		if err == nil {
			return float64(value+1) / 2
		}
		log.Warn().Err(err).Msg("value-inference-failed; falling back to rollout")
	}
	return s.rollout(w, node)
}

// rollout plays the position out to a decisive result, a draw, or the depth
// cap, and scores it for the player who just moved into node.
func (s *Searcher) rollout(w *worker, node *Node) float64 {
	perspective := node.pos.ToMove.Other()
	p := node.pos
	depth := 0
	for {
		if p.DrawByQuietMoves() {
			return drawScore
		}
		moves := w.gen.GenAll(&p)
		if len(moves) == 0 {
			// The side to move is stuck and loses.
			r := 0.0
			if p.ToMove.Other() == perspective {
				r = 1.0
			}
			if s.cfg.UseDecayingReward {
				r *= math.Pow(s.cfg.DecayFactor, float64(depth))
			}
			return r
		}
		if depth >= s.cfg.RolloutDepth {
			break
		}

		var idx int
		if s.cfg.RolloutPolicy == config.RolloutHeuristic && w.rng.Float64() >= s.cfg.RolloutEpsilon {
			idx = w.rolloutCalc.BestMove(&p, moves)
		} else {
			idx = w.rng.Intn(len(moves))
		}
		p = p.Apply(&moves[idx])
		depth++

		if s.cfg.UseFastRollout && depth%fastRolloutInterval == 0 {
			delta := p.MaterialDelta(perspective)
			if delta >= fastRolloutMargin {
				return fastRolloutWin
			}
			if delta <= -fastRolloutMargin {
				return fastRolloutLoss
			}
		}
	}

	// Depth cap reached.
	if s.cfg.UseFastRollout {
		delta := float64(p.MaterialDelta(perspective))
		return math.Max(0.1, math.Min(0.9, 0.5+delta/30))
	}
	return drawScore
}
