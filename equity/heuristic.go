// Package equity scores candidate moves with a cheap hand-tuned heuristic.
// The search uses it to bias rollouts and as the progressive-bias term
// during selection.
package equity

import (
	"github.com/gdicarlo/damasco/board"
	"github.com/gdicarlo/damasco/game"
	"github.com/gdicarlo/damasco/move"
	"github.com/gdicarlo/damasco/movegen"
)

// Weights holds the heuristic coefficients. All are penalties or bonuses on
// the move score; see Calculator.MoveScore for how each one applies.
type Weights struct {
	Capture      float64 `yaml:"capture"`
	Promotion    float64 `yaml:"promotion"`
	Advance      float64 `yaml:"advance"`
	Edge         float64 `yaml:"edge"`
	Center       float64 `yaml:"center"`
	BackRank     float64 `yaml:"back_rank"`
	Threat       float64 `yaml:"threat"`
	LadyActivity float64 `yaml:"lady_activity"`
}

// DefaultWeights returns the tuned defaults.
func DefaultWeights() Weights {
	return Weights{
		Capture:      2.0,
		Promotion:    1.5,
		Advance:      0.12,
		Edge:         0.25,
		Center:       0.25,
		BackRank:     0.4,
		Threat:       1.6,
		LadyActivity: 0.3,
	}
}

// Calculator computes move scores. It owns a private move generator for the
// one-ply threat test, so one Calculator per search worker; not safe for
// concurrent use.
type Calculator struct {
	weights Weights
	gen     *movegen.Generator
}

func NewCalculator(w Weights) *Calculator {
	return &Calculator{weights: w, gen: movegen.NewGenerator()}
}

func (c *Calculator) Weights() Weights { return c.weights }

// MoveScore evaluates m for the side to move in p. Bigger is better for the
// mover. p must be the position the move is legal in.
func (c *Calculator) MoveScore(p *game.Position, m *move.Move) float64 {
	w := c.weights
	mover := p.ToMove
	to := m.To()
	toBit := to.Bit()

	score := w.Capture * float64(m.NumCaps)

	promotes := !m.LadyMove && toBit&board.PromotionMask(mover) != 0
	if promotes {
		score += w.Promotion
	}
	score += w.Advance * float64(7-board.ForwardDistance(mover, to))
	if !m.LadyMove && toBit&board.EdgeFilesMask != 0 {
		score += w.Edge
	}
	if toBit&board.CenterMask != 0 {
		score += w.Center
	}
	if !m.LadyMove && m.From().Bit()&board.BackRankMask(mover) != 0 {
		score -= w.BackRank
	}
	if m.LadyMove {
		score += w.LadyActivity
	}
	if w.Threat != 0 && c.landingThreatened(p, m) {
		score -= w.Threat
	}
	return score
}

// BestMove returns the index of the highest-scoring move. Ties go to the
// first encountered.
func (c *Calculator) BestMove(p *game.Position, moves []move.Move) int {
	best := 0
	bestScore := c.MoveScore(p, &moves[0])
	for i := 1; i < len(moves); i++ {
		if s := c.MoveScore(p, &moves[i]); s > bestScore {
			bestScore = s
			best = i
		}
	}
	return best
}

// landingThreatened reports whether the opponent's very next move can
// capture the piece we just landed.
func (c *Calculator) landingThreatened(p *game.Position, m *move.Move) bool {
	next := p.Apply(m)
	replies := c.gen.GenAll(&next)
	land := m.To()
	for i := range replies {
		for _, cap := range replies[i].CaptureList() {
			if cap == land {
				return true
			}
		}
	}
	return false
}
