// Package movegen generates legal moves under Italian rules. Captures are
// mandatory: when any capture chain exists only the maximal chains under the
// Italian priority rule are returned, and simple moves are suppressed.
package movegen

import (
	"github.com/gdicarlo/damasco/board"
	"github.com/gdicarlo/damasco/game"
	"github.com/gdicarlo/damasco/move"
)

// Generator produces legal moves for positions. It keeps per-instance
// scratch state for the capture search, so each search worker owns one;
// a Generator is not safe for concurrent use.
type Generator struct {
	list move.MoveList

	// Capture DFS scratch. The simulation removes captured pieces from the
	// opponent occupancy as the chain grows; the mover stays on its origin
	// square until the move is applied for real. Backtracking restores the
	// scratch exactly.
	ownOcc   uint64
	oppOcc   uint64
	oppLady  uint64
	captured uint64
	visited  uint64
	chain    move.Move
}

func NewGenerator() *Generator {
	return &Generator{}
}

// GenAll generates the legal moves for the side to move. The returned slice
// aliases the generator's internal list and is valid until the next call.
func (g *Generator) GenAll(p *game.Position) []move.Move {
	g.list.Reset()
	mover := p.ToMove

	g.ownOcc = p.ColorBits(mover)
	g.oppOcc = p.ColorBits(mover.Other())
	g.oppLady = p.Occ[mover.Other()][board.Lady]
	g.captured = 0
	g.visited = 0

	// Captures first. CanJumpFrom prunes pieces that cannot possibly jump.
	board.EachSquare(p.Occ[mover][board.Pawn], func(sq board.Square) {
		if board.CanJumpFrom[sq] == 0 {
			return
		}
		g.chain = move.Move{PathLen: 1}
		g.chain.Path[0] = sq
		g.pawnCaptureDFS(mover, sq)
	})
	board.EachSquare(p.Occ[mover][board.Lady], func(sq board.Square) {
		if board.CanJumpFrom[sq] == 0 {
			return
		}
		g.chain = move.Move{PathLen: 1, LadyMove: true}
		g.chain.Path[0] = sq
		g.ladyCaptureDFS(sq)
	})

	if g.list.Count > 0 {
		g.list.FilterMaxPriority()
		return g.list.Slice()
	}

	// No captures anywhere: emit simple steps.
	g.genSteps(p, mover)
	return g.list.Slice()
}

// HasMoves reports whether the side to move has at least one legal move.
func (g *Generator) HasMoves(p *game.Position) bool {
	return len(g.GenAll(p)) > 0
}

// pawnCaptureDFS explores capture chains for a pawn. Italian rules restrict
// pawns to their two forward directions and forbid them from jumping a Lady.
func (g *Generator) pawnCaptureDFS(mover board.Color, sq board.Square) {
	extended := false
	for _, d := range board.PawnDirections(mover) {
		over := board.JumpOver[sq][d]
		land := board.JumpLandings[sq][d]
		if land == board.NoSquare {
			continue
		}
		overBit := over.Bit()
		if g.oppOcc&overBit == 0 || g.captured&overBit != 0 {
			continue
		}
		if g.oppLady&overBit != 0 {
			continue // a pawn may not jump a Lady
		}
		if !g.simEmpty(land.Bit()) {
			continue
		}

		g.pushJump(over, land, false)
		if land.Bit()&board.PromotionMask(mover) != 0 {
			// Promotion stops the chain on this jump, even if further
			// captures as a Lady would exist.
			g.emit()
		} else {
			g.pawnCaptureDFS(mover, land)
		}
		g.popJump(over, false)
		extended = true
	}
	if !extended && g.chain.NumCaps > 0 {
		g.emit()
	}
}

// ladyCaptureDFS explores capture chains for a Lady over all four
// directions. Ladies capture pawns and Ladies alike.
func (g *Generator) ladyCaptureDFS(sq board.Square) {
	extended := false
	for d := board.NE; d < board.NumDirections; d++ {
		over := board.JumpOver[sq][d]
		land := board.JumpLandings[sq][d]
		if land == board.NoSquare {
			continue
		}
		overBit := over.Bit()
		if g.oppOcc&overBit == 0 || g.captured&overBit != 0 {
			continue
		}
		if !g.simEmpty(land.Bit()) {
			continue
		}

		tookLady := g.oppLady&overBit != 0
		g.pushJump(over, land, tookLady)
		g.ladyCaptureDFS(land)
		g.popJump(over, tookLady)
		extended = true
	}
	if !extended && g.chain.NumCaps > 0 {
		g.emit()
	}
}

// simEmpty reports whether a square is empty in the simulated occupancy:
// all own pieces (the mover included, still on its origin), the opponent
// pieces not yet captured in this chain, and the chain's earlier landing
// squares. The path of a capture chain never revisits a square.
func (g *Generator) simEmpty(bit uint64) bool {
	return (g.ownOcc|g.visited|(g.oppOcc&^g.captured))&bit == 0
}

// pushJump extends the chain by one jump and updates the simulation.
func (g *Generator) pushJump(over, land board.Square, tookLady bool) {
	g.captured |= over.Bit()
	g.chain.Captures[g.chain.NumCaps] = over
	if tookLady {
		if g.chain.NumCaps == 0 {
			g.chain.FirstCapLady = true
		}
		g.chain.CapturedLady++
	}
	g.chain.NumCaps++
	g.chain.Path[g.chain.PathLen] = land
	g.chain.PathLen++
	g.visited |= land.Bit()
}

// popJump undoes pushJump, restoring the simulation exactly.
func (g *Generator) popJump(over board.Square, tookLady bool) {
	g.chain.PathLen--
	g.visited &^= g.chain.Path[g.chain.PathLen].Bit()
	g.chain.NumCaps--
	if tookLady {
		g.chain.CapturedLady--
		if g.chain.NumCaps == 0 {
			g.chain.FirstCapLady = false
		}
	}
	g.captured &^= over.Bit()
}

// emit records the current chain as a legal capture move.
func (g *Generator) emit() {
	g.list.Add(g.chain)
}

// genSteps emits the simple (non-capturing) moves.
func (g *Generator) genSteps(p *game.Position, mover board.Color) {
	occupied := p.Occupied()
	board.EachSquare(p.Occ[mover][board.Pawn], func(sq board.Square) {
		for _, to := range board.PawnTargets[mover][sq] {
			if to != board.NoSquare && occupied&to.Bit() == 0 {
				g.list.Add(move.NewStep(sq, to, false))
			}
		}
	})
	board.EachSquare(p.Occ[mover][board.Lady], func(sq board.Square) {
		for d := board.NE; d < board.NumDirections; d++ {
			to := board.LadyTargets[sq][d]
			if to != board.NoSquare && occupied&to.Bit() == 0 {
				g.list.Add(move.NewStep(sq, to, true))
			}
		}
	})
}
