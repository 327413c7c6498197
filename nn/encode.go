package nn

import (
	"github.com/gdicarlo/damasco/board"
	"github.com/gdicarlo/damasco/game"
	"github.com/gdicarlo/damasco/move"
)

// Input tensor shape: Channels planes of 8x8. Four piece planes (mover
// pawns, mover ladies, opponent pawns, opponent ladies) for the leaf
// position and each of the two history positions, plus one plane filled
// with the normalized quiet-move counter.
const (
	PlanesPerPosition = 4
	Channels          = PlanesPerPosition*(1+MaxHistory) + 1
	InputLen          = Channels * 64
)

// canonicalSquare maps a square to the mover's perspective: for Black the
// board is rotated a half turn so the network always sees the side to move
// playing up the board.
func canonicalSquare(mover board.Color, sq board.Square) board.Square {
	if mover == board.Black {
		return sq.Rotate180()
	}
	return sq
}

// canonicalDirection flips a direction for Black.
func canonicalDirection(mover board.Color, d board.Direction) board.Direction {
	if mover == board.Black {
		switch d {
		case board.NE:
			return board.SW
		case board.NW:
			return board.SE
		case board.SE:
			return board.NW
		case board.SW:
			return board.NE
		}
	}
	return d
}

// directionOf recovers the step direction of a move's first leg.
func directionOf(m *move.Move) board.Direction {
	from, next := m.Path[0], m.Path[1]
	df := next.File() - from.File()
	dr := next.Rank() - from.Rank()
	switch {
	case dr > 0 && df > 0:
		return board.NE
	case dr > 0 && df < 0:
		return board.NW
	case dr < 0 && df > 0:
		return board.SE
	default:
		return board.SW
	}
}

// MoveToPolicyIndex maps a legal move to its policy slot:
// canonical_from*8 + direction, with capture moves in the upper four
// direction slots.
func MoveToPolicyIndex(mover board.Color, m *move.Move) int {
	from := canonicalSquare(mover, m.From())
	dir := canonicalDirection(mover, directionOf(m))
	idx := int(from)*8 + int(dir)
	if m.IsCapture() {
		idx += 4
	}
	return idx
}

// EncodePosition writes the input planes for pos (and up to MaxHistory
// ancestors, most recent first) into dst, which must have length InputLen.
// Planes are from the mover's perspective: own pieces first, board rotated
// for Black.
func EncodePosition(dst []float32, pos *game.Position, history []*game.Position) {
	for i := range dst {
		dst[i] = 0
	}
	mover := pos.ToMove
	writePlanes := func(planeBase int, p *game.Position) {
		order := [4]struct {
			c board.Color
			k board.Kind
		}{
			{mover, board.Pawn},
			{mover, board.Lady},
			{mover.Other(), board.Pawn},
			{mover.Other(), board.Lady},
		}
		for pi, ck := range order {
			plane := dst[(planeBase+pi)*64 : (planeBase+pi+1)*64]
			board.EachSquare(p.Occ[ck.c][ck.k], func(sq board.Square) {
				plane[canonicalSquare(mover, sq)] = 1
			})
		}
	}

	writePlanes(0, pos)
	for hi := 0; hi < MaxHistory && hi < len(history); hi++ {
		if history[hi] != nil {
			writePlanes(PlanesPerPosition*(1+hi), history[hi])
		}
	}

	quietPlane := dst[(Channels-1)*64:]
	q := float32(pos.Quiet) / float32(game.QuietMoveLimit)
	for i := range quietPlane {
		quietPlane[i] = q
	}
}
