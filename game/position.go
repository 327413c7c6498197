// Package game holds the position representation and the rules for playing
// moves on it: bitboard occupancy, incremental zobrist hashing, promotion,
// and the 40-move quiet rule.
package game

import (
	"github.com/gdicarlo/damasco/board"
	"github.com/gdicarlo/damasco/move"
	"github.com/gdicarlo/damasco/zobrist"
)

// QuietMoveLimit is the number of plies without a capture after which the
// game is drawn, counted only while at least one Lady is on the board.
const QuietMoveLimit = 40

// Keys is the process-wide zobrist key table. Keys are seeded
// deterministically, so sharing one instance keeps every position hash in
// the program comparable.
var Keys zobrist.Zobrist

func init() {
	Keys.Initialize()
}

// Position is a plain value: four occupancy words indexed [color][kind], the
// side to move, the quiet-move counter and the incrementally maintained hash.
type Position struct {
	Occ    [2][2]uint64
	ToMove board.Color
	Quiet  uint8
	Key    uint64
}

// StartingPosition sets up the initial Italian checkers position: twelve
// pawns per side on the dark squares of each player's first three ranks,
// White to move.
func StartingPosition() Position {
	var p Position
	for sq := board.Square(0); sq < 64; sq++ {
		if (sq.Rank()+sq.File())%2 != 0 {
			continue // light square
		}
		switch {
		case sq.Rank() < 3:
			p.Occ[board.White][board.Pawn] |= sq.Bit()
		case sq.Rank() > 4:
			p.Occ[board.Black][board.Pawn] |= sq.Bit()
		}
	}
	p.Key = Keys.Hash(p.Occ, false)
	return p
}

// Occupied returns the union of all four occupancy words.
func (p *Position) Occupied() uint64 {
	return p.Occ[board.White][board.Pawn] | p.Occ[board.White][board.Lady] |
		p.Occ[board.Black][board.Pawn] | p.Occ[board.Black][board.Lady]
}

// ColorBits returns all occupancy for one side.
func (p *Position) ColorBits(c board.Color) uint64 {
	return p.Occ[c][board.Pawn] | p.Occ[c][board.Lady]
}

// PieceAt looks up the piece on a square.
func (p *Position) PieceAt(sq board.Square) (board.Color, board.Kind, bool) {
	b := sq.Bit()
	for c := board.White; c <= board.Black; c++ {
		for k := board.Pawn; k <= board.Lady; k++ {
			if p.Occ[c][k]&b != 0 {
				return c, k, true
			}
		}
	}
	return 0, 0, false
}

// LadiesPresent reports whether any Lady is on the board. The quiet-move
// counter only advances while this holds.
func (p *Position) LadiesPresent() bool {
	return p.Occ[board.White][board.Lady]|p.Occ[board.Black][board.Lady] != 0
}

// DrawByQuietMoves reports whether the 40-move rule has run out.
func (p *Position) DrawByQuietMoves() bool {
	return p.Quiet >= QuietMoveLimit && p.LadiesPresent()
}

// MaterialCount returns the piece count for one side.
func (p *Position) MaterialCount(c board.Color) int {
	return board.PopCount(p.ColorBits(c))
}

// MaterialDelta is the mover's piece count minus the opponent's.
func (p *Position) MaterialDelta(c board.Color) int {
	return p.MaterialCount(c) - p.MaterialCount(c.Other())
}

// Equal compares full state. The transposition table requires this in
// addition to hash equality to defeat 64-bit collisions.
func (p *Position) Equal(o *Position) bool {
	return p.Occ == o.Occ && p.ToMove == o.ToMove && p.Quiet == o.Quiet
}

// FullHash recomputes the hash from scratch. Apply maintains Key
// incrementally; tests assert the two always agree.
func (p *Position) FullHash() uint64 {
	return Keys.Hash(p.Occ, p.ToMove == board.Black)
}

// Apply plays a move and returns the resulting position. The receiver is not
// modified. The move must be legal for the position; Apply does not check.
func (p Position) Apply(m *move.Move) Position {
	mover := p.ToMove
	from, to := m.From(), m.To()
	kind := board.Pawn
	if m.LadyMove {
		kind = board.Lady
	}

	p.Key ^= Keys.PieceKey(mover, kind, from)
	p.Occ[mover][kind] &^= from.Bit()

	landKind := kind
	if kind == board.Pawn && to.Bit()&board.PromotionMask(mover) != 0 {
		landKind = board.Lady
	}
	p.Occ[mover][landKind] |= to.Bit()
	p.Key ^= Keys.PieceKey(mover, landKind, to)

	opp := mover.Other()
	for _, capSq := range m.CaptureList() {
		capKind := board.Pawn
		if p.Occ[opp][board.Lady]&capSq.Bit() != 0 {
			capKind = board.Lady
		}
		p.Occ[opp][capKind] &^= capSq.Bit()
		p.Key ^= Keys.PieceKey(opp, capKind, capSq)
	}

	if m.IsCapture() {
		p.Quiet = 0
	} else if p.LadiesPresent() {
		// The counter only advances with Ladies on the board; pawn-only
		// endings never run it up.
		p.Quiet++
	} else {
		p.Quiet = 0
	}

	p.ToMove = opp
	p.Key ^= Keys.BlackToMoveKey()
	return p
}
