package move

import (
	"github.com/gdicarlo/damasco/board"
)

// TinyMove is a 32-bit packed representation of a move, made to be as small
// as possible for search logs and principal-variation storage. It keeps only
// origin, landing square, capture count and the lady-mover flag; the full
// path is recoverable by regenerating moves for the position.
type TinyMove uint32

// Schema, low bits first:
//  0..5   from square
//  6..11  to square
// 12..15  capture count
// 16      lady-mover flag
const InvalidTinyMove TinyMove = 1 << 31

// Tiny packs a move.
func (m *Move) Tiny() TinyMove {
	t := TinyMove(m.From()) | TinyMove(m.To())<<6 | TinyMove(m.NumCaps)<<12
	if m.LadyMove {
		t |= 1 << 16
	}
	return t
}

func (t TinyMove) From() board.Square { return board.Square(t & 63) }
func (t TinyMove) To() board.Square   { return board.Square((t >> 6) & 63) }
func (t TinyMove) NumCaps() int       { return int((t >> 12) & 15) }
func (t TinyMove) LadyMove() bool     { return t&(1<<16) != 0 }

// MatchesMove reports whether t is the packed form of m.
func (t TinyMove) MatchesMove(m *Move) bool {
	return t == m.Tiny()
}

func (t TinyMove) String() string {
	if t == InvalidTinyMove {
		return "<invalid>"
	}
	sep := "-"
	if t.NumCaps() > 0 {
		sep = "x"
	}
	return t.From().String() + sep + t.To().String()
}
