// Package board holds the bitboard primitives for Italian checkers: square
// indexing, occupancy words, edge and promotion masks, and the precomputed
// step/jump tables used by move generation.
package board

import (
	"fmt"
	"math/bits"
	"strings"
)

// Square indexes the 64 board squares 0..63. A1 = 0, H1 = 7, A8 = 56, H8 = 63.
// Square s sits on rank s/8 and file s%8. Only the 32 dark squares are ever
// occupied, but we keep full 8x8 indexing so diagonal arithmetic stays simple.
type Square uint8

const NoSquare Square = 64

func (s Square) Rank() int { return int(s) / 8 }
func (s Square) File() int { return int(s) % 8 }

// Bit returns the occupancy bit for the square.
func (s Square) Bit() uint64 { return 1 << uint(s) }

// Rotate180 maps a square to its image under a half-turn of the board. The
// neural encoder uses this so the side to move always looks "up".
func (s Square) Rotate180() Square { return 63 - s }

func (s Square) String() string {
	if s >= NoSquare {
		return "--"
	}
	return fmt.Sprintf("%c%d", 'a'+rune(s.File()), s.Rank()+1)
}

// SquareFromString parses coordinates like "c3". Returns NoSquare on garbage.
func SquareFromString(cs string) Square {
	cs = strings.ToLower(strings.TrimSpace(cs))
	if len(cs) != 2 {
		return NoSquare
	}
	file := int(cs[0] - 'a')
	rank := int(cs[1] - '1')
	if file < 0 || file > 7 || rank < 0 || rank > 7 {
		return NoSquare
	}
	return Square(rank*8 + file)
}

// Color of the side owning a piece or on turn.
type Color uint8

const (
	White Color = iota
	Black
)

func (c Color) Other() Color { return c ^ 1 }

func (c Color) String() string {
	if c == White {
		return "white"
	}
	return "black"
}

// Kind distinguishes pawns from promoted pieces (Ladies, "dame").
type Kind uint8

const (
	Pawn Kind = iota
	Lady
)

func (k Kind) String() string {
	if k == Pawn {
		return "pawn"
	}
	return "lady"
}

// Diagonal step directions. Order matters: the first two are White's forward
// directions, the last two Black's, so pawn loops can slice the table.
type Direction uint8

const (
	NE Direction = iota
	NW
	SE
	SW
	NumDirections
)

var stepOffsets = [NumDirections]int{9, 7, -7, -9}

// Edge masks. A step east must not start on file h; a jump east must not
// start on files g or h, and so on.
const (
	NotFileA  uint64 = 0xfefefefefefefefe
	NotFileH  uint64 = 0x7f7f7f7f7f7f7f7f
	NotFileAB uint64 = 0xfcfcfcfcfcfcfcfc
	NotFileGH uint64 = 0x3f3f3f3f3f3f3f3f
)

// Promotion masks: White promotes on rank 8, Black on rank 1.
const (
	WhitePromotionMask uint64 = 0xff00000000000000
	BlackPromotionMask uint64 = 0x00000000000000ff
)

// PromotionMask returns the promotion rank mask for a color.
func PromotionMask(c Color) uint64 {
	if c == White {
		return WhitePromotionMask
	}
	return BlackPromotionMask
}

// BackRankMask is where a color's pawns start their march.
func BackRankMask(c Color) uint64 {
	if c == White {
		return BlackPromotionMask
	}
	return WhitePromotionMask
}

// CenterMask covers the board center (ranks 4-5, files c-f), a mild
// positional bonus in the move heuristic.
const CenterMask uint64 = 0x0000003c3c000000

// EdgeFilesMask covers files a and h.
const EdgeFilesMask uint64 = 0x8181818181818181

var (
	// PawnTargets[color][sq][d] is the single-step forward target for a pawn,
	// d in 0..1. NoSquare if the step leaves the board.
	PawnTargets [2][64][2]Square

	// LadyTargets[sq][d] is the single-step target in each of the four
	// diagonal directions. NoSquare if off-board.
	LadyTargets [64][NumDirections]Square

	// JumpLandings[sq][d] and JumpOver[sq][d] are the landing square two
	// diagonal steps away and the square jumped over. NoSquare if the jump
	// would wrap or leave the board.
	JumpLandings [64][NumDirections]Square
	JumpOver     [64][NumDirections]Square

	// CanJumpFrom[sq] is the OR of the landing bits of all four jump
	// directions; a zero value prunes the capture search in O(1).
	CanJumpFrom [64]uint64
)

// stepOK reports whether a single diagonal step from sq in direction d stays
// on the board.
func stepOK(sq Square, d Direction) bool {
	b := sq.Bit()
	switch d {
	case NE:
		return b&NotFileH != 0 && sq.Rank() < 7
	case NW:
		return b&NotFileA != 0 && sq.Rank() < 7
	case SE:
		return b&NotFileH != 0 && sq.Rank() > 0
	case SW:
		return b&NotFileA != 0 && sq.Rank() > 0
	}
	return false
}

// jumpOK reports whether a two-step jump from sq in direction d stays on the
// board.
func jumpOK(sq Square, d Direction) bool {
	b := sq.Bit()
	switch d {
	case NE:
		return b&NotFileGH != 0 && sq.Rank() < 6
	case NW:
		return b&NotFileAB != 0 && sq.Rank() < 6
	case SE:
		return b&NotFileGH != 0 && sq.Rank() > 1
	case SW:
		return b&NotFileAB != 0 && sq.Rank() > 1
	}
	return false
}

func init() {
	for sq := Square(0); sq < 64; sq++ {
		for d := NE; d < NumDirections; d++ {
			if stepOK(sq, d) {
				LadyTargets[sq][d] = Square(int(sq) + stepOffsets[d])
			} else {
				LadyTargets[sq][d] = NoSquare
			}
			if jumpOK(sq, d) {
				JumpLandings[sq][d] = Square(int(sq) + 2*stepOffsets[d])
				JumpOver[sq][d] = Square(int(sq) + stepOffsets[d])
				CanJumpFrom[sq] |= JumpLandings[sq][d].Bit()
			} else {
				JumpLandings[sq][d] = NoSquare
				JumpOver[sq][d] = NoSquare
			}
		}
		// White pawns move NE/NW, Black pawns SE/SW.
		PawnTargets[White][sq][0] = LadyTargets[sq][NE]
		PawnTargets[White][sq][1] = LadyTargets[sq][NW]
		PawnTargets[Black][sq][0] = LadyTargets[sq][SE]
		PawnTargets[Black][sq][1] = LadyTargets[sq][SW]
	}
}

// PawnDirections returns the two forward jump directions for a color.
func PawnDirections(c Color) [2]Direction {
	if c == White {
		return [2]Direction{NE, NW}
	}
	return [2]Direction{SE, SW}
}

// ForwardDistance is the number of ranks between sq and c's promotion rank.
func ForwardDistance(c Color, sq Square) int {
	if c == White {
		return 7 - sq.Rank()
	}
	return sq.Rank()
}

// PopCount counts set bits.
func PopCount(bb uint64) int { return bits.OnesCount64(bb) }

// LSB returns the lowest set square. Callers must not pass 0.
func LSB(bb uint64) Square { return Square(bits.TrailingZeros64(bb)) }

// EachSquare calls f for every set square in bb, lowest first.
func EachSquare(bb uint64, f func(Square)) {
	for bb != 0 {
		sq := LSB(bb)
		bb &= bb - 1
		f(sq)
	}
}
