// Package zobrist generates the hash keys for checkers positions.
// https://en.wikipedia.org/wiki/Zobrist_hashing
package zobrist

import (
	"github.com/gdicarlo/damasco/board"
)

// The key tables are generated from a fixed xorshift seed so that hashes are
// identical across runs and machines. Transposition tables and tree reuse
// rely on that stability.
const keySeed uint64 = 0x9e3779b97f4a7c15

type Zobrist struct {
	keys        [2][2][64]uint64 // [color][kind][square]
	blackToMove uint64
}

// xorshift64star, Marsaglia. Good enough spread for 257 keys and perfectly
// reproducible.
type xorshift struct {
	state uint64
}

func (x *xorshift) next() uint64 {
	x.state ^= x.state >> 12
	x.state ^= x.state << 25
	x.state ^= x.state >> 27
	return x.state * 0x2545f4914f6cdd1d
}

// Initialize fills the key tables. Must be called before any hashing.
func (z *Zobrist) Initialize() {
	rng := &xorshift{state: keySeed}
	for c := 0; c < 2; c++ {
		for k := 0; k < 2; k++ {
			for sq := 0; sq < 64; sq++ {
				z.keys[c][k][sq] = rng.next()
			}
		}
	}
	z.blackToMove = rng.next()
}

// PieceKey returns the key for a (color, kind, square) triple.
func (z *Zobrist) PieceKey(c board.Color, k board.Kind, sq board.Square) uint64 {
	return z.keys[c][k][sq]
}

// BlackToMoveKey is XORed into the hash whenever Black is the active side.
func (z *Zobrist) BlackToMoveKey() uint64 {
	return z.blackToMove
}

// Hash computes the full hash of a set of occupancy words from scratch.
// occ is indexed [color][kind]. Incremental updates happen in the game
// package; this is the ground truth they are checked against.
func (z *Zobrist) Hash(occ [2][2]uint64, blackToMove bool) uint64 {
	key := uint64(0)
	for c := 0; c < 2; c++ {
		for k := 0; k < 2; k++ {
			board.EachSquare(occ[c][k], func(sq board.Square) {
				key ^= z.keys[c][k][sq]
			})
		}
	}
	if blackToMove {
		key ^= z.blackToMove
	}
	return key
}
