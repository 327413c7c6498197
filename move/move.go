// Package move defines the move representation for Italian checkers: simple
// diagonal steps and capture chains of up to eleven jumps, together with the
// priority metrics the Italian mandatory-capture rule sorts on.
package move

import (
	"fmt"
	"strings"

	"github.com/gdicarlo/damasco/board"
)

const (
	// MaxPath is the longest square path a move can visit: origin plus
	// eleven jump landings.
	MaxPath = 12
	// MaxCaptures is the longest possible capture chain.
	MaxCaptures = 11
	// MaxMoves bounds the number of legal moves in any checkers position.
	MaxMoves = 64
)

// Move is a single move: a path of squares and the pieces captured along it.
// For a simple step the path has length 2 and there are no captures. For a
// chain, Path[0] is the origin, Path[NumCaptures] the landing square, and
// Captures lists the jumped squares in jump order.
type Move struct {
	Path     [MaxPath]board.Square
	Captures [MaxCaptures]board.Square
	PathLen  uint8
	NumCaps  uint8

	// Priority metrics, filled during generation and consumed by the
	// Italian priority filter.
	LadyMove     bool // the mover was a Lady when the move started
	CapturedLady uint8
	FirstCapLady bool
}

// NewStep builds a simple (non-capturing) move.
func NewStep(from, to board.Square, ladyMove bool) Move {
	m := Move{PathLen: 2, LadyMove: ladyMove}
	m.Path[0] = from
	m.Path[1] = to
	return m
}

// From returns the origin square.
func (m *Move) From() board.Square { return m.Path[0] }

// To returns the landing square.
func (m *Move) To() board.Square { return m.Path[m.PathLen-1] }

// IsCapture reports whether the move captures anything.
func (m *Move) IsCapture() bool { return m.NumCaps > 0 }

// CaptureList returns the captured squares as a slice view.
func (m *Move) CaptureList() []board.Square { return m.Captures[:m.NumCaps] }

// PathList returns the visited squares as a slice view.
func (m *Move) PathList() []board.Square { return m.Path[:m.PathLen] }

// PriorityScore packs the four Italian priority metrics into one comparable
// word: chain length first, then mover-is-Lady, then number of captured
// Ladies, then whether the first captured piece was a Lady. Simple moves
// score zero.
func (m *Move) PriorityScore() uint32 {
	score := uint32(m.NumCaps) << 24
	if m.LadyMove {
		score |= 1 << 20
	}
	score |= uint32(m.CapturedLady) << 10
	if m.FirstCapLady {
		score |= 1
	}
	return score
}

// Equal compares two moves field by field. Capture order matters: two chains
// through the same squares in a different order are distinct moves.
func (m *Move) Equal(o *Move) bool {
	if m.PathLen != o.PathLen || m.NumCaps != o.NumCaps || m.LadyMove != o.LadyMove {
		return false
	}
	for i := uint8(0); i < m.PathLen; i++ {
		if m.Path[i] != o.Path[i] {
			return false
		}
	}
	for i := uint8(0); i < m.NumCaps; i++ {
		if m.Captures[i] != o.Captures[i] {
			return false
		}
	}
	return true
}

// ShortDescription renders the move in draughts notation: dashes for steps,
// crosses for jumps ("c3-d4", "c3xe5xg7").
func (m *Move) ShortDescription() string {
	sep := "-"
	if m.IsCapture() {
		sep = "x"
	}
	parts := make([]string, m.PathLen)
	for i := uint8(0); i < m.PathLen; i++ {
		parts[i] = m.Path[i].String()
	}
	return strings.Join(parts, sep)
}

func (m *Move) String() string {
	return fmt.Sprintf("<move %s caps: %d lady: %v>", m.ShortDescription(), m.NumCaps, m.LadyMove)
}

// MoveList is a fixed-capacity list of moves. Generation never allocates.
type MoveList struct {
	Moves [MaxMoves]Move
	Count int
}

// Add appends a move. Silently drops past capacity; no legal checkers
// position generates more than MaxMoves moves.
func (ml *MoveList) Add(m Move) {
	if ml.Count < MaxMoves {
		ml.Moves[ml.Count] = m
		ml.Count++
	}
}

// Slice returns the live moves.
func (ml *MoveList) Slice() []Move { return ml.Moves[:ml.Count] }

// Reset empties the list.
func (ml *MoveList) Reset() { ml.Count = 0 }

// FilterMaxPriority keeps only the moves whose priority score equals the
// maximum. Ties keep every winner. The relative order of survivors is
// preserved so generation order stays deterministic.
func (ml *MoveList) FilterMaxPriority() {
	if ml.Count == 0 {
		return
	}
	best := uint32(0)
	for i := 0; i < ml.Count; i++ {
		if s := ml.Moves[i].PriorityScore(); s > best {
			best = s
		}
	}
	out := 0
	for i := 0; i < ml.Count; i++ {
		if ml.Moves[i].PriorityScore() == best {
			ml.Moves[out] = ml.Moves[i]
			out++
		}
	}
	ml.Count = out
}
