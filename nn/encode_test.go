package nn

import (
	"testing"

	"github.com/matryer/is"
	"github.com/stretchr/testify/assert"

	"github.com/gdicarlo/damasco/board"
	"github.com/gdicarlo/damasco/game"
	"github.com/gdicarlo/damasco/move"
)

func TestMoveToPolicyIndexWhite(t *testing.T) {
	is := is.New(t)
	c3 := board.SquareFromString("c3")
	step := move.NewStep(c3, board.SquareFromString("d4"), false)
	// White, NE step: from*8 + NE.
	is.Equal(MoveToPolicyIndex(board.White, &step), int(c3)*8+int(board.NE))

	jump := move.Move{PathLen: 2, NumCaps: 1}
	jump.Path[0] = c3
	jump.Path[1] = board.SquareFromString("e5")
	jump.Captures[0] = board.SquareFromString("d4")
	// Capture slots sit above the four step slots.
	is.Equal(MoveToPolicyIndex(board.White, &jump), int(c3)*8+int(board.NE)+4)
}

func TestMoveToPolicyIndexBlackIsRotated(t *testing.T) {
	is := is.New(t)
	// A Black SW step from f6 is, after the half-turn rotation, a NE step
	// from c3: both sides' "forward-right" maps to the same slot.
	f6 := board.SquareFromString("f6")
	blackStep := move.NewStep(f6, board.SquareFromString("e5"), false)
	c3 := board.SquareFromString("c3")
	whiteStep := move.NewStep(c3, board.SquareFromString("d4"), false)
	is.Equal(MoveToPolicyIndex(board.Black, &blackStep), MoveToPolicyIndex(board.White, &whiteStep))
}

func TestDirectionOf(t *testing.T) {
	is := is.New(t)
	d4 := board.SquareFromString("d4")
	for _, tc := range []struct {
		to  string
		dir board.Direction
	}{
		{"e5", board.NE}, {"c5", board.NW}, {"e3", board.SE}, {"c3", board.SW},
	} {
		m := move.NewStep(d4, board.SquareFromString(tc.to), true)
		is.Equal(directionOf(&m), tc.dir)
	}
}

func TestEncodePositionPlanes(t *testing.T) {
	is := is.New(t)
	p := game.MustParsePosition("W:Wc3:BKf6")
	dst := make([]float32, InputLen)
	EncodePosition(dst, &p, nil)

	c3 := int(board.SquareFromString("c3"))
	f6 := int(board.SquareFromString("f6"))
	// White to move: no rotation. Plane 0 = mover pawns, plane 3 =
	// opponent ladies.
	is.Equal(dst[0*64+c3], float32(1))
	is.Equal(dst[3*64+f6], float32(1))
	is.Equal(dst[1*64+c3], float32(0))

	// History planes are zero when no history given.
	for i := PlanesPerPosition * 64; i < PlanesPerPosition*(1+MaxHistory)*64; i++ {
		is.Equal(dst[i], float32(0))
	}
}

func TestEncodePositionRotatesForBlack(t *testing.T) {
	is := is.New(t)
	p := game.MustParsePosition("B:Wc3:Bf6")
	dst := make([]float32, InputLen)
	EncodePosition(dst, &p, nil)

	// Black to move: Black's pawn on f6 appears on plane 0 at the rotated
	// square c3.
	rot := int(board.SquareFromString("f6").Rotate180())
	is.Equal(rot, int(board.SquareFromString("c3")))
	is.Equal(dst[0*64+rot], float32(1))
	// White's pawn lands on the opponent-pawn plane at f6 rotated.
	rotW := int(board.SquareFromString("c3").Rotate180())
	is.Equal(dst[2*64+rotW], float32(1))
}

func TestEncodePositionHistoryAndQuietPlane(t *testing.T) {
	is := is.New(t)
	p := game.MustParsePosition("W:WKc3:BKf6:Q20")
	h1 := game.MustParsePosition("W:WKb2:BKf6")
	dst := make([]float32, InputLen)
	EncodePosition(dst, &p, []*game.Position{&h1})

	b2 := int(board.SquareFromString("b2"))
	is.Equal(dst[(PlanesPerPosition+1)*64+b2], float32(1)) // history mover-lady plane

	quiet := dst[(Channels-1)*64]
	assert.InDelta(t, 0.5, quiet, 1e-6)
}

func TestSoftmax(t *testing.T) {
	is := is.New(t)
	x := []float32{1, 1, 1, 1}
	Softmax(x)
	var sum float32
	for _, v := range x {
		assert.InDelta(t, 0.25, v, 1e-6)
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-6)

	y := []float32{0, 1000} // must not overflow
	Softmax(y)
	is.True(y[1] > 0.99)
}
