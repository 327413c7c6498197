// Package nn is the neural-network side of the engine: position encoding,
// the 512-wide policy indexing, and a forward pass backed by an ONNX model.
// The search only sees the Evaluator interface; everything ONNX stays here.
package nn

import (
	"github.com/gdicarlo/damasco/game"
)

// PolicySize is the width of the policy head: 64 canonical origin squares
// times 8 directions (4 step, 4 capture).
const PolicySize = 512

// MaxHistory is how many ancestor positions accompany the leaf position as
// temporal context.
const MaxHistory = 2

// Evaluator runs one forward pass. The policy is a distribution over the
// canonical move indexing (see MoveToPolicyIndex); value is in [-1, 1] from
// the perspective of the player who made the move reaching pos, so +1 means
// the position is won for the side that just moved. history carries up to
// MaxHistory ancestor positions, most recent first; implementations must
// tolerate fewer.
//
// Implementations need not be safe for concurrent use; the search gives
// each worker its own instance.
type Evaluator interface {
	Infer(pos *game.Position, history []*game.Position) (policy []float32, value float32, err error)
}
