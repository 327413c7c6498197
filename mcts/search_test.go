package mcts

import (
	"bytes"
	"context"
	"math"
	"testing"
	"time"

	"github.com/matryer/is"
	"github.com/stretchr/testify/assert"

	"github.com/gdicarlo/damasco/config"
	"github.com/gdicarlo/damasco/equity"
	"github.com/gdicarlo/damasco/game"
	"github.com/gdicarlo/damasco/movegen"
)

func newTestSearcher(cfg config.Config, maxNodes int) *Searcher {
	s := &Searcher{
		cfg:       cfg,
		arena:     NewArena(maxNodes),
		setupGen:  movegen.NewGenerator(),
		setupCalc: equity.NewCalculator(cfg.Weights),
	}
	if cfg.UseTT {
		s.tt = NewTranspositionTable(12)
	}
	return s
}

func quickConfig(preset string) config.Config {
	cfg := config.Preset(preset)
	cfg.Goroutines = 2
	cfg.TimeBudget = 250 * time.Millisecond
	cfg.MaxNodes = 3000
	cfg.RolloutDepth = 40
	return cfg
}

func TestBackpropagationFlipsPerspective(t *testing.T) {
	is := is.New(t)
	s := newTestSearcher(config.Preset("purevanilla"), 16)

	root := s.arena.AllocNode()
	a := s.arena.AllocNode()
	b := s.arena.AllocNode()
	a.parent = root
	b.parent = a
	// Selection would have charged both descended-into nodes.
	a.addVirtualLoss()
	b.addVirtualLoss()

	s.backpropagate(b, 1.0)

	is.Equal(b.Visits(), int64(1))
	is.Equal(a.Visits(), int64(1))
	is.Equal(root.Visits(), int64(1))
	is.Equal(b.VirtualLoss(), int32(0))
	is.Equal(a.VirtualLoss(), int32(0))
	is.Equal(root.VirtualLoss(), int32(0))
	is.Equal(b.score, 1.0)
	is.Equal(a.score, 0.0)
	is.Equal(root.score, 1.0)
	is.Equal(b.sumSq, 1.0)
}

func TestReleasePathRestoresVirtualLoss(t *testing.T) {
	is := is.New(t)
	s := newTestSearcher(config.Preset("purevanilla"), 16)
	root := s.arena.AllocNode()
	a := s.arena.AllocNode()
	a.parent = root
	a.addVirtualLoss()

	releasePath(a)
	is.Equal(a.VirtualLoss(), int32(0))
	is.Equal(a.Visits(), int64(0))
	is.Equal(root.Visits(), int64(0))
}

func TestChildScoreUnvisited(t *testing.T) {
	is := is.New(t)
	cfg := config.Preset("purevanilla")
	s := &Searcher{cfg: cfg}
	c := &Node{}
	is.True(math.IsInf(s.childScore(c, 1, 10), 1))

	cfg.UseFPU = true
	cfg.FPUValue = 0.44
	s = &Searcher{cfg: cfg}
	assert.InDelta(t, 0.44, s.childScore(c, 1, 10), 1e-9)
}

func TestChildScoreUCB1(t *testing.T) {
	s := &Searcher{cfg: config.Preset("purevanilla")}
	c := &Node{visits: 4, score: 3}
	lnN := math.Log(101)
	want := 3.0/4.0 + 1.414*math.Sqrt(lnN/4)
	assert.InDelta(t, want, s.childScore(c, lnN, 100), 1e-9)
}

func TestChildScorePUCT(t *testing.T) {
	cfg := config.Preset("alphazero")
	cfg.UseSolver = false
	s := &Searcher{cfg: cfg}
	c := &Node{visits: 4, score: 3, prior: 0.5}
	want := 3.0/4.0 + cfg.PUCTC*0.5*math.Sqrt(100)/(1+4)
	assert.InDelta(t, want, s.childScore(c, math.Log(101), 100), 1e-9)
}

func TestChildScoreUCB1Tuned(t *testing.T) {
	s := &Searcher{cfg: config.Preset("ablation-tuned")}
	c := &Node{visits: 4, score: 2, sumSq: 1}
	lnN := math.Log(101)
	// Empirical variance term exceeds 1/4, so the cap applies.
	want := 0.5 + math.Sqrt(lnN/4*0.25)
	assert.InDelta(t, want, s.childScore(c, lnN, 100), 1e-9)
}

func TestChildScoreUCB1TunedStaysFiniteUnderVirtualLoss(t *testing.T) {
	is := is.New(t)
	s := &Searcher{cfg: config.Preset("ablation-tuned")}
	// Heavy virtual loss drags q negative and the raw variance estimate
	// below zero. The score must stay finite or the child becomes
	// permanently unselectable.
	busy := &Node{visits: 1, score: 0, vloss: 10}
	sc := s.childScore(busy, math.Log(3), 2)
	is.True(!math.IsNaN(sc))
	is.True(!math.IsInf(sc, 0))
}

func TestChildScoreVirtualLossSteersAway(t *testing.T) {
	is := is.New(t)
	s := &Searcher{cfg: config.Preset("purevanilla")}
	clean := &Node{visits: 10, score: 5}
	busy := &Node{visits: 10, score: 5, vloss: 3}
	lnN := math.Log(50)
	is.True(s.childScore(clean, lnN, 49) > s.childScore(busy, lnN, 49))
}

func TestChildScoreSolverLabels(t *testing.T) {
	is := is.New(t)
	cfg := config.Preset("purevanilla")
	cfg.UseSolver = true
	s := &Searcher{cfg: cfg}

	won := &Node{visits: 1, score: 1, status: LossForMover}
	lost := &Node{visits: 1000, score: 900, status: WinForMover}
	open := &Node{visits: 1, score: 1}
	lnN := math.Log(1002)
	is.True(s.childScore(won, lnN, 1001) > s.childScore(open, lnN, 1001))
	is.True(s.childScore(lost, lnN, 1001) < s.childScore(open, lnN, 1001))
}

func TestSolverMateInOne(t *testing.T) {
	is := is.New(t)
	cfg := quickConfig("purevanilla")
	cfg.UseSolver = true
	cfg.Goroutines = 1
	s := newTestSearcher(cfg, 1024)

	// White's mandatory capture removes Black's last piece.
	pos := game.MustParsePosition("W:Wc3:Bd4")
	mv, err := s.Search(context.Background(), pos)
	is.NoErr(err)
	is.Equal(mv.ShortDescription(), "c3xe5")
	is.Equal(s.Metrics().RootStatus, WinForMover)
	is.Equal(s.Metrics().StopReason, "solved")
}

func TestSolverLabelsAreMonotonic(t *testing.T) {
	is := is.New(t)
	cfg := config.Preset("purevanilla")
	cfg.UseSolver = true
	s := &Searcher{cfg: cfg}

	n := &Node{}
	n.untried = nil
	child := &Node{status: LossForMover}
	n.children[0] = child
	n.numChildren = 1

	s.updateStatus(n)
	is.Equal(n.Status(), WinForMover)

	// A later, weaker recomputation must not downgrade the label.
	child.mu.Lock()
	child.status = Unproven
	child.mu.Unlock()
	s.updateStatus(n)
	is.Equal(n.Status(), WinForMover)
}

func TestSearchReturnsALegalMove(t *testing.T) {
	is := is.New(t)
	for _, preset := range []string{"purevanilla", "vanilla", "grandmaster"} {
		cfg := quickConfig(preset)
		cfg.UsePUCT = false // no network in tests
		s := newTestSearcher(cfg, 8192)

		pos := game.StartingPosition()
		mv, err := s.Search(context.Background(), pos)
		is.NoErr(err)

		legal := movegen.NewGenerator().GenAll(&pos)
		found := false
		for i := range legal {
			if legal[i].Equal(&mv) {
				found = true
			}
		}
		is.True(found)
		m := s.Metrics()
		is.True(m.Iterations > 0)
		is.True(m.RootVisits > 0)
		is.True(m.BestMove != "")
	}
}

func TestSearchWithTranspositionTable(t *testing.T) {
	is := is.New(t)
	cfg := quickConfig("purevanilla")
	cfg.UseTT = true
	s := newTestSearcher(cfg, 8192)

	_, err := s.Search(context.Background(), game.StartingPosition())
	is.NoErr(err)
	is.True(s.Metrics().TTCreated > 0)
	is.True(s.Metrics().TTLookups > 0)
}

func TestSearchNoMoves(t *testing.T) {
	is := is.New(t)
	s := newTestSearcher(quickConfig("purevanilla"), 64)
	// A lone pawn on a7 blocked by a Lady it cannot jump.
	pos := game.MustParsePosition("W:Wa7:BKb8")
	_, err := s.Search(context.Background(), pos)
	is.Equal(err, ErrNoMove)
}

func TestSearchZeroBudgetFallsBackToOnlyMove(t *testing.T) {
	is := is.New(t)
	cfg := quickConfig("purevanilla")
	cfg.TimeBudget = time.Nanosecond
	s := newTestSearcher(cfg, 64)

	pos := game.MustParsePosition("W:Wc3:Bd4")
	mv, err := s.Search(context.Background(), pos)
	is.NoErr(err)
	is.Equal(mv.ShortDescription(), "c3xe5")
}

func TestTreeReuseKeepsChosenSubtree(t *testing.T) {
	is := is.New(t)
	cfg := quickConfig("vanilla")
	s := newTestSearcher(cfg, 8192)

	pos := game.StartingPosition()
	mv, err := s.Search(context.Background(), pos)
	is.NoErr(err)

	next := pos.Apply(&mv)
	is.True(s.Root() != nil)
	rootPos := s.Root().Position()
	is.True(rootPos.Equal(&next))
	is.True(s.Root().parent == nil)
}

func TestArenaExhaustionStopsSearch(t *testing.T) {
	is := is.New(t)
	cfg := quickConfig("purevanilla")
	cfg.Goroutines = 1
	cfg.MaxNodes = 0
	s := newTestSearcher(cfg, 32)

	mv, err := s.Search(context.Background(), game.StartingPosition())
	is.NoErr(err)
	is.True(mv.PathLen > 0)
	is.Equal(s.Metrics().StopReason, "arena-full")
}

func TestIterationLogStream(t *testing.T) {
	is := is.New(t)
	cfg := quickConfig("purevanilla")
	cfg.Goroutines = 1
	cfg.MaxNodes = 50
	s := newTestSearcher(cfg, 1024)

	var buf bytes.Buffer
	s.SetLogStream(&buf)
	_, err := s.Search(context.Background(), game.StartingPosition())
	is.NoErr(err)
	is.True(bytes.Contains(buf.Bytes(), []byte("\"iteration\"")))
}

func TestExpandCreatesTerminalChild(t *testing.T) {
	is := is.New(t)
	cfg := config.Preset("purevanilla")
	s := newTestSearcher(cfg, 16)
	w, err := s.newWorker(0)
	is.NoErr(err)

	pos := game.MustParsePosition("W:Wc3:Bd4")
	root := s.prepareRoot(pos)
	child := s.expand(w, root)
	is.True(child != root)
	is.True(child.terminal)
	is.Equal(child.Status(), LossForMover)
	is.Equal(root.NumChildren(), 1)
	is.Equal(child.VirtualLoss(), int32(1))
}

func TestExpandWarmStartsFromTT(t *testing.T) {
	is := is.New(t)
	cfg := config.Preset("purevanilla")
	cfg.UseTT = true
	s := newTestSearcher(cfg, 32)
	w, err := s.newWorker(0)
	is.NoErr(err)

	pos := game.MustParsePosition("W:Wc3,e3:Bb6,f6")
	root := s.prepareRoot(pos)
	mv := root.untried[len(root.untried)-1]
	transposed := pos.Apply(&mv)

	seed := &Node{pos: transposed, visits: 9, score: 6.5, sumSq: 5}
	s.tt.Insert(transposed.Key, seed)

	child := s.expand(w, root)
	is.Equal(child.Visits(), int64(9))
	is.Equal(child.score, 6.5)
	is.Equal(child.sumSq, 5.0)
}

func TestPrincipalVariation(t *testing.T) {
	is := is.New(t)
	cfg := quickConfig("purevanilla")
	cfg.Goroutines = 1
	s := newTestSearcher(cfg, 4096)

	_, err := s.Search(context.Background(), game.StartingPosition())
	is.NoErr(err)
	pv := s.Metrics().PV
	is.True(len(pv) > 0)
	is.Equal(pv[:len(s.Metrics().BestMove)], s.Metrics().BestMove)
}

func TestSimulateTerminalValues(t *testing.T) {
	is := is.New(t)
	s := newTestSearcher(config.Preset("purevanilla"), 16)
	w, _ := s.newWorker(0)

	lost := &Node{terminal: true}
	is.Equal(s.simulate(w, lost), 1.0)

	drawn := &Node{terminal: true, drawn: true}
	is.Equal(s.simulate(w, drawn), drawScore)
}

func TestRolloutDecisiveFromDominantPosition(t *testing.T) {
	is := is.New(t)
	cfg := config.Preset("vanilla")
	cfg.RolloutEpsilon = 0
	cfg.RolloutDepth = 60
	s := newTestSearcher(cfg, 16)
	w, _ := s.newWorker(0)

	// Black just moved into a hopeless spot: White's capture wins at once.
	node := &Node{pos: game.MustParsePosition("W:Wc3:Bd4")}
	// Perspective is Black (the player who moved into the node); White
	// wins the rollout immediately, so the value must be 0.
	is.Equal(s.rollout(w, node), 0.0)
}

func TestRolloutFastAbortOnMaterial(t *testing.T) {
	is := is.New(t)
	cfg := config.Preset("purevanilla")
	cfg.UseFastRollout = true
	cfg.RolloutDepth = 200
	s := newTestSearcher(cfg, 16)
	w, _ := s.newWorker(0)

	// White is up eight pieces; a random rollout should hit the material
	// abort long before a decisive end.
	pos := game.MustParsePosition("B:Wa1,c1,e1,g1,b2,d2,f2,h2,a3:Bh6")
	node := &Node{pos: pos}
	v := s.rollout(w, node)
	is.True(v == fastRolloutWin || v == 1.0)
}

func TestMoveHistoryCollection(t *testing.T) {
	is := is.New(t)
	root := &Node{pos: game.StartingPosition()}
	a := &Node{parent: root, pos: game.StartingPosition()}
	b := &Node{parent: a, pos: game.StartingPosition()}

	h := historyOf(b)
	is.Equal(len(h), 2)
	is.Equal(h[0], &a.pos)
	is.Equal(h[1], &root.pos)
}

func TestUniformPriorWithoutNetwork(t *testing.T) {
	cfg := config.Preset("purevanilla")
	cfg.UsePUCT = true
	s := newTestSearcher(cfg, 32)
	w, _ := s.newWorker(0)

	pos := game.StartingPosition()
	root := s.prepareRoot(pos)
	child := s.expand(w, root)
	assert.InDelta(t, 1.0/7.0, child.prior, 1e-9)
}
