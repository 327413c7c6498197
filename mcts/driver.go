package mcts

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"lukechampine.com/frand"

	"github.com/gdicarlo/damasco/config"
	"github.com/gdicarlo/damasco/equity"
	"github.com/gdicarlo/damasco/game"
	"github.com/gdicarlo/damasco/move"
	"github.com/gdicarlo/damasco/movegen"
	"github.com/gdicarlo/damasco/nn"
	"github.com/gdicarlo/damasco/stats"
)

// ErrNoMove means the side to move has no legal moves; callers should check
// game-over before searching.
var ErrNoMove = errors.New("no legal moves in this position")

const (
	stopNone int32 = iota
	stopBudget
	stopEarlyExit
	stopConfidence
	stopArenaFull
	stopMaxNodes
	stopSolved
)

func stopReasonString(r int32) string {
	switch r {
	case stopBudget:
		return "budget"
	case stopEarlyExit:
		return "early-exit"
	case stopConfidence:
		return "confidence"
	case stopArenaFull:
		return "arena-full"
	case stopMaxNodes:
		return "max-nodes"
	case stopSolved:
		return "solved"
	}
	return "none"
}

// checkInterval is how often (in iterations) a worker evaluates the
// early-stop predicates.
const checkInterval = 256

// reuseFillLimit: above this arena fill ratio, tree reuse is abandoned and
// the arena reset instead.
const reuseFillLimit = 0.9

// worker holds the per-goroutine scratch state: generator, heuristic
// calculators, RNG stream, and its own model instance (the ONNX graph is
// not safe for concurrent Run).
type worker struct {
	id          int
	gen         *movegen.Generator
	calc        *equity.Calculator
	rolloutCalc *equity.Calculator
	model       *nn.Model
	rng         *frand.RNG
}

// LogIteration is one line of the iteration log stream, for debugging.
// Packed is the TinyMove form of the leaf move.
type LogIteration struct {
	Iteration uint64  `json:"iteration" yaml:"iteration"`
	Thread    int     `json:"thread" yaml:"thread"`
	Leaf      string  `json:"leaf" yaml:"leaf"`
	Packed    uint32  `json:"packed" yaml:"packed"`
	Value     float64 `json:"value" yaml:"value"`
	Depth     int     `json:"depth" yaml:"depth"`
}

// SearchMetrics summarizes the last completed search.
type SearchMetrics struct {
	Iterations uint64
	Nodes      int
	Elapsed    time.Duration
	RootVisits int64
	RootStatus Status
	BestMove   string
	BestVisits int64
	BestMean   float64
	PV         string
	ValueMean  float64
	ValueStdev float64
	ArenaFill  float64
	TreeReused bool
	TTCreated  uint64
	TTLookups  uint64
	TTHits     uint64
	TTC2       uint64
	StopReason string
}

// Searcher runs parallel Monte-Carlo tree searches over a shared tree. One
// Searcher serves one game at a time; Search calls must not overlap.
type Searcher struct {
	cfg   config.Config
	arena *Arena
	tt    *TranspositionTable
	tmpl  *nn.ModelTemplate

	setupGen  *movegen.Generator
	setupCalc *equity.Calculator

	root *Node

	iterationCount atomic.Uint64
	stopSignal     atomic.Int32

	valueMu    sync.Mutex
	valueStats stats.Statistic

	logStream  io.Writer
	metrics    SearchMetrics
	treeReused bool
}

// NewSearcher builds a searcher for the given configuration, sizing the
// arena and transposition table from it (or from system memory when
// unspecified) and loading the ONNX model when one is configured.
func NewSearcher(cfg config.Config) (*Searcher, error) {
	s := &Searcher{
		cfg:       cfg,
		setupGen:  movegen.NewGenerator(),
		setupCalc: equity.NewCalculator(cfg.Weights),
	}
	if cfg.ArenaMB > 0 {
		s.arena = NewArenaMB(cfg.ArenaMB)
	} else {
		s.arena = NewArenaFromMemory(0.15)
	}
	if cfg.UseTT {
		if cfg.TTSizeExponent > 0 {
			s.tt = NewTranspositionTable(cfg.TTSizeExponent)
		} else {
			s.tt = NewTranspositionTableFromMemory(0.05)
		}
	}
	if cfg.CNNWeights != "" {
		tmpl, err := nn.LoadModelTemplate(cfg.CNNWeights)
		if err != nil {
			return nil, err
		}
		s.tmpl = tmpl
	}
	if cfg.RolloutPolicy == config.RolloutNeural && s.tmpl == nil {
		return nil, errors.New("neural rollout policy requires cnn_weights")
	}
	return s, nil
}

// SetLogStream directs a JSON-lines iteration log to w. Set before Search.
func (s *Searcher) SetLogStream(w io.Writer) {
	s.logStream = w
}

// Metrics returns the summary of the last search.
func (s *Searcher) Metrics() SearchMetrics {
	return s.metrics
}

// Root exposes the current tree root, mainly for inspection in tests and
// analysis tooling.
func (s *Searcher) Root() *Node {
	return s.root
}

// ResetGame discards the tree and all cached state between games.
func (s *Searcher) ResetGame() {
	s.root = nil
	s.arena.Reset()
	if s.tt != nil {
		s.tt.Reset()
	}
}

// Search runs the configured budget of MCTS iterations from pos and returns
// the chosen move. The context bounds the whole search; the configured
// TimeBudget applies on top of it.
func (s *Searcher) Search(ctx context.Context, pos game.Position) (move.Move, error) {
	legal := s.setupGen.GenAll(&pos)
	if len(legal) == 0 {
		return move.Move{}, ErrNoMove
	}
	// prepareRoot reuses setupGen, so detach from its internal list.
	legal = append([]move.Move(nil), legal...)

	root := s.prepareRoot(pos)
	s.root = root
	s.stopSignal.Store(stopNone)
	s.iterationCount.Store(0)
	s.valueMu.Lock()
	s.valueStats = stats.Statistic{}
	s.valueMu.Unlock()
	startNodes := s.arena.Allocated()
	start := time.Now()

	searchCtx := ctx
	if s.cfg.TimeBudget > 0 {
		var cancel context.CancelFunc
		searchCtx, cancel = context.WithTimeout(ctx, s.cfg.TimeBudget)
		defer cancel()
	}

	var logChan chan []byte
	writer := errgroup.Group{}
	if s.logStream != nil {
		logChan = make(chan []byte, 100)
		writer.Go(func() error {
			for b := range logChan {
				s.logStream.Write(b)
				s.logStream.Write([]byte("\n"))
			}
			return nil
		})
	}

	g := errgroup.Group{}
	for t := 0; t < s.cfg.Workers(); t++ {
		t := t
		g.Go(func() error {
			w, err := s.newWorker(t)
			if err != nil {
				return err
			}
			for searchCtx.Err() == nil && s.stopSignal.Load() == stopNone {
				iters := s.iterationCount.Add(1)
				s.runIteration(w, root, iters, logChan)
				if s.cfg.MaxNodes > 0 &&
					int64(s.arena.Allocated()-startNodes) >= s.cfg.MaxNodes {
					s.signalStop(stopMaxNodes)
				}
				if s.cfg.UseSolver && root.Status() != Unproven {
					s.signalStop(stopSolved)
				}
				if iters%checkInterval == 0 {
					s.maybeStopEarly(root, start)
				}
			}
			return nil
		})
	}
	err := g.Wait()
	if logChan != nil {
		close(logChan)
		writer.Wait()
	}
	if err != nil {
		return move.Move{}, err
	}
	// Workers that ran out the clock never raised a stop signal.
	s.stopSignal.CompareAndSwap(stopNone, stopBudget)
	elapsed := time.Since(start)

	chosen := s.bestRootMove(root, legal)
	s.fillMetrics(root, &chosen, startNodes, elapsed)
	log.Info().
		Str("best-move", chosen.ShortDescription()).
		Uint64("iterations", s.metrics.Iterations).
		Int("nodes", s.metrics.Nodes).
		Int64("root-visits", s.metrics.RootVisits).
		Float64("best-mean", s.metrics.BestMean).
		Str("root-status", s.metrics.RootStatus.String()).
		Str("stop-reason", s.metrics.StopReason).
		Dur("elapsed", elapsed).
		Msg("search-done")

	s.advanceRoot(root, &chosen, pos)
	return chosen, nil
}

func (s *Searcher) signalStop(reason int32) {
	s.stopSignal.CompareAndSwap(stopNone, reason)
}

func (s *Searcher) newWorker(id int) (*worker, error) {
	w := &worker{
		id:   id,
		gen:  movegen.NewGenerator(),
		calc: equity.NewCalculator(s.cfg.Weights),
		rng:  frand.New(),
	}
	rw := s.cfg.Weights
	if !s.cfg.UseLookahead {
		rw.Threat = 0
	}
	w.rolloutCalc = equity.NewCalculator(rw)
	if s.tmpl != nil {
		m, err := s.tmpl.NewInstance()
		if err != nil {
			return nil, err
		}
		w.model = m
	}
	return w, nil
}

// runIteration performs one Select, Expand, Simulate, Backpropagate cycle.
func (s *Searcher) runIteration(w *worker, root *Node, iter uint64, logChan chan []byte) {
	leaf := s.selectLeaf(root)
	if !leaf.terminal && !leaf.noExpand {
		child := s.expand(w, leaf)
		if child == nil {
			// Arena exhausted; abandon without committing anything.
			releasePath(leaf)
			return
		}
		leaf = child
	}
	v := s.simulate(w, leaf)
	s.backpropagate(leaf, v)

	s.valueMu.Lock()
	s.valueStats.Push(v)
	s.valueMu.Unlock()

	if logChan != nil {
		packed := move.InvalidTinyMove
		if leaf.mv.PathLen > 0 {
			packed = leaf.mv.Tiny()
		}
		li := LogIteration{
			Iteration: iter,
			Thread:    w.id,
			Leaf:      leaf.mv.ShortDescription(),
			Packed:    uint32(packed),
			Value:     v,
			Depth:     depthOf(leaf),
		}
		if b, err := json.Marshal(li); err == nil {
			logChan <- b
		}
	}
}

// prepareRoot reuses the existing tree when the position matches the old
// root or one of its children; otherwise it resets the arena and builds a
// fresh root.
func (s *Searcher) prepareRoot(pos game.Position) *Node {
	s.treeReused = false
	if s.cfg.UseTreeReuse && s.root != nil && s.arena.FillRatio() < reuseFillLimit {
		if s.root.pos.Equal(&pos) {
			s.root.parent = nil
			s.treeReused = true
			return s.root
		}
		for _, c := range s.root.childList() {
			if c.pos.Equal(&pos) {
				c.parent = nil
				s.treeReused = true
				log.Debug().Int64("visits", c.Visits()).Msg("tree-reuse")
				return c
			}
		}
		log.Warn().Msg("tree-reuse miss; rebuilding root")
	}
	s.arena.Reset()
	if s.tt != nil {
		// Arena reset invalidates the stored node pointers.
		s.tt.Reset()
	}
	s.root = nil
	root := s.arena.AllocNode()
	root.pos = pos
	root.untried = append([]move.Move(nil), s.setupGen.GenAll(&pos)...)
	return root
}

// advanceRoot keeps the chosen child's subtree as the next root, verifying
// its state against the actually applied move.
func (s *Searcher) advanceRoot(root *Node, chosen *move.Move, pos game.Position) {
	if !s.cfg.UseTreeReuse {
		s.root = nil
		return
	}
	expected := pos.Apply(chosen)
	chosenTiny := chosen.Tiny()
	for _, c := range root.childList() {
		// Tiny pre-filter; the packed form is ambiguous between capture
		// chains with the same endpoints, so confirm with a full compare.
		if !chosenTiny.MatchesMove(&c.mv) || !c.mv.Equal(chosen) {
			continue
		}
		if c.pos.Equal(&expected) {
			c.parent = nil
			s.root = c
			return
		}
		log.Warn().Str("move", chosen.ShortDescription()).
			Msg("tree-reuse desync; dropping subtree")
		break
	}
	s.root = nil
}

// maybeStopEarly fires the visit-margin predicate (the gap between the top
// two children exceeds what the remaining budget could close) and the
// optional confidence-interval predicate.
func (s *Searcher) maybeStopEarly(root *Node, start time.Time) {
	children := root.childList()
	if len(children) < 2 || root.untriedCount() > 0 {
		return
	}
	var best, second *Node
	for _, c := range children {
		if best == nil || c.Visits() > best.Visits() {
			second = best
			best = c
		} else if second == nil || c.Visits() > second.Visits() {
			second = c
		}
	}

	if s.cfg.TimeBudget > 0 {
		elapsed := time.Since(start)
		remaining := (s.cfg.TimeBudget - elapsed).Seconds()
		if remaining > 0 && elapsed > 0 {
			rate := float64(s.iterationCount.Load()) / elapsed.Seconds()
			if float64(best.Visits()-second.Visits()) > rate*remaining {
				log.Debug().Int64("gap", best.Visits()-second.Visits()).
					Msg("unbridgeable visit gap")
				s.signalStop(stopEarlyExit)
				return
			}
		}
	}

	z := s.cfg.ConfidenceZ()
	if z > 0 && best.Visits() > 0 && second.Visits() > 0 {
		if best.Mean()-nodeStdErr(best, z) > second.Mean()+nodeStdErr(second, z) {
			log.Debug().Msg("confidence intervals separated")
			s.signalStop(stopConfidence)
		}
	}
}

// nodeStdErr is the z-scaled standard error of a node's mean result.
func nodeStdErr(n *Node, z float64) float64 {
	visits, _, score, sumSq, _ := n.stats()
	if visits == 0 {
		return 0
	}
	v := float64(visits)
	mean := score / v
	variance := sumSq/v - mean*mean
	if variance < 0 {
		variance = 0
	}
	return z * math.Sqrt(variance/v)
}

// bestRootMove picks the robust child: maximum visits, ties by mean.
// Proven wins beat everything; proven losses are avoided unless forced.
func (s *Searcher) bestRootMove(root *Node, legal []move.Move) move.Move {
	children := root.childList()

	if s.cfg.UseSolver {
		var win *Node
		for _, c := range children {
			if c.Status() == LossForMover && (win == nil || c.Visits() > win.Visits()) {
				win = c
			}
		}
		if win != nil {
			return win.mv
		}
	}

	better := func(a, b *Node) bool {
		if b == nil {
			return true
		}
		if a.Visits() != b.Visits() {
			return a.Visits() > b.Visits()
		}
		return a.Mean() > b.Mean()
	}
	var best *Node
	for _, c := range children {
		if s.cfg.UseSolver && c.Status() == WinForMover {
			continue
		}
		if better(c, best) {
			best = c
		}
	}
	if best == nil {
		// Every move is proven lost; fall back to the most explored one.
		for _, c := range children {
			if better(c, best) {
				best = c
			}
		}
	}
	if best != nil && best.Visits() > 0 {
		return best.mv
	}

	// Budget too small for even one backup.
	if len(legal) == 1 {
		return legal[0]
	}
	return legal[s.setupCalc.BestMove(&root.pos, legal)]
}

func (s *Searcher) fillMetrics(root *Node, chosen *move.Move, startNodes int, elapsed time.Duration) {
	m := SearchMetrics{
		Iterations: s.iterationCount.Load(),
		Nodes:      s.arena.Allocated() - startNodes,
		Elapsed:    elapsed,
		RootVisits: root.Visits(),
		RootStatus: root.Status(),
		BestMove:   chosen.ShortDescription(),
		PV:         principalVariation(root, 10),
		ArenaFill:  s.arena.FillRatio(),
		TreeReused: s.treeReused,
		StopReason: stopReasonString(s.stopSignal.Load()),
	}
	for _, c := range root.childList() {
		if c.mv.Equal(chosen) {
			m.BestVisits = c.Visits()
			m.BestMean = c.Mean()
			break
		}
	}
	s.valueMu.Lock()
	m.ValueMean = s.valueStats.Mean()
	m.ValueStdev = s.valueStats.Stdev()
	s.valueMu.Unlock()
	if s.tt != nil {
		m.TTCreated, m.TTLookups, m.TTHits, m.TTC2 = s.tt.Stats()
	}
	s.metrics = m
}

// principalVariation follows max-visit children from root.
func principalVariation(root *Node, maxDepth int) string {
	var parts []string
	n := root
	for d := 0; d < maxDepth; d++ {
		var best *Node
		for _, c := range n.childList() {
			if best == nil || c.Visits() > best.Visits() ||
				(c.Visits() == best.Visits() && c.Mean() > best.Mean()) {
				best = c
			}
		}
		if best == nil || best.Visits() == 0 {
			break
		}
		parts = append(parts, best.mv.ShortDescription())
		n = best
	}
	return strings.Join(parts, " ")
}

func depthOf(n *Node) int {
	d := 0
	for a := n.parent; a != nil; a = a.parent {
		d++
	}
	return d
}
