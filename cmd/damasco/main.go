// Self-play harness: pits two engine presets against each other for a
// number of games and reports the result with confidence intervals.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gdicarlo/damasco/board"
	"github.com/gdicarlo/damasco/config"
	"github.com/gdicarlo/damasco/game"
	"github.com/gdicarlo/damasco/mcts"
	"github.com/gdicarlo/damasco/movegen"
	"github.com/gdicarlo/damasco/stats"
)

// maxPlies caps runaway games; anything longer is scored as a draw.
const maxPlies = 400

var (
	whitePreset = flag.String("white", "vanilla", "preset for the White engine")
	blackPreset = flag.String("black", "purevanilla", "preset for the Black engine")
	configPath  = flag.String("config", "", "optional YAML config overriding the White preset")
	numGames    = flag.Int("games", 10, "number of games to play")
	timeBudget  = flag.Duration("time", 2*time.Second, "per-move time budget for both engines")
	maxNodes    = flag.Int64("nodes", 0, "optional per-move node cap for both engines")
	cnnWeights  = flag.String("cnn", "", "optional ONNX model for both engines")
	logLevel    = flag.String("log-level", "info", "debug, info, warn, or disabled")
	logStream   = flag.String("iteration-log", "", "write a JSON-lines iteration log for White")
)

func engineConfig(preset string) (config.Config, error) {
	cfg, err := config.LookupPreset(preset)
	if err != nil {
		return cfg, err
	}
	cfg.TimeBudget = *timeBudget
	cfg.MaxNodes = *maxNodes
	cfg.CNNWeights = *cnnWeights
	return cfg, nil
}

// playGame returns 1 for a White win, 0 for a Black win, 0.5 for a draw.
func playGame(white, black *mcts.Searcher) (float64, int) {
	white.ResetGame()
	black.ResetGame()
	gen := movegen.NewGenerator()
	pos := game.StartingPosition()

	for ply := 0; ply < maxPlies; ply++ {
		if pos.DrawByQuietMoves() {
			return 0.5, ply
		}
		if !gen.HasMoves(&pos) {
			// The side to move is stuck and loses.
			if pos.ToMove == board.White {
				return 0, ply
			}
			return 1, ply
		}
		s := white
		if pos.ToMove == board.Black {
			s = black
		}
		mv, err := s.Search(context.Background(), pos)
		if err != nil {
			log.Fatal().Err(err).Str("position", pos.Notation()).Msg("search failed")
		}
		log.Debug().Int("ply", ply).Str("move", mv.ShortDescription()).
			Str("pv", s.Metrics().PV).Msg("played")
		pos = pos.Apply(&mv)
	}
	return 0.5, maxPlies
}

func main() {
	flag.Parse()

	switch *logLevel {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "disabled":
		zerolog.SetGlobalLevel(zerolog.Disabled)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	whiteCfg, err := engineConfig(*whitePreset)
	if err != nil {
		log.Fatal().Err(err).Msg("bad white preset")
	}
	if *configPath != "" {
		whiteCfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatal().Err(err).Msg("bad config file")
		}
	}
	blackCfg, err := engineConfig(*blackPreset)
	if err != nil {
		log.Fatal().Err(err).Msg("bad black preset")
	}

	white, err := mcts.NewSearcher(whiteCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("white engine init failed")
	}
	black, err := mcts.NewSearcher(blackCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("black engine init failed")
	}
	if *logStream != "" {
		f, err := os.Create(*logStream)
		if err != nil {
			log.Fatal().Err(err).Msg("cannot create iteration log")
		}
		defer f.Close()
		white.SetLogStream(f)
	}

	var whiteScore stats.Statistic
	var plyStats stats.Statistic
	start := time.Now()
	for g := 0; g < *numGames; g++ {
		r, plies := playGame(white, black)
		whiteScore.Push(r)
		plyStats.Push(float64(plies))
		log.Info().Int("game", g+1).Float64("result", r).Int("plies", plies).
			Float64("white-score", whiteScore.Mean()).
			Msg("game-over")
	}

	fmt.Printf("%s vs %s: %d games in %v\n",
		*whitePreset, *blackPreset, *numGames, time.Since(start).Round(time.Second))
	fmt.Printf("White score: %.3f ± %.3f (95%% CI)\n",
		whiteScore.Mean(), whiteScore.StandardError(stats.Z95))
	fmt.Printf("Average game length: %.1f plies\n", plyStats.Mean())
}
