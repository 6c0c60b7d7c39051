package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/marketlab/dauction/params"
	"github.com/marketlab/dauction/pkg/api"
	"github.com/marketlab/dauction/pkg/entry"
	"github.com/marketlab/dauction/pkg/market"
	"github.com/marketlab/dauction/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("")

	logger, err := util.NewLoggerWithFile(cfg.Server.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.Server.LogFile)

	// ---- Entry log (durable, one per session) ----
	storePath := filepath.Join(cfg.Server.DataDir, "sessions", cfg.Session.ID)
	store, err := entry.OpenPebble(storePath)
	if err != nil {
		sugar.Fatalw("entry_log_open_failed", "path", storePath, "err", err)
	}
	defer store.Close()
	sugar.Infow("entry_log_opened", "path", storePath)

	// ---- Session ----
	clock := util.RealClock{}
	session := market.NewSession(cfg.Session.ID, clock, market.SessionConfig{
		ValueMin:      cfg.Market.ValueMin,
		ValueMax:      cfg.Market.ValueMax,
		RoundDuration: cfg.Market.RoundDuration,
	})
	for i := 1; i <= cfg.Session.Participants; i++ {
		if _, err := session.Join(fmt.Sprintf("p%d", i)); err != nil {
			sugar.Fatalw("join_failed", "err", err)
		}
	}
	session.StartRound(1)
	sugar.Infow("session_started",
		"session", session.ID,
		"participants", cfg.Session.Participants,
		"rounds", cfg.Market.Rounds,
		"round_duration", cfg.Market.RoundDuration)

	// ---- Engine + API ----
	hub := api.NewHub(sugar)
	engine := market.NewEngine(session, store, hub, sugar)
	server := api.NewServer(engine, hub, sugar)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := server.Start(cfg.Server.APIAddr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	runRounds(ctx, session, engine, cfg.Market.Rounds, clock, sugar)
}

// runRounds drives round advancement: once the advisory deadline passes it
// opens the next round (or returns after the last one) and pushes a fresh
// book. Polling goes through the clock so tests can drive it.
func runRounds(ctx context.Context, session *market.Session, engine *market.Engine, rounds int, clock util.Clock, log *zap.SugaredLogger) {
	for {
		select {
		case <-ctx.Done():
			log.Info("shutting_down")
			return
		case <-clock.After(time.Second):
			if session.Open() {
				continue
			}
			round := session.Round()
			if round >= rounds {
				log.Infow("session_finished", "rounds", round)
				return
			}
			session.StartRound(round + 1)
			log.Infow("round_started", "round", round+1)
			engine.Broadcast(round + 1)
		}
	}
}
