package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/stockwatch/stock-ticker/internal/mutator"
	"github.com/stockwatch/stock-ticker/internal/observer"
	"github.com/stockwatch/stock-ticker/internal/render"
	"github.com/stockwatch/stock-ticker/internal/seeder"
	"github.com/stockwatch/stock-ticker/internal/store"
	"github.com/stockwatch/stock-ticker/pkg/config"
)

const usage = `Usage: stockticker <command>

Commands:
  reset     Drop the stock collection (invalidates live observers)
  populate  Seed the collection: background records plus the watched portfolio
  mutate    Churn the collection with random inserts, updates, and deletes
  trace     Follow watched-symbol changes as an append-only log
  display   Follow watched-symbol changes as an in-place console table

Run populate once, then mutate in one terminal and trace or display in
another. Configuration comes from env vars / .env (MONGO_URI, WATCH_SYMBOLS,
MUTATE_OPS_PER_SEC, ...).
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	command := strings.ToLower(os.Args[1])

	// 1. Load Config
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// 2. Initialize Zap Logger (stderr, so the renderers own stdout)
	logger, err := config.NewLogger(cfg.Logger)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	// 3. Setup Shutdown Hook
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received")
		cancel()
	}()

	// 4. Connect the Store (shared by every command)
	st, err := store.Connect(ctx, cfg.Mongo, logger)
	if err != nil {
		logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	defer st.Close(context.Background())

	// 5. Dispatch
	var runErr error
	switch command {
	case "reset":
		runErr = newSeeder(cfg, logger, st).Reset(ctx)
	case "populate":
		runErr = newSeeder(cfg, logger, st).Populate(ctx)
	case "mutate":
		runErr = runMutate(ctx, cfg, logger, st)
	case "trace":
		runErr = runObserve(ctx, cfg, logger, st, false)
	case "display":
		runErr = runObserve(ctx, cfg, logger, st, true)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", command, usage)
		os.Exit(2)
	}

	if runErr != nil {
		logger.Error("Command failed", zap.String("command", command), zap.Error(runErr))
		logger.Sync()
		os.Exit(1)
	}
}

func newSeeder(cfg *config.Config, logger *zap.Logger, st *store.Store) *seeder.Seeder {
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	return seeder.New(logger, st, cfg.Watch.Symbols, cfg.Populate, rnd)
}

func runMutate(ctx context.Context, cfg *config.Config, logger *zap.Logger, st *store.Store) error {
	rnd := mutator.RealRand{Rand: rand.New(rand.NewSource(time.Now().UnixNano()))}
	m := mutator.New(logger, st, cfg.Watch.Symbols, cfg.Mutate, rnd, mutator.RealClock{})
	return m.Run(ctx)
}

func runObserve(ctx context.Context, cfg *config.Config, logger *zap.Logger, st *store.Store, table bool) error {
	var r render.Renderer
	if table {
		r = render.NewTable(os.Stdout, cfg.Watch.Symbols, cfg.Display.HighlightTTL, cfg.Display.RedrawInterval)
	} else {
		r = render.NewTrace(os.Stdout)
	}
	// Close must run before the error is reported so the terminal is sane
	// again by the time anything prints.
	defer r.Close()

	obs := observer.New(logger, observer.StoreAdapter{Store: st}, r, cfg.Watch.Symbols)
	return obs.Run(ctx)
}
