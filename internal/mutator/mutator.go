package mutator

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/stockwatch/stock-ticker/internal/store"
	"github.com/stockwatch/stock-ticker/pkg/config"
	"github.com/stockwatch/stock-ticker/pkg/models"
)

// Mutator churns the store with randomized inserts, updates, and deletes.
// Updates are biased toward the watched portfolio so an observer always has
// something to show, while the background population keeps the overall
// write volume realistic.
type Mutator struct {
	logger  *zap.Logger
	store   RecordStore
	watched []string
	cfg     config.MutateConfig
	rand    Rand
	clock   Clock

	mintBase string
	mintSeq  int
}

func New(
	logger *zap.Logger,
	st RecordStore,
	watched []string,
	cfg config.MutateConfig,
	rnd Rand,
	clock Clock,
) *Mutator {
	return &Mutator{
		logger:  logger,
		store:   st,
		watched: watched,
		cfg:     cfg,
		rand:    rnd,
		clock:   clock,
		// Symbols minted by this run are namespaced by start time, so two
		// runs (or a restart) can never collide on an insert.
		mintBase: strings.ToUpper(strconv.FormatInt(clock.Now().Unix(), 36)),
	}
}

// Run applies one randomized mutation per tick until ctx is cancelled. A
// mutation that loses a race against a concurrent run (target vanished,
// store drained) is skipped; any other store error is fatal.
func (m *Mutator) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(m.cfg.OpsPerSec)
	m.logger.Info("Mutator started",
		zap.Int("ops_per_sec", m.cfg.OpsPerSec),
		zap.Float64("watched_share", m.cfg.WatchedShare),
		zap.Strings("watched", m.watched))

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Mutator stopped")
			return nil
		default:
			if err := m.tick(ctx); err != nil {
				if store.IsBenignRace(err) {
					m.logger.Debug("Mutation lost a race, skipping", zap.Error(err))
				} else if ctx.Err() != nil {
					m.logger.Info("Mutator stopped")
					return nil
				} else {
					return fmt.Errorf("mutation failed: %w", err)
				}
			}
			m.clock.Sleep(interval)
		}
	}
}

// tick rolls the operation mix once: a small slice of inserts and deletes,
// the rest updates.
func (m *Mutator) tick(ctx context.Context) error {
	roll := m.rand.Float64()
	switch {
	case roll < m.cfg.InsertPct:
		return m.insert(ctx)
	case roll < m.cfg.InsertPct+m.cfg.DeletePct:
		return m.delete(ctx)
	default:
		return m.update(ctx)
	}
}

func (m *Mutator) insert(ctx context.Context) error {
	rec := models.StockRecord{
		Symbol: m.mintSymbol(),
		Price:  math.Round((10+m.rand.Float64()*10)*100) / 100,
	}
	if err := m.store.Insert(ctx, rec); err != nil {
		return err
	}
	m.logger.Debug("Inserted", zap.String("symbol", rec.Symbol), zap.Float64("price", rec.Price))
	return nil
}

func (m *Mutator) update(ctx context.Context) error {
	symbol, err := m.pickUpdateTarget(ctx)
	if err != nil {
		return err
	}
	price := models.RandomPrice(symbol, m.rand.Float64())
	if err := m.store.UpdatePrice(ctx, symbol, price); err != nil {
		return err
	}
	m.logger.Debug("Updated", zap.String("symbol", symbol), zap.Float64("price", price))
	return nil
}

func (m *Mutator) delete(ctx context.Context) error {
	symbol, err := m.store.RandomSymbol(ctx)
	if err != nil {
		return err
	}
	if err := m.store.Delete(ctx, symbol); err != nil {
		return err
	}
	m.logger.Debug("Deleted", zap.String("symbol", symbol))
	return nil
}

// pickUpdateTarget sends a configured share of updates at the watched
// portfolio and the rest at a uniformly sampled record.
func (m *Mutator) pickUpdateTarget(ctx context.Context) (string, error) {
	if len(m.watched) > 0 && m.rand.Float64() < m.cfg.WatchedShare {
		return m.watched[m.rand.Intn(len(m.watched))], nil
	}
	return m.store.RandomSymbol(ctx)
}

// mintSymbol returns a symbol no other run can have minted: the base
// encodes this run's start time, the sequence the tick within the run.
func (m *Mutator) mintSymbol() string {
	m.mintSeq++
	return fmt.Sprintf("X%s%03d", m.mintBase, m.mintSeq)
}
