package seeder

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/stockwatch/stock-ticker/pkg/config"
	"github.com/stockwatch/stock-ticker/pkg/models"
)

// Background symbols are namespaced by these prefixes plus a numeric
// suffix, well away from anything that looks like a real ticker.
var backgroundPrefixes = []string{"A", "K", "S", "Z"}

const backgroundBase = 10000

// SeedStore is the slice of the store the seeder provisions through.
type SeedStore interface {
	HasRecords(ctx context.Context) (bool, error)
	InsertMany(ctx context.Context, recs []models.StockRecord) error
	Count(ctx context.Context) (int64, error)
	Drop(ctx context.Context) error
	IsMongos(ctx context.Context) (bool, error)
	EnableSharding(ctx context.Context) error
}

// Rand is the single draw the seeder needs; *rand.Rand satisfies it.
type Rand interface {
	Float64() float64
}

// Seeder provisions and tears down the demo dataset.
type Seeder struct {
	logger  *zap.Logger
	store   SeedStore
	watched []string
	cfg     config.PopulateConfig
	rand    Rand
}

func New(logger *zap.Logger, st SeedStore, watched []string, cfg config.PopulateConfig, rnd Rand) *Seeder {
	return &Seeder{
		logger:  logger,
		store:   st,
		watched: watched,
		cfg:     cfg,
		rand:    rnd,
	}
}

// Reset drops the collection. Any live change stream on it is invalidated,
// which observers report as fatal; that is the intended way to force a
// full re-sync.
func (s *Seeder) Reset(ctx context.Context) error {
	if err := s.store.Drop(ctx); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	s.logger.Info("Collection dropped")
	return nil
}

// Populate seeds the background population and the watched portfolio into
// an empty collection. A collection that already has records is left
// untouched so a stray re-run cannot corrupt a live demo.
func (s *Seeder) Populate(ctx context.Context) error {
	has, err := s.store.HasRecords(ctx)
	if err != nil {
		return fmt.Errorf("populate: %w", err)
	}
	if has {
		s.logger.Warn("Collection already has records, leaving it alone (run reset first)")
		return nil
	}

	mongos, err := s.store.IsMongos(ctx)
	if err != nil {
		return fmt.Errorf("populate: %w", err)
	}
	if mongos {
		s.logger.Info("Connected to a mongos, sharding the collection")
		if err := s.store.EnableSharding(ctx); err != nil {
			return fmt.Errorf("populate: %w", err)
		}
	}

	if err := s.insertBackground(ctx); err != nil {
		return err
	}

	watchedRecs := make([]models.StockRecord, 0, len(s.watched))
	for _, sym := range s.watched {
		watchedRecs = append(watchedRecs, models.StockRecord{
			Symbol: sym,
			Price:  models.RandomPrice(sym, s.rand.Float64()),
		})
	}
	if err := s.store.InsertMany(ctx, watchedRecs); err != nil {
		return fmt.Errorf("populate watched: %w", err)
	}

	total, err := s.store.Count(ctx)
	if err != nil {
		return fmt.Errorf("populate: %w", err)
	}
	s.logger.Info("Populate complete",
		zap.Int("watched", len(watchedRecs)),
		zap.Int64("total", total))
	return nil
}

// insertBackground writes the churn population in batches, spread evenly
// across the prefixes.
func (s *Seeder) insertBackground(ctx context.Context) error {
	perPrefix := s.cfg.BackgroundCount / len(backgroundPrefixes)
	batch := make([]models.StockRecord, 0, s.cfg.BatchSize)
	inserted := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("populate interrupted: %w", err)
		}
		if err := s.store.InsertMany(ctx, batch); err != nil {
			return fmt.Errorf("populate background: %w", err)
		}
		inserted += len(batch)
		batch = batch[:0]
		s.logger.Info("Populating background records", zap.Int("inserted", inserted))
		return nil
	}

	for i := 0; i < perPrefix; i++ {
		for _, prefix := range backgroundPrefixes {
			batch = append(batch, models.StockRecord{
				Symbol: fmt.Sprintf("%s%d", prefix, backgroundBase+i),
				Price:  math.Round((10+s.rand.Float64()*10)*100) / 100,
			})
			if len(batch) == s.cfg.BatchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}
	}
	return flush()
}
