package observer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/stockwatch/stock-ticker/internal/store"
	"github.com/stockwatch/stock-ticker/pkg/models"
)

const streamCloseTimeout = 5 * time.Second

// Observer builds a gap-free view of the watched symbols: it pins a resume
// point first, replays a snapshot of the subset as synthetic "initial"
// events, then follows the live feed from the resume point. Every change
// that commits after the resume point is either in the snapshot or on the
// stream, never in neither and never rendered twice as a change.
//
// Nothing is persisted between runs; a restart repeats the bootstrap.
type Observer struct {
	logger   *zap.Logger
	store    ChangeStore
	renderer Renderer
	watched  []string
	watchSet map[string]bool
}

func New(logger *zap.Logger, st ChangeStore, r Renderer, watched []string) *Observer {
	set := make(map[string]bool, len(watched))
	for _, sym := range watched {
		set[sym] = true
	}
	return &Observer{
		logger:   logger,
		store:    st,
		renderer: r,
		watched:  watched,
		watchSet: set,
	}
}

// Run drives the bootstrap and then pumps live events into the renderer
// until ctx is cancelled or the feed fails. A stream invalidation is fatal:
// the resume point is gone, so the only recovery is a fresh Run.
func (o *Observer) Run(ctx context.Context) error {
	// The resume point must exist before the snapshot reads anything, or a
	// change could slip between the two and be lost.
	token, err := o.store.ResumeToken(ctx)
	if err != nil {
		return fmt.Errorf("acquire resume point: %w", err)
	}
	o.logger.Info("Resume point acquired")

	recs, err := o.store.Snapshot(ctx, o.watched)
	if err != nil {
		return fmt.Errorf("initial sync: %w", err)
	}
	for i := range recs {
		ev := models.ChangeEvent{
			Op:     models.OpInitial,
			Symbol: recs[i].Symbol,
			Record: &recs[i],
			At:     time.Now(),
		}
		if err := o.renderer.Render(ev); err != nil {
			return fmt.Errorf("render initial state: %w", err)
		}
	}
	o.logger.Info("Initial sync complete", zap.Int("symbols", len(recs)))

	it, err := o.store.Subscribe(ctx, token, o.watched)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), streamCloseTimeout)
		defer cancel()
		if err := it.Close(closeCtx); err != nil {
			o.logger.Warn("Error closing change stream", zap.Error(err))
		}
	}()
	o.logger.Info("Following live changes", zap.Strings("watched", o.watched))

	for it.Next(ctx) {
		ev := it.Event()
		// The store already filters server-side; this guard keeps the
		// contract honest for stores that cannot.
		if !o.watchSet[ev.Symbol] {
			continue
		}
		if err := o.renderer.Render(ev); err != nil {
			return fmt.Errorf("render event: %w", err)
		}
	}

	if err := it.Err(); err != nil {
		if errors.Is(err, store.ErrStreamInvalidated) {
			return fmt.Errorf("live feed lost its place, restart to re-sync: %w", err)
		}
		return fmt.Errorf("live feed: %w", err)
	}
	o.logger.Info("Observer stopped")
	return nil
}
