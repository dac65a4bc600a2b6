package observer

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/stockwatch/stock-ticker/internal/store"
	"github.com/stockwatch/stock-ticker/pkg/models"
)

// ChangeStore is the slice of the store the observer reads through.
type ChangeStore interface {
	ResumeToken(ctx context.Context) (bson.Raw, error)
	Snapshot(ctx context.Context, symbols []string) ([]models.StockRecord, error)
	Subscribe(ctx context.Context, from bson.Raw, symbols []string) (ChangeIterator, error)
}

// ChangeIterator abstracts the live feed: a blocking, non-restartable walk
// over committed changes.
type ChangeIterator interface {
	Next(ctx context.Context) bool
	Event() models.ChangeEvent
	Err() error
	Close(ctx context.Context) error
}

// Renderer consumes the merged initial-sync and live event flow.
type Renderer interface {
	Render(ev models.ChangeEvent) error
}

// StoreAdapter narrows *store.Store's concrete iterator to our interface.
type StoreAdapter struct{ *store.Store }

func (a StoreAdapter) Subscribe(ctx context.Context, from bson.Raw, symbols []string) (ChangeIterator, error) {
	it, err := a.Store.Subscribe(ctx, from, symbols)
	if err != nil {
		return nil, err
	}
	return it, nil
}
