package mutator

import (
	"context"
	"math/rand"
	"time"

	"github.com/stockwatch/stock-ticker/pkg/models"
)

// for deterministic testing
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// for deterministic values
type Rand interface {
	Intn(n int) int
	Float64() float64
}

// RecordStore is the slice of the store the mutator writes through.
type RecordStore interface {
	RandomSymbol(ctx context.Context) (string, error)
	Insert(ctx context.Context, rec models.StockRecord) error
	UpdatePrice(ctx context.Context, symbol string, price float64) error
	Delete(ctx context.Context, symbol string) error
}

type RealClock struct{}

func (RealClock) Now() time.Time        { return time.Now() }
func (RealClock) Sleep(d time.Duration) { time.Sleep(d) }

type RealRand struct{ *rand.Rand }

func (r RealRand) Intn(n int) int   { return r.Rand.Intn(n) }
func (r RealRand) Float64() float64 { return r.Rand.Float64() }
