package render

import (
	"time"

	"github.com/stockwatch/stock-ticker/pkg/models"
)

// Renderer is a sink for change events. Close releases whatever terminal
// state the renderer holds and must run on every exit path, error paths
// included.
type Renderer interface {
	Render(ev models.ChangeEvent) error
	Close() error
}

// for deterministic testing
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }
