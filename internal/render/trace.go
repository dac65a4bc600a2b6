package render

import (
	"io"
	"time"

	"github.com/juju/ansiterm"

	"github.com/stockwatch/stock-ticker/pkg/models"
)

// opColors picks the trace line color per operation kind. ansiterm only
// emits the escape codes when the writer is a real terminal.
var opColors = map[models.OpKind]*ansiterm.Context{
	models.OpInitial: ansiterm.Foreground(ansiterm.Gray),
	models.OpInsert:  ansiterm.Foreground(ansiterm.Green),
	models.OpUpdate:  ansiterm.Foreground(ansiterm.Default),
	models.OpReplace: ansiterm.Foreground(ansiterm.Default),
	models.OpDelete:  ansiterm.Foreground(ansiterm.BrightRed),
}

// Trace prints one line per event, append-only. It keeps no state between
// events, which makes it safe to pipe or redirect.
type Trace struct {
	w *ansiterm.Writer
}

func NewTrace(w io.Writer) *Trace {
	return &Trace{w: ansiterm.NewWriter(w)}
}

func (t *Trace) Render(ev models.ChangeEvent) error {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	cc := opColors[ev.Op]
	if cc == nil {
		cc = opColors[models.OpUpdate]
	}

	price := "-"
	if ev.Record != nil {
		price = formatPrice(ev.Record.Price)
	}
	cc.Fprintf(t.w, "%s  %-7s %-8s price: %8s\n",
		at.Format("15:04:05.000"), ev.Symbol, string(ev.Op), price)
	return nil
}

func (t *Trace) Close() error { return nil }
