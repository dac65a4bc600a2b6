package render

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/olekukonko/tablewriter"

	"github.com/stockwatch/stock-ticker/pkg/models"
)

// Terminal control sequences for the in-place redraw.
const (
	hideCursor  = "\x1b[?25l"
	showCursor  = "\x1b[?25h"
	clearScreen = "\x1b[2J"
	cursorHome  = "\x1b[H"
	clearBelow  = "\x1b[J"
)

const eventBuffer = 64

// cell is the table's memory of one symbol.
type cell struct {
	price   float64
	seen    bool // a price has arrived at least once
	deleted bool
	changed time.Time // drives the highlight window
}

// grid holds the cell state and formats frames. It is free of goroutines
// and tickers so the highlight window is testable with a fixed clock.
type grid struct {
	symbols      []string // fixed row order
	cells        map[string]*cell
	highlightTTL time.Duration
	color        bool
}

func newGrid(symbols []string, highlightTTL time.Duration, color bool) *grid {
	return &grid{
		symbols:      symbols,
		cells:        make(map[string]*cell, len(symbols)),
		highlightTTL: highlightTTL,
		color:        color,
	}
}

// Apply folds one event into the grid and stamps the cell's freshness.
func (g *grid) Apply(ev models.ChangeEvent, now time.Time) {
	c := g.cells[ev.Symbol]
	if c == nil {
		c = &cell{}
		g.cells[ev.Symbol] = c
	}
	switch ev.Op {
	case models.OpDelete:
		c.deleted = true
	default:
		if ev.Record != nil {
			c.price = ev.Record.Price
			c.seen = true
			c.deleted = false
		}
	}
	c.changed = now
}

// Frame renders the whole table once. Row order never depends on event
// order, so prices move without rows jumping around.
func (g *grid) Frame(now time.Time) []byte {
	var buf bytes.Buffer
	tw := tablewriter.NewWriter(&buf)
	tw.SetHeader([]string{"SYMBOL", "COMPANY", "PRICE", "LAST CHANGE"})
	tw.SetAutoFormatHeaders(false)
	tw.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT,
	})
	for _, sym := range g.symbols {
		row, colors := g.row(sym, now)
		if g.color {
			tw.Rich(row, colors)
		} else {
			tw.Append(row)
		}
	}
	tw.Render()
	return buf.Bytes()
}

func (g *grid) row(sym string, now time.Time) ([]string, []tablewriter.Colors) {
	price, last := "-", "-"
	c := g.cells[sym]
	if c != nil {
		switch {
		case c.deleted:
			price = "(deleted)"
		case c.seen:
			price = formatPrice(c.price)
		}
		if !c.changed.IsZero() {
			last = c.changed.Format("15:04:05")
		}
	}
	row := []string{sym, models.CompanyName(sym), price, last}

	colors := make([]tablewriter.Colors, len(row))
	if c != nil && !c.changed.IsZero() && now.Sub(c.changed) < g.highlightTTL {
		hl := tablewriter.Colors{tablewriter.Bold, tablewriter.FgHiYellowColor}
		if c.deleted {
			hl = tablewriter.Colors{tablewriter.Bold, tablewriter.FgHiRedColor}
		}
		for i := range colors {
			colors[i] = hl
		}
	}
	return row, colors
}

// Table maintains an in-place console grid of the watched symbols. Events
// and the redraw tick are serialized onto one goroutine that owns the cell
// state; Render only posts to its channel. The periodic redraw is what
// fades highlights when no events arrive.
type Table struct {
	w     io.Writer
	tty   bool
	grid  *grid
	clock Clock

	redrawEvery time.Duration
	events      chan models.ChangeEvent
	done        chan struct{}
	stopped     chan struct{}
	closeOnce   sync.Once
}

func NewTable(w io.Writer, symbols []string, highlightTTL, redrawEvery time.Duration) *Table {
	return newTable(w, symbols, highlightTTL, redrawEvery, RealClock{})
}

func newTable(w io.Writer, symbols []string, highlightTTL, redrawEvery time.Duration, clock Clock) *Table {
	tty := false
	if f, ok := w.(*os.File); ok {
		tty = isatty.IsTerminal(f.Fd())
	}
	t := &Table{
		w:           w,
		tty:         tty,
		grid:        newGrid(symbols, highlightTTL, tty),
		clock:       clock,
		redrawEvery: redrawEvery,
		events:      make(chan models.ChangeEvent, eventBuffer),
		done:        make(chan struct{}),
		stopped:     make(chan struct{}),
	}
	if t.tty {
		fmt.Fprint(t.w, hideCursor+clearScreen)
	}
	go t.loop()
	return t
}

func (t *Table) Render(ev models.ChangeEvent) error {
	// Checked first: with buffer left in events, the combined select below
	// could still accept an event after Close.
	select {
	case <-t.done:
		return errors.New("table renderer closed")
	default:
	}
	select {
	case t.events <- ev:
		return nil
	case <-t.done:
		return errors.New("table renderer closed")
	}
}

// Close stops the redraw loop and hands the terminal back. Safe to call
// more than once.
func (t *Table) Close() error {
	t.closeOnce.Do(func() {
		close(t.done)
		<-t.stopped
		if t.tty {
			fmt.Fprint(t.w, showCursor)
		}
	})
	return nil
}

func (t *Table) loop() {
	defer close(t.stopped)
	ticker := time.NewTicker(t.redrawEvery)
	defer ticker.Stop()

	t.draw()
	for {
		select {
		case ev := <-t.events:
			t.grid.Apply(ev, t.clock.Now())
			t.draw()
		case <-ticker.C:
			t.draw()
		case <-t.done:
			return
		}
	}
}

func (t *Table) draw() {
	frame := t.grid.Frame(t.clock.Now())
	if t.tty {
		fmt.Fprint(t.w, cursorHome)
		t.w.Write(frame)
		fmt.Fprint(t.w, clearBelow)
		return
	}
	t.w.Write(frame)
}

func formatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', 2, 64)
}
