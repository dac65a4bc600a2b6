package testutils

import (
	"sync"
	"time"

	"github.com/stockwatch/stock-ticker/pkg/models"
)

// MockClock advances instantly on Sleep. When MaxSleeps is set, OnLimit
// fires inside the Sleep that reaches it, which lets a test cancel a run
// loop after an exact number of ticks.
type MockClock struct {
	CurrentTime time.Time
	Slept       []time.Duration
	MaxSleeps   int
	OnLimit     func()
}

func (m *MockClock) Now() time.Time { return m.CurrentTime }

func (m *MockClock) Sleep(d time.Duration) {
	m.CurrentTime = m.CurrentTime.Add(d)
	m.Slept = append(m.Slept, d)
	if m.MaxSleeps > 0 && len(m.Slept) >= m.MaxSleeps && m.OnLimit != nil {
		m.OnLimit()
	}
}

// MockRand returns scripted values while the script lasts, then the fixed
// fallbacks. Intn results are reduced mod n so scripts cannot overflow a
// small range.
type MockRand struct {
	ValInt      int
	ValFloat    float64
	IntScript   []int
	FloatScript []float64

	intIdx   int
	floatIdx int
}

func (m *MockRand) Intn(n int) int {
	if m.intIdx < len(m.IntScript) {
		v := m.IntScript[m.intIdx]
		m.intIdx++
		return v % n
	}
	return m.ValInt % n
}

func (m *MockRand) Float64() float64 {
	if m.floatIdx < len(m.FloatScript) {
		v := m.FloatScript[m.floatIdx]
		m.floatIdx++
		return v
	}
	return m.ValFloat
}

// MockRenderer collects rendered events.
type MockRenderer struct {
	Mu        sync.Mutex
	Events    []models.ChangeEvent
	RenderErr error
	Closed    bool
}

func (m *MockRenderer) Render(ev models.ChangeEvent) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.RenderErr != nil {
		return m.RenderErr
	}
	m.Events = append(m.Events, ev)
	return nil
}

func (m *MockRenderer) Close() error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Closed = true
	return nil
}

// Symbols returns the rendered symbols in order.
func (m *MockRenderer) Symbols() []string {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	syms := make([]string, len(m.Events))
	for i, ev := range m.Events {
		syms[i] = ev.Symbol
	}
	return syms
}
