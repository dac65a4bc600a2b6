package testutils

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/stockwatch/stock-ticker/internal/observer"
	"github.com/stockwatch/stock-ticker/internal/store"
	"github.com/stockwatch/stock-ticker/pkg/models"
)

// MockStore is an in-memory stand-in for the Mongo-backed store. It
// implements the mutator, observer, and seeder store contracts and records
// every call so tests can assert ordering.
type MockStore struct {
	Mu      sync.Mutex
	Records map[string]float64
	Calls   []string

	// Forced failures, checked before the in-memory behavior.
	RandomErr    error
	InsertErr    error
	UpdateErr    error
	DeleteErr    error
	TokenErr     error
	SnapshotErr  error
	SubscribeErr error

	// Deployment shape for seeder tests.
	Mongos bool

	// Feed handed to iterators created by Subscribe.
	Token     bson.Raw
	Live      []models.ChangeEvent
	StreamErr error
	Block     bool

	// Spies.
	SubscribedFrom bson.Raw
	Iterators      []*MockChangeIterator
}

func NewMockStore() *MockStore {
	return &MockStore{Records: make(map[string]float64)}
}

func (m *MockStore) record(call string) {
	m.Calls = append(m.Calls, call)
}

// RandomSymbol returns the lexically smallest symbol so tests stay
// deterministic without a second rand source.
func (m *MockStore) RandomSymbol(ctx context.Context) (string, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.record("random_symbol")
	if m.RandomErr != nil {
		return "", m.RandomErr
	}
	if len(m.Records) == 0 {
		return "", store.ErrEmptyStore
	}
	syms := make([]string, 0, len(m.Records))
	for sym := range m.Records {
		syms = append(syms, sym)
	}
	sort.Strings(syms)
	return syms[0], nil
}

func (m *MockStore) Insert(ctx context.Context, rec models.StockRecord) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.record("insert " + rec.Symbol)
	if m.InsertErr != nil {
		return m.InsertErr
	}
	if _, exists := m.Records[rec.Symbol]; exists {
		return store.ErrDuplicateKey
	}
	m.Records[rec.Symbol] = rec.Price
	return nil
}

func (m *MockStore) UpdatePrice(ctx context.Context, symbol string, price float64) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.record("update " + symbol)
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	if _, exists := m.Records[symbol]; !exists {
		return store.ErrNotFound
	}
	m.Records[symbol] = price
	return nil
}

func (m *MockStore) Delete(ctx context.Context, symbol string) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.record("delete " + symbol)
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	if _, exists := m.Records[symbol]; !exists {
		return store.ErrNotFound
	}
	delete(m.Records, symbol)
	return nil
}

func (m *MockStore) ResumeToken(ctx context.Context) (bson.Raw, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.record("resume_token")
	if m.TokenErr != nil {
		return nil, m.TokenErr
	}
	if m.Token == nil {
		return bson.Raw("mock-token"), nil
	}
	return m.Token, nil
}

func (m *MockStore) Snapshot(ctx context.Context, symbols []string) ([]models.StockRecord, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.record("snapshot")
	if m.SnapshotErr != nil {
		return nil, m.SnapshotErr
	}
	sorted := append([]string(nil), symbols...)
	sort.Strings(sorted)
	var recs []models.StockRecord
	for _, sym := range sorted {
		if price, ok := m.Records[sym]; ok {
			recs = append(recs, models.StockRecord{Symbol: sym, Price: price})
		}
	}
	return recs, nil
}

func (m *MockStore) Subscribe(ctx context.Context, from bson.Raw, symbols []string) (observer.ChangeIterator, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.record("subscribe")
	if m.SubscribeErr != nil {
		return nil, m.SubscribeErr
	}
	m.SubscribedFrom = from
	it := &MockChangeIterator{
		Events:     append([]models.ChangeEvent(nil), m.Live...),
		FinalErr:   m.StreamErr,
		BlockAfter: m.Block,
	}
	m.Iterators = append(m.Iterators, it)
	return it, nil
}

func (m *MockStore) HasRecords(ctx context.Context) (bool, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.record("has_records")
	return len(m.Records) > 0, nil
}

func (m *MockStore) Count(ctx context.Context) (int64, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.record("count")
	return int64(len(m.Records)), nil
}

func (m *MockStore) InsertMany(ctx context.Context, recs []models.StockRecord) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.record(fmt.Sprintf("insert_many %d", len(recs)))
	if m.InsertErr != nil {
		return m.InsertErr
	}
	for _, rec := range recs {
		if _, exists := m.Records[rec.Symbol]; exists {
			return store.ErrDuplicateKey
		}
		m.Records[rec.Symbol] = rec.Price
	}
	return nil
}

func (m *MockStore) Drop(ctx context.Context) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.record("drop")
	m.Records = make(map[string]float64)
	return nil
}

func (m *MockStore) IsMongos(ctx context.Context) (bool, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.record("is_mongos")
	return m.Mongos, nil
}

func (m *MockStore) EnableSharding(ctx context.Context) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.record("enable_sharding")
	return nil
}

// MockChangeIterator replays scripted events, then either blocks until ctx
// is cancelled or finishes with FinalErr.
type MockChangeIterator struct {
	Events     []models.ChangeEvent
	FinalErr   error
	BlockAfter bool

	Closed bool

	idx int
	cur models.ChangeEvent
	err error
}

func (it *MockChangeIterator) Next(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	if it.idx < len(it.Events) {
		it.cur = it.Events[it.idx]
		it.idx++
		return true
	}
	if it.BlockAfter {
		<-ctx.Done()
		return false
	}
	it.err = it.FinalErr
	return false
}

func (it *MockChangeIterator) Event() models.ChangeEvent { return it.cur }

func (it *MockChangeIterator) Err() error { return it.err }

func (it *MockChangeIterator) Close(ctx context.Context) error {
	it.Closed = true
	return nil
}
