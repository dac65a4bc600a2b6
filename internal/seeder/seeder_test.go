package seeder_test

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/stockwatch/stock-ticker/internal/seeder"
	"github.com/stockwatch/stock-ticker/internal/testutils"
	"github.com/stockwatch/stock-ticker/pkg/config"
)

var watched = []string{"MDB", "ORCL", "GOOGL"}

func newSeeder(st *testutils.MockStore) *seeder.Seeder {
	cfg := config.PopulateConfig{BackgroundCount: 40, BatchSize: 8}
	return seeder.New(zap.NewNop(), st, watched, cfg, &testutils.MockRand{ValFloat: 0.5})
}

func TestSeeder_PopulateSeedsBackgroundAndWatched(t *testing.T) {
	st := testutils.NewMockStore()

	if err := newSeeder(st).Populate(context.Background()); err != nil {
		t.Fatalf("Populate returned error: %v", err)
	}

	st.Mu.Lock()
	defer st.Mu.Unlock()

	if len(st.Records) != 40+len(watched) {
		t.Fatalf("Expected %d records, got %d", 40+len(watched), len(st.Records))
	}

	// Background symbols are prefix + numeric suffix, spread evenly.
	for _, sym := range []string{"A10000", "K10000", "S10009", "Z10009"} {
		price, ok := st.Records[sym]
		if !ok {
			t.Fatalf("Expected background symbol %s to exist", sym)
		}
		if price < 10.0 || price > 20.0 {
			t.Errorf("Expected %s in the 10-20 band, got %f", sym, price)
		}
	}

	// Watched symbols ride their own bands: MDB high, the rest wide.
	if st.Records["MDB"] != 95.0 {
		t.Errorf("Expected MDB seeded at 95.0 for a 0.5 draw, got %f", st.Records["MDB"])
	}
	if st.Records["ORCL"] != 55.0 {
		t.Errorf("Expected ORCL seeded at 55.0 for a 0.5 draw, got %f", st.Records["ORCL"])
	}
}

func TestSeeder_PopulateBatchesInserts(t *testing.T) {
	st := testutils.NewMockStore()

	if err := newSeeder(st).Populate(context.Background()); err != nil {
		t.Fatalf("Populate returned error: %v", err)
	}

	st.Mu.Lock()
	defer st.Mu.Unlock()

	batches := 0
	for _, call := range st.Calls {
		if strings.HasPrefix(call, "insert_many") {
			batches++
		}
	}
	// 40 background records in batches of 8, plus one watched batch.
	if batches != 6 {
		t.Errorf("Expected 6 insert batches, got %d (%v)", batches, st.Calls)
	}
}

func TestSeeder_PopulateLeavesExistingDataAlone(t *testing.T) {
	st := testutils.NewMockStore()
	st.Records["AAA"] = 12.0

	if err := newSeeder(st).Populate(context.Background()); err != nil {
		t.Fatalf("Populate returned error: %v", err)
	}

	st.Mu.Lock()
	defer st.Mu.Unlock()

	if len(st.Records) != 1 {
		t.Fatalf("Expected the existing record to be untouched, got %d records", len(st.Records))
	}
	for _, call := range st.Calls {
		if strings.HasPrefix(call, "insert_many") {
			t.Fatalf("Expected no inserts into a populated collection, got %v", st.Calls)
		}
	}
}

func TestSeeder_PopulateShardsOnMongos(t *testing.T) {
	st := testutils.NewMockStore()
	st.Mongos = true

	if err := newSeeder(st).Populate(context.Background()); err != nil {
		t.Fatalf("Populate returned error: %v", err)
	}

	st.Mu.Lock()
	defer st.Mu.Unlock()

	shardIdx, insertIdx := -1, -1
	for i, call := range st.Calls {
		if call == "enable_sharding" && shardIdx < 0 {
			shardIdx = i
		}
		if strings.HasPrefix(call, "insert_many") && insertIdx < 0 {
			insertIdx = i
		}
	}
	if shardIdx < 0 {
		t.Fatal("Expected the collection to be sharded on a mongos")
	}
	if insertIdx >= 0 && shardIdx > insertIdx {
		t.Error("Expected sharding to happen before any insert")
	}
}

func TestSeeder_PopulateSkipsShardingOnReplicaSet(t *testing.T) {
	st := testutils.NewMockStore()

	if err := newSeeder(st).Populate(context.Background()); err != nil {
		t.Fatalf("Populate returned error: %v", err)
	}

	st.Mu.Lock()
	defer st.Mu.Unlock()
	for _, call := range st.Calls {
		if call == "enable_sharding" {
			t.Fatal("Expected no sharding against a plain replica set")
		}
	}
}

func TestSeeder_ResetDropsCollection(t *testing.T) {
	st := testutils.NewMockStore()
	st.Records["AAA"] = 12.0
	st.Records["MDB"] = 95.0

	if err := newSeeder(st).Reset(context.Background()); err != nil {
		t.Fatalf("Reset returned error: %v", err)
	}

	st.Mu.Lock()
	defer st.Mu.Unlock()
	if len(st.Records) != 0 {
		t.Errorf("Expected an empty store after reset, got %v", st.Records)
	}
	if len(st.Calls) != 1 || st.Calls[0] != "drop" {
		t.Errorf("Expected a single drop call, got %v", st.Calls)
	}
}
