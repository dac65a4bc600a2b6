package observer_test

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/stockwatch/stock-ticker/internal/observer"
	"github.com/stockwatch/stock-ticker/internal/store"
	"github.com/stockwatch/stock-ticker/internal/testutils"
	"github.com/stockwatch/stock-ticker/pkg/models"
)

var watched = []string{"MDB", "ORCL", "GOOGL"}

func TestObserver_BootstrapOrder(t *testing.T) {
	st := testutils.NewMockStore()
	st.Records["MDB"] = 100.0
	st.Records["ORCL"] = 50.0
	st.Records["K10000"] = 12.0 // background noise, not watched

	r := &testutils.MockRenderer{}
	obs := observer.New(zap.NewNop(), st, r, watched)

	if err := obs.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	st.Mu.Lock()
	defer st.Mu.Unlock()

	// The resume point must be pinned before the snapshot reads anything,
	// and the live subscription starts only after the snapshot is rendered.
	want := []string{"resume_token", "snapshot", "subscribe"}
	if !reflect.DeepEqual(st.Calls, want) {
		t.Fatalf("Expected bootstrap order %v, got %v", want, st.Calls)
	}

	r.Mu.Lock()
	defer r.Mu.Unlock()
	if len(r.Events) != 2 {
		t.Fatalf("Expected 2 initial events, got %v", r.Events)
	}
	for _, ev := range r.Events {
		if ev.Op != models.OpInitial {
			t.Errorf("Expected initial op, got %s", ev.Op)
		}
		if ev.Record == nil {
			t.Error("Initial event must carry the record")
		}
	}
	if r.Events[0].Symbol != "MDB" && r.Events[1].Symbol != "MDB" {
		t.Errorf("Expected MDB in initial sync, got %v", r.Events)
	}
}

func TestObserver_ForwardsAndFiltersLiveEvents(t *testing.T) {
	st := testutils.NewMockStore()
	st.Records["MDB"] = 100.0
	st.Records["ORCL"] = 50.0
	st.Live = []models.ChangeEvent{
		{Op: models.OpUpdate, Symbol: "MDB", Record: &models.StockRecord{Symbol: "MDB", Price: 101.0}},
		{Op: models.OpUpdate, Symbol: "K10000", Record: &models.StockRecord{Symbol: "K10000", Price: 13.0}},
		{Op: models.OpDelete, Symbol: "ORCL"},
	}

	r := &testutils.MockRenderer{}
	obs := observer.New(zap.NewNop(), st, r, watched)

	if err := obs.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	got := r.Symbols()
	// Two initials (sorted), then the watched live events with the
	// background update filtered out.
	want := []string{"MDB", "ORCL", "MDB", "ORCL"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Expected rendered symbols %v, got %v", want, got)
	}

	r.Mu.Lock()
	defer r.Mu.Unlock()
	if r.Events[2].Op != models.OpUpdate || r.Events[2].Record.Price != 101.0 {
		t.Errorf("Expected live MDB update at 101.0, got %+v", r.Events[2])
	}
	if r.Events[3].Op != models.OpDelete || r.Events[3].Record != nil {
		t.Errorf("Expected ORCL delete with no record, got %+v", r.Events[3])
	}
}

func TestObserver_SubscribesFromAcquiredToken(t *testing.T) {
	st := testutils.NewMockStore()
	st.Token = bson.Raw("tok-42")

	r := &testutils.MockRenderer{}
	obs := observer.New(zap.NewNop(), st, r, watched)

	if err := obs.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	st.Mu.Lock()
	defer st.Mu.Unlock()
	if string(st.SubscribedFrom) != "tok-42" {
		t.Errorf("Expected subscription from the acquired token, got %q", st.SubscribedFrom)
	}
}

func TestObserver_ResumeTokenFailureStopsBootstrap(t *testing.T) {
	st := testutils.NewMockStore()
	st.TokenErr = errors.New("no primary available")

	r := &testutils.MockRenderer{}
	obs := observer.New(zap.NewNop(), st, r, watched)

	err := obs.Run(context.Background())
	if err == nil {
		t.Fatal("Expected an error when the resume point cannot be acquired")
	}

	st.Mu.Lock()
	defer st.Mu.Unlock()
	if len(st.Calls) != 1 || st.Calls[0] != "resume_token" {
		t.Errorf("Expected nothing past the token acquisition, got %v", st.Calls)
	}
}

func TestObserver_StreamInvalidationIsFatal(t *testing.T) {
	st := testutils.NewMockStore()
	st.Records["MDB"] = 100.0
	st.StreamErr = store.ErrStreamInvalidated

	r := &testutils.MockRenderer{}
	obs := observer.New(zap.NewNop(), st, r, watched)

	err := obs.Run(context.Background())
	if !errors.Is(err, store.ErrStreamInvalidated) {
		t.Fatalf("Expected stream invalidation to be fatal, got %v", err)
	}
}

func TestObserver_RenderFailureIsFatal(t *testing.T) {
	st := testutils.NewMockStore()
	st.Records["MDB"] = 100.0

	r := &testutils.MockRenderer{RenderErr: errors.New("stdout gone")}
	obs := observer.New(zap.NewNop(), st, r, watched)

	if err := obs.Run(context.Background()); err == nil {
		t.Fatal("Expected a render failure to stop the observer")
	}
}

func TestObserver_CancelStopsAndClosesStream(t *testing.T) {
	st := testutils.NewMockStore()
	st.Records["MDB"] = 100.0
	st.Block = true // live feed stays open until cancelled

	r := &testutils.MockRenderer{}
	obs := observer.New(zap.NewNop(), st, r, watched)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	if err := obs.Run(ctx); err != nil {
		t.Fatalf("Expected clean shutdown on cancel, got %v", err)
	}

	st.Mu.Lock()
	defer st.Mu.Unlock()
	if len(st.Iterators) != 1 || !st.Iterators[0].Closed {
		t.Error("Expected the live iterator to be closed on shutdown")
	}
}
