package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/stockwatch/stock-ticker/pkg/models"
)

// How long the resume-point probe waits for the server to report a
// post-batch token on an idle stream.
const resumeProbeTimeout = 5 * time.Second

// ResumeToken returns a marker for the current head of the oplog: a later
// Subscribe from this token sees exactly the changes that commit after this
// call. The probe stream exists only to harvest the token and is closed
// before returning.
func (s *Store) ResumeToken(ctx context.Context) (bson.Raw, error) {
	cs, err := s.coll.Watch(ctx, mongo.Pipeline{})
	if err != nil {
		return nil, fmt.Errorf("open probe stream: %w", mapStreamError(err))
	}
	defer cs.Close(context.Background())

	if cs.ResumeToken() == nil {
		// The server reports a post-batch token on the first getMore even
		// when no events arrive; TryNext forces that round trip without
		// blocking on actual changes.
		tryCtx, cancel := context.WithTimeout(ctx, resumeProbeTimeout)
		defer cancel()
		cs.TryNext(tryCtx)
		if err := cs.Err(); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("probe stream: %w", mapStreamError(err))
		}
	}

	tok := cs.ResumeToken()
	if tok == nil {
		return nil, errors.New("server reported no resume token")
	}
	// The token aliases the stream's response buffer; copy it so it outlives
	// the probe stream.
	out := make(bson.Raw, len(tok))
	copy(out, tok)
	return out, nil
}

// watchPipeline restricts the stream server-side to mutations of the given
// symbols, so everything else in the collection never crosses the wire.
func watchPipeline(symbols []string) mongo.Pipeline {
	ops := bson.A{
		string(models.OpInsert),
		string(models.OpUpdate),
		string(models.OpReplace),
		string(models.OpDelete),
	}
	return mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.D{
			{Key: "operationType", Value: bson.D{{Key: "$in", Value: ops}}},
			{Key: "documentKey._id", Value: bson.D{{Key: "$in", Value: toBsonA(symbols)}}},
		}}},
	}
}

// Subscribe opens a change stream over the given symbols starting strictly
// after the resume point. Updates carry the full post-image document via
// updateLookup.
func (s *Store) Subscribe(ctx context.Context, from bson.Raw, symbols []string) (*ChangeIterator, error) {
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
	if from != nil {
		opts.SetStartAfter(from)
	}
	cs, err := s.coll.Watch(ctx, watchPipeline(symbols), opts)
	if err != nil {
		return nil, fmt.Errorf("open change stream: %w", mapStreamError(err))
	}
	s.logger.Debug("Change stream opened", zap.Strings("symbols", symbols))
	return &ChangeIterator{cs: cs}, nil
}

// ChangeIterator walks a live change stream. Next blocks until an event
// arrives, the stream dies, or ctx is cancelled; once it returns false the
// iterator is finished for good.
type ChangeIterator struct {
	cs  *mongo.ChangeStream
	ev  models.ChangeEvent
	err error
}

// changeDocument is the slice of the change stream document we decode.
type changeDocument struct {
	OperationType string `bson:"operationType"`
	DocumentKey   struct {
		Symbol string `bson:"_id"`
	} `bson:"documentKey"`
	FullDocument *models.StockRecord `bson:"fullDocument"`
}

func (it *ChangeIterator) Next(ctx context.Context) bool {
	if it.err != nil {
		return false
	}
	for it.cs.Next(ctx) {
		var doc changeDocument
		if err := it.cs.Decode(&doc); err != nil {
			it.err = fmt.Errorf("decode change event: %w", err)
			return false
		}
		ev, ok := doc.toEvent()
		if !ok {
			continue
		}
		it.ev = ev
		return true
	}

	if err := it.cs.Err(); err != nil {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			it.err = mapStreamError(err)
		}
		return false
	}
	if ctx.Err() == nil {
		// The server ended a stream that should be endless: the cursor was
		// invalidated under us (for example by a collection drop).
		it.err = fmt.Errorf("stream closed by server: %w", ErrStreamInvalidated)
	}
	return false
}

// Event returns the event produced by the last successful Next.
func (it *ChangeIterator) Event() models.ChangeEvent { return it.ev }

// Err returns the terminal error, if any, once Next has returned false.
func (it *ChangeIterator) Err() error { return it.err }

func (it *ChangeIterator) Close(ctx context.Context) error {
	return it.cs.Close(ctx)
}

func (d changeDocument) toEvent() (models.ChangeEvent, bool) {
	op := models.OpKind(d.OperationType)
	switch op {
	case models.OpInsert, models.OpUpdate, models.OpReplace, models.OpDelete:
	default:
		return models.ChangeEvent{}, false
	}
	return models.ChangeEvent{
		Op:     op,
		Symbol: d.DocumentKey.Symbol,
		Record: d.FullDocument, // nil for deletes
		At:     time.Now(),
	}, true
}
