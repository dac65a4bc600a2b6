package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/stockwatch/stock-ticker/pkg/config"
	"github.com/stockwatch/stock-ticker/pkg/models"
)

// Store adapts one MongoDB collection as a keyed set of stock records with
// a change-stream subscription primitive. It is the only shared state
// between the mutate and observe processes.
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
	logger *zap.Logger
}

// Connect dials MongoDB and verifies the primary is reachable before
// handing out a Store.
func Connect(ctx context.Context, cfg config.MongoConfig, logger *zap.Logger) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	logger.Debug("Connected to MongoDB",
		zap.String("database", cfg.Database),
		zap.String("collection", cfg.Collection))

	return &Store{
		client: client,
		coll:   client.Database(cfg.Database).Collection(cfg.Collection),
		logger: logger,
	}, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// RandomSymbol returns the _id of a uniformly sampled record, or
// ErrEmptyStore when the collection has no documents.
func (s *Store) RandomSymbol(ctx context.Context) (string, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$sample", Value: bson.D{{Key: "size", Value: 1}}}},
		bson.D{{Key: "$project", Value: bson.D{{Key: "_id", Value: 1}}}},
	}
	cur, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return "", fmt.Errorf("sample symbol: %w", err)
	}
	defer cur.Close(ctx)

	if !cur.Next(ctx) {
		if err := cur.Err(); err != nil {
			return "", fmt.Errorf("sample symbol: %w", err)
		}
		return "", ErrEmptyStore
	}
	var doc struct {
		Symbol string `bson:"_id"`
	}
	if err := cur.Decode(&doc); err != nil {
		return "", fmt.Errorf("decode sampled symbol: %w", err)
	}
	return doc.Symbol, nil
}

// Insert creates a new record. A symbol collision maps to ErrDuplicateKey.
func (s *Store) Insert(ctx context.Context, rec models.StockRecord) error {
	if _, err := s.coll.InsertOne(ctx, rec); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("insert %s: %w", rec.Symbol, ErrDuplicateKey)
		}
		return fmt.Errorf("insert %s: %w", rec.Symbol, err)
	}
	return nil
}

// UpdatePrice sets the price of an existing record. A missing symbol maps
// to ErrNotFound.
func (s *Store) UpdatePrice(ctx context.Context, symbol string, price float64) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: symbol}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "price", Value: price}}}})
	if err != nil {
		return fmt.Errorf("update %s: %w", symbol, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("update %s: %w", symbol, ErrNotFound)
	}
	return nil
}

// Delete removes a record. A missing symbol maps to ErrNotFound.
func (s *Store) Delete(ctx context.Context, symbol string) error {
	res, err := s.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: symbol}})
	if err != nil {
		return fmt.Errorf("delete %s: %w", symbol, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("delete %s: %w", symbol, ErrNotFound)
	}
	return nil
}

// Snapshot reads the current state of the given symbols. Symbols with no
// record are simply absent from the result.
func (s *Store) Snapshot(ctx context.Context, symbols []string) ([]models.StockRecord, error) {
	filter := bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: toBsonA(symbols)}}}}
	cur, err := s.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	var recs []models.StockRecord
	if err := cur.All(ctx, &recs); err != nil {
		return nil, fmt.Errorf("snapshot decode: %w", err)
	}
	return recs, nil
}

// HasRecords reports whether the collection holds at least one document.
func (s *Store) HasRecords(ctx context.Context) (bool, error) {
	err := s.coll.FindOne(ctx, bson.D{}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("probe collection: %w", err)
	}
	return true, nil
}

// Count returns the number of documents in the collection.
func (s *Store) Count(ctx context.Context) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

// InsertMany bulk-inserts a batch of records.
func (s *Store) InsertMany(ctx context.Context, recs []models.StockRecord) error {
	docs := make([]interface{}, len(recs))
	for i, rec := range recs {
		docs[i] = rec
	}
	if _, err := s.coll.InsertMany(ctx, docs); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("insert batch: %w", ErrDuplicateKey)
		}
		return fmt.Errorf("insert batch: %w", err)
	}
	return nil
}

// Drop removes the whole collection. Live change streams on it are
// invalidated by the server.
func (s *Store) Drop(ctx context.Context) error {
	if err := s.coll.Drop(ctx); err != nil {
		return fmt.Errorf("drop collection: %w", err)
	}
	return nil
}

// IsMongos reports whether we are talking to a mongos router, in which
// case the collection should be sharded before it is seeded.
func (s *Store) IsMongos(ctx context.Context) (bool, error) {
	var status struct {
		Process string `bson:"process"`
	}
	res := s.client.Database("admin").RunCommand(ctx, bson.D{{Key: "serverStatus", Value: 1}})
	if err := res.Err(); err != nil {
		return false, fmt.Errorf("serverStatus: %w", err)
	}
	if err := res.Decode(&status); err != nil {
		return false, fmt.Errorf("decode serverStatus: %w", err)
	}
	return status.Process == "mongos", nil
}

// EnableSharding shards the collection on _id so the seeded population
// spreads across shards.
func (s *Store) EnableSharding(ctx context.Context) error {
	admin := s.client.Database("admin")
	db := s.coll.Database().Name()

	if err := admin.RunCommand(ctx, bson.D{{Key: "enableSharding", Value: db}}).Err(); err != nil {
		return fmt.Errorf("enableSharding %s: %w", db, err)
	}

	ns := db + "." + s.coll.Name()
	cmd := bson.D{
		{Key: "shardCollection", Value: ns},
		{Key: "key", Value: bson.D{{Key: "_id", Value: 1}}},
	}
	if err := admin.RunCommand(ctx, cmd).Err(); err != nil {
		return fmt.Errorf("shardCollection %s: %w", ns, err)
	}
	return nil
}

func toBsonA(symbols []string) bson.A {
	vals := make(bson.A, len(symbols))
	for i, sym := range symbols {
		vals[i] = sym
	}
	return vals
}
