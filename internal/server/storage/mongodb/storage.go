package mongodb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/iudanet/changesync/internal/server/storage"
)

const (
	// DefaultDatabase имя базы по умолчанию
	DefaultDatabase = "changesync"

	recordsCollection = "records"
)

// ---- Abstractions for Testability ----

// recordCollection операции над коллекцией записей
type recordCollection interface {
	FindOne(ctx context.Context, filter bson.M) (*recordDocument, error)
	InsertOne(ctx context.Context, doc *recordDocument) error
	UpdateOne(ctx context.Context, filter, update bson.M) (int64, error)
}

// transactor выполняет fn в транзакции сессии
type transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Storage represents MongoDB storage implementation.
// Требует replica set: транзакции MongoDB недоступны на standalone.
type Storage struct {
	records recordCollection
	tx      transactor
	client  *mongo.Client
}

var _ storage.RecordStorage = (*Storage)(nil)

// New connects to MongoDB and returns a storage bound to database
func New(ctx context.Context, logger *slog.Logger, uri, database string) (*Storage, error) {
	if database == "" {
		database = DefaultDatabase
	}

	logger.DebugContext(ctx, "Connecting to MongoDB", slog.String("database", database))

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	logger.InfoContext(ctx, "Connected to MongoDB", slog.String("database", database))

	coll := client.Database(database).Collection(recordsCollection)
	return &Storage{
		records: &mongoCollection{coll: coll},
		tx:      &sessionTransactor{client: client},
		client:  client,
	}, nil
}

// Ping проверяет доступность primary
func (s *Storage) Ping(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		if errors.Is(err, mongo.ErrClientDisconnected) {
			return storage.ErrStoreClosed
		}
		return fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return nil
}

// Close disconnects the client
func (s *Storage) Close() error {
	if s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// mongoCollection adapts *mongo.Collection to recordCollection
type mongoCollection struct {
	coll *mongo.Collection
}

func (c *mongoCollection) FindOne(ctx context.Context, filter bson.M) (*recordDocument, error) {
	doc := &recordDocument{}
	if err := c.coll.FindOne(ctx, filter).Decode(doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, storage.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to perform FindOne: %w", err)
	}
	return doc, nil
}

func (c *mongoCollection) InsertOne(ctx context.Context, doc *recordDocument) error {
	if _, err := c.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return storage.ErrRevisionMismatch
		}
		return fmt.Errorf("failed to perform InsertOne: %w", err)
	}
	return nil
}

func (c *mongoCollection) UpdateOne(ctx context.Context, filter, update bson.M) (int64, error) {
	res, err := c.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("failed to perform UpdateOne: %w", err)
	}
	return res.MatchedCount, nil
}

// sessionTransactor выполняет fn в транзакции сессии клиента
type sessionTransactor struct {
	client *mongo.Client
}

func (t *sessionTransactor) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := t.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	// WithTransaction может повторить fn при TransientTransactionError
	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return nil, fn(sc)
	})
	return err
}
