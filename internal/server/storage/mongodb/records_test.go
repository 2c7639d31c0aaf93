package mongodb

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/iudanet/changesync/internal/models"
	"github.com/iudanet/changesync/internal/server/storage"
)

// fakeCollection in-memory коллекция с семантикой _id и фильтра по rev
type fakeCollection struct {
	docs map[string]recordDocument
	mu   sync.Mutex
}

func newFakeCollection() *fakeCollection {
	return &fakeCollection{docs: make(map[string]recordDocument)}
}

func (c *fakeCollection) FindOne(_ context.Context, filter bson.M) (*recordDocument, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	doc, ok := c.docs[filter["_id"].(string)]
	if !ok {
		return nil, storage.ErrRecordNotFound
	}
	return &doc, nil
}

func (c *fakeCollection) InsertOne(_ context.Context, doc *recordDocument) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.docs[doc.DocID]; ok {
		return storage.ErrRevisionMismatch
	}
	c.docs[doc.DocID] = *doc
	return nil
}

func (c *fakeCollection) UpdateOne(_ context.Context, filter, update bson.M) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	doc, ok := c.docs[filter["_id"].(string)]
	if !ok || doc.Rev != filter["rev"].(int64) {
		return 0, nil
	}

	set := update["$set"].(bson.M)
	doc.Rev = set["rev"].(int64)
	doc.Checksum = set["checksum"].(string)
	doc.UpdatedBy = set["updatedBy"].(string)
	doc.Data = set["data"].(string)
	doc.UpdatedAt = set["updatedAt"].(time.Time)
	doc.DeletedAt = set["deletedAt"].(*time.Time)
	c.docs[doc.DocID] = doc
	return 1, nil
}

// fakeTransactor копирует коллекцию и восстанавливает ее при ошибке fn
type fakeTransactor struct {
	coll *fakeCollection
}

func (t *fakeTransactor) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	t.coll.mu.Lock()
	snapshot := make(map[string]recordDocument, len(t.coll.docs))
	for k, v := range t.coll.docs {
		snapshot[k] = v
	}
	t.coll.mu.Unlock()

	if err := fn(ctx); err != nil {
		t.coll.mu.Lock()
		t.coll.docs = snapshot
		t.coll.mu.Unlock()
		return err
	}
	return nil
}

func setupTestStorage() (*Storage, *fakeCollection) {
	coll := newFakeCollection()
	return &Storage{records: coll, tx: &fakeTransactor{coll: coll}}, coll
}

func newTestRecord(id string, rev uint64) *models.Record {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return &models.Record{
		Kind:      models.EntityProduct,
		ID:        id,
		Rev:       rev,
		Checksum:  "sum",
		UpdatedBy: "local",
		Data:      json.RawMessage(`{"id":"` + id + `"}`),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func upsert(s *Storage, rec *models.Record, expectedRev uint64) error {
	return s.WithinTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		return tx.Upsert(ctx, rec, expectedRev)
	})
}

func TestStorage_UpsertAndGet(t *testing.T) {
	ctx := context.Background()
	s, coll := setupTestStorage()

	rec := newTestRecord("p1", 1)
	require.NoError(t, upsert(s, rec, 0))

	// _id составной, чтобы одинаковые id разных типов не пересекались
	assert.Contains(t, coll.docs, "product:p1")

	got, err := s.GetRecord(ctx, models.EntityProduct, "p1")
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	_, err = s.GetRecord(ctx, models.EntityCategory, "p1")
	assert.ErrorIs(t, err, storage.ErrRecordNotFound)
}

func TestStorage_CompareAndSwap(t *testing.T) {
	ctx := context.Background()
	s, _ := setupTestStorage()

	require.NoError(t, upsert(s, newTestRecord("p1", 1), 0))

	assert.ErrorIs(t, upsert(s, newTestRecord("p1", 2), 0), storage.ErrRevisionMismatch)
	assert.ErrorIs(t, upsert(s, newTestRecord("p1", 3), 2), storage.ErrRevisionMismatch)
	assert.ErrorIs(t, upsert(s, newTestRecord("p1", 1), 1), storage.ErrInvalidRecord)

	deletedAt := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	tomb := newTestRecord("p1", 2)
	tomb.DeletedAt = &deletedAt
	require.NoError(t, upsert(s, tomb, 1))

	got, err := s.GetRecord(ctx, models.EntityProduct, "p1")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), got.Rev)
	require.True(t, got.IsDeleted())
	assert.True(t, got.DeletedAt.Equal(deletedAt))
}

func TestStorage_WithinTx_Rollback(t *testing.T) {
	ctx := context.Background()
	s, _ := setupTestStorage()

	errBoom := errors.New("boom")
	err := s.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		require.NoError(t, tx.Upsert(ctx, newTestRecord("p1", 1), 0))
		return errBoom
	})
	assert.ErrorIs(t, err, errBoom)

	_, err = s.GetRecord(ctx, models.EntityProduct, "p1")
	assert.ErrorIs(t, err, storage.ErrRecordNotFound)
}

func TestDocumentRoundTrip(t *testing.T) {
	rec := newTestRecord("p1", 7)
	deletedAt := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	rec.DeletedAt = &deletedAt

	doc := toDocument(rec)
	assert.Equal(t, "product:p1", doc.DocID)
	assert.Equal(t, int64(7), doc.Rev)
	assert.Equal(t, rec, doc.toRecord())
}

func TestStorage_PingWithoutClient(t *testing.T) {
	s, _ := setupTestStorage()
	assert.NoError(t, s.Ping(context.Background()))
	assert.NoError(t, s.Close())
}
