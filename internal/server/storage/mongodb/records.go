package mongodb

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/iudanet/changesync/internal/models"
	"github.com/iudanet/changesync/internal/server/storage"
)

// recordDocument представление записи в MongoDB.
// _id составной: kind:id.
type recordDocument struct {
	CreatedAt time.Time  `bson:"createdAt"`
	UpdatedAt time.Time  `bson:"updatedAt"`
	DeletedAt *time.Time `bson:"deletedAt,omitempty"`
	DocID     string     `bson:"_id"`
	Kind      string     `bson:"kind"`
	ID        string     `bson:"id"`
	Checksum  string     `bson:"checksum"`
	UpdatedBy string     `bson:"updatedBy"`
	Data      string     `bson:"data"` // канонический JSON без изменений
	Rev       int64      `bson:"rev"`
}

func docID(kind models.EntityKind, id string) string {
	return string(kind) + ":" + id
}

func toDocument(rec *models.Record) *recordDocument {
	return &recordDocument{
		DocID:     docID(rec.Kind, rec.ID),
		Kind:      string(rec.Kind),
		ID:        rec.ID,
		Rev:       int64(rec.Rev),
		Checksum:  rec.Checksum,
		UpdatedBy: rec.UpdatedBy,
		Data:      string(rec.Data),
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
		DeletedAt: rec.DeletedAt,
	}
}

func (d *recordDocument) toRecord() *models.Record {
	rec := &models.Record{
		Kind:      models.EntityKind(d.Kind),
		ID:        d.ID,
		Rev:       uint64(d.Rev),
		Checksum:  d.Checksum,
		UpdatedBy: d.UpdatedBy,
		Data:      json.RawMessage(d.Data),
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
	if d.DeletedAt != nil {
		t := d.DeletedAt.UTC()
		rec.DeletedAt = &t
	}
	return rec
}

// WithinTx выполняет fn в транзакции сессии MongoDB
func (s *Storage) WithinTx(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error {
	return s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		return fn(ctx, &recordTx{records: s.records})
	})
}

// GetRecord retrieves a record outside of a transaction
// Returns ErrRecordNotFound if the record does not exist
func (s *Storage) GetRecord(ctx context.Context, kind models.EntityKind, id string) (*models.Record, error) {
	return findRecord(ctx, s.records, kind, id)
}

// recordTx реализует storage.Tx. Контекст сессии передается через ctx.
type recordTx struct {
	records recordCollection
}

func (t *recordTx) FindByKey(ctx context.Context, kind models.EntityKind, id string) (*models.Record, error) {
	return findRecord(ctx, t.records, kind, id)
}

func (t *recordTx) Upsert(ctx context.Context, rec *models.Record, expectedRev uint64) error {
	if err := storage.CheckWrite(rec, expectedRev); err != nil {
		return err
	}

	doc := toDocument(rec)

	if expectedRev == 0 {
		if err := t.records.InsertOne(ctx, doc); err != nil {
			return fmt.Errorf("failed to insert record %s: %w", doc.DocID, err)
		}
		return nil
	}

	filter := bson.M{"_id": doc.DocID, "rev": int64(expectedRev)}
	update := bson.M{"$set": bson.M{
		"rev":       doc.Rev,
		"checksum":  doc.Checksum,
		"updatedBy": doc.UpdatedBy,
		"data":      doc.Data,
		"updatedAt": doc.UpdatedAt,
		"deletedAt": doc.DeletedAt,
	}}

	matched, err := t.records.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update record %s: %w", doc.DocID, err)
	}
	if matched == 0 {
		return fmt.Errorf("%w: %s expected rev %d", storage.ErrRevisionMismatch, doc.DocID, expectedRev)
	}
	return nil
}

func findRecord(ctx context.Context, records recordCollection, kind models.EntityKind, id string) (*models.Record, error) {
	doc, err := records.FindOne(ctx, bson.M{"_id": docID(kind, id)})
	if err != nil {
		return nil, err
	}
	return doc.toRecord(), nil
}
