package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/changesync/internal/models"
	"github.com/iudanet/changesync/internal/server/storage"
)

// queryer общий интерфейс *sql.DB и *sql.Tx
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// WithinTx выполняет fn в одной транзакции SQLite.
// При ошибке fn или панике транзакция откатывается.
func (s *Storage) WithinTx(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		if errors.Is(err, sql.ErrConnDone) {
			return storage.ErrStoreClosed
		}
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, &recordTx{q: sqlTx}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("failed to rollback transaction: %w", rbErr))
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetRecord retrieves a record outside of a transaction
// Returns ErrRecordNotFound if the record does not exist
func (s *Storage) GetRecord(ctx context.Context, kind models.EntityKind, id string) (*models.Record, error) {
	return findRecord(ctx, s.db, kind, id)
}

// recordTx реализует storage.Tx поверх *sql.Tx
type recordTx struct {
	q queryer
}

func (t *recordTx) FindByKey(ctx context.Context, kind models.EntityKind, id string) (*models.Record, error) {
	return findRecord(ctx, t.q, kind, id)
}

// Upsert пишет запись с проверкой ревизии (compare-and-swap).
// expectedRev == 0: INSERT, конфликт ключа означает, что запись появилась параллельно.
// expectedRev > 0: UPDATE ... WHERE rev = expectedRev.
func (t *recordTx) Upsert(ctx context.Context, rec *models.Record, expectedRev uint64) error {
	if err := storage.CheckWrite(rec, expectedRev); err != nil {
		return err
	}

	var deletedAt sql.NullInt64
	if rec.DeletedAt != nil {
		deletedAt = sql.NullInt64{Int64: rec.DeletedAt.UnixNano(), Valid: true}
	}

	var (
		result sql.Result
		err    error
	)

	if expectedRev == 0 {
		query := `
			INSERT INTO records (
				kind, id, rev, checksum, updated_by, data,
				created_at, updated_at, deleted_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (kind, id) DO NOTHING
		`
		result, err = t.q.ExecContext(ctx, query,
			string(rec.Kind),
			rec.ID,
			int64(rec.Rev),
			rec.Checksum,
			rec.UpdatedBy,
			string(rec.Data),
			rec.CreatedAt.UnixNano(),
			rec.UpdatedAt.UnixNano(),
			deletedAt,
		)
	} else {
		query := `
			UPDATE records
			SET rev = ?, checksum = ?, updated_by = ?, data = ?,
			    updated_at = ?, deleted_at = ?
			WHERE kind = ? AND id = ? AND rev = ?
		`
		result, err = t.q.ExecContext(ctx, query,
			int64(rec.Rev),
			rec.Checksum,
			rec.UpdatedBy,
			string(rec.Data),
			rec.UpdatedAt.UnixNano(),
			deletedAt,
			string(rec.Kind),
			rec.ID,
			int64(expectedRev),
		)
	}

	if err != nil {
		return fmt.Errorf("failed to write record %s/%s: %w", rec.Kind, rec.ID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("%w: %s/%s expected rev %d", storage.ErrRevisionMismatch, rec.Kind, rec.ID, expectedRev)
	}

	return nil
}

func findRecord(ctx context.Context, q queryer, kind models.EntityKind, id string) (*models.Record, error) {
	query := `
		SELECT kind, id, rev, checksum, updated_by, data,
		       created_at, updated_at, deleted_at
		FROM records
		WHERE kind = ? AND id = ?
	`

	rec := &models.Record{}
	var (
		kindStr              string
		rev                  int64
		data                 string
		createdAt, updatedAt int64
		deletedAt            sql.NullInt64
	)

	err := q.QueryRowContext(ctx, query, string(kind), id).Scan(
		&kindStr,
		&rec.ID,
		&rev,
		&rec.Checksum,
		&rec.UpdatedBy,
		&data,
		&createdAt,
		&updatedAt,
		&deletedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get record: %w", err)
	}

	rec.Kind = models.EntityKind(kindStr)
	rec.Rev = uint64(rev)
	rec.Data = []byte(data)
	rec.CreatedAt = unixNanoToTime(createdAt)
	rec.UpdatedAt = unixNanoToTime(updatedAt)
	if deletedAt.Valid {
		t := unixNanoToTime(deletedAt.Int64)
		rec.DeletedAt = &t
	}

	return rec, nil
}

func unixNanoToTime(ns int64) time.Time {
	return time.Unix(0, ns).UTC()
}
