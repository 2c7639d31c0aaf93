package models

import (
	"encoding/json"
	"fmt"
)

// Служебные поля синхронизации. Не входят в канонический payload
// и не участвуют в вычислении checksum.
const (
	FieldID        = "id"
	FieldRev       = "rev"
	FieldChecksum  = "checksum"
	FieldUpdatedBy = "updatedBy"
	FieldDeletedAt = "deletedAt"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

var controlFields = map[string]struct{}{
	FieldRev:       {},
	FieldChecksum:  {},
	FieldUpdatedBy: {},
	FieldDeletedAt: {},
	FieldCreatedAt: {},
	FieldUpdatedAt: {},
}

// IsControlField reports whether key is a sync-control field.
func IsControlField(key string) bool {
	_, ok := controlFields[key]
	return ok
}

// CanonicalPayload returns the payload with control fields removed and id set.
// The input map is not modified.
func CanonicalPayload(id string, fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		if IsControlField(k) {
			continue
		}
		out[k] = v
	}
	out[FieldID] = id
	return out
}

// DecodeData decodes the record's data into a typed payload.
func DecodeData[T Product | Category](rec *Record) (*T, error) {
	var v T
	if err := json.Unmarshal(rec.Data, &v); err != nil {
		return nil, fmt.Errorf("failed to decode %s %q: %w", rec.Kind, rec.ID, err)
	}
	return &v, nil
}
