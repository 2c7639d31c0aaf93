package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iudanet/changesync/internal/models"
)

func TestCheckWrite(t *testing.T) {
	tests := []struct {
		rec         *models.Record
		name        string
		expectedRev uint64
		wantErr     bool
	}{
		{name: "insert", rec: &models.Record{Kind: models.EntityProduct, ID: "p1", Rev: 1}},
		{name: "update", rec: &models.Record{Kind: models.EntityProduct, ID: "p1", Rev: 5}, expectedRev: 4},
		{name: "jump ahead", rec: &models.Record{Kind: models.EntityProduct, ID: "p1", Rev: 9}, expectedRev: 4},
		{name: "same rev", rec: &models.Record{Kind: models.EntityProduct, ID: "p1", Rev: 4}, expectedRev: 4, wantErr: true},
		{name: "zero rev", rec: &models.Record{Kind: models.EntityProduct, ID: "p1"}, wantErr: true},
		{name: "no id", rec: &models.Record{Kind: models.EntityProduct, Rev: 1}, wantErr: true},
		{name: "nil", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckWrite(tt.rec, tt.expectedRev)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRecord)
				return
			}
			assert.NoError(t, err)
		})
	}
}
