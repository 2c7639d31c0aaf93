package validation

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/changesync/pkg/api"
)

func decodeRequest(t *testing.T, body string) *api.PushRequest {
	t.Helper()
	var req api.PushRequest
	require.NoError(t, json.Unmarshal([]byte(body), &req))
	return &req
}

func fieldsOf(t *testing.T, err error) map[string]string {
	t.Helper()
	var verrs Errors
	require.True(t, errors.As(err, &verrs), "expected validation.Errors, got %v", err)
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Field] = fe.Tag
	}
	return out
}

func TestBatchValidator_Valid(t *testing.T) {
	v := NewBatchValidator(0)

	tests := []struct {
		name string
		body string
	}{
		{
			name: "fresh product",
			body: `{"clientRev":0,"changes":[{"entity":"product","op":"upsert","data":{"id":"p1","rev":0,"name":"X"}}]}`,
		},
		{
			name: "product with decimal price and extra fields",
			body: `{"clientRev":4,"changes":[{"entity":"product","op":"upsert","data":{"id":"p1","rev":3,"name":"X","price":"4.50","color":"red"}}]}`,
		},
		{
			name: "category with parent",
			body: `{"clientRev":0,"changes":[{"entity":"category","op":"upsert","data":{"id":"c2","rev":0,"name":"Tea","parentId":"c1","position":2}}]}`,
		},
		{
			name: "delete needs only id and rev",
			body: `{"clientRev":0,"changes":[{"entity":"category","op":"delete","data":{"id":"c1","rev":7}}]}`,
		},
		{
			name: "empty batch",
			body: `{"clientRev":0,"changes":[]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, v.ValidateRequest(decodeRequest(t, tt.body)))
		})
	}
}

func TestBatchValidator_Invalid(t *testing.T) {
	v := NewBatchValidator(0)

	tests := []struct {
		want map[string]string
		name string
		body string
	}{
		{
			name: "missing clientRev",
			body: `{"changes":[]}`,
			want: map[string]string{"clientRev": "required"},
		},
		{
			name: "negative clientRev",
			body: `{"clientRev":-1,"changes":[]}`,
			want: map[string]string{"clientRev": "gte"},
		},
		{
			name: "missing changes",
			body: `{"clientRev":0}`,
			want: map[string]string{"changes": "required"},
		},
		{
			name: "unknown entity and op",
			body: `{"clientRev":0,"changes":[{"entity":"order","op":"patch","data":{"id":"o1","rev":0}}]}`,
			want: map[string]string{"changes[0].entity": "oneof", "changes[0].op": "oneof"},
		},
		{
			name: "missing id and rev",
			body: `{"clientRev":0,"changes":[{"entity":"product","op":"delete","data":{}}]}`,
			want: map[string]string{"changes[0].data.id": "required", "changes[0].data.rev": "required"},
		},
		{
			name: "null data",
			body: `{"clientRev":0,"changes":[{"entity":"product","op":"delete","data":null}]}`,
			want: map[string]string{"changes[0].data.id": "required", "changes[0].data.rev": "required"},
		},
		{
			name: "negative rev",
			body: `{"clientRev":0,"changes":[{"entity":"product","op":"delete","data":{"id":"p1","rev":-3}}]}`,
			want: map[string]string{"changes[0].data.rev": "gte"},
		},
		{
			name: "rev at int64 max",
			body: `{"clientRev":0,"changes":[{"entity":"product","op":"upsert","data":{"id":"p1","rev":9223372036854775807,"name":"X"}}]}`,
			want: map[string]string{"changes[0].data.rev": "lt"},
		},
		{
			name: "product without name",
			body: `{"clientRev":0,"changes":[{"entity":"product","op":"upsert","data":{"id":"p1","rev":0}}]}`,
			want: map[string]string{"changes[0].data.name": "required"},
		},
		{
			name: "negative price",
			body: `{"clientRev":0,"changes":[{"entity":"product","op":"upsert","data":{"id":"p1","rev":0,"name":"X","price":-1}}]}`,
			want: map[string]string{"changes[0].data.price": "gte"},
		},
		{
			name: "name of wrong type",
			body: `{"clientRev":0,"changes":[{"entity":"product","op":"upsert","data":{"id":"p1","rev":0,"name":42}}]}`,
			want: map[string]string{"changes[0].data.name": "type"},
		},
		{
			name: "category is its own parent",
			body: `{"clientRev":0,"changes":[{"entity":"product","op":"delete","data":{"id":"p1","rev":0}},{"entity":"category","op":"upsert","data":{"id":"c1","rev":0,"name":"Tea","parentId":"c1"}}]}`,
			want: map[string]string{"changes[1].data.parentId": "nefield"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateRequest(decodeRequest(t, tt.body))
			require.Error(t, err)
			assert.Equal(t, tt.want, fieldsOf(t, err))
		})
	}
}

func TestBatchValidator_MaxBatchSize(t *testing.T) {
	v := NewBatchValidator(2)
	assert.Equal(t, 2, v.MaxBatchSize())

	body := `{"clientRev":0,"changes":[
		{"entity":"product","op":"delete","data":{"id":"p1","rev":0}},
		{"entity":"product","op":"delete","data":{"id":"p2","rev":0}},
		{"entity":"product","op":"delete","data":{"id":"p3","rev":0}}]}`

	err := v.ValidateRequest(decodeRequest(t, body))
	require.Error(t, err)

	var verrs Errors
	require.ErrorAs(t, err, &verrs)
	require.Len(t, verrs, 1)
	assert.Equal(t, "changes", verrs[0].Field)
	assert.Equal(t, "max", verrs[0].Tag)
	assert.Equal(t, "2", verrs[0].Param)
}

func TestBatchValidator_RevUpperBound(t *testing.T) {
	v := NewBatchValidator(0)

	body := `{"clientRev":0,"changes":[{"entity":"product","op":"delete","data":{"id":"p1","rev":9223372036854775807}}]}`
	err := v.ValidateRequest(decodeRequest(t, body))
	require.Error(t, err)

	var verrs Errors
	require.ErrorAs(t, err, &verrs)
	require.Len(t, verrs, 1)
	assert.Equal(t, "changes[0].data.rev", verrs[0].Field)
	assert.Equal(t, "must be less than 9223372036854775807", verrs[0].Message)

	// Максимально допустимая ревизия проходит
	body = `{"clientRev":0,"changes":[{"entity":"product","op":"delete","data":{"id":"p1","rev":9223372036854775806}}]}`
	assert.NoError(t, v.ValidateRequest(decodeRequest(t, body)))
}

func TestBatchValidator_NilRequest(t *testing.T) {
	v := NewBatchValidator(0)
	assert.Error(t, v.ValidateRequest(nil))
}

func TestErrors_Error(t *testing.T) {
	err := Errors{
		{Field: "clientRev", Tag: "required", Message: "is required"},
		{Field: "changes[0].op", Tag: "oneof", Message: "must be one of: upsert, delete"},
	}
	assert.Equal(t, "validation failed: clientRev: is required; changes[0].op: must be one of: upsert, delete", err.Error())
}
