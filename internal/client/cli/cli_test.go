package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/changesync/internal/client/api"
	"github.com/iudanet/changesync/internal/client/iocli"
	"github.com/iudanet/changesync/internal/client/storage/boltdb"
	"github.com/iudanet/changesync/internal/client/sync"
	"github.com/iudanet/changesync/internal/models"
	pkgapi "github.com/iudanet/changesync/pkg/api"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	store *boltdb.Storage
	svc   *sync.ServiceMock
	env   map[string]string
	out   bytes.Buffer
	input string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := boltdb.New(context.Background(), filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return &testEnv{
		store: store,
		svc:   &sync.ServiceMock{},
		env:   map[string]string{},
	}
}

// run выполняет команду так же, как main, но с подмененными зависимостями
func (e *testEnv) run(args ...string) error {
	stdio := iocli.NewStdioFrom(strings.NewReader(e.input), &e.out)

	open := func(ctx context.Context, opts *RootOptions, w iocli.IO) (*Cli, func() error, error) {
		c := New(w, e.store, e.store, e.svc)
		c.getenv = func(key string) string { return e.env[key] }
		c.now = func() time.Time { return fixedNow }
		c.newID = func() string { return "generated-id" }
		return c, func() error { return nil }, nil
	}

	cmd := newRootCommand("test", stdio, open)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(context.Background())
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand("1.2.3", iocli.NewStdioFrom(strings.NewReader(""), &bytes.Buffer{}))
	require.NotNil(t, cmd)
	assert.Equal(t, "changesync", cmd.Use)
	assert.Equal(t, "1.2.3", cmd.Version)

	for _, name := range []string{"put", "delete", "push", "status"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	for flag, def := range map[string]string{
		"server":  "http://localhost:8080",
		"db":      "changesync-client.db",
		"token":   "",
		"verbose": "false",
	} {
		f := cmd.PersistentFlags().Lookup(flag)
		require.NotNil(t, f, flag)
		assert.Equal(t, def, f.DefValue, flag)
	}

	push, _, err := cmd.Find([]string{"push"})
	require.NoError(t, err)
	assert.NotNil(t, push.Flags().Lookup("force"))
}

func TestPut_QueuesUpsert(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, e.store.SaveKnownRev(ctx, models.EntityProduct, "p1", 3))

	err := e.run("put", "product", "p1", "name=Coffee", "price=4.50", "active=true", "sku=00123")
	require.NoError(t, err)

	change, err := e.store.Get(ctx, models.EntityProduct, "p1")
	require.NoError(t, err)
	assert.Equal(t, models.OpUpsert, change.Op)
	assert.Equal(t, uint64(3), change.BasisRev)
	assert.Equal(t, fixedNow, change.UpdatedAt)

	fields, err := json.Marshal(change.Fields)
	require.NoError(t, err)
	// 00123 не валидный JSON и остается строкой
	assert.JSONEq(t, `{"name":"Coffee","price":4.50,"active":true,"sku":"00123"}`, string(fields))

	assert.Contains(t, e.out.String(), "Queued upsert product/p1 (basis rev 3)")
}

func TestPut_GeneratesID(t *testing.T) {
	e := newTestEnv(t)

	require.NoError(t, e.run("put", "category", "-", "name=Drinks"))

	change, err := e.store.Get(context.Background(), models.EntityCategory, "generated-id")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), change.BasisRev)
}

func TestPut_Errors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "unknown entity", args: []string{"put", "order", "o1", "name=X"}, wantErr: `unknown entity kind "order"`},
		{name: "missing fields", args: []string{"put", "product", "p1"}, wantErr: "requires at least 3 arg(s)"},
		{name: "no equals", args: []string{"put", "product", "p1", "name"}, wantErr: `invalid field "name"`},
		{name: "empty key", args: []string{"put", "product", "p1", "=X"}, wantErr: `invalid field "=X"`},
		{name: "control field", args: []string{"put", "product", "p1", "rev=4"}, wantErr: `field "rev" is managed by sync`},
		{name: "id field", args: []string{"put", "product", "p1", "id=p2"}, wantErr: `field "id" is managed by sync`},
		{name: "duplicate", args: []string{"put", "product", "p1", "name=A", "name=B"}, wantErr: `field "name" given twice`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)

			err := e.run(tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)

			pending, err := e.store.Pending(context.Background())
			require.NoError(t, err)
			assert.Empty(t, pending)
		})
	}
}

func TestPut_CompactsWithPendingChange(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, e.store.SaveKnownRev(ctx, models.EntityProduct, "p1", 2))

	require.NoError(t, e.run("put", "product", "p1", "name=First"))
	// Известная ревизия изменилась, но база неотправленной правки остается прежней
	require.NoError(t, e.store.SaveKnownRev(ctx, models.EntityProduct, "p1", 9))
	require.NoError(t, e.run("put", "product", "p1", "name=Second"))

	pending, err := e.store.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, uint64(2), pending[0].BasisRev)
	assert.JSONEq(t, `"Second"`, string(pending[0].Fields["name"]))
}

func TestDelete(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, e.store.SaveKnownRev(ctx, models.EntityCategory, "c1", 5))

	require.NoError(t, e.run("delete", "category", "c1"))

	change, err := e.store.Get(ctx, models.EntityCategory, "c1")
	require.NoError(t, err)
	assert.Equal(t, models.OpDelete, change.Op)
	assert.Equal(t, uint64(5), change.BasisRev)
	assert.Empty(t, change.Fields)
	assert.Contains(t, e.out.String(), "Queued delete category/c1")

	err = e.run("delete", "category")
	assert.Error(t, err)
}

func TestPush_TokenSources(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		env       map[string]string
		input     string
		wantToken string
		wantErr   error
	}{
		{name: "flag", args: []string{"--token", "from-flag"}, env: map[string]string{TokenEnv: "from-env"}, wantToken: "from-flag"},
		{name: "env", env: map[string]string{TokenEnv: " from-env "}, wantToken: "from-env"},
		{name: "prompt", input: "from-prompt\n", wantToken: "from-prompt"},
		{name: "empty prompt", input: "\n", wantErr: ErrEmptyToken},
		{name: "closed stdin", input: "", wantErr: ErrEmptyToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)
			e.env = tt.env
			e.input = tt.input
			e.svc.PushFunc = func(ctx context.Context, token string, force bool) (*sync.PushResult, error) {
				return &sync.PushResult{}, nil
			}

			err := e.run(append([]string{"push"}, tt.args...)...)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, e.svc.PushCalls())
				return
			}
			require.NoError(t, err)
			calls := e.svc.PushCalls()
			require.Len(t, calls, 1)
			assert.Equal(t, tt.wantToken, calls[0].Token)
			assert.False(t, calls[0].Force)
		})
	}
}

func TestPush_Report(t *testing.T) {
	e := newTestEnv(t)
	e.env[TokenEnv] = "t"
	e.svc.PushFunc = func(ctx context.Context, token string, force bool) (*sync.PushResult, error) {
		return &sync.PushResult{
			Pushed:    3,
			Applied:   1,
			LatestRev: 12,
			Rejected:  []pkgapi.Rejection{{Entity: "product", ID: "p9", Reason: "tombstoned"}},
			Conflicts: []pkgapi.Conflict{{Entity: "product", ID: "p2", Decided: "current", CurrentRev: 7, IncomingRev: 4}},
		}, nil
	}

	require.NoError(t, e.run("push", "--force"))

	calls := e.svc.PushCalls()
	require.Len(t, calls, 1)
	assert.True(t, calls[0].Force)

	out := e.out.String()
	assert.Contains(t, out, "Pushed:     3")
	assert.Contains(t, out, "Applied:    1")
	assert.Contains(t, out, "Latest rev: 12")
	assert.Contains(t, out, "product/p9: tombstoned")
	assert.Contains(t, out, "product/p2: basis rev 4, server rev 7")
}

func TestPush_NothingToPush(t *testing.T) {
	e := newTestEnv(t)
	e.env[TokenEnv] = "t"
	e.svc.PushFunc = func(ctx context.Context, token string, force bool) (*sync.PushResult, error) {
		return &sync.PushResult{Skipped: 2}, nil
	}

	require.NoError(t, e.run("push"))
	assert.Contains(t, e.out.String(), "Nothing to push.")
	assert.Contains(t, e.out.String(), "2 conflicted change(s) skipped")
}

func TestPush_Errors(t *testing.T) {
	e := newTestEnv(t)
	e.env[TokenEnv] = "wrong"
	e.svc.PushFunc = func(ctx context.Context, token string, force bool) (*sync.PushResult, error) {
		return nil, &api.Error{StatusCode: 401, Message: "Unauthorized"}
	}

	err := e.run("push")
	require.Error(t, err)
	assert.Equal(t, "server rejected the sync token", err.Error())

	e.svc.PushFunc = func(ctx context.Context, token string, force bool) (*sync.PushResult, error) {
		return nil, &api.Error{StatusCode: 500, Message: "Internal server error"}
	}
	err = e.run("push")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "push failed: server error (500)")
}

func TestStatus(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, e.run("put", "product", "p1", "name=A"))
	require.NoError(t, e.run("delete", "product", "p2"))
	require.NoError(t, e.store.MarkConflict(ctx, models.EntityProduct, "p1", 8))

	e.svc.StatusFunc = func(ctx context.Context) (*sync.Status, error) {
		return &sync.Status{Pending: 2, Conflicted: 1, Watermark: 11}, nil
	}
	e.out.Reset()

	require.NoError(t, e.run("status"))

	out := e.out.String()
	assert.Contains(t, out, "Server watermark: 11")
	assert.Contains(t, out, "Pending changes: 2 (conflicted: 1)")
	assert.Contains(t, out, "upsert product/p1 basis=0 CONFLICT server=8")
	assert.Contains(t, out, "delete product/p2 basis=0")
}

func TestStatus_Empty(t *testing.T) {
	e := newTestEnv(t)
	e.svc.StatusFunc = func(ctx context.Context) (*sync.Status, error) {
		return &sync.Status{}, nil
	}

	require.NoError(t, e.run("status"))
	assert.Contains(t, e.out.String(), "Outbox is empty")
}

// Полный путь: put, затем push через настоящий sync.Service с mock API
func TestPutThenPush_RealService(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	mockAPI := &api.ClientAPIMock{
		PushFunc: func(ctx context.Context, token string, req pkgapi.PushRequest) (*pkgapi.PushResponse, error) {
			return &pkgapi.PushResponse{
				Success:      true,
				AppliedCount: 1,
				LatestRev:    1,
				Conflicts:    []pkgapi.Conflict{},
				Applied:      []pkgapi.AppliedRevision{{Entity: "product", ID: "p1", Rev: 1}},
			}, nil
		},
	}
	svc := sync.NewService(mockAPI, e.store, e.store, discardLogger())

	e.env[TokenEnv] = "t"
	require.NoError(t, e.run("put", "product", "p1", "name=Coffee"))

	stdio := iocli.NewStdioFrom(strings.NewReader(""), &e.out)
	c := New(stdio, e.store, e.store, svc)
	c.getenv = func(key string) string { return e.env[key] }

	cmd := newRootCommand("test", stdio, func(context.Context, *RootOptions, iocli.IO) (*Cli, func() error, error) {
		return c, nil, nil
	})
	cmd.SetArgs([]string{"push"})
	require.NoError(t, cmd.ExecuteContext(ctx))

	pending, err := e.store.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	rev, err := e.store.GetKnownRev(ctx, models.EntityProduct, "p1")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), rev)
}
