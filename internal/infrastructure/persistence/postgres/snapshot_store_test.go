package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/center-hub/center-hub/internal/domain/shared"
	"github.com/center-hub/center-hub/pkg/retry"
)

// fakeRow returns the queued scan results one call at a time.
type fakeRow struct {
	raw []byte
	err error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*[]byte)) = r.raw
	return nil
}

type fakeDB struct {
	rows    []fakeRow
	calls   int
	execs   [][]any
	execErr []error
}

func (f *fakeDB) Exec(_ context.Context, _ string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, args)
	if len(f.execErr) > 0 {
		err := f.execErr[0]
		f.execErr = f.execErr[1:]
		return pgconn.CommandTag{}, err
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (f *fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not used")
}

func (f *fakeDB) QueryRow(context.Context, string, ...any) pgx.Row {
	r := f.rows[f.calls]
	f.calls++
	return r
}

func fastRetrier() SnapshotStoreOption {
	return WithRetrier(retry.DatabaseRetrier(IsTransient, retry.WithSleep(func(ctx context.Context, _ time.Duration) error {
		return ctx.Err()
	})))
}

var connLost = &pgconn.PgError{Code: "08006", Message: "connection failure"}

func TestSnapshotStore_LoadMissingKey(t *testing.T) {
	db := &fakeDB{rows: []fakeRow{{err: pgx.ErrNoRows}}}
	store := NewSnapshotStore(db, fastRetrier())

	var got []string
	found, err := store.Load(context.Background(), shared.KeyCourses, &got)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 1, db.calls)
}

func TestSnapshotStore_LoadRetriesTransientErrors(t *testing.T) {
	db := &fakeDB{rows: []fakeRow{{err: connLost}, {raw: []byte(`["Математика"]`)}}}
	store := NewSnapshotStore(db, fastRetrier())

	var got []string
	found, err := store.Load(context.Background(), shared.KeyCourses, &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{"Математика"}, got)
	assert.Equal(t, 2, db.calls)
}

func TestSnapshotStore_LoadDecodeError(t *testing.T) {
	db := &fakeDB{rows: []fakeRow{{raw: []byte(`"text"`)}}}
	store := NewSnapshotStore(db, fastRetrier())

	var got []int
	found, err := store.Load(context.Background(), "k", &got)
	assert.True(t, found)
	assert.Error(t, err)
}

func TestSnapshotStore_SaveUpsertsJSON(t *testing.T) {
	db := &fakeDB{execErr: []error{connLost}}
	store := NewSnapshotStore(db, fastRetrier())

	require.NoError(t, store.Save(context.Background(), shared.KeyGroups, []string{"g1"}))
	require.Len(t, db.execs, 2)
	assert.Equal(t, shared.KeyGroups, db.execs[1][0])
	assert.JSONEq(t, `["g1"]`, string(db.execs[1][1].([]byte)))
}

func TestSnapshotStore_SaveDoesNotRetryPermanentErrors(t *testing.T) {
	db := &fakeDB{execErr: []error{&pgconn.PgError{Code: "42P01", Message: "undefined table"}}}
	store := NewSnapshotStore(db, fastRetrier())

	err := store.Save(context.Background(), shared.KeyGroups, []string{})
	require.Error(t, err)
	assert.Len(t, db.execs, 1)
	assert.Contains(t, err.Error(), "save snapshot")
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(connLost))
	assert.True(t, IsTransient(&pgconn.PgError{Code: "40001"}))
	assert.True(t, IsTransient(&pgconn.PgError{Code: "40P01"}))
	assert.False(t, IsTransient(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsTransient(context.Canceled))
	assert.False(t, IsTransient(nil))
}

func TestConfig_PoolConfig(t *testing.T) {
	cfg := DefaultConfig()
	_, err := cfg.PoolConfig()
	assert.Error(t, err)

	cfg.URL = "postgres://u:p@localhost:5432/center?sslmode=disable"
	cfg.MaxConns = 7
	pc, err := cfg.PoolConfig()
	require.NoError(t, err)
	assert.Equal(t, int32(7), pc.MaxConns)
	assert.Equal(t, time.Hour, pc.MaxConnLifetime)
}

func TestMigrations_AreOrdered(t *testing.T) {
	migs := GetMigrations()
	require.NotEmpty(t, migs)
	for i, m := range migs {
		assert.Equal(t, i+1, m.Version)
		assert.NotEmpty(t, m.UpSQL)
		assert.NotEmpty(t, m.DownSQL)
	}
}
