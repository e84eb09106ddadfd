package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/center-hub/center-hub/internal/infrastructure/persistence/postgres"
)

// fakeMigrator keeps the applied versions in memory.
type fakeMigrator struct {
	all     []postgres.Migration
	applied map[int]time.Time
	now     time.Time
}

func newFakeMigrator() *fakeMigrator {
	return &fakeMigrator{
		all: []postgres.Migration{
			{Version: 1, Name: "create_snapshots"},
			{Version: 2, Name: "create_action_log"},
		},
		applied: map[int]time.Time{},
		now:     time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
	}
}

func (f *fakeMigrator) Migrate(context.Context) error {
	for _, m := range f.all {
		if _, ok := f.applied[m.Version]; !ok {
			f.applied[m.Version] = f.now
		}
	}
	return nil
}

func (f *fakeMigrator) Rollback(context.Context) (*postgres.Migration, error) {
	for i := len(f.all) - 1; i >= 0; i-- {
		m := f.all[i]
		if _, ok := f.applied[m.Version]; ok {
			delete(f.applied, m.Version)
			return &m, nil
		}
	}
	return nil, nil
}

func (f *fakeMigrator) Status(context.Context) ([]postgres.Migration, error) {
	out := make([]postgres.Migration, len(f.all))
	copy(out, f.all)
	for i := range out {
		if at, ok := f.applied[out[i].Version]; ok {
			at := at
			out[i].AppliedAt = &at
		}
	}
	return out, nil
}

func TestMigrateCLI(t *testing.T) {
	ctx := context.Background()
	m := newFakeMigrator()
	var out bytes.Buffer
	cli := &migrateCLI{migrator: m, out: &out}

	require.NoError(t, cli.run(ctx, []string{"status"}))
	assert.Regexp(t, `001\s+create_snapshots\s+pending`, out.String())

	out.Reset()
	require.NoError(t, cli.run(ctx, []string{"up"}))
	assert.Regexp(t, `002\s+create_action_log\s+2025-03-10T09:00:00Z`, out.String())
	assert.Len(t, m.applied, 2)

	out.Reset()
	require.NoError(t, cli.run(ctx, []string{"down"}))
	assert.Equal(t, "rolled back 002 create_action_log\n", out.String())
	assert.Len(t, m.applied, 1)

	out.Reset()
	require.NoError(t, cli.run(ctx, []string{"down", "-steps", "3"}))
	assert.Equal(t, "rolled back 001 create_snapshots\nnothing to roll back\n", out.String())
	assert.Empty(t, m.applied)
}

func TestMigrateCLI_Usage(t *testing.T) {
	var out bytes.Buffer
	cli := &migrateCLI{migrator: newFakeMigrator(), out: &out}

	assert.ErrorIs(t, cli.run(context.Background(), nil), errHelp)
	assert.ErrorIs(t, cli.run(context.Background(), []string{"sideways"}), errHelp)
	assert.ErrorIs(t, cli.run(context.Background(), []string{"down", "-steps", "0"}), errHelp)
	assert.Contains(t, out.String(), "Usage:")
}
