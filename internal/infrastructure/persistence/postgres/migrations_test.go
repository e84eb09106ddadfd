package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetMigrations_AreReversibleAndOrdered(t *testing.T) {
	migrations := GetMigrations()
	require.NotEmpty(t, migrations)
	for i, mig := range migrations {
		assert.Equal(t, i+1, mig.Version)
		assert.NotEmpty(t, mig.UpSQL, mig.Name)
		assert.NotEmpty(t, mig.DownSQL, mig.Name)
	}
}

func TestMigrationBookkeeping(t *testing.T) {
	at := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	migrations := []Migration{
		{Version: 2, Name: "second", UpSQL: "up2", DownSQL: "down2"},
		{Version: 1, Name: "first", UpSQL: "up1", DownSQL: "down1"},
		{Version: 3, Name: "third", UpSQL: "up3"},
	}

	t.Run("status is sorted and marks applied", func(t *testing.T) {
		status := withStatus(migrations, map[int]time.Time{1: at})
		require.Len(t, status, 3)
		assert.Equal(t, "first", status[0].Name)
		assert.True(t, status[0].IsApplied())
		assert.Equal(t, at, *status[0].AppliedAt)
		assert.False(t, status[1].IsApplied())
		assert.False(t, migrations[1].IsApplied(), "input is not modified")
	})

	t.Run("pending keeps version order", func(t *testing.T) {
		todo := pending(migrations, map[int]time.Time{2: at})
		require.Len(t, todo, 2)
		assert.Equal(t, 1, todo[0].Version)
		assert.Equal(t, 3, todo[1].Version)
		assert.Empty(t, pending(migrations, map[int]time.Time{1: at, 2: at, 3: at}))
	})

	t.Run("latest applied", func(t *testing.T) {
		mig, err := latest(migrations, map[int]time.Time{1: at, 2: at})
		require.NoError(t, err)
		require.NotNil(t, mig)
		assert.Equal(t, "second", mig.Name)
		assert.Equal(t, at, *mig.AppliedAt)
	})

	t.Run("nothing applied", func(t *testing.T) {
		mig, err := latest(migrations, nil)
		assert.NoError(t, err)
		assert.Nil(t, mig)
	})

	t.Run("latest without down SQL", func(t *testing.T) {
		_, err := latest(migrations, map[int]time.Time{3: at})
		assert.ErrorIs(t, err, ErrMigrationFailed)
	})

	t.Run("unknown version in database", func(t *testing.T) {
		_, err := latest(migrations, map[int]time.Time{9: at})
		assert.ErrorIs(t, err, ErrMigrationFailed)
	})
}
