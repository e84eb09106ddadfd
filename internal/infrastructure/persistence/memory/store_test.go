package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/center-hub/center-hub/internal/domain/shared"
)

func TestStore_LoadSave(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	var got []string
	found, err := s.Load(ctx, shared.KeyCourses, &got)
	require.NoError(t, err)
	assert.False(t, found)

	in := []string{"Математика"}
	require.NoError(t, s.Save(ctx, shared.KeyCourses, in))
	in[0] = "изменено"

	found, err = s.Load(ctx, shared.KeyCourses, &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{"Математика"}, got)
	assert.Equal(t, 1, s.Writes(shared.KeyCourses))
	assert.Equal(t, []string{shared.KeyCourses}, s.Keys())
}

func TestStore_DecodeError(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	require.NoError(t, s.Save(ctx, "k", "text"))

	var n []int
	_, err := s.Load(ctx, "k", &n)
	assert.Error(t, err)
}

func TestActionLog_Recent(t *testing.T) {
	ctx := context.Background()
	l := NewActionLog()
	require.NoError(t, l.Append(ctx, shared.ActionRecord{Action: "a1", EntityID: "s1"}))
	require.NoError(t, l.Append(ctx, shared.ActionRecord{Action: "a2", EntityID: "s2"}))
	require.NoError(t, l.Append(ctx, shared.ActionRecord{Action: "a3", EntityID: "s1"}))

	recs, err := l.Recent(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "a3", recs[0].Action)

	recs, err = l.Recent(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}
