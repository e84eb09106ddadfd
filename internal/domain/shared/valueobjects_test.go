package shared

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercent(t *testing.T) {
	tests := []struct {
		part, whole float64
		want        int
	}{
		{3, 4, 75},
		{0, 0, 0},
		{5, 0, 0},
		{1, 8, 13}, // 12.5 rounds away from zero
		{1, 3, 33},
		{2, 3, 67},
		{10, 10, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Percent(tt.part, tt.whole), "%v/%v", tt.part, tt.whole)
	}
}

func TestRound1(t *testing.T) {
	assert.Equal(t, 7.8, Round1(7.75))
	assert.Equal(t, 12.5, Round1(12.5))
	assert.Equal(t, 3.3, Round1(10.0/3))
}

func TestClampPercent(t *testing.T) {
	assert.Equal(t, 100.0, ClampPercent(150))
	assert.Equal(t, 0.0, ClampPercent(-20))
	assert.Equal(t, 42.0, ClampPercent(42))
	assert.Equal(t, 0.0, ClampPercent(math.NaN()))
	assert.Equal(t, 100.0, ClampPercent(math.Inf(1)))
	assert.Equal(t, 0.0, ClampPercent(math.Inf(-1)))
}

func TestDate(t *testing.T) {
	d, err := ParseDate(" 2025-03-10 ")
	require.NoError(t, err)
	assert.Equal(t, Date("2025-03-10"), d)
	assert.Equal(t, "2025-03", d.MonthKey())
	assert.True(t, Date("2024-12-31").Before(d))

	empty, err := ParseDate("")
	require.NoError(t, err)
	assert.True(t, empty.IsZero())
	assert.Equal(t, d, empty.OrToday(d))

	_, err = ParseDate("10.03.2025")
	assert.True(t, errors.Is(err, ErrInvalidFormat))
}

func TestToday_UsesClockLocation(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*60*60)
	clock := NewManualClock(time.Date(2025, 3, 10, 21, 0, 0, 0, time.UTC).In(loc))
	assert.Equal(t, Date("2025-03-11"), Today(clock))
}

func TestManualClock_FiresDueTimers(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	fired := 0
	clock.AfterFunc(2*time.Second, func() { fired++ })
	stopped := clock.AfterFunc(time.Second, func() { fired += 10 })
	assert.True(t, stopped.Stop())
	assert.False(t, stopped.Stop())

	clock.Advance(time.Second)
	assert.Equal(t, 0, fired)
	clock.Advance(time.Second)
	assert.Equal(t, 1, fired)
	clock.Advance(time.Hour)
	assert.Equal(t, 1, fired)
}

func TestValidationError(t *testing.T) {
	err := error(NewValidationError(map[string]string{"phone": "required", "branch": "required"}))

	assert.True(t, IsValidation(err))
	assert.Equal(t, "validation failed: branch: required; phone: required", err.Error())

	ve, ok := AsValidation(WrapError("student", "Save", ErrValidation, "bad draft", err))
	require.True(t, ok)
	assert.Len(t, ve.Fields, 2)
}

func TestDomainError_Is(t *testing.T) {
	assert.True(t, IsNotFound(ErrStudentNotFound))
	assert.True(t, errors.Is(ErrRemovalNotConfirmed, ErrConfirmationRequired))
	assert.False(t, IsNotFound(ErrRemovalNotConfirmed))
}

type mapStore map[string][]byte

func (m mapStore) Load(_ context.Context, key string, dest any) (bool, error) {
	raw, ok := m[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (m mapStore) Save(_ context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m[key] = raw
	return nil
}

func TestGetPut(t *testing.T) {
	ctx := context.Background()
	store := mapStore{}

	got, err := Get(ctx, store, KeyGroups, []string{"default"})
	require.NoError(t, err)
	assert.Equal(t, []string{"default"}, got)

	require.NoError(t, Put(ctx, store, KeyGroups, []string{"a", "b"}))
	got, err = Get(ctx, store, KeyGroups, []string(nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)
}
