package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/center-hub/center-hub/internal/application/command"
)

type fakeFees struct {
	calls int
	err   error
}

func (f *fakeFees) RecalculateFees(context.Context) (*command.RecalculateFeesResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &command.RecalculateFeesResult{Checked: 3, Changed: 1}, nil
}

type fakeLocker struct {
	held     bool
	released int
	err      error
	ttl      time.Duration
}

func (l *fakeLocker) TryLock(_ context.Context, _, _ string, ttl time.Duration) (func(context.Context) error, bool, error) {
	l.ttl = ttl
	if l.err != nil || l.held {
		return nil, false, l.err
	}
	l.held = true
	return func(context.Context) error {
		l.held = false
		l.released++
		return nil
	}, true, nil
}

func TestRecalculateFeesJob_RunsUnderLock(t *testing.T) {
	fees := &fakeFees{}
	locker := &fakeLocker{}
	job := NewRecalculateFeesJob(fees, locker, nil, RecalculateFeesConfig{})

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, fees.calls)
	assert.Equal(t, 1, locker.released)
	assert.Equal(t, 10*time.Minute, locker.ttl)
	require.NotNil(t, job.LastResult())
	assert.Equal(t, 1, job.LastResult().Changed)
}

func TestRecalculateFeesJob_SkipsWhenLockHeld(t *testing.T) {
	fees := &fakeFees{}
	job := NewRecalculateFeesJob(fees, &fakeLocker{held: true}, nil, DefaultRecalculateFeesConfig())

	require.NoError(t, job.Run(context.Background()))
	assert.Zero(t, fees.calls)
	assert.Nil(t, job.LastResult())
}

func TestRecalculateFeesJob_Errors(t *testing.T) {
	lockErr := errors.New("redis down")
	job := NewRecalculateFeesJob(&fakeFees{}, &fakeLocker{err: lockErr}, nil, DefaultRecalculateFeesConfig())
	assert.ErrorIs(t, job.Run(context.Background()), lockErr)

	feeErr := errors.New("store down")
	locker := &fakeLocker{}
	job = NewRecalculateFeesJob(&fakeFees{err: feeErr}, locker, nil, DefaultRecalculateFeesConfig())
	assert.ErrorIs(t, job.Run(context.Background()), feeErr)
	assert.Equal(t, 1, locker.released)
}

func TestRecalculateFeesJob_WithoutLocker(t *testing.T) {
	fees := &fakeFees{}
	job := NewRecalculateFeesJob(fees, nil, nil, DefaultRecalculateFeesConfig())

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, fees.calls)
	assert.Equal(t, "recalculate_fees", job.Name())
}
