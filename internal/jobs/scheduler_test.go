package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"podshare/internal/repository/memory"
	"podshare/internal/repository/storetest"
	"podshare/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type reconcilerStub struct {
	calls  atomic.Int32
	result int
	err    error
}

func (r *reconcilerStub) ReconcileAll(context.Context) (int, error) {
	r.calls.Add(1)
	return r.result, r.err
}

func TestNewScheduler_RejectsBadSpec(t *testing.T) {
	_, err := NewScheduler("every now and then", &reconcilerStub{})
	require.Error(t, err)
}

func TestRunReconcile_ReportsResult(t *testing.T) {
	stub := &reconcilerStub{result: 2}
	s, err := NewScheduler("@every 1h", stub)
	require.NoError(t, err)

	n, err := s.RunReconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	stub.err = errors.New("db down")
	_, err = s.RunReconcile(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(2), stub.calls.Load())
}

func TestScheduler_StartStopDoesNotLeak(t *testing.T) {
	defer goleak.VerifyNone(t)

	s, err := NewScheduler("@every 1h", &reconcilerStub{})
	require.NoError(t, err)
	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}

func TestRunReconcile_RepairsDriftedPod(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	leader := storetest.SeedUser(t, store, "lee")
	pod := storetest.SeedPod(t, store, leader.ID, "Swim", 3)

	pod.AvailableSpots = 1
	require.NoError(t, store.Pods().Update(ctx, pod))

	s, err := NewScheduler("@every 1h", service.NewRosterService(store, nil, nil))
	require.NoError(t, err)

	n, err := s.RunReconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := store.Pods().GetByID(ctx, pod.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.AvailableSpots)
}
