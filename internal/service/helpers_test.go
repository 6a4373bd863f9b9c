package service

import (
	"context"
	"sync"
	"testing"

	"podshare/internal/cache"
	"podshare/internal/featureflags"
	"podshare/internal/models"
	"podshare/internal/notifications"
	"podshare/internal/repository"
	"podshare/internal/repository/memory"
	"podshare/internal/repository/storetest"

	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e notifications.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) types() []notifications.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]notifications.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

func (p *recordingPublisher) last() notifications.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events[len(p.events)-1]
}

type fixture struct {
	store     repository.Store
	events    *recordingPublisher
	pods      *PodService
	lifecycle *LifecycleService
	roster    *RosterService
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWith(t, memory.NewStore(), nil)
}

func newFixtureWith(t *testing.T, store repository.Store, c *cache.Cache) *fixture {
	t.Helper()
	events := &recordingPublisher{}
	return &fixture{
		store:     store,
		events:    events,
		pods:      NewPodService(store, c, featureflags.Parse("pod_cache=on"), 0),
		lifecycle: NewLifecycleService(store, events, c),
		roster:    NewRosterService(store, events, c),
	}
}

func (f *fixture) user(t *testing.T, name string) *models.User {
	return storetest.SeedUser(t, f.store, name)
}

func (f *fixture) pod(t *testing.T, leaderID uint, title string, spots int) *models.Pod {
	return storetest.SeedPod(t, f.store, leaderID, title, spots)
}

// member submits and accepts a request so user holds a seat in pod.
func (f *fixture) member(t *testing.T, pod *models.Pod, user *models.User) *models.JoinRequest {
	t.Helper()
	ctx := context.Background()
	req, err := f.lifecycle.Submit(ctx, SubmitInput{PodID: pod.ID, UserID: user.ID})
	require.NoError(t, err)
	req, err = f.lifecycle.Decide(ctx, req.ID, models.JoinRequestAccepted, pod.LeaderID)
	require.NoError(t, err)
	return req
}

// requireCapacityInvariant checks AvailableSpots against active members.
func (f *fixture) requireCapacityInvariant(t *testing.T, podID uint) {
	t.Helper()
	ctx := context.Background()
	pod, err := f.store.Pods().GetByID(ctx, podID)
	require.NoError(t, err)
	active, err := f.store.Members().CountActiveByPod(ctx, podID)
	require.NoError(t, err)
	require.Equal(t, pod.TotalSpots-active, pod.AvailableSpots, "available spots drifted for pod %d", podID)
}

func intPtr(n int) *int { return &n }

func strPtr(s string) *string { return &s }

func newMemoryStore() repository.Store { return memory.NewStore() }
