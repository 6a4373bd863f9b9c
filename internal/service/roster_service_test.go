package service

import (
	"context"
	"testing"

	"podshare/internal/models"
	"podshare/internal/notifications"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetRoster_FreshPodIsJustTheLeader(t *testing.T) {
	f := newFixture(t)
	leader := f.user(t, "lee")
	pod := f.pod(t, leader.ID, "Courtside", 3)

	roster, err := f.roster.GetRoster(context.Background(), pod.ID)
	require.NoError(t, err)
	require.Len(t, roster, 1)
	assert.Equal(t, leader.ID, roster[0].UserID)
	assert.Equal(t, models.RosterRoleLeader, roster[0].Role)
	assert.Equal(t, pod.CreatedAt, roster[0].JoinedAt)

	_, err = f.roster.GetRoster(context.Background(), 999)
	assert.True(t, models.IsNotFound(err))
}

func TestGetRoster_LeaderFirstThenMembersByJoinTime(t *testing.T) {
	f := newFixture(t)
	leader := f.user(t, "lee")
	pod := f.pod(t, leader.ID, "Courtside", 3)
	ana, bo := f.user(t, "ana"), f.user(t, "bo")
	f.member(t, pod, ana)
	f.member(t, pod, bo)

	roster, err := f.roster.GetRoster(context.Background(), pod.ID)
	require.NoError(t, err)
	require.Len(t, roster, 3)

	assert.Equal(t, []uint{leader.ID, ana.ID, bo.ID}, []uint{roster[0].UserID, roster[1].UserID, roster[2].UserID})
	assert.Equal(t, models.RosterRoleMember, roster[1].Role)
	assert.Equal(t, "ana@example.com", roster[1].Email)

	leaders := 0
	for _, e := range roster {
		if e.UserID == leader.ID {
			leaders++
		}
	}
	assert.Equal(t, 1, leaders)
}

func TestRemoveMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	leader := f.user(t, "lee")
	pod := f.pod(t, leader.ID, "Courtside", 2)
	ana, bo := f.user(t, "ana"), f.user(t, "bo")
	f.member(t, pod, ana)
	f.member(t, pod, bo)

	err := f.roster.RemoveMember(ctx, pod.ID, ana.ID, bo.ID)
	assert.Equal(t, models.CodeForbidden, models.ErrorCode(err), "members cannot remove each other")

	err = f.roster.RemoveMember(ctx, pod.ID, leader.ID, leader.ID)
	assert.Equal(t, models.CodeValidation, models.ErrorCode(err), "leader stays")

	err = f.roster.RemoveMember(ctx, pod.ID, leader.ID, ana.ID)
	assert.Equal(t, models.CodeForbidden, models.ErrorCode(err))

	require.NoError(t, f.roster.RemoveMember(ctx, pod.ID, ana.ID, leader.ID))
	f.requireCapacityInvariant(t, pod.ID)

	got, err := f.store.Pods().GetByID(ctx, pod.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.AvailableSpots, "removal restores a spot")

	e := f.events.last()
	assert.Equal(t, notifications.EventMemberRemoved, e.Type)
	assert.Equal(t, ana.ID, e.Recipient().UserID)
	assert.Equal(t, leader.ID, e.RemovedByID)

	err = f.roster.RemoveMember(ctx, pod.ID, ana.ID, leader.ID)
	assert.True(t, models.IsNotFound(err), "no active membership")

	require.NoError(t, f.roster.Leave(ctx, pod.ID, bo.ID))
	f.requireCapacityInvariant(t, pod.ID)

	roster, err := f.roster.GetRoster(ctx, pod.ID)
	require.NoError(t, err)
	assert.Len(t, roster, 1)
}

func TestRemoveMember_RejoinReactivates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	leader := f.user(t, "lee")
	pod := f.pod(t, leader.ID, "Courtside", 1)
	ana := f.user(t, "ana")

	f.member(t, pod, ana)
	require.NoError(t, f.roster.Leave(ctx, pod.ID, ana.ID))
	f.member(t, pod, ana)
	f.requireCapacityInvariant(t, pod.ID)

	got, err := f.store.Pods().GetByID(ctx, pod.ID)
	require.NoError(t, err)
	assert.Zero(t, got.AvailableSpots)
}

func TestCapacityInvariantAcrossMixedSequence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	leader := f.user(t, "lee")
	pod := f.pod(t, leader.ID, "Courtside", 3)
	users := []*models.User{f.user(t, "a1"), f.user(t, "a2"), f.user(t, "a3"), f.user(t, "a4")}

	for _, u := range users[:3] {
		f.member(t, pod, u)
		f.requireCapacityInvariant(t, pod.ID)
	}
	_, err := f.lifecycle.Submit(ctx, SubmitInput{PodID: pod.ID, UserID: users[3].ID})
	assert.True(t, models.IsPodFull(err))

	require.NoError(t, f.roster.RemoveMember(ctx, pod.ID, users[1].ID, leader.ID))
	f.requireCapacityInvariant(t, pod.ID)

	f.member(t, pod, users[3])
	f.requireCapacityInvariant(t, pod.ID)

	require.NoError(t, f.roster.Leave(ctx, pod.ID, users[0].ID))
	f.requireCapacityInvariant(t, pod.ID)
}

func TestLeaderDashboard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	leader := f.user(t, "lee")
	p1 := f.pod(t, leader.ID, "One", 3) // 5000 cents per person
	p2 := f.pod(t, leader.ID, "Two", 3)
	p3 := f.pod(t, leader.ID, "Three", 3)

	f.member(t, p1, f.user(t, "a"))
	f.member(t, p1, f.user(t, "b"))
	f.member(t, p2, f.user(t, "c"))
	f.member(t, p3, f.user(t, "d"))
	_, err := f.lifecycle.Submit(ctx, SubmitInput{PodID: p2.ID, UserID: f.user(t, "e").ID})
	require.NoError(t, err)
	_, err = f.pods.DeactivatePod(ctx, p3.ID, leader.ID)
	require.NoError(t, err)

	dash, err := f.roster.LeaderDashboard(ctx, leader.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, dash.ActivePods)
	assert.Equal(t, 3, dash.TotalMembers)
	assert.Equal(t, int64(3*5000), dash.MonthlyRevenueCents)
	assert.Equal(t, 1, dash.PendingRequests)

	empty, err := f.roster.LeaderDashboard(ctx, f.user(t, "nobody").ID)
	require.NoError(t, err)
	assert.Equal(t, models.LeaderDashboard{}, *empty)
}

func TestMemberPods(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	leader := f.user(t, "lee")
	ana := f.user(t, "ana")
	p1 := f.pod(t, leader.ID, "One", 3)
	p2 := f.pod(t, leader.ID, "Two", 3)
	p3 := f.pod(t, leader.ID, "Three", 3)
	f.member(t, p1, ana)
	f.member(t, p2, ana)
	f.member(t, p3, ana)
	require.NoError(t, f.roster.Leave(ctx, p2.ID, ana.ID))
	_, err := f.pods.DeactivatePod(ctx, p3.ID, leader.ID)
	require.NoError(t, err)

	pods, err := f.roster.MemberPods(ctx, ana.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{p1.ID}, podIDs(pods))

	led, err := f.roster.MemberPods(ctx, leader.ID)
	require.NoError(t, err)
	assert.Empty(t, led, "leading is not membership")
}

func TestReconcileCapacity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	leader := f.user(t, "lee")
	pod := f.pod(t, leader.ID, "Courtside", 3)
	f.member(t, pod, f.user(t, "ana"))

	repaired, err := f.roster.ReconcileCapacity(ctx, pod.ID)
	require.NoError(t, err)
	assert.False(t, repaired)

	drifted, err := f.store.Pods().GetByID(ctx, pod.ID)
	require.NoError(t, err)
	drifted.AvailableSpots = 3
	require.NoError(t, f.store.Pods().Update(ctx, drifted))

	n, err := f.roster.ReconcileAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	f.requireCapacityInvariant(t, pod.ID)

	_, err = f.roster.ReconcileCapacity(ctx, 999)
	assert.True(t, models.IsNotFound(err))
}
