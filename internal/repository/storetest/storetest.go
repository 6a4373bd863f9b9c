// Package storetest is a behavioural suite every repository.Store
// implementation must pass.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"podshare/internal/models"
	"podshare/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) repository.Store

// Run executes the suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("Users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("PodListing", func(t *testing.T) { testPodListing(t, newStore(t)) })
	t.Run("AdjustAvailableSpots", func(t *testing.T) { testAdjustSpots(t, newStore(t)) })
	t.Run("JoinRequests", func(t *testing.T) { testJoinRequests(t, newStore(t)) })
	t.Run("Members", func(t *testing.T) { testMembers(t, newStore(t)) })
	t.Run("InPodTxRollsBack", func(t *testing.T) { testTxRollback(t, newStore(t)) })
	t.Run("InPodTxMissingPod", func(t *testing.T) { testTxMissingPod(t, newStore(t)) })
}

// SeedUser creates a user with a unique email derived from name.
func SeedUser(t *testing.T, s repository.Store, name string) *models.User {
	t.Helper()
	u := &models.User{Name: name, Email: fmt.Sprintf("%s@example.com", name), Password: "x"}
	require.NoError(t, s.Users().Create(context.Background(), u))
	return u
}

var slugSeq atomic.Uint64

// SeedPod creates an active pod led by leaderID with the given capacity.
func SeedPod(t *testing.T, s repository.Store, leaderID uint, title string, spots int) *models.Pod {
	t.Helper()
	p := &models.Pod{
		LeaderID:           leaderID,
		Slug:               fmt.Sprintf("%s-%d", strings.ToLower(strings.ReplaceAll(title, " ", "-")), slugSeq.Add(1)),
		ClubName:           "Bay Club",
		Region:             "South Bay",
		Address:            "1 Main St",
		MembershipType:     models.MembershipSingleClub,
		Title:              title,
		Description:        "test pod",
		CostPerPersonCents: 5000,
		TotalSpots:         spots,
		AvailableSpots:     spots,
		Amenities:          []string{"pool"},
		Active:             true,
	}
	require.NoError(t, s.Pods().Create(context.Background(), p))
	return p
}

func testUsers(t *testing.T, s repository.Store) {
	ctx := context.Background()
	u := SeedUser(t, s, "dana")
	assert.NotZero(t, u.ID)

	got, err := s.Users().GetByEmail(ctx, "  DANA@example.com ")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	err = s.Users().Create(ctx, &models.User{Name: "Dup", Email: "dana@example.com", Password: "x"})
	assert.Equal(t, models.CodeValidation, models.ErrorCode(err))

	_, err = s.Users().GetByID(ctx, 999)
	assert.True(t, models.IsNotFound(err))

	byID, err := s.Users().GetByIDs(ctx, []uint{u.ID, 999})
	require.NoError(t, err)
	assert.Len(t, byID, 1)
	assert.Equal(t, "dana", byID[u.ID].Name)
}

func testPodListing(t *testing.T, s repository.Store) {
	ctx := context.Background()
	leader := SeedUser(t, s, "lee")

	a := SeedPod(t, s, leader.ID, "Bay Club Courtside", 3)
	b := SeedPod(t, s, leader.ID, "Equinox Sunrise", 2)
	c := SeedPod(t, s, leader.ID, "Family Swim", 4)
	c.Amenities = []string{"pool", "sauna"}
	require.NoError(t, s.Pods().Update(ctx, c))

	all, err := s.Pods().ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []uint{a.ID, b.ID, c.ID}, []uint{all[0].ID, all[1].ID, all[2].ID})

	found, err := s.Pods().Search(ctx, models.NormalizeQuery("courtside"))
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, a.ID, found[0].ID)

	none, err := s.Pods().Search(ctx, "no_such%pod")
	require.NoError(t, err)
	assert.Empty(t, none)

	both, err := s.Pods().Filter(ctx, models.PodFilter{Amenities: []string{"pool", "sauna"}})
	require.NoError(t, err)
	require.Len(t, both, 1)
	assert.Equal(t, c.ID, both[0].ID)

	pool, err := s.Pods().Filter(ctx, models.PodFilter{Amenities: []string{"pool"}})
	require.NoError(t, err)
	assert.Len(t, pool, 3)

	bySlug, err := s.Pods().GetBySlug(ctx, b.Slug)
	require.NoError(t, err)
	assert.Equal(t, b.ID, bySlug.ID)

	exists, err := s.Pods().SlugExists(ctx, a.Slug)
	require.NoError(t, err)
	assert.True(t, exists)

	dup := *a
	dup.ID = 0
	err = s.Pods().Create(ctx, &dup)
	assert.Equal(t, models.CodeValidation, models.ErrorCode(err))

	b.Active = false
	require.NoError(t, s.Pods().Update(ctx, b))
	active, err := s.Pods().ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	mine, err := s.Pods().ListByLeader(ctx, leader.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 3, "inactive pods still belong to their leader")

	some, err := s.Pods().GetByIDs(ctx, []uint{c.ID, a.ID})
	require.NoError(t, err)
	require.Len(t, some, 2)
	assert.Equal(t, a.ID, some[0].ID)
}

func testAdjustSpots(t *testing.T, s repository.Store) {
	ctx := context.Background()
	leader := SeedUser(t, s, "lee")
	pod := SeedPod(t, s, leader.ID, "Tiny", 1)

	require.NoError(t, s.Pods().AdjustAvailableSpots(ctx, pod.ID, -1))
	err := s.Pods().AdjustAvailableSpots(ctx, pod.ID, -1)
	assert.True(t, models.IsPodFull(err))

	require.NoError(t, s.Pods().AdjustAvailableSpots(ctx, pod.ID, 1))
	err = s.Pods().AdjustAvailableSpots(ctx, pod.ID, 1)
	assert.Equal(t, models.CodeInvalidState, models.ErrorCode(err))

	got, err := s.Pods().GetByID(ctx, pod.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.AvailableSpots)

	err = s.Pods().AdjustAvailableSpots(ctx, 999, -1)
	assert.True(t, models.IsNotFound(err))
}

func testJoinRequests(t *testing.T, s repository.Store) {
	ctx := context.Background()
	leader := SeedUser(t, s, "lee")
	other := SeedUser(t, s, "olu")
	applicant := SeedUser(t, s, "ana")
	pod := SeedPod(t, s, leader.ID, "Courtside", 2)
	otherPod := SeedPod(t, s, other.ID, "Elsewhere", 2)

	req := &models.JoinRequest{
		PodID: pod.ID, UserID: applicant.ID, Status: models.JoinRequestPending,
		Contact: applicant.Contact(), Message: "hi",
	}
	require.NoError(t, s.JoinRequests().Create(ctx, req))

	dup := &models.JoinRequest{PodID: pod.ID, UserID: applicant.ID, Status: models.JoinRequestPending, Contact: applicant.Contact()}
	err := s.JoinRequests().Create(ctx, dup)
	assert.Equal(t, models.CodeDuplicateRequest, models.ErrorCode(err))

	pending, err := s.JoinRequests().FindPending(ctx, pod.ID, applicant.ID)
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.Equal(t, req.ID, pending.ID)
	assert.Equal(t, "ana@example.com", pending.Contact.Email)

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, s.JoinRequests().Transition(ctx, req.ID, models.JoinRequestPending, models.JoinRequestRejected, leader.ID, now))

	err = s.JoinRequests().Transition(ctx, req.ID, models.JoinRequestPending, models.JoinRequestAccepted, leader.ID, now)
	assert.Equal(t, models.CodeInvalidState, models.ErrorCode(err))

	got, err := s.JoinRequests().GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JoinRequestRejected, got.Status)
	require.NotNil(t, got.DecidedByUserID)
	assert.Equal(t, leader.ID, *got.DecidedByUserID)

	none, err := s.JoinRequests().FindPending(ctx, pod.ID, applicant.ID)
	require.NoError(t, err)
	assert.Nil(t, none)

	// a terminal request frees the (pod, user) pair for a new one
	again := &models.JoinRequest{PodID: pod.ID, UserID: applicant.ID, Status: models.JoinRequestPending, Contact: applicant.Contact()}
	require.NoError(t, s.JoinRequests().Create(ctx, again))

	elsewhere := &models.JoinRequest{PodID: otherPod.ID, UserID: applicant.ID, Status: models.JoinRequestPending, Contact: applicant.Contact()}
	require.NoError(t, s.JoinRequests().Create(ctx, elsewhere))

	byPod, err := s.JoinRequests().ListByPod(ctx, pod.ID)
	require.NoError(t, err)
	require.Len(t, byPod, 2)
	assert.Equal(t, req.ID, byPod[0].ID)

	byUser, err := s.JoinRequests().ListByUser(ctx, applicant.ID)
	require.NoError(t, err)
	assert.Len(t, byUser, 3)

	byLeader, err := s.JoinRequests().ListByLeader(ctx, leader.ID)
	require.NoError(t, err)
	assert.Len(t, byLeader, 2)
	for _, r := range byLeader {
		assert.Equal(t, pod.ID, r.PodID)
	}

	_, err = s.JoinRequests().GetByID(ctx, 999)
	assert.True(t, models.IsNotFound(err))
}

func testMembers(t *testing.T, s repository.Store) {
	ctx := context.Background()
	leader := SeedUser(t, s, "lee")
	m1 := SeedUser(t, s, "mia")
	m2 := SeedUser(t, s, "max")
	pod := SeedPod(t, s, leader.ID, "Courtside", 3)
	now := time.Now().UTC().Truncate(time.Second)

	first, err := s.Members().Activate(ctx, pod.ID, m1.ID, now)
	require.NoError(t, err)
	_, err = s.Members().Activate(ctx, pod.ID, m2.ID, now.Add(time.Minute))
	require.NoError(t, err)

	_, err = s.Members().Activate(ctx, pod.ID, m1.ID, now)
	assert.Equal(t, models.CodeValidation, models.ErrorCode(err))

	active, err := s.Members().ListActiveByPod(ctx, pod.ID)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, m1.ID, active[0].UserID)

	require.NoError(t, s.Members().Deactivate(ctx, pod.ID, m1.ID, now.Add(time.Hour)))
	err = s.Members().Deactivate(ctx, pod.ID, m1.ID, now.Add(time.Hour))
	assert.True(t, models.IsNotFound(err))

	n, err := s.Members().CountActiveByPod(ctx, pod.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	row, err := s.Members().Get(ctx, pod.ID, m1.ID)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.False(t, row.Active)
	assert.NotNil(t, row.LeftAt)

	back, err := s.Members().Activate(ctx, pod.ID, m1.ID, now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, first.ID, back.ID, "re-acceptance reuses the row")

	counts, err := s.Members().CountActiveByPods(ctx, []uint{pod.ID, 999})
	require.NoError(t, err)
	assert.Equal(t, 2, counts[pod.ID])
	assert.Equal(t, 0, counts[999])

	ids, err := s.Members().ListActivePodIDsByUser(ctx, m2.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{pod.ID}, ids)

	missing, err := s.Members().Get(ctx, pod.ID, leader.ID)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func testTxRollback(t *testing.T, s repository.Store) {
	ctx := context.Background()
	leader := SeedUser(t, s, "lee")
	applicant := SeedUser(t, s, "ana")
	pod := SeedPod(t, s, leader.ID, "Courtside", 2)

	boom := errors.New("boom")
	err := s.InPodTx(ctx, pod.ID, func(tx repository.Store) error {
		req := &models.JoinRequest{PodID: pod.ID, UserID: applicant.ID, Status: models.JoinRequestPending, Contact: applicant.Contact()}
		if err := tx.JoinRequests().Create(ctx, req); err != nil {
			return err
		}
		if _, err := tx.Members().Activate(ctx, pod.ID, applicant.ID, time.Now()); err != nil {
			return err
		}
		if err := tx.Pods().AdjustAvailableSpots(ctx, pod.ID, -1); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	reqs, err := s.JoinRequests().ListByPod(ctx, pod.ID)
	require.NoError(t, err)
	assert.Empty(t, reqs)

	m, err := s.Members().Get(ctx, pod.ID, applicant.ID)
	require.NoError(t, err)
	assert.Nil(t, m)

	got, err := s.Pods().GetByID(ctx, pod.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.AvailableSpots)

	err = s.InPodTx(ctx, pod.ID, func(tx repository.Store) error {
		return tx.Pods().AdjustAvailableSpots(ctx, pod.ID, -1)
	})
	require.NoError(t, err)
	got, err = s.Pods().GetByID(ctx, pod.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.AvailableSpots)
}

func testTxMissingPod(t *testing.T, s repository.Store) {
	called := false
	err := s.InPodTx(context.Background(), 4242, func(repository.Store) error {
		called = true
		return nil
	})
	assert.True(t, models.IsNotFound(err))
	assert.False(t, called)
}
