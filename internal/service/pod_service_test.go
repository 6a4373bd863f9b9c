package service

import (
	"context"
	"testing"

	"podshare/internal/cache"
	"podshare/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validPodInput() CreatePodInput {
	return CreatePodInput{
		ClubName:           "Bay Club",
		Region:             "South Bay",
		Address:            "200 Kiely Blvd, Santa Clara",
		MembershipType:     models.MembershipMultiClub,
		Title:              "Courtside Crew",
		Description:        "Tennis most evenings",
		CostPerPersonCents: 12500,
		TotalSpots:         3,
		Amenities:          []string{" Pool", "tennis", "POOL", ""},
	}
}

func TestCreatePod(t *testing.T) {
	f := newFixture(t)
	leader := f.user(t, "lee")

	pod, err := f.pods.CreatePod(context.Background(), leader.ID, validPodInput())
	require.NoError(t, err)

	assert.NotZero(t, pod.ID)
	assert.Equal(t, "bay-club-courtside-crew", pod.Slug)
	assert.Equal(t, 3, pod.AvailableSpots)
	assert.Equal(t, []string{"pool", "tennis"}, pod.Amenities)
	assert.True(t, pod.Active)

	again, err := f.pods.CreatePod(context.Background(), leader.ID, validPodInput())
	require.NoError(t, err)
	assert.Equal(t, "bay-club-courtside-crew-2", again.Slug)
}

func TestCreatePod_Validation(t *testing.T) {
	f := newFixture(t)
	leader := f.user(t, "lee")

	tests := []struct {
		name   string
		mutate func(*CreatePodInput)
	}{
		{"Zero Spots", func(in *CreatePodInput) { in.TotalSpots = 0 }},
		{"Negative Cost", func(in *CreatePodInput) { in.CostPerPersonCents = -1 }},
		{"Unknown Membership Type", func(in *CreatePodInput) { in.MembershipType = "Platinum" }},
		{"Blank Title", func(in *CreatePodInput) { in.Title = "  " }},
		{"Missing Address", func(in *CreatePodInput) { in.Address = "" }},
		{"Available Differs From Total", func(in *CreatePodInput) { in.AvailableSpots = intPtr(2) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validPodInput()
			tt.mutate(&in)
			_, err := f.pods.CreatePod(context.Background(), leader.ID, in)
			assert.Equal(t, models.CodeValidation, models.ErrorCode(err))
		})
	}

	in := validPodInput()
	in.AvailableSpots = intPtr(3)
	_, err := f.pods.CreatePod(context.Background(), leader.ID, in)
	assert.NoError(t, err, "matching available_spots is accepted")

	_, err = f.pods.CreatePod(context.Background(), 999, validPodInput())
	assert.True(t, models.IsNotFound(err))
}

func TestGetPod_NotFoundIsDistinct(t *testing.T) {
	f := newFixture(t)
	_, err := f.pods.GetPod(context.Background(), 42)
	assert.True(t, models.IsNotFound(err))

	_, err = f.pods.GetPodBySlug(context.Background(), "nope")
	assert.True(t, models.IsNotFound(err))
}

func seedSearchPods(t *testing.T, f *fixture) (a, b, c *models.Pod) {
	t.Helper()
	ctx := context.Background()
	leader := f.user(t, "lee")

	mk := func(club, title, desc, address, region string, mt models.MembershipType, cost int64, amenities ...string) *models.Pod {
		in := validPodInput()
		in.ClubName, in.Title, in.Description, in.Address, in.Region = club, title, desc, address, region
		in.MembershipType, in.CostPerPersonCents, in.Amenities = mt, cost, amenities
		p, err := f.pods.CreatePod(ctx, leader.ID, in)
		require.NoError(t, err)
		return p
	}
	a = mk("Bay Club", "Bay Club Courtside", "Tennis crew", "1 Main St", "South Bay", models.MembershipSingleClub, 9000, "pool", "tennis")
	b = mk("Equinox", "Morning Lifters", "Early gym sessions", "55 Courtside Ave", "Peninsula", models.MembershipMultiClub, 15000, "pool", "spa")
	c = mk("24 Hour", "Night Owls", "Late workouts", "9 Elm St", "South Bay", models.MembershipFamily, 4000, "sauna")
	return a, b, c
}

func podIDs(pods []models.Pod) []uint {
	ids := make([]uint, 0, len(pods))
	for _, p := range pods {
		ids = append(ids, p.ID)
	}
	return ids
}

func TestSearchPods(t *testing.T) {
	f := newFixture(t)
	a, b, c := seedSearchPods(t, f)
	ctx := context.Background()

	got, err := f.pods.SearchPods(ctx, "courtside", "")
	require.NoError(t, err)
	assert.Equal(t, []uint{a.ID, b.ID}, podIDs(got), "title of a, address of b")

	got, err = f.pods.SearchPods(ctx, "  NIGHT ", "")
	require.NoError(t, err)
	assert.Equal(t, []uint{c.ID}, podIDs(got))

	got, err = f.pods.SearchPods(ctx, "zzz", "")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	listed, err := f.pods.ListPods(ctx, "")
	require.NoError(t, err)
	blank, err := f.pods.SearchPods(ctx, "   ", "")
	require.NoError(t, err)
	assert.Equal(t, podIDs(listed), podIDs(blank))
	assert.Equal(t, []uint{a.ID, b.ID, c.ID}, podIDs(blank))
}

func TestSearchPods_LikeWildcardsAreLiteral(t *testing.T) {
	f := newFixture(t)
	seedSearchPods(t, f)

	got, err := f.pods.SearchPods(context.Background(), "%", "")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFilterPods(t *testing.T) {
	f := newFixture(t)
	a, b, c := seedSearchPods(t, f)
	ctx := context.Background()

	tests := []struct {
		name   string
		filter models.PodFilter
		want   []uint
	}{
		{"Empty", models.PodFilter{}, []uint{a.ID, b.ID, c.ID}},
		{"Region", models.PodFilter{Region: "South Bay"}, []uint{a.ID, c.ID}},
		{"Region Is Exact", models.PodFilter{Region: "South"}, []uint{}},
		{"Membership Type", models.PodFilter{MembershipType: models.MembershipMultiClub}, []uint{b.ID}},
		{"Single Amenity", models.PodFilter{Amenities: []string{"pool"}}, []uint{a.ID, b.ID}},
		{"All Amenities Required", models.PodFilter{Amenities: []string{"pool", "spa"}}, []uint{b.ID}},
		{"Amenities Case Insensitive", models.PodFilter{Amenities: []string{"POOL", "Tennis"}}, []uint{a.ID}},
		{"Combined", models.PodFilter{Region: "South Bay", Amenities: []string{"sauna"}}, []uint{c.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.pods.FilterPods(ctx, tt.filter, "")
			require.NoError(t, err)
			assert.Equal(t, tt.want, podIDs(got))
		})
	}
}

func TestBrowse_QueryAndFilter(t *testing.T) {
	f := newFixture(t)
	a, _, _ := seedSearchPods(t, f)

	got, err := f.pods.Browse(context.Background(), BrowseInput{
		Query:  "courtside",
		Filter: models.PodFilter{Region: "South Bay"},
	})
	require.NoError(t, err)
	assert.Equal(t, []uint{a.ID}, podIDs(got))
}

func TestListPods_Sort(t *testing.T) {
	f := newFixture(t)
	a, b, c := seedSearchPods(t, f)
	ctx := context.Background()

	got, err := f.pods.ListPods(ctx, models.PodSortCostAsc)
	require.NoError(t, err)
	assert.Equal(t, []uint{c.ID, a.ID, b.ID}, podIDs(got))

	got, err = f.pods.ListPods(ctx, models.PodSortCostDesc)
	require.NoError(t, err)
	assert.Equal(t, []uint{b.ID, a.ID, c.ID}, podIDs(got))

	got, err = f.pods.ListPods(ctx, models.PodSortAvailableDesc)
	require.NoError(t, err)
	assert.Equal(t, []uint{a.ID, b.ID, c.ID}, podIDs(got), "ties keep insertion order")

	_, err = f.pods.ListPods(ctx, "popularity")
	assert.Equal(t, models.CodeValidation, models.ErrorCode(err))
}

func TestUpdatePod(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	leader := f.user(t, "lee")
	pod := f.pod(t, leader.ID, "Courtside", 3)
	f.member(t, pod, f.user(t, "ana"))
	f.member(t, pod, f.user(t, "bo"))

	_, err := f.pods.UpdatePod(ctx, pod.ID, 999, UpdatePodInput{Title: strPtr("x")})
	assert.Equal(t, models.CodeForbidden, models.ErrorCode(err))

	_, err = f.pods.UpdatePod(ctx, pod.ID, leader.ID, UpdatePodInput{TotalSpots: intPtr(1)})
	assert.Equal(t, models.CodeValidation, models.ErrorCode(err))

	_, err = f.pods.UpdatePod(ctx, pod.ID, leader.ID, UpdatePodInput{Title: strPtr("  ")})
	assert.Equal(t, models.CodeValidation, models.ErrorCode(err))

	updated, err := f.pods.UpdatePod(ctx, pod.ID, leader.ID, UpdatePodInput{
		Title:      strPtr("Courtside Crew"),
		TotalSpots: intPtr(5),
		Amenities:  []string{"Spa", "spa"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Courtside Crew", updated.Title)
	assert.Equal(t, 3, updated.AvailableSpots)
	assert.Equal(t, []string{"spa"}, updated.Amenities)
	f.requireCapacityInvariant(t, pod.ID)
}

func TestDeactivatePod(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	leader := f.user(t, "lee")
	pod := f.pod(t, leader.ID, "Courtside", 3)

	_, err := f.pods.DeactivatePod(ctx, pod.ID, 999)
	assert.Equal(t, models.CodeForbidden, models.ErrorCode(err))

	_, err = f.pods.DeactivatePod(ctx, pod.ID, leader.ID)
	require.NoError(t, err)
	_, err = f.pods.DeactivatePod(ctx, pod.ID, leader.ID)
	require.NoError(t, err, "deactivating twice is a no-op")

	listed, err := f.pods.ListPods(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, listed)

	got, err := f.pods.GetPod(ctx, pod.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)

	mine, err := f.pods.ListLeaderPods(ctx, leader.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestGetPod_CacheInvalidatedOnChange(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	f := newFixtureWith(t, newMemoryStore(), cache.New(rdb))
	ctx := context.Background()
	leader := f.user(t, "lee")
	pod := f.pod(t, leader.ID, "Courtside", 2)

	got, err := f.pods.GetPod(ctx, pod.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.AvailableSpots)
	assert.True(t, mr.Exists(cache.PodKey(pod.ID)))

	f.member(t, pod, f.user(t, "ana"))
	assert.False(t, mr.Exists(cache.PodKey(pod.ID)), "accept drops the cached pod")

	got, err = f.pods.GetPod(ctx, pod.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.AvailableSpots)

	bySlug, err := f.pods.GetPodBySlug(ctx, pod.Slug)
	require.NoError(t, err)
	assert.Equal(t, pod.ID, bySlug.ID)
	assert.True(t, mr.Exists(cache.PodSlugKey(pod.Slug)))
}
