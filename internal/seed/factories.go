package seed

import (
	"fmt"

	"podshare/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
)

const minBcryptCost = bcrypt.MinCost

// FakePassword satisfies the password policy and is shared by every
// generated account.
const FakePassword = "Password123!pod"

var (
	fakeRegions   = []string{"South Bay", "Peninsula", "East Bay", "San Francisco", "North Bay"}
	fakeClubs     = []string{"Bay Club", "Equinox", "24 Hour Fitness", "Life Time", "YMCA"}
	fakeAmenities = []string{"pool", "sauna", "steam room", "kids club", "weights", "tennis", "spa", "classes"}
	fakeTypes     = []models.MembershipType{models.MembershipSingleClub, models.MembershipMultiClub, models.MembershipFamily}
)

// GenerateOptions sizes a generated fixture set.
type GenerateOptions struct {
	Users int
	Pods  int
	// Seed makes the output reproducible; 0 picks a random seed.
	Seed int64
}

// Generate builds a random but valid fixture set. Each pod is led by one of
// the generated users and filled with a few of the others.
func Generate(opts GenerateOptions) *Fixtures {
	if opts.Users < 2 {
		opts.Users = 2
	}
	f := gofakeit.New(opts.Seed)

	fx := &Fixtures{}
	for i := 0; i < opts.Users; i++ {
		fx.Users = append(fx.Users, UserFixture{
			Name:     f.Name(),
			Email:    fmt.Sprintf("%s.%d@example.com", f.Username(), i),
			Password: FakePassword,
		})
	}

	for i := 0; i < opts.Pods; i++ {
		leader := f.Number(0, opts.Users-1)
		spots := f.Number(2, 6)
		club := f.RandomString(fakeClubs) + " " + f.City()

		pod := PodFixture{
			Leader:             fx.Users[leader].Email,
			ClubName:           club,
			Region:             f.RandomString(fakeRegions),
			Address:            f.Street() + ", " + f.City(),
			MembershipType:     string(fakeTypes[f.Number(0, len(fakeTypes)-1)]),
			Title:              fmt.Sprintf("%s %s pod", f.HipsterWord(), f.RandomString(fakeAmenities)),
			Description:        f.Sentence(12),
			CostPerPersonCents: int64(f.Number(20, 250)) * 100,
			TotalSpots:         spots,
			Amenities:          pickAmenities(f),
		}

		// fill at most spots-1 seats so every pod keeps an opening
		taken := map[int]bool{leader: true}
		for len(pod.Members)+len(pod.Pending) < spots-1 && len(taken) < opts.Users {
			n := f.Number(0, opts.Users-1)
			if taken[n] {
				continue
			}
			taken[n] = true
			if f.Bool() {
				pod.Members = append(pod.Members, fx.Users[n].Email)
			} else {
				pod.Pending = append(pod.Pending, fx.Users[n].Email)
			}
		}
		fx.Pods = append(fx.Pods, pod)
	}
	return fx
}

func pickAmenities(f *gofakeit.Faker) []string {
	n := f.Number(1, 4)
	out := make([]string, 0, n)
	seen := map[string]bool{}
	for len(out) < n {
		a := f.RandomString(fakeAmenities)
		if !seen[a] {
			seen[a] = true
			out = append(out, a)
		}
	}
	return out
}
