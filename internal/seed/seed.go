// Package seed loads demo data into a store. It is intended for development
// and testing only.
package seed

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"podshare/internal/models"
	"podshare/internal/repository"
	"podshare/internal/service"

	"gopkg.in/yaml.v3"
)

//go:embed fixtures/demo.yml
var demoFixtures []byte

// UserFixture is one account to register.
type UserFixture struct {
	Name     string  `yaml:"name"`
	Email    string  `yaml:"email"`
	Password string  `yaml:"password"`
	Phone    *string `yaml:"phone,omitempty"`
}

// PodFixture is one pod plus the people attached to it. Members are
// accepted through the normal join-request flow; Pending stay pending.
type PodFixture struct {
	Leader             string   `yaml:"leader"`
	ClubName           string   `yaml:"club_name"`
	Region             string   `yaml:"region"`
	Address            string   `yaml:"address"`
	MembershipType     string   `yaml:"membership_type"`
	Title              string   `yaml:"title"`
	Description        string   `yaml:"description"`
	CostPerPersonCents int64    `yaml:"cost_per_person_cents"`
	TotalSpots         int      `yaml:"total_spots"`
	Amenities          []string `yaml:"amenities"`
	Rules              *string  `yaml:"rules,omitempty"`
	Members            []string `yaml:"members"`
	Pending            []string `yaml:"pending"`
}

// Fixtures is the document format of a seed file.
type Fixtures struct {
	Users []UserFixture `yaml:"users"`
	Pods  []PodFixture  `yaml:"pods"`
}

// Result counts what Apply created.
type Result struct {
	Users    int
	Pods     int
	Members  int
	Requests int
}

// Options tune Apply.
type Options struct {
	// BcryptCost for seeded passwords; 0 uses bcrypt.MinCost.
	BcryptCost int
}

// ParseFixtures decodes a YAML fixture document.
func ParseFixtures(data []byte) (*Fixtures, error) {
	var fx Fixtures
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	return &fx, nil
}

// LoadFixtures reads a fixture file. The name "demo" selects the built-in set.
func LoadFixtures(path string) (*Fixtures, error) {
	if path == "demo" {
		return ParseFixtures(demoFixtures)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures %s: %w", path, err)
	}
	return ParseFixtures(data)
}

// Apply registers users, creates pods and drives join requests through the
// services so seeded data obeys the same capacity rules as live traffic.
func Apply(ctx context.Context, store repository.Store, fx *Fixtures, opts ...Options) (Result, error) {
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}
	cost := o.BcryptCost
	if cost == 0 {
		cost = minBcryptCost
	}

	users := service.NewUserService(store.Users(), cost)
	pods := service.NewPodService(store, nil, nil, 0)
	lifecycle := service.NewLifecycleService(store, nil, nil)

	var res Result
	ids := make(map[string]uint, len(fx.Users))
	for _, u := range fx.Users {
		created, err := users.Register(ctx, service.RegisterInput{
			Name: u.Name, Email: u.Email, Password: u.Password, Phone: u.Phone,
		})
		if err != nil {
			return res, fmt.Errorf("user %s: %w", u.Email, err)
		}
		ids[created.Email] = created.ID
		res.Users++
	}

	lookup := func(email string) (uint, error) {
		if id, ok := ids[email]; ok {
			return id, nil
		}
		u, err := store.Users().GetByEmail(ctx, email)
		if err != nil {
			return 0, fmt.Errorf("unknown user %s: %w", email, err)
		}
		ids[u.Email] = u.ID
		return u.ID, nil
	}

	for _, p := range fx.Pods {
		leaderID, err := lookup(p.Leader)
		if err != nil {
			return res, err
		}
		pod, err := pods.CreatePod(ctx, leaderID, service.CreatePodInput{
			ClubName:           p.ClubName,
			Region:             p.Region,
			Address:            p.Address,
			MembershipType:     models.MembershipType(p.MembershipType),
			Title:              p.Title,
			Description:        p.Description,
			CostPerPersonCents: p.CostPerPersonCents,
			TotalSpots:         p.TotalSpots,
			Amenities:          p.Amenities,
			Rules:              p.Rules,
		})
		if err != nil {
			return res, fmt.Errorf("pod %q: %w", p.Title, err)
		}
		res.Pods++

		for _, email := range p.Members {
			userID, err := lookup(email)
			if err != nil {
				return res, err
			}
			req, err := lifecycle.Submit(ctx, service.SubmitInput{PodID: pod.ID, UserID: userID})
			if err != nil {
				return res, fmt.Errorf("pod %q member %s: %w", p.Title, email, err)
			}
			if _, err := lifecycle.Decide(ctx, req.ID, models.JoinRequestAccepted, leaderID); err != nil {
				return res, fmt.Errorf("pod %q accept %s: %w", p.Title, email, err)
			}
			res.Members++
		}
		for _, email := range p.Pending {
			userID, err := lookup(email)
			if err != nil {
				return res, err
			}
			if _, err := lifecycle.Submit(ctx, service.SubmitInput{PodID: pod.ID, UserID: userID}); err != nil {
				return res, fmt.Errorf("pod %q request %s: %w", p.Title, email, err)
			}
			res.Requests++
		}
	}
	return res, nil
}
