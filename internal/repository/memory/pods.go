package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"podshare/internal/models"
)

type podRepo struct{ view }

func clonePod(p models.Pod) models.Pod {
	p.Amenities = slices.Clone(p.Amenities)
	if p.Rules != nil {
		rules := *p.Rules
		p.Rules = &rules
	}
	p.Leader = nil
	return p
}

func (r podRepo) Create(_ context.Context, pod *models.Pod) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.pods {
		if p.Slug == pod.Slug {
			return models.NewValidationError(fmt.Sprintf("slug %q is already taken", pod.Slug))
		}
	}

	s.nextPodID++
	pod.ID = s.nextPodID
	now := s.now()
	if pod.CreatedAt.IsZero() {
		pod.CreatedAt = now
	}
	pod.UpdatedAt = now
	s.pods[pod.ID] = clonePod(*pod)

	id := pod.ID
	r.j.record(func() { delete(s.pods, id) })
	return nil
}

func (r podRepo) GetByID(_ context.Context, id uint) (*models.Pod, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.pods[id]
	if !ok {
		return nil, models.NewNotFoundError("Pod", id)
	}
	p = clonePod(p)
	return &p, nil
}

func (r podRepo) GetBySlug(_ context.Context, slug string) (*models.Pod, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, p := range r.s.pods {
		if p.Slug == slug {
			p = clonePod(p)
			return &p, nil
		}
	}
	return nil, models.NewNotFoundError("Pod", slug)
}

func (r podRepo) GetByIDs(_ context.Context, ids []uint) ([]models.Pod, error) {
	return r.collect(func(p *models.Pod) bool { return slices.Contains(ids, p.ID) }), nil
}

func (r podRepo) SlugExists(_ context.Context, slug string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, p := range r.s.pods {
		if p.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

// collect returns matching pods ordered by id, which is insertion order.
func (r podRepo) collect(keep func(*models.Pod) bool) []models.Pod {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []models.Pod{}
	for _, p := range r.s.pods {
		if keep(&p) {
			out = append(out, clonePod(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r podRepo) ListActive(_ context.Context) ([]models.Pod, error) {
	return r.collect(func(p *models.Pod) bool { return p.Active }), nil
}

func (r podRepo) ListByLeader(_ context.Context, leaderID uint) ([]models.Pod, error) {
	return r.collect(func(p *models.Pod) bool { return p.LeaderID == leaderID }), nil
}

func (r podRepo) Search(_ context.Context, query string) ([]models.Pod, error) {
	return r.collect(func(p *models.Pod) bool { return p.Active && p.MatchesQuery(query) }), nil
}

func (r podRepo) Filter(_ context.Context, filter models.PodFilter) ([]models.Pod, error) {
	return r.collect(func(p *models.Pod) bool { return p.Active && filter.Matches(p) }), nil
}

func (r podRepo) Update(_ context.Context, pod *models.Pod) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.pods[pod.ID]
	if !ok {
		return models.NewNotFoundError("Pod", pod.ID)
	}

	next := prev
	next.Title = pod.Title
	next.Description = pod.Description
	next.Rules = pod.Rules
	next.Amenities = pod.Amenities
	next.TotalSpots = pod.TotalSpots
	next.AvailableSpots = pod.AvailableSpots
	next.Active = pod.Active
	next.UpdatedAt = s.now()
	s.pods[pod.ID] = clonePod(next)
	pod.UpdatedAt = next.UpdatedAt

	r.j.record(func() { s.pods[prev.ID] = prev })
	return nil
}

func (r podRepo) AdjustAvailableSpots(_ context.Context, podID uint, delta int) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.pods[podID]
	if !ok {
		return models.NewNotFoundError("Pod", podID)
	}
	next := prev.AvailableSpots + delta
	if next < 0 {
		return models.NewPodFullError(podID)
	}
	if next > prev.TotalSpots {
		return models.NewInvalidStateError(fmt.Sprintf("pod %d cannot release more spots than it has", podID))
	}

	updated := prev
	updated.AvailableSpots = next
	s.pods[podID] = updated

	r.j.record(func() { s.pods[podID] = prev })
	return nil
}
