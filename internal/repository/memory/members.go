package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"podshare/internal/models"
)

type memberRepo struct{ view }

func cloneMember(m models.PodMember) models.PodMember {
	if m.LeftAt != nil {
		at := *m.LeftAt
		m.LeftAt = &at
	}
	m.User = nil
	return m
}

func (r memberRepo) Get(_ context.Context, podID, userID uint) (*models.PodMember, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	m, ok := r.s.members[memberKey{podID, userID}]
	if !ok {
		return nil, nil
	}
	m = cloneMember(m)
	return &m, nil
}

func (r memberRepo) Activate(_ context.Context, podID, userID uint, at time.Time) (*models.PodMember, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memberKey{podID, userID}
	prev, existed := s.members[key]
	if existed && prev.Active {
		return nil, models.NewValidationError(fmt.Sprintf("user %d is already a member of pod %d", userID, podID))
	}

	next := models.PodMember{PodID: podID, UserID: userID, JoinedAt: at, Active: true}
	if existed {
		next.ID = prev.ID
	} else {
		s.nextMemberID++
		next.ID = s.nextMemberID
	}
	s.members[key] = next

	r.j.record(func() {
		if existed {
			s.members[key] = prev
		} else {
			delete(s.members, key)
		}
	})
	return &next, nil
}

func (r memberRepo) Deactivate(_ context.Context, podID, userID uint, at time.Time) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memberKey{podID, userID}
	prev, ok := s.members[key]
	if !ok || !prev.Active {
		return models.NewNotFoundError("Membership", fmt.Sprintf("%d/%d", podID, userID))
	}

	next := prev
	next.Active = false
	next.LeftAt = &at
	s.members[key] = next

	r.j.record(func() { s.members[key] = prev })
	return nil
}

func (r memberRepo) ListActiveByPod(_ context.Context, podID uint) ([]models.PodMember, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []models.PodMember{}
	for _, m := range r.s.members {
		if m.PodID == podID && m.Active {
			out = append(out, cloneMember(m))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r memberRepo) CountActiveByPod(_ context.Context, podID uint) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	n := 0
	for _, m := range r.s.members {
		if m.PodID == podID && m.Active {
			n++
		}
	}
	return n, nil
}

func (r memberRepo) CountActiveByPods(_ context.Context, podIDs []uint) (map[uint]int, error) {
	want := make(map[uint]bool, len(podIDs))
	for _, id := range podIDs {
		want[id] = true
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make(map[uint]int, len(podIDs))
	for _, m := range r.s.members {
		if m.Active && want[m.PodID] {
			out[m.PodID]++
		}
	}
	return out, nil
}

func (r memberRepo) ListActivePodIDsByUser(_ context.Context, userID uint) ([]uint, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	ids := []uint{}
	for _, m := range r.s.members {
		if m.UserID == userID && m.Active {
			ids = append(ids, m.PodID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
