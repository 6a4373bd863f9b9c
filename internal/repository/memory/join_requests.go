package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"podshare/internal/models"
)

type requestRepo struct{ view }

func cloneRequest(r models.JoinRequest) models.JoinRequest {
	if r.Contact.Phone != nil {
		phone := *r.Contact.Phone
		r.Contact.Phone = &phone
	}
	if r.DecidedByUserID != nil {
		id := *r.DecidedByUserID
		r.DecidedByUserID = &id
	}
	if r.DecidedAt != nil {
		at := *r.DecidedAt
		r.DecidedAt = &at
	}
	r.Pod = nil
	return r
}

func (r requestRepo) Create(_ context.Context, req *models.JoinRequest) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.requests {
		if existing.PodID == req.PodID && existing.UserID == req.UserID && existing.Status == models.JoinRequestPending {
			return models.NewDuplicateRequestError(req.PodID, req.UserID)
		}
	}

	s.nextRequestID++
	req.ID = s.nextRequestID
	if req.Status == "" {
		req.Status = models.JoinRequestPending
	}
	now := s.now()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now
	}
	req.UpdatedAt = now
	s.requests[req.ID] = cloneRequest(*req)

	id := req.ID
	r.j.record(func() { delete(s.requests, id) })
	return nil
}

func (r requestRepo) GetByID(_ context.Context, id uint) (*models.JoinRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	req, ok := r.s.requests[id]
	if !ok {
		return nil, models.NewNotFoundError("JoinRequest", id)
	}
	req = cloneRequest(req)
	return &req, nil
}

func (r requestRepo) FindPending(_ context.Context, podID, userID uint) (*models.JoinRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, req := range r.s.requests {
		if req.PodID == podID && req.UserID == userID && req.Status == models.JoinRequestPending {
			req = cloneRequest(req)
			return &req, nil
		}
	}
	return nil, nil
}

func (r requestRepo) Transition(_ context.Context, id uint, from, to models.JoinRequestStatus, decidedBy uint, at time.Time) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.requests[id]
	if !ok {
		return models.NewNotFoundError("JoinRequest", id)
	}
	if prev.Status != from {
		return models.NewInvalidStateError(fmt.Sprintf("join request %d is %s, not %s", id, prev.Status, from))
	}

	next := cloneRequest(prev)
	next.Status = to
	next.DecidedByUserID = &decidedBy
	next.DecidedAt = &at
	next.UpdatedAt = at
	s.requests[id] = next

	r.j.record(func() { s.requests[id] = prev })
	return nil
}

func (r requestRepo) list(keep func(*models.JoinRequest) bool) []models.JoinRequest {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []models.JoinRequest{}
	for _, req := range r.s.requests {
		if keep(&req) {
			out = append(out, cloneRequest(req))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r requestRepo) ListByPod(_ context.Context, podID uint) ([]models.JoinRequest, error) {
	return r.list(func(req *models.JoinRequest) bool { return req.PodID == podID }), nil
}

func (r requestRepo) ListByUser(_ context.Context, userID uint) ([]models.JoinRequest, error) {
	return r.list(func(req *models.JoinRequest) bool { return req.UserID == userID }), nil
}

// ListByLeader reads the pods map inside list's read lock.
func (r requestRepo) ListByLeader(_ context.Context, leaderID uint) ([]models.JoinRequest, error) {
	return r.list(func(req *models.JoinRequest) bool {
		pod, ok := r.s.pods[req.PodID]
		return ok && pod.LeaderID == leaderID
	}), nil
}
